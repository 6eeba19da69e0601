package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"venturelab/internal/config"
	"venturelab/internal/db"
	"venturelab/internal/engine"
	"venturelab/internal/llm"
	"venturelab/internal/logging"
	"venturelab/internal/migrate"
)

// Runtime is everything a CLI command or the server needs.
type Runtime struct {
	Workspace string
	Config    *config.Config
	Log       *zap.Logger
	DB        *sql.DB
	Redis     *redis.Client
	Engine    engine.Engine
}

type Options struct {
	Workspace string
	Viper     *viper.Viper
	// Clients replaces the HTTP completion clients, mainly for tests.
	Clients *engine.Clients
	// HTTPClient is used by the completion clients when set.
	HTTPClient *http.Client
}

// Open loads configuration, opens and migrates the workspace database and
// wires the engine.
func Open(ctx context.Context, opts Options) (*Runtime, error) {
	v := opts.Viper
	if v == nil {
		v = config.NewViper()
	}
	cfg, err := config.Load(opts.Workspace, v)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	version, err := migrate.Migrate(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Debug("database ready", zap.String("path", db.Path(opts.Workspace)), zap.Int("schema_version", version))

	rt := &Runtime{Workspace: opts.Workspace, Config: cfg, Log: log, DB: conn}
	if cfg.Cache.RedisAddr != "" {
		rt.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := rt.Redis.Ping(pingCtx).Err(); err != nil {
			log.Warn("completion cache unreachable; continuing without it", zap.String("addr", cfg.Cache.RedisAddr), zap.Error(err))
			_ = rt.Redis.Close()
			rt.Redis = nil
		}
		cancel()
	}

	clients := engine.Clients{}
	if opts.Clients != nil {
		clients = *opts.Clients
	} else {
		clients, err = rt.buildClients(opts.HTTPClient)
		if err != nil {
			rt.Close()
			return nil, err
		}
	}
	rt.Engine = engine.New(conn, cfg, clients, log)
	return rt, nil
}

func (rt *Runtime) buildClients(hc *http.Client) (engine.Clients, error) {
	cfg := rt.Config
	build := func(stage config.StageLLMConfig) (llm.Client, error) {
		resolved := cfg.Resolved(stage)
		c, err := llm.NewHTTPClient(llm.HTTPConfig{
			BaseURL:       resolved.BaseURL,
			APIKey:        resolved.APIKey,
			Timeout:       time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
			MaxRetries:    cfg.LLM.MaxRetries,
			RatePerMinute: cfg.LLM.RatePerMinute,
			Burst:         cfg.LLM.Burst,
			Headers:       map[string]string{"X-Title": "venturelab"},
			HTTPClient:    hc,
			Logger:        rt.Log,
		})
		if err != nil {
			return nil, err
		}
		if rt.Redis == nil {
			return c, nil
		}
		return llm.NewCachedClient(c, rt.Redis, time.Duration(cfg.Cache.TTLSeconds)*time.Second, rt.Log), nil
	}
	research, err := build(cfg.Research)
	if err != nil {
		return engine.Clients{}, fmt.Errorf("research client: %w", err)
	}
	// Research usually has its own endpoint; scoring and compile share the default.
	shared, err := build(config.StageLLMConfig{})
	if err != nil {
		return engine.Clients{}, fmt.Errorf("llm client: %w", err)
	}
	score, compile := shared, shared
	if cfg.Scoring.BaseURL != "" {
		if score, err = build(cfg.Scoring.StageLLMConfig); err != nil {
			return engine.Clients{}, fmt.Errorf("score client: %w", err)
		}
	}
	if cfg.Compile.BaseURL != "" {
		if compile, err = build(cfg.Compile); err != nil {
			return engine.Clients{}, fmt.Errorf("compile client: %w", err)
		}
	}
	return engine.Clients{Research: research, Score: score, Compile: compile}, nil
}

func (rt *Runtime) Close() {
	if rt.Redis != nil {
		_ = rt.Redis.Close()
	}
	if rt.DB != nil {
		_ = rt.DB.Close()
	}
	if rt.Log != nil {
		_ = rt.Log.Sync()
	}
}
