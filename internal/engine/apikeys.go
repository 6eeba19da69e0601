package engine

import (
	"context"
	"crypto/rand"
	"strings"

	"github.com/google/uuid"

	"venturelab/internal/apperr"
	"venturelab/internal/domain"
	"venturelab/internal/events"
	"venturelab/internal/repo"
)

const apiKeyPrefix = "vl_"

// CreateAPIKey issues a key for actorID. Only the hash is stored; the
// returned secret cannot be recovered later.
func (e Engine) CreateAPIKey(ctx context.Context, actorID, name, createdBy string) (domain.APIKey, string, error) {
	const op = "create api key"
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return domain.APIKey{}, "", apperr.Validation(op, "actor is required")
	}
	secret := apiKeyPrefix + strings.ToLower(rand.Text())
	key := domain.APIKey{
		ID:        uuid.NewString(),
		ActorID:   actorID,
		Name:      strings.TrimSpace(name),
		KeyHash:   repo.HashAPIKey(secret),
		CreatedAt: e.stamp(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.APIKey{}, "", mapStoreErr(op, "api key", err)
	}
	defer tx.Rollback()
	if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
		return domain.APIKey{}, "", mapStoreErr(op, "api key", err)
	}
	if err := e.emit(ctx, tx, events.APIKeyCreated, "api_key", key.ID, createdBy, events.EventPayload{
		"actor_id": key.ActorID, "name": key.Name,
	}); err != nil {
		return domain.APIKey{}, "", mapStoreErr(op, "api key", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.APIKey{}, "", mapStoreErr(op, "api key", err)
	}
	return key, secret, nil
}

func (e Engine) ListAPIKeys(ctx context.Context, actorID string) ([]domain.APIKey, error) {
	keys, err := e.Repo.ListAPIKeys(ctx, actorID)
	if err != nil {
		return nil, mapStoreErr("list api keys", "api key", err)
	}
	if keys == nil {
		keys = []domain.APIKey{}
	}
	return keys, nil
}

func (e Engine) RevokeAPIKey(ctx context.Context, id, actorID string) error {
	const op = "revoke api key"
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return mapStoreErr(op, "api key", err)
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteAPIKey(ctx, tx, id); err != nil {
		return mapStoreErr(op, "api key", err)
	}
	if err := e.emit(ctx, tx, events.APIKeyRevoked, "api_key", id, actorID, nil); err != nil {
		return mapStoreErr(op, "api key", err)
	}
	return mapStoreErr(op, "api key", tx.Commit())
}

// Authenticate resolves an API key secret to its owning actor.
func (e Engine) Authenticate(ctx context.Context, secret string) (domain.APIKey, error) {
	key, err := e.Repo.GetAPIKeyByHash(ctx, repo.HashAPIKey(secret))
	if err != nil {
		return domain.APIKey{}, mapStoreErr("authenticate", "api key", err)
	}
	return key, nil
}
