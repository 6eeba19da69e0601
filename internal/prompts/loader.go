package prompts

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"
)

const (
	Research = "research"
	Score    = "score"
	Compile  = "compile"
)

// Meta is the YAML front matter of a prompt template.
type Meta struct {
	ID          string   `yaml:"id"`
	Version     string   `yaml:"version"`
	System      string   `yaml:"system"`
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature"`
	JSON        bool     `yaml:"json"`
}

// Prompt is a rendered template ready to send.
type Prompt struct {
	Meta Meta
	User string
}

// Loader renders prompt templates. Files named <id>.md in an override
// directory replace the embedded copy.
type Loader struct {
	overrideDir string
	cache       map[string]*template.Template
	metaCache   map[string]Meta
	mu          sync.RWMutex
}

func NewLoader(overrideDir string) *Loader {
	return &Loader{
		overrideDir: overrideDir,
		cache:       make(map[string]*template.Template),
		metaCache:   make(map[string]Meta),
	}
}

func (l *Loader) loadContent(id string) ([]byte, error) {
	name := id + ".md"
	if l.overrideDir != "" {
		if data, err := os.ReadFile(filepath.Join(l.overrideDir, name)); err == nil {
			return data, nil
		}
	}
	return fs.ReadFile(embeddedFS, "templates/"+name)
}

func parseFrontmatter(content []byte) (Meta, string, error) {
	str := strings.ReplaceAll(string(content), "\r\n", "\n")
	if !strings.HasPrefix(str, "---\n") {
		return Meta{}, str, nil
	}
	end := strings.Index(str[4:], "\n---\n")
	if end == -1 {
		return Meta{}, str, nil
	}
	front := str[4 : 4+end]
	body := str[4+end+5:]

	var meta Meta
	if err := yaml.Unmarshal([]byte(front), &meta); err != nil {
		return Meta{}, "", fmt.Errorf("parse frontmatter: %w", err)
	}
	return meta, body, nil
}

func (l *Loader) load(id string) (*template.Template, Meta, error) {
	l.mu.RLock()
	if tmpl, ok := l.cache[id]; ok {
		meta := l.metaCache[id]
		l.mu.RUnlock()
		return tmpl, meta, nil
	}
	l.mu.RUnlock()

	content, err := l.loadContent(id)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("load prompt %s: %w", id, err)
	}
	meta, body, err := parseFrontmatter(content)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("prompt %s: %w", id, err)
	}
	if meta.ID == "" {
		meta.ID = id
	}
	tmpl, err := template.New(id).Option("missingkey=error").Parse(body)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("compile prompt %s: %w", id, err)
	}

	l.mu.Lock()
	l.cache[id] = tmpl
	l.metaCache[id] = meta
	l.mu.Unlock()
	return tmpl, meta, nil
}

// Render executes the template id with data.
func (l *Loader) Render(id string, data any) (Prompt, error) {
	tmpl, meta, err := l.load(id)
	if err != nil {
		return Prompt{}, err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return Prompt{}, fmt.Errorf("render prompt %s: %w", id, err)
	}
	return Prompt{Meta: meta, User: strings.TrimSpace(buf.String())}, nil
}

func (l *Loader) ClearCache() {
	l.mu.Lock()
	l.cache = make(map[string]*template.Template)
	l.metaCache = make(map[string]Meta)
	l.mu.Unlock()
}

// IdeaData feeds the research prompt.
type IdeaData struct {
	Name            string
	Description     string
	Domain          string
	TargetCustomer  string
	InitialThoughts string
}

type DimensionData struct {
	Key     string
	Label   string
	Max     float64
	Inverse bool
}

// ScoreData feeds the scoring prompt.
type ScoreData struct {
	IdeaData
	Research      string
	RubricVersion string
	Dimensions    []DimensionData
}

// CompileData feeds the plan generation prompt.
type CompileData struct {
	IdeaData
	Verdict    string
	FinalScore float64
	NextSteps  []string
}
