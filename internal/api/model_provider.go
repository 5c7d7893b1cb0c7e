package api

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/samcharles93/ngramlm/internal/lm"
	"github.com/samcharles93/ngramlm/internal/logger"
)

// ModelProvider resolves a model ID to a loaded model.
type ModelProvider interface {
	WithModel(ctx context.Context, modelID string, fn func(m *lm.Model) error) error
	ListModels() ([]string, error)
}

type ProviderConfig struct {
	DefaultModelPath string
	ModelsPath       string
	LoadOptions      []lm.Option
	Logger           logger.Logger
}

// CachedModelProvider loads each model file once and shares it between
// requests. Loaded models are immutable, so callers run concurrently.
type CachedModelProvider struct {
	cfg   ProviderConfig
	mu    sync.Mutex
	cache map[string]*lm.Model
}

const envModelsDir = "NGRAMLM_MODELS_DIR"

const modelExt = ".mcf"

func NewCachedModelProvider(cfg ProviderConfig) *CachedModelProvider {
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	return &CachedModelProvider{
		cfg:   cfg,
		cache: make(map[string]*lm.Model),
	}
}

func (p *CachedModelProvider) WithModel(ctx context.Context, modelID string, fn func(m *lm.Model) error) error {
	path, err := p.resolveModelPath(modelID)
	if err != nil {
		return err
	}
	m, err := p.getOrLoad(ctx, path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(m)
}

func (p *CachedModelProvider) getOrLoad(ctx context.Context, path string) (*lm.Model, error) {
	p.mu.Lock()
	m, ok := p.cache[path]
	p.mu.Unlock()
	if ok {
		return m, nil
	}

	opts := append(slices.Clone(p.cfg.LoadOptions), lm.WithLogger(p.cfg.Logger))
	loaded, err := lm.Load(ctx, path, opts...)
	if err != nil {
		if errors.Is(err, lm.ErrIO) && !fileExists(path) {
			return nil, newModelNotFound(fmt.Sprintf("model file %s does not exist", path))
		}
		return nil, err
	}
	p.cfg.Logger.Info("model loaded", "path", path, "order", loaded.Order(), "vocab", loaded.VocabSize())

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.cache[path]; ok {
		_ = loaded.Close()
		return existing, nil
	}
	p.cache[path] = loaded
	return loaded, nil
}

// ListModels returns the names of the models a request may select: every
// model file in the models directory plus the default model.
func (p *CachedModelProvider) ListModels() ([]string, error) {
	var names []string
	if dir := p.modelsDir(); dir != "" {
		paths, err := discoverModels(dir)
		if err != nil {
			return nil, err
		}
		for _, path := range paths {
			names = append(names, modelName(path))
		}
	}
	if p.cfg.DefaultModelPath != "" {
		names = append(names, modelName(p.cfg.DefaultModelPath))
	}
	slices.Sort(names)
	return slices.Compact(names), nil
}

// Close releases every cached model.
func (p *CachedModelProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for path, m := range p.cache {
		errs = append(errs, m.Close())
		delete(p.cache, path)
	}
	return errors.Join(errs...)
}

// resolveModelPath maps a request's model name to a file. Only the default
// model and .mcf files directly inside the models directory can be selected,
// so the cache is bounded by what the operator installed.
func (p *CachedModelProvider) resolveModelPath(modelID string) (string, error) {
	modelID = strings.TrimSpace(modelID)
	if modelID != "" {
		name, err := modelNameFromID(modelID)
		if err != nil {
			return "", err
		}
		if p.cfg.DefaultModelPath != "" && modelName(p.cfg.DefaultModelPath) == name {
			return filepath.Clean(p.cfg.DefaultModelPath), nil
		}
		modelsDir := p.modelsDir()
		if modelsDir == "" {
			return "", newModelNotFound(fmt.Sprintf("model %q not found", modelID))
		}
		if resolved := resolveInDir(modelsDir, name); resolved != "" {
			return resolved, nil
		}
		return "", newModelNotFound(fmt.Sprintf("model %q not found", modelID))
	}

	if p.cfg.DefaultModelPath != "" {
		return filepath.Clean(p.cfg.DefaultModelPath), nil
	}
	modelsDir := p.modelsDir()
	if modelsDir == "" {
		return "", newInvalidRequest("model is required")
	}
	models, err := discoverModels(modelsDir)
	if err != nil {
		return "", err
	}
	if len(models) == 1 {
		return models[0], nil
	}
	if len(models) == 0 {
		return "", newModelNotFound(fmt.Sprintf("no %s models found", modelExt))
	}
	return "", newInvalidRequest("multiple models available; specify model")
}

func (p *CachedModelProvider) modelsDir() string {
	if strings.TrimSpace(p.cfg.ModelsPath) != "" {
		return strings.TrimSpace(p.cfg.ModelsPath)
	}
	return strings.TrimSpace(os.Getenv(envModelsDir))
}

func modelName(path string) string {
	base := filepath.Base(path)
	if strings.HasSuffix(strings.ToLower(base), modelExt) {
		base = base[:len(base)-len(modelExt)]
	}
	return base
}

// modelNameFromID accepts "name" or "name.mcf" and rejects anything that
// could reach outside the models directory.
func modelNameFromID(id string) (string, error) {
	if strings.ContainsAny(id, `/\`) || !filepath.IsLocal(id) || strings.HasPrefix(id, ".") {
		return "", newInvalidRequest(fmt.Sprintf("model %q must be a model name, not a path", id))
	}
	name := modelName(id)
	if name == "" {
		return "", newInvalidRequest(fmt.Sprintf("model %q must be a model name, not a path", id))
	}
	return name, nil
}

// resolveInDir matches name against the models ListModels reports for dir.
func resolveInDir(dir, name string) string {
	paths, err := discoverModels(dir)
	if err != nil {
		return ""
	}
	for _, path := range paths {
		if modelName(path) == name {
			return path
		}
	}
	return ""
}

func discoverModels(dir string) ([]string, error) {
	st, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("models path is not a directory: %s", dir)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	models := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), modelExt) {
			continue
		}
		models = append(models, filepath.Join(dir, name))
	}
	return models, nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
