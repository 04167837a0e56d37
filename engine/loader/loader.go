// Package loader imports static meshes from glTF and GLB files and caches the resulting models.
package loader

import (
	"io"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// ErrUnsupportedFormat is returned when no loader backend reads a file's extension.
var ErrUnsupportedFormat = errors.New("unsupported model format")

// LoaderBackendType identifies the model file format backend to use.
type LoaderBackendType int

const (
	// BackendTypeGLTF selects the glTF/GLB loader backend.
	BackendTypeGLTF LoaderBackendType = iota
)

// loader is the implementation of the Loader interface.
type loader struct {
	mu *sync.RWMutex

	renderBackend backend.Backend
	modelCache    map[string]model.Model
	backend       loaderBackend
}

// Loader defines the public-facing interface for loading and caching models.
// It abstracts the file format behind a loader backend and uploads every imported
// mesh to the render backend it was created with.
type Loader interface {
	// Load imports a model file and caches the result by path.
	// If the model is already cached, the cached version is returned.
	//
	// Parameters:
	//   - path: the file path to the model file
	//
	// Returns:
	//   - model.Model: the loaded and cached model
	//   - error: error if loading or uploading fails
	Load(path string) (model.Model, error)

	// LoadReader imports a model from a reader stream and caches it by the given name.
	//
	// Parameters:
	//   - name: the cache key and model name
	//   - r: the reader providing model data
	//   - isGLB: true if the reader provides GLB binary data
	//
	// Returns:
	//   - model.Model: the loaded model
	//   - error: error if loading or uploading fails
	LoadReader(name string, r io.Reader, isGLB bool) (model.Model, error)

	// Get retrieves a cached model by name. Returns nil if not found.
	//
	// Parameters:
	//   - name: the cache key to look up
	//
	// Returns:
	//   - model.Model: the cached model or nil
	Get(name string) model.Model

	// Models returns a copy of the model cache.
	//
	// Returns:
	//   - map[string]model.Model: all cached models keyed by name
	Models() map[string]model.Model

	// Release frees every cached model on the render backend and empties the cache.
	Release()
}

var _ Loader = &loader{}

// NewLoader creates a new Loader that uploads meshes to the given render backend.
//
// Parameters:
//   - b: the render backend meshes are uploaded to
//   - backendType: the type of loader backend to use (e.g., BackendTypeGLTF)
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new instance of Loader configured with the provided backend and options
func NewLoader(b backend.Backend, backendType LoaderBackendType, options ...LoaderBuilderOption) Loader {
	l := &loader{
		mu:            &sync.RWMutex{},
		renderBackend: b,
		modelCache:    make(map[string]model.Model),
	}

	switch backendType {
	case BackendTypeGLTF:
		l.backend = newGLTFLoaderBackend()
	}

	for _, option := range options {
		option(l)
	}
	return l
}

func (l *loader) Load(path string) (model.Model, error) {
	if cached := l.Get(path); cached != nil {
		return cached, nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !slices.Contains(l.backend.Extensions(), ext) {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%q", ext)
	}

	imported, err := l.backend.Load(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	imported.Name = common.Coalesce(imported.Name, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	return l.store(path, imported)
}

func (l *loader) LoadReader(name string, r io.Reader, isGLB bool) (model.Model, error) {
	if cached := l.Get(name); cached != nil {
		return cached, nil
	}

	imported, err := l.backend.LoadReader(r, isGLB)
	if err != nil {
		return nil, errors.Wrapf(err, "load from reader %q", name)
	}
	imported.Name = name
	return l.store(name, imported)
}

// store uploads an imported mesh and caches it. A model cached concurrently under the
// same key wins and the duplicate upload is released.
func (l *loader) store(key string, imported *importedMesh) (model.Model, error) {
	imported.Data.Label = imported.Name
	m, err := model.NewModel(l.renderBackend, imported.Data,
		model.WithName(imported.Name),
		model.WithMaterial(imported.Material),
	)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.modelCache[key]; ok {
		m.Release(l.renderBackend)
		return existing, nil
	}
	l.modelCache[key] = m

	logger.Named("loader").Debug("model loaded",
		zap.String("key", key),
		zap.Int("vertices", len(imported.Data.Positions)),
		zap.Int("indices", len(imported.Data.Indices)),
	)
	return m, nil
}

func (l *loader) Get(name string) model.Model {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.modelCache[name]
}

func (l *loader) Models() map[string]model.Model {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make(map[string]model.Model, len(l.modelCache))
	for k, v := range l.modelCache {
		result[k] = v
	}
	return result
}

func (l *loader) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.modelCache {
		m.Release(l.renderBackend)
	}
	clear(l.modelCache)
}
