package loader

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-blend/engine/graph"
)

// LoaderBackendType identifies the asset file format backend to use.
type LoaderBackendType int

const (
	// BackendTypeGLTF selects the glTF/GLB loader backend.
	BackendTypeGLTF LoaderBackendType = iota
)

// loader is the implementation of the Loader interface.
type loader struct {
	mu *sync.RWMutex

	logger *slog.Logger
	mode   graph.WrapMode

	cache map[string][]*graph.Clip

	backend loaderBackend
}

// Loader imports the animations of asset files as sequences and caches them by file path.
// Every call returns copies, so callers may adjust a sequence (for example its wrap mode)
// without affecting the cache.
type Loader interface {
	// Load imports every animation in the file at path.
	// If the file has been loaded before, the cached sequences are returned.
	// The backend is selected based on the file extension (.gltf/.glb → glTF backend).
	//
	// Parameters:
	//   - path: the file path to the asset
	//
	// Returns:
	//   - []*graph.Clip: the sequences in file order
	//   - error: error if loading fails
	Load(path string) ([]*graph.Clip, error)

	// LoadReader imports sequences from a reader stream and caches them under name.
	//
	// Parameters:
	//   - name: the cache key for the sequences
	//   - r: the reader providing asset data
	//   - isGLB: true if the reader provides GLB binary data
	//
	// Returns:
	//   - []*graph.Clip: the sequences in stream order
	//   - error: error if loading fails
	LoadReader(name string, r io.Reader, isGLB bool) ([]*graph.Clip, error)

	// Find loads the file at path and returns the sequence named id.
	//
	// Parameters:
	//   - path: the file path to the asset
	//   - id: the animation name
	//
	// Returns:
	//   - *graph.Clip: the sequence
	//   - error: error if loading fails or the file has no animation named id
	Find(path, id string) (*graph.Clip, error)

	// Get retrieves cached sequences by key. Returns nil if not found.
	//
	// Parameters:
	//   - key: the cache key to look up
	//
	// Returns:
	//   - []*graph.Clip: the cached sequences or nil
	Get(key string) []*graph.Clip
}

var _ Loader = &loader{}

// NewLoader creates a new Loader instance with the specified backend type and options applied.
//
// Parameters:
//   - backendType: the type of loader backend to use (e.g., BackendTypeGLTF)
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new instance of Loader configured with the provided backend and options
func NewLoader(backendType LoaderBackendType, options ...LoaderBuilderOption) Loader {
	l := &loader{
		mu:     &sync.RWMutex{},
		logger: slog.Default(),
		mode:   graph.WrapHold,
		cache:  make(map[string][]*graph.Clip),
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

func (l *loader) Load(path string) ([]*graph.Clip, error) {
	if cached := l.Get(path); cached != nil {
		return cached, nil
	}

	backend, err := l.resolveBackend(path)
	if err != nil {
		return nil, err
	}

	clips, err := backend.Load(path, l.mode)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	l.store(path, clips)

	return cloneClips(clips), nil
}

func (l *loader) LoadReader(name string, r io.Reader, isGLB bool) ([]*graph.Clip, error) {
	if cached := l.Get(name); cached != nil {
		return cached, nil
	}

	clips, err := l.backend.LoadReader(r, isGLB, l.mode)
	if err != nil {
		return nil, fmt.Errorf("failed to load from reader %q: %w", name, err)
	}
	l.store(name, clips)

	return cloneClips(clips), nil
}

func (l *loader) Find(path, id string) (*graph.Clip, error) {
	clips, err := l.Load(path)
	if err != nil {
		return nil, err
	}
	for _, c := range clips {
		if c.ID() == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%s has no animation named %q", path, id)
}

func (l *loader) Get(key string) []*graph.Clip {
	l.mu.RLock()
	defer l.mu.RUnlock()
	clips, ok := l.cache[key]
	if !ok {
		return nil
	}
	return cloneClips(clips)
}

func (l *loader) store(key string, clips []*graph.Clip) {
	l.mu.Lock()
	l.cache[key] = clips
	l.mu.Unlock()
	l.logger.Debug("sequences imported", "source", key, "count", len(clips))
}

// resolveBackend selects an appropriate loader backend based on the file extension.
// Currently only glTF/GLB is supported.
func (l *loader) resolveBackend(path string) (loaderBackend, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".gltf", ".glb":
		return l.backend, nil
	default:
		return nil, fmt.Errorf("unsupported asset format: %s", ext)
	}
}

func cloneClips(clips []*graph.Clip) []*graph.Clip {
	out := make([]*graph.Clip, len(clips))
	for i, c := range clips {
		if c == nil {
			continue
		}
		cp := *c
		cp.Kinds = append([]graph.OutputKind(nil), c.Kinds...)
		out[i] = &cp
	}
	return out
}
