package loader

import (
	"io"

	"github.com/Carmen-Shannon/oxy-blend/engine/graph"
)

// loaderBackend defines the generic interface for importing sequences from files or streams.
// Concrete implementations (e.g., gltfLoaderBackend) handle format-specific details.
type loaderBackend interface {
	// Load imports every animation in the file at path as a sequence.
	//
	// Parameters:
	//   - path: the file path to load
	//   - mode: the wrap mode assigned to every imported sequence
	//
	// Returns:
	//   - []*graph.Clip: the imported sequences
	//   - error: error if loading fails
	Load(path string, mode graph.WrapMode) ([]*graph.Clip, error)

	// LoadReader imports sequences from a reader stream.
	//
	// Parameters:
	//   - r: the reader providing the asset data
	//   - isGLB: true if the reader provides GLB binary data, false for text-based formats
	//   - mode: the wrap mode assigned to every imported sequence
	//
	// Returns:
	//   - []*graph.Clip: the imported sequences
	//   - error: error if loading fails
	LoadReader(r io.Reader, isGLB bool, mode graph.WrapMode) ([]*graph.Clip, error)
}
