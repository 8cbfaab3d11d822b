package loader

import (
	"io"

	"github.com/Carmen-Shannon/oxy-blend/engine/graph"
)

// gltfLoaderBackendImpl is the implementation of gltfLoaderBackend.
type gltfLoaderBackendImpl struct{}

// gltfLoaderBackend is a loaderBackend implementation for glTF/GLB files.
// Every load uses a fresh parser, so a backend may serve concurrent loads.
type gltfLoaderBackend interface {
	loaderBackend
}

var _ gltfLoaderBackend = &gltfLoaderBackendImpl{}

// newGLTFLoaderBackend creates a new glTF loader backend.
//
// Returns:
//   - gltfLoaderBackend: the loader backend for glTF/GLB files
func newGLTFLoaderBackend() gltfLoaderBackend {
	return &gltfLoaderBackendImpl{}
}

func (b *gltfLoaderBackendImpl) Load(path string, mode graph.WrapMode) ([]*graph.Clip, error) {
	parser := newGLTFParser()
	if err := parser.Parse(path); err != nil {
		return nil, err
	}
	return newGLTFAnimationExtractor(parser).ExtractAllSequences(mode)
}

func (b *gltfLoaderBackendImpl) LoadReader(r io.Reader, isGLB bool, mode graph.WrapMode) ([]*graph.Clip, error) {
	parser := newGLTFParser()
	if err := parser.ParseReader(r, isGLB); err != nil {
		return nil, err
	}
	return newGLTFAnimationExtractor(parser).ExtractAllSequences(mode)
}
