package loader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-blend/engine/graph"
)

// gltfAnimationExtractorImpl is the implementation of the gltfAnimationExtractor interface.
type gltfAnimationExtractorImpl struct {
	parser gltfParser
}

// gltfAnimationExtractor converts glTF animation definitions into playable sequences.
//
// Keyframe values are left to the graph runtime that owns the asset. A sequence carries the
// animation name, its duration (the latest keyframe timestamp across every sampler) and one
// output track per animated channel.
type gltfAnimationExtractor interface {
	// ExtractSequence extracts a single animation by index.
	//
	// Parameters:
	//   - animIndex: the index of the animation in the document
	//   - mode: the wrap mode assigned to the sequence
	//
	// Returns:
	//   - *graph.Clip: the extracted sequence
	//   - error: error if extraction fails
	ExtractSequence(animIndex int, mode graph.WrapMode) (*graph.Clip, error)

	// ExtractAllSequences extracts every animation from the document.
	//
	// Parameters:
	//   - mode: the wrap mode assigned to every sequence
	//
	// Returns:
	//   - []*graph.Clip: the extracted sequences in document order
	//   - error: error if extraction fails
	ExtractAllSequences(mode graph.WrapMode) ([]*graph.Clip, error)
}

var _ gltfAnimationExtractor = &gltfAnimationExtractorImpl{}

// newGLTFAnimationExtractor creates a new animation extractor for a parsed document.
//
// Parameters:
//   - parser: the parser containing a loaded document
//
// Returns:
//   - gltfAnimationExtractor: the animation extractor
func newGLTFAnimationExtractor(parser gltfParser) gltfAnimationExtractor {
	return &gltfAnimationExtractorImpl{parser: parser}
}

func (e *gltfAnimationExtractorImpl) ExtractSequence(animIndex int, mode graph.WrapMode) (*graph.Clip, error) {
	doc := e.parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}
	if animIndex < 0 || animIndex >= len(doc.Animations) {
		return nil, fmt.Errorf("animation index %d out of range", animIndex)
	}

	anim := &doc.Animations[animIndex]
	name := anim.Name
	if name == "" {
		name = fmt.Sprintf("animation_%d", animIndex)
	}

	var maxTime float32
	kinds := make([]graph.OutputKind, 0, len(anim.Channels))
	for i := range anim.Channels {
		ch := &anim.Channels[i]
		if ch.Sampler < 0 || ch.Sampler >= len(anim.Samplers) {
			return nil, fmt.Errorf("animation %q channel %d: invalid sampler index %d", name, i, ch.Sampler)
		}

		end, err := e.inputEnd(anim.Samplers[ch.Sampler].Input)
		if err != nil {
			return nil, fmt.Errorf("animation %q channel %d: %w", name, i, err)
		}
		maxTime = max(maxTime, end)

		switch ch.Target.Path {
		case gltfAnimPathTranslation, gltfAnimPathRotation, gltfAnimPathScale, gltfAnimPathWeights:
			kinds = append(kinds, graph.OutputAnimation)
		default:
			// extension paths drive non-pose properties
			kinds = append(kinds, graph.OutputSignal)
		}
	}

	return &graph.Clip{
		Name:   name,
		Length: maxTime,
		Mode:   mode,
		Kinds:  kinds,
	}, nil
}

func (e *gltfAnimationExtractorImpl) ExtractAllSequences(mode graph.WrapMode) ([]*graph.Clip, error) {
	doc := e.parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}

	clips := make([]*graph.Clip, len(doc.Animations))
	for i := range doc.Animations {
		clip, err := e.ExtractSequence(i, mode)
		if err != nil {
			return nil, fmt.Errorf("animation %d: %w", i, err)
		}
		clips[i] = clip
	}

	return clips, nil
}

// inputEnd returns the last keyframe time of a sampler input accessor. The accessor's declared
// max is used when present, otherwise the timestamps are read from the buffer.
func (e *gltfAnimationExtractorImpl) inputEnd(accessorIndex int) (float32, error) {
	doc := e.parser.Document()
	if accessorIndex >= 0 && accessorIndex < len(doc.Accessors) {
		if acc := &doc.Accessors[accessorIndex]; len(acc.Max) > 0 {
			return acc.Max[0], nil
		}
	}

	timestamps, err := e.parser.ReadScalarAccessor(accessorIndex)
	if err != nil {
		return 0, fmt.Errorf("failed to read timestamps: %w", err)
	}
	var end float32
	for _, t := range timestamps {
		end = max(end, t)
	}
	return end, nil
}
