package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-blend/engine/graph"
)

// floatBytes encodes timestamps the way a glTF buffer stores them.
func floatBytes(t *testing.T, values ...float32) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, values); err != nil {
		t.Fatalf("binary.Write() error = %v", err)
	}
	return buf.Bytes()
}

// documentJSON builds a glTF document with two animations over one buffer. The first buffer
// view holds three timestamps without a declared max; the second declares max = 2.
func documentJSON(bufferURI string, byteLength int) string {
	uri := ""
	if bufferURI != "" {
		uri = fmt.Sprintf(`"uri": %q,`, bufferURI)
	}
	return fmt.Sprintf(`{
  "asset": {"version": "2.0"},
  "buffers": [{%s "byteLength": %d}],
  "bufferViews": [
    {"buffer": 0, "byteOffset": 0, "byteLength": 12},
    {"buffer": 0, "byteOffset": 12, "byteLength": 8}
  ],
  "accessors": [
    {"bufferView": 0, "componentType": 5126, "count": 3, "type": "SCALAR"},
    {"bufferView": 1, "componentType": 5126, "count": 2, "type": "SCALAR", "max": [2]}
  ],
  "animations": [
    {
      "name": "wave",
      "samplers": [{"input": 0, "output": 0}],
      "channels": [
        {"sampler": 0, "target": {"node": 0, "path": "rotation"}},
        {"sampler": 0, "target": {"node": 1, "path": "weights"}}
      ]
    },
    {
      "samplers": [{"input": 1, "output": 1}],
      "channels": [{"sampler": 0, "target": {"node": 0, "path": "translation"}}]
    }
  ]
}`, uri, byteLength)
}

func sampleBuffer(t *testing.T) []byte {
	return floatBytes(t, 0, 0.5, 1.25, 0, 2)
}

func checkSequences(t *testing.T, clips []*graph.Clip, mode graph.WrapMode) {
	t.Helper()
	if len(clips) != 2 {
		t.Fatalf("got %d sequences, want 2", len(clips))
	}
	tests := []struct {
		name     string
		duration float32
		tracks   int
	}{
		{"wave", 1.25, 2},
		{"animation_1", 2, 1},
	}
	for i, tt := range tests {
		c := clips[i]
		if c.ID() != tt.name {
			t.Errorf("clip %d ID() = %q, want %q", i, c.ID(), tt.name)
		}
		if c.Duration() != tt.duration {
			t.Errorf("clip %q Duration() = %v, want %v", tt.name, c.Duration(), tt.duration)
		}
		if len(c.Tracks()) != tt.tracks {
			t.Errorf("clip %q has %d tracks, want %d", tt.name, len(c.Tracks()), tt.tracks)
		}
		if c.Wrap() != mode {
			t.Errorf("clip %q Wrap() = %v, want %v", tt.name, c.Wrap(), mode)
		}
	}
}

func TestLoad_GLTFWithDataURI(t *testing.T) {
	data := sampleBuffer(t)
	uri := "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(data)
	path := filepath.Join(t.TempDir(), "hero.gltf")
	if err := os.WriteFile(path, []byte(documentJSON(uri, len(data))), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(BackendTypeGLTF, WithWrapMode(graph.WrapNone))
	clips, err := l.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	checkSequences(t, clips, graph.WrapNone)
}

func TestLoad_GLTFWithExternalBuffer(t *testing.T) {
	dir := t.TempDir()
	data := sampleBuffer(t)
	if err := os.WriteFile(filepath.Join(dir, "hero.bin"), data, 0o644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "hero.gltf")
	if err := os.WriteFile(path, []byte(documentJSON("hero.bin", len(data))), 0o644); err != nil {
		t.Fatal(err)
	}

	clips, err := NewLoader(BackendTypeGLTF).Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	checkSequences(t, clips, graph.WrapHold)
}

// glb assembles a binary glTF container from a JSON document and a binary chunk.
func glb(jsonDoc string, bin []byte) []byte {
	pad := func(b []byte, fill byte) []byte {
		for len(b)%4 != 0 {
			b = append(b, fill)
		}
		return b
	}
	j := pad([]byte(jsonDoc), ' ')
	bin = pad(append([]byte(nil), bin...), 0)

	var buf bytes.Buffer
	total := uint32(12 + 8 + len(j) + 8 + len(bin))
	binary.Write(&buf, binary.LittleEndian, gltfGLBHeader{Magic: gltfGLBMagic, Version: gltfGLBVersion, Length: total})
	binary.Write(&buf, binary.LittleEndian, gltfGLBChunkHeader{ChunkLength: uint32(len(j)), ChunkType: gltfGLBChunkJSON})
	buf.Write(j)
	binary.Write(&buf, binary.LittleEndian, gltfGLBChunkHeader{ChunkLength: uint32(len(bin)), ChunkType: gltfGLBChunkBIN})
	buf.Write(bin)
	return buf.Bytes()
}

func TestLoadReader_GLB(t *testing.T) {
	data := sampleBuffer(t)
	l := NewLoader(BackendTypeGLTF)

	clips, err := l.LoadReader("hero", bytes.NewReader(glb(documentJSON("", len(data)), data)), true)
	if err != nil {
		t.Fatalf("LoadReader() error = %v", err)
	}
	checkSequences(t, clips, graph.WrapHold)

	if got := l.Get("hero"); len(got) != 2 {
		t.Errorf("Get() returned %d sequences, want 2", len(got))
	}
}

func TestLoad_CachesAndCopies(t *testing.T) {
	data := sampleBuffer(t)
	path := filepath.Join(t.TempDir(), "hero.glb")
	if err := os.WriteFile(path, glb(documentJSON("", len(data)), data), 0o644); err != nil {
		t.Fatal(err)
	}
	l := NewLoader(BackendTypeGLTF)

	first, err := l.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	first[0].Mode = graph.WrapLoop

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	second, err := l.Load(path)
	if err != nil {
		t.Fatalf("cached Load() error = %v", err)
	}
	if second[0].Wrap() != graph.WrapHold {
		t.Error("mutating a returned sequence changed the cache")
	}

	wave, err := l.Find(path, "wave")
	if err != nil || wave.Duration() != 1.25 {
		t.Errorf("Find() = (%v, %v), want wave", wave, err)
	}
	if _, err := l.Find(path, "missing"); err == nil {
		t.Error("Find() of a missing animation returned no error")
	}
}

func TestWithSequences(t *testing.T) {
	l := NewLoader(BackendTypeGLTF, WithSequences("builtin.glb", graph.NewClip("idle", 1, graph.WrapLoop)))
	clips, err := l.Load("builtin.glb")
	if err != nil || len(clips) != 1 || clips[0].ID() != "idle" {
		t.Errorf("Load() = (%v, %v), want the pre-populated sequence", clips, err)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"unsupported extension", write("hero.fbx", "{}"), "unsupported asset format"},
		{"missing file", filepath.Join(dir, "absent.gltf"), "failed to read file"},
		{"bad json", write("bad.gltf", "{"), "failed to parse glTF JSON"},
		{"wrong version", write("old.gltf", `{"asset": {"version": "1.0"}}`), errInvalidGLTFVersion.Error()},
		{"short buffer", write("short.gltf", documentJSON("data:application/octet-stream;base64,AAAA", 20)), errBufferSizeMismatch.Error()},
		{"bad sampler", write("sampler.gltf", `{
  "asset": {"version": "2.0"},
  "animations": [{"name": "x", "samplers": [], "channels": [{"sampler": 3, "target": {"path": "rotation"}}]}]
}`), "invalid sampler index"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(BackendTypeGLTF).Load(tt.path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
