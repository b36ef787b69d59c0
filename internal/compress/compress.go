// Package compress is a pluggable compressor registry for cmd/mkfs's
// optional archival image compression, grounded on squashfs's comp.go
// registry: an algorithm id maps to a Codec registered by an init()
// function in a build-tag-gated file, so pulling in a codec's third-party
// dependency is opt-in per build rather than always-linked.
package compress

import (
	"fmt"
	"io"
)

// Algorithm identifies a registered codec, mirroring squashfs's SquashComp.
type Algorithm uint16

const (
	None Algorithm = 0
	Zstd Algorithm = 1
	XZ   Algorithm = 2
)

func (a Algorithm) String() string {
	switch a {
	case None:
		return "none"
	case Zstd:
		return "zstd"
	case XZ:
		return "xz"
	default:
		return fmt.Sprintf("Algorithm(%d)", a)
	}
}

// Codec compresses and decompresses whole buffers; mkfs applies it once to
// the entire packed image rather than per-block, since EasyFS blocks are
// read/written at fixed offsets incompatible with block-level compression.
type Codec struct {
	Compress   func([]byte) ([]byte, error)
	Decompress func(io.Reader) (io.ReadCloser, error)
}

var registry = map[Algorithm]*Codec{}

// Register installs codec under id. Called from build-tag-gated init()
// functions (zstd.go, xz.go) so the registry only contains what the build
// actually links.
func Register(id Algorithm, codec *Codec) {
	registry[id] = codec
}

// Get returns the codec registered for id, or an error naming the build
// tag needed to enable it.
func Get(id Algorithm) (*Codec, error) {
	if id == None {
		return &Codec{
			Compress:   func(b []byte) ([]byte, error) { return b, nil },
			Decompress: func(r io.Reader) (io.ReadCloser, error) { return io.NopCloser(r), nil },
		}, nil
	}
	c, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("compress: %s not registered (build with -tags %s)", id, id)
	}
	return c, nil
}
