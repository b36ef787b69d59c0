//go:build zstd

package compress

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

func init() {
	Register(Zstd, &Codec{
		Compress: func(buf []byte) ([]byte, error) {
			enc, err := zstd.NewWriter(nil)
			if err != nil {
				return nil, err
			}
			defer enc.Close()
			return enc.EncodeAll(buf, nil), nil
		},
		Decompress: func(r io.Reader) (io.ReadCloser, error) {
			dec, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			return &zstdReadCloser{dec: dec}, nil
		},
	})
}

type zstdReadCloser struct {
	dec *zstd.Decoder
}

func (z *zstdReadCloser) Read(p []byte) (int, error) { return z.dec.Read(p) }
func (z *zstdReadCloser) Close() error { z.dec.Close(); return nil }
