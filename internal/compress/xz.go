//go:build xz

package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"
)

func xzCompress(buf []byte) ([]byte, error) {
	var out bytes.Buffer
	w, err := xz.NewWriter(&out)
	if err != nil {
		return nil, fmt.Errorf("compress: xz: new writer: %w", err)
	}
	if _, err := w.Write(buf); err != nil {
		w.Close()
		return nil, fmt.Errorf("compress: xz: write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compress: xz: close: %w", err)
	}
	return out.Bytes(), nil
}

func xzDecompress(r io.Reader) (io.ReadCloser, error) {
	rc, err := xz.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("compress: xz: new reader: %w", err)
	}
	return io.NopCloser(rc), nil
}

func init() {
	Register(XZ, &Codec{
		Compress:   xzCompress,
		Decompress: xzDecompress,
	})
}
