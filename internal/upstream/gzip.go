package upstream

import (
	"compress/gzip"
	"fmt"
	"io"
)

func decompressGzip(r io.Reader) ([]byte, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open gzip stream: %w", err)
	}
	defer zr.Close()
	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("read gzip stream: %w", err)
	}
	return data, nil
}
