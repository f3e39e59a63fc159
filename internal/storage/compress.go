package storage

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"
)

func compressText(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(w, s); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressText(b []byte) (string, error) {
	if len(b) == 0 {
		return "", nil
	}
	r, err := xz.NewReader(bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("failed to open provenance: %w", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read provenance: %w", err)
	}
	return string(out), nil
}
