package ocr

import (
	"fmt"
	"os"
)

// WithTempImage writes data to a temp file, calls fn with its path and
// removes the file afterwards, also when fn fails or panics.
func WithTempImage(data []byte, ext string, fn func(path string) error) error {
	f, err := os.CreateTemp("", "cbc-*"+ext)
	if err != nil {
		return fmt.Errorf("create temp image: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write temp image: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp image: %w", err)
	}
	return fn(path)
}
