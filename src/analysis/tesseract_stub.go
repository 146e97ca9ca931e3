//go:build !tesseract

package analysis

import "fmt"

// NewTesseract reports that the offline engine was not compiled in.
func NewTesseract(lang string) (Analyzer, error) {
	return nil, fmt.Errorf("%w: rebuild with -tags tesseract to use the offline engine", ErrEngineUnavailable)
}
