//go:build !tesseract

package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cad-lingo/src/config"
)

func TestTesseractUnavailableWithoutBuildTag(t *testing.T) {
	_, err := New(&config.Config{Engine: config.EngineTesseract})
	assert.ErrorIs(t, err, ErrEngineUnavailable)
}
