//go:build tesseract

package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"

	"cad-lingo/src/glossary"
	"cad-lingo/src/imageinput"
	"cad-lingo/src/logutil"
	"cad-lingo/src/screenshot"
)

// Tesseract recognizes text locally and translates it from the glossary only.
type Tesseract struct {
	lang string
}

func NewTesseract(lang string) (Analyzer, error) {
	if lang == "" {
		lang = "eng"
	}
	return &Tesseract{lang: lang}, nil
}

func (t *Tesseract) Name() string {
	return "tesseract:" + t.lang
}

func (t *Tesseract) Analyze(ctx context.Context, img imageinput.Image, entries []glossary.Entry) ([]Result, error) {
	decoded, err := img.Decode()
	if err != nil {
		return nil, err
	}
	prepared, err := imageinput.FromImage(screenshot.Enhance(decoded))
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetLanguage(t.lang); err != nil {
		return nil, fmt.Errorf("set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return nil, fmt.Errorf("set page segmentation: %w", err)
	}
	if err := client.SetImageFromBytes(prepared.Data); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("tesseract recognition failed: %w", err)
	}
	zap.S().Debugf("tesseract: recognized %q", logutil.Sanitize(text))
	return translateLines(text, entries), nil
}

func (t *Tesseract) Ping(ctx context.Context) error {
	if gosseract.Version() == "" {
		return errors.New("tesseract library not found")
	}
	return nil
}
