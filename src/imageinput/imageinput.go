// Package imageinput validates pasted and uploaded screenshots before analysis.
package imageinput

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const (
	MaxSizeMB = 10
	MaxSize   = MaxSizeMB * 1024 * 1024
	// MaxPixels bounds width*height, checked from the header before decoding.
	MaxPixels = 64 * 1024 * 1024

	MIMEPNG  = "image/png"
	MIMEJPEG = "image/jpeg"
	MIMEGIF  = "image/gif"
	MIMEWebP = "image/webp"
	MIMEBMP  = "image/bmp"
)

var (
	ErrEmpty         = errors.New("image is empty")
	ErrTooLarge      = fmt.Errorf("image exceeds maximum size of %d MB", MaxSizeMB)
	ErrUnsupported   = errors.New("unsupported image format")
	ErrTooManyPixels = fmt.Errorf("image exceeds maximum of %d pixels", MaxPixels)
)

// Image is an encoded screenshot ready to be sent to an analyzer.
type Image struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
}

// Sniff identifies the image format from its magic bytes. It returns "" when unknown.
func Sniff(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}):
		return MIMEPNG
	case bytes.HasPrefix(data, []byte{0xff, 0xd8, 0xff}):
		return MIMEJPEG
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return MIMEGIF
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return MIMEWebP
	case bytes.HasPrefix(data, []byte("BM")):
		return MIMEBMP
	default:
		return ""
	}
}

// Normalize checks size and format and decodes the image once to learn its dimensions.
// PNG and JPEG are kept as-is; other formats are re-encoded to PNG.
func Normalize(data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, ErrEmpty
	}
	if len(data) > MaxSize {
		return Image{}, ErrTooLarge
	}
	mime := Sniff(data)
	if mime == "" {
		return Image{}, ErrUnsupported
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("failed to decode %s: %w", mime, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return Image{}, fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("failed to decode %s: %w", mime, err)
	}
	b := img.Bounds()

	if mime == MIMEPNG || mime == MIMEJPEG {
		return Image{Data: data, MIMEType: mime, Width: b.Dx(), Height: b.Dy()}, nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Image{}, fmt.Errorf("failed to encode image as PNG: %w", err)
	}
	return Image{Data: buf.Bytes(), MIMEType: MIMEPNG, Width: b.Dx(), Height: b.Dy()}, nil
}

// FromPNG wraps an already-encoded PNG, such as a fresh screen capture.
func FromPNG(data []byte) (Image, error) {
	if Sniff(data) != MIMEPNG {
		return Image{}, fmt.Errorf("%w: expected PNG data", ErrUnsupported)
	}
	return Normalize(data)
}

// FromImage encodes a decoded image as PNG.
func FromImage(img image.Image) (Image, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Image{}, fmt.Errorf("failed to encode image as PNG: %w", err)
	}
	b := img.Bounds()
	return Image{Data: buf.Bytes(), MIMEType: MIMEPNG, Width: b.Dx(), Height: b.Dy()}, nil
}

// FromDataURL accepts "data:image/png;base64,<payload>" as produced by a
// browser FileReader, or a bare base64 payload.
func FromDataURL(s string) (Image, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Image{}, ErrEmpty
	}
	payload := s
	if strings.HasPrefix(s, "data:") {
		header, rest, ok := strings.Cut(s, ",")
		if !ok {
			return Image{}, errors.New("malformed data URL: missing ','")
		}
		if !strings.HasSuffix(header, ";base64") {
			return Image{}, errors.New("malformed data URL: only base64 payloads are supported")
		}
		payload = rest
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, fmt.Errorf("failed to decode base64 image: %w", err)
	}
	return Normalize(data)
}

// DataURL renders the image as a data URL.
func (img Image) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", img.MIMEType, base64.StdEncoding.EncodeToString(img.Data))
}

// Decode returns the decoded pixels.
func (img Image) Decode() (image.Image, error) {
	decoded, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return decoded, nil
}
