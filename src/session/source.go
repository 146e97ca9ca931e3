package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"cad-lingo/src/clipboard"
	"cad-lingo/src/imageinput"
	"cad-lingo/src/screenshot"
)

// Source acquires the image to analyze.
type Source interface {
	Acquire(ctx context.Context) (imageinput.Image, error)
	Name() string
}

// ClipboardSource reads an image pasted to the clipboard, typically from the OS snipping tool.
type ClipboardSource struct {
	// Read defaults to clipboard.ReadImage.
	Read func() ([]byte, error)
}

func (s ClipboardSource) Name() string { return "clipboard" }

func (s ClipboardSource) Acquire(ctx context.Context) (imageinput.Image, error) {
	read := s.Read
	if read == nil {
		read = clipboard.ReadImage
	}
	data, err := read()
	if err != nil {
		return imageinput.Image{}, err
	}
	return imageinput.Normalize(data)
}

// FileSource reads an uploaded image file. Path "-" reads Stdin. Files holding a
// base64 data URL are accepted as well.
type FileSource struct {
	Path  string
	Stdin io.Reader
}

func (s FileSource) Name() string { return s.Path }

func (s FileSource) Acquire(ctx context.Context) (imageinput.Image, error) {
	var data []byte
	var err error
	if s.Path == "-" {
		in := s.Stdin
		if in == nil {
			in = os.Stdin
		}
		data, err = io.ReadAll(io.LimitReader(in, 2*imageinput.MaxSize))
		if err != nil {
			return imageinput.Image{}, fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		data, err = os.ReadFile(s.Path)
		if err != nil {
			return imageinput.Image{}, fmt.Errorf("failed to read file %s: %w", s.Path, err)
		}
	}

	if trimmed := bytes.TrimSpace(data); bytes.HasPrefix(trimmed, []byte("data:")) {
		return imageinput.FromDataURL(string(trimmed))
	}
	return imageinput.Normalize(data)
}

// RegionSource captures a fixed rectangle of the virtual screen. When ViewWidth and
// ViewHeight are set, Region is in the coordinates of a view of that size and is
// scaled onto the captured frame.
type RegionSource struct {
	Region     screenshot.Region
	ViewWidth  int
	ViewHeight int
	// Capture defaults to screenshot.CaptureRegion.
	Capture func(screenshot.Region) ([]byte, error)
	// CaptureView defaults to screenshot.CaptureSelection.
	CaptureView func(sel screenshot.Region, viewW, viewH int) ([]byte, error)
}

func (s RegionSource) Name() string { return "region " + s.Region.String() }

func (s RegionSource) scaled() bool { return s.ViewWidth > 0 && s.ViewHeight > 0 }

func (s RegionSource) Acquire(ctx context.Context) (imageinput.Image, error) {
	if s.Region.Width == 0 && s.Region.Height == 0 {
		return imageinput.Image{}, errors.New("no capture region configured")
	}
	if s.Region.Width < screenshot.MinSelection || s.Region.Height < screenshot.MinSelection {
		return imageinput.Image{}, fmt.Errorf("%w: %dx%d", screenshot.ErrSelectionTooSmall, s.Region.Width, s.Region.Height)
	}

	var data []byte
	var err error
	if s.scaled() {
		capture := s.CaptureView
		if capture == nil {
			capture = screenshot.CaptureSelection
		}
		data, err = capture(s.Region, s.ViewWidth, s.ViewHeight)
	} else {
		capture := s.Capture
		if capture == nil {
			capture = screenshot.CaptureRegion
		}
		data, err = capture(s.Region)
	}
	if err != nil {
		return imageinput.Image{}, err
	}
	return imageinput.FromPNG(data)
}

// FuncSource adapts a function, for callers that select the image interactively.
type FuncSource struct {
	Label string
	Fn    func(ctx context.Context) (imageinput.Image, error)
}

func (s FuncSource) Name() string { return s.Label }

func (s FuncSource) Acquire(ctx context.Context) (imageinput.Image, error) { return s.Fn(ctx) }
