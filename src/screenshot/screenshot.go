package screenshot

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/kbinani/screenshot"
)

// MinSelection is the smallest width or height, in pixels, accepted for a selection.
const MinSelection = 5

// enhanceBelow is the dimension under which Enhance upscales an image.
const enhanceBelow = 300

var (
	ErrSelectionTooSmall = errors.New("selection too small")
	ErrNoDisplay         = errors.New("no active displays found")
)

// Region represents a screen region in absolute virtual-screen coordinates
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

type Point struct {
	X int
	Y int
}

func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

func (r Region) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", r.X, r.Y, r.Width, r.Height)
}

// ParseRegion parses "x,y,w,h".
func ParseRegion(s string) (Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Region{}, fmt.Errorf("invalid region %q: want x,y,w,h", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Region{}, fmt.Errorf("invalid region %q: %w", s, err)
		}
		v[i] = n
	}
	r := Region{X: v[0], Y: v[1], Width: v[2], Height: v[3]}
	if r.Width < MinSelection || r.Height < MinSelection {
		return Region{}, fmt.Errorf("%w: %dx%d", ErrSelectionTooSmall, r.Width, r.Height)
	}
	return r, nil
}

// ParsePoint parses "x,y".
func ParsePoint(s string) (Point, error) {
	x, y, ok := strings.Cut(s, ",")
	if !ok {
		return Point{}, fmt.Errorf("invalid point %q: want x,y", s)
	}
	px, err := strconv.Atoi(strings.TrimSpace(x))
	if err != nil {
		return Point{}, fmt.Errorf("invalid point %q: %w", s, err)
	}
	py, err := strconv.Atoi(strings.TrimSpace(y))
	if err != nil {
		return Point{}, fmt.Errorf("invalid point %q: %w", s, err)
	}
	return Point{X: px, Y: py}, nil
}

// ParseSize parses "WxH" into a positive width and height.
func ParseSize(s string) (int, int, error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid size %q: want WxH", s)
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("invalid size %q: dimensions must be positive", s)
	}
	return width, height, nil
}

// SelectionFromDrag normalises a drag gesture from start to end into a rectangle.
// The drag may go in any direction.
func SelectionFromDrag(start, end Point) (Region, error) {
	r := Region{
		X:      min(start.X, end.X),
		Y:      min(start.Y, end.Y),
		Width:  abs(end.X - start.X),
		Height: abs(end.Y - start.Y),
	}
	if r.Width < MinSelection || r.Height < MinSelection {
		return Region{}, fmt.Errorf("%w: %dx%d", ErrSelectionTooSmall, r.Width, r.Height)
	}
	return r, nil
}

// ScaleToFrame maps a selection made on a view of viewW x viewH onto a frame of
// frameW x frameH. X and Y are scaled independently.
func ScaleToFrame(sel Region, viewW, viewH, frameW, frameH int) Region {
	if viewW <= 0 || viewH <= 0 {
		return sel
	}
	sx := float64(frameW) / float64(viewW)
	sy := float64(frameH) / float64(viewH)
	return Region{
		X:      int(float64(sel.X) * sx),
		Y:      int(float64(sel.Y) * sy),
		Width:  int(float64(sel.Width) * sx),
		Height: int(float64(sel.Height) * sy),
	}
}

// CropFrame scales sel from view coordinates to the frame and crops it out.
// The crop is clamped to the frame bounds.
func CropFrame(frame image.Image, sel Region, viewW, viewH int) (*image.NRGBA, error) {
	fb := frame.Bounds()
	scaled := ScaleToFrame(sel, viewW, viewH, fb.Dx(), fb.Dy())
	rect := scaled.Rect().Add(fb.Min).Intersect(fb)
	if rect.Dx() < 1 || rect.Dy() < 1 {
		return nil, fmt.Errorf("%w: selection %s lies outside the %dx%d frame", ErrSelectionTooSmall, sel, fb.Dx(), fb.Dy())
	}
	return imaging.Crop(frame, rect), nil
}

// Capture captures the entire virtual screen across all active displays
func Capture() (*image.RGBA, error) {
	bounds, err := VirtualBounds()
	if err != nil {
		return nil, err
	}
	return screenshot.CaptureRect(bounds)
}

// CaptureRegion captures a specific region of the screen as PNG
func CaptureRegion(region Region) ([]byte, error) {
	if region.Width <= 0 || region.Height <= 0 {
		return nil, fmt.Errorf("invalid region dimensions: width=%d, height=%d", region.Width, region.Height)
	}

	img, err := screenshot.CaptureRect(region.Rect())
	if err != nil {
		return nil, fmt.Errorf("failed to capture region: %w", err)
	}
	return encodePNG(img)
}

// CaptureSelection grabs the whole virtual screen and crops the selection out of it.
// sel is relative to a view of viewW x viewH covering the virtual screen.
func CaptureSelection(sel Region, viewW, viewH int) ([]byte, error) {
	if sel.Width < MinSelection || sel.Height < MinSelection {
		return nil, fmt.Errorf("%w: %dx%d", ErrSelectionTooSmall, sel.Width, sel.Height)
	}
	frame, err := Capture()
	if err != nil {
		return nil, fmt.Errorf("failed to capture screen: %w", err)
	}
	cropped, err := CropFrame(frame, sel, viewW, viewH)
	if err != nil {
		return nil, err
	}
	return encodePNG(cropped)
}

// VirtualBounds returns the union of all display bounds.
func VirtualBounds() (image.Rectangle, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return image.Rectangle{}, ErrNoDisplay
	}
	union := screenshot.GetDisplayBounds(0)
	for i := 1; i < n; i++ {
		union = union.Union(screenshot.GetDisplayBounds(i))
	}
	return union, nil
}

// PrimaryBounds returns the bounds of the primary display
func PrimaryBounds() (image.Rectangle, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return image.Rectangle{}, ErrNoDisplay
	}
	return screenshot.GetDisplayBounds(0), nil
}

// Enhance prepares small captures for OCR by upscaling them 2x.
// Larger images are returned unchanged.
func Enhance(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() >= enhanceBelow && b.Dy() >= enhanceBelow {
		return img
	}
	return imaging.Resize(img, b.Dx()*2, b.Dy()*2, imaging.Lanczos)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image as PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
