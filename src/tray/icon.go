package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sync"

	"go.uber.org/zap"
)

const iconSize = 32

var (
	iconOnce sync.Once
	iconData []byte
)

// iconBytes returns the tray icon in the format systray expects on this platform.
func iconBytes() []byte {
	iconOnce.Do(func() {
		data, err := renderIconPNG()
		if err != nil {
			zap.S().Warnf("tray: failed to render icon: %v", err)
			return
		}
		iconData = wrapIcon(data)
	})
	return iconData
}

// renderIconPNG draws a blue tile with a white "bridge" deck and two piers.
func renderIconPNG() ([]byte, error) {
	img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))
	blue := color.NRGBA{R: 0x00, G: 0x78, B: 0xd4, A: 0xff}
	white := color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	for y := 0; y < iconSize; y++ {
		for x := 0; x < iconSize; x++ {
			c := blue
			deck := y >= 12 && y < 16 && x >= 4 && x < iconSize-4
			pier := y >= 16 && y < 26 && ((x >= 9 && x < 12) || (x >= 20 && x < 23))
			if deck || pier {
				c = white
			}
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
