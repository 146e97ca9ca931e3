package imageinput

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"PNG", []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x00}, MIMEPNG},
		{"JPEG", []byte{0xff, 0xd8, 0xff, 0xe0}, MIMEJPEG},
		{"GIF", []byte("GIF89a...."), MIMEGIF},
		{"WebP", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), MIMEWebP},
		{"BMP", []byte("BM\x00\x00"), MIMEBMP},
		{"TruncatedPNG", []byte{0x89, 'P', 'N', 'G'}, ""},
		{"Empty", []byte{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sniff(tt.data))
		})
	}
}

func TestNormalizeKeepsPNG(t *testing.T) {
	data := encodePNG(t, testImage(12, 7))
	img, err := Normalize(data)
	require.NoError(t, err)
	assert.Equal(t, MIMEPNG, img.MIMEType)
	assert.Equal(t, 12, img.Width)
	assert.Equal(t, 7, img.Height)
	assert.Equal(t, data, img.Data)
}

func TestNormalizeReencodesGIF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, testImage(8, 8), nil))

	img, err := Normalize(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, MIMEPNG, img.MIMEType)
	assert.Equal(t, MIMEPNG, Sniff(img.Data))
	assert.Equal(t, 8, img.Width)
}

func TestNormalizeErrors(t *testing.T) {
	_, err := Normalize(nil)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Normalize(make([]byte, MaxSize+1))
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = Normalize([]byte("plain text, not an image"))
	assert.ErrorIs(t, err, ErrUnsupported)

	// Right magic, broken body.
	_, err = Normalize([]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x01})
	assert.Error(t, err)
}

// withDimensions rewrites the IHDR width and height of a PNG and fixes its CRC.
func withDimensions(t *testing.T, data []byte, w, h uint32) []byte {
	t.Helper()
	out := bytes.Clone(data)
	require.Equal(t, "IHDR", string(out[12:16]))
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestNormalizeRejectsHugeDimensions(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(4, 4)))
	bomb := withDimensions(t, buf.Bytes(), 100000, 100000)
	require.Less(t, len(bomb), 1024)

	_, err := Normalize(bomb)
	assert.ErrorIs(t, err, ErrTooManyPixels)

	_, err = FromPNG(bomb)
	assert.ErrorIs(t, err, ErrTooManyPixels)
}

func TestFromDataURL(t *testing.T) {
	data := encodePNG(t, testImage(4, 3))
	url := "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)

	img, err := FromDataURL(url)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Width)
	assert.Equal(t, url, img.DataURL())

	bare, err := FromDataURL(base64.StdEncoding.EncodeToString(data))
	require.NoError(t, err)
	assert.Equal(t, img.Data, bare.Data)
}

func TestFromDataURLErrors(t *testing.T) {
	_, err := FromDataURL("   ")
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = FromDataURL("data:image/png;base64")
	assert.Error(t, err)

	_, err = FromDataURL("data:image/svg+xml,<svg/>")
	assert.Error(t, err)

	_, err = FromDataURL("data:image/png;base64,!!!")
	assert.Error(t, err)
}

func TestFromPNGRejectsOtherFormats(t *testing.T) {
	_, err := FromPNG([]byte{0xff, 0xd8, 0xff, 0xe0})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestFromImageAndDecode(t *testing.T) {
	img, err := FromImage(testImage(5, 6))
	require.NoError(t, err)
	decoded, err := img.Decode()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 5, 6), decoded.Bounds())
}
