//go:build windows

package tray

import (
	"bytes"
	"encoding/binary"
)

// wrapIcon embeds the PNG in a single-image ICO container, which is what
// systray hands to LoadImage on Windows.
func wrapIcon(pngData []byte) []byte {
	var buf bytes.Buffer
	// ICONDIR
	binary.Write(&buf, binary.LittleEndian, [3]uint16{0, 1, 1})
	// ICONDIRENTRY
	buf.WriteByte(iconSize)
	buf.WriteByte(iconSize)
	buf.WriteByte(0) // palette
	buf.WriteByte(0) // reserved
	binary.Write(&buf, binary.LittleEndian, uint16(1))  // planes
	binary.Write(&buf, binary.LittleEndian, uint16(32)) // bpp
	binary.Write(&buf, binary.LittleEndian, uint32(len(pngData)))
	binary.Write(&buf, binary.LittleEndian, uint32(6+16))
	buf.Write(pngData)
	return buf.Bytes()
}
