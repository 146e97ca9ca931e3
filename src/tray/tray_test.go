package tray

import (
	"bytes"
	"image/png"
	"testing"
)

func TestTooltip(t *testing.T) {
	tr := New(Config{Tooltip: "CAD-Lingo Bridge - Press Ctrl+Alt+T"})
	if got := tr.tooltip(false); got != "CAD-Lingo Bridge - Press Ctrl+Alt+T" {
		t.Errorf("idle tooltip = %q", got)
	}
	if got := tr.tooltip(true); got != "CAD-Lingo Bridge: analyzing..." {
		t.Errorf("busy tooltip = %q", got)
	}

	// Before Run the state is only recorded.
	tr.SetBusy(true)
	if !tr.busy {
		t.Error("expected busy to be recorded before the tray is ready")
	}
}

func TestOpenCommand(t *testing.T) {
	tests := []struct {
		goos string
		name string
	}{
		{"windows", "rundll32"},
		{"darwin", "open"},
		{"linux", "xdg-open"},
		{"freebsd", "xdg-open"},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			name, args := openCommand(tt.goos, "/tmp/glossary.yaml")
			if name != tt.name {
				t.Errorf("openCommand(%q) = %q, want %q", tt.goos, name, tt.name)
			}
			if args[len(args)-1] != "/tmp/glossary.yaml" {
				t.Errorf("path must be the last argument, got %v", args)
			}
		})
	}
}

func TestRenderIcon(t *testing.T) {
	data, err := renderIconPNG()
	if err != nil {
		t.Fatalf("renderIconPNG failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("icon is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != iconSize || b.Dy() != iconSize {
		t.Errorf("icon size = %v", b)
	}
	if len(iconBytes()) == 0 {
		t.Error("iconBytes returned nothing")
	}
}
