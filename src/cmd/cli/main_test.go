package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cad-lingo/src/analysis"
	"cad-lingo/src/config"
	"cad-lingo/src/glossary"
	"cad-lingo/src/imageinput"
	"cad-lingo/src/render"
	"cad-lingo/src/screenshot"
)

type stubAnalyzer struct {
	results []analysis.Result
	err     error
	entries int
}

func (a *stubAnalyzer) Name() string                   { return "stub" }
func (a *stubAnalyzer) Ping(ctx context.Context) error { return nil }
func (a *stubAnalyzer) Analyze(ctx context.Context, img imageinput.Image, entries []glossary.Entry) ([]analysis.Result, error) {
	a.entries = len(entries)
	return a.results, a.err
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 10, 10))))
	return buf.Bytes()
}

type harness struct {
	opts   *cliOptions
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newHarness(a analysis.Analyzer) *harness {
	h := &harness{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	h.opts = &cliOptions{
		stdin:  strings.NewReader(""),
		stdout: h.stdout,
		stderr: h.stderr,
		newAnalyzer: func(*config.Config) (analysis.Analyzer, error) {
			if a == nil {
				return nil, errors.New("no analyzer")
			}
			return a, nil
		},
	}
	return h
}

func (h *harness) run(args ...string) error {
	return runWithArgs(context.Background(), append([]string{"cadlingo"}, args...), h.opts)
}

func TestNormalizeLegacyArgs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		out  []string
	}{
		{
			name: "Legacy file invocation gains the analyze command",
			in:   []string{"cadlingo", "-file", "shot.png", "-json"},
			out:  []string{"cadlingo", "analyze", "--file", "shot.png", "--json"},
		},
		{
			name: "Normalizes equals form",
			in:   []string{"cadlingo", "-file=shot.png", "-api-key-path=/tmp/key"},
			out:  []string{"cadlingo", "analyze", "--file=shot.png", "--api-key-path=/tmp/key"},
		},
		{
			name: "Keeps an explicit command",
			in:   []string{"cadlingo", "-v", "analyze", "-file", "-"},
			out:  []string{"cadlingo", "-v", "analyze", "--file", "-"},
		},
		{
			name: "Leaves other flags unchanged",
			in:   []string{"cadlingo", "capture", "--region", "0,0,10,10", "-v"},
			out:  []string{"cadlingo", "capture", "--region", "0,0,10,10", "-v"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.out, normalizeLegacyArgs(tt.in))
		})
	}
}

func TestAnalyzeFilePlainText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, os.WriteFile(path, testPNG(t), 0644))

	a := &stubAnalyzer{results: []analysis.Result{{Original: "Pier", Translated: "Trụ cầu (Pier)", IsDictionaryMatch: true}}}
	h := newHarness(a)
	require.NoError(t, h.run("analyze", "--file", path, "--glossary-store", "memory"))

	assert.Equal(t, "EN: Pier [từ điển]\nVI: Trụ cầu (Pier)\n", h.stdout.String())
	assert.Empty(t, h.stderr.String(), "stderr must stay quiet without -v")
	assert.Equal(t, 15, a.entries)
}

func TestAnalyzeStdinJSON(t *testing.T) {
	a := &stubAnalyzer{results: []analysis.Result{{Original: "Layer", Translated: "Lớp"}}}
	h := newHarness(a)
	h.opts.stdin = bytes.NewReader(testPNG(t))
	require.NoError(t, h.run("analyze", "--file", "-", "--json", "--glossary-store", "memory"))

	var env render.Envelope
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &env))
	assert.Equal(t, "-", env.Source)
	assert.Equal(t, "stub", env.Engine)
	assert.Equal(t, 1, env.Count)
	assert.Equal(t, "Lớp", env.Items[0].Translated)
}

func TestAnalyzeVerboseLogsToStderr(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, os.WriteFile(path, testPNG(t), 0644))

	h := newHarness(&stubAnalyzer{results: []analysis.Result{{Original: "Grade", Translated: "Độ dốc"}}})
	require.NoError(t, h.run("-v", "analyze", "--file", path, "--glossary-store", "memory"))

	assert.Equal(t, "EN: Grade\nVI: Độ dốc\n", h.stdout.String())
	assert.Contains(t, h.stderr.String(), "Config loaded")
}

func TestAnalyzeErrors(t *testing.T) {
	h := newHarness(&stubAnalyzer{})
	err := h.run("analyze", "--file", "/nonexistent/file.png", "--glossary-store", "memory")
	require.Error(t, err)
	assert.Empty(t, h.stdout.String())

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0644))
	err = h.run("analyze", "--file", path, "--glossary-store", "memory")
	assert.ErrorIs(t, err, imageinput.ErrUnsupported)

	h = newHarness(&stubAnalyzer{err: errors.New("HTTP 500")})
	require.NoError(t, os.WriteFile(path, testPNG(t), 0644))
	err = h.run("analyze", "--file", path, "--glossary-store", "memory")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 500")

	h = newHarness(nil)
	assert.Error(t, h.run("analyze", "--file", path, "--glossary-store", "memory"))
}

func TestPaste(t *testing.T) {
	data := testPNG(t)
	h := newHarness(&stubAnalyzer{results: []analysis.Result{{Original: "Save", Translated: "Lưu"}}})
	h.opts.readClipboard = func() ([]byte, error) { return data, nil }
	require.NoError(t, h.run("paste", "--glossary-store", "memory"))
	assert.Equal(t, "EN: Save\nVI: Lưu\n", h.stdout.String())
}

func TestCapture(t *testing.T) {
	data := testPNG(t)
	var got screenshot.Region
	h := newHarness(&stubAnalyzer{results: []analysis.Result{}})
	h.opts.capture = func(r screenshot.Region) ([]byte, error) {
		got = r
		return data, nil
	}
	require.NoError(t, h.run("capture", "--region", "10,20,300,200", "--json", "--glossary-store", "memory"))
	assert.Equal(t, screenshot.Region{X: 10, Y: 20, Width: 300, Height: 200}, got)
	assert.Contains(t, h.stdout.String(), `"item_count": 0`)

	err := h.run("capture", "--region", "0,0,3,3", "--glossary-store", "memory")
	assert.ErrorIs(t, err, screenshot.ErrSelectionTooSmall)
}

func TestCaptureDragWithView(t *testing.T) {
	data := testPNG(t)
	var gotSel screenshot.Region
	var gotW, gotH int
	h := newHarness(&stubAnalyzer{results: []analysis.Result{{Original: "Abutment", Translated: "Mố cầu"}}})
	h.opts.capture = func(screenshot.Region) ([]byte, error) {
		t.Fatal("a view-relative selection must be scaled onto the frame")
		return nil, nil
	}
	h.opts.captureView = func(sel screenshot.Region, viewW, viewH int) ([]byte, error) {
		gotSel, gotW, gotH = sel, viewW, viewH
		return data, nil
	}
	require.NoError(t, h.run("capture", "--from", "300,200", "--to", "100,50", "--view", "1280x720", "--glossary-store", "memory"))
	assert.Equal(t, screenshot.Region{X: 100, Y: 50, Width: 200, Height: 150}, gotSel)
	assert.Equal(t, 1280, gotW)
	assert.Equal(t, 720, gotH)
	assert.Equal(t, "EN: Abutment\nVI: Mố cầu\n", h.stdout.String())
}

func TestCaptureSelectionErrors(t *testing.T) {
	h := newHarness(&stubAnalyzer{})
	assert.ErrorIs(t, h.run("capture", "--from", "10,10", "--to", "12,40", "--glossary-store", "memory"), screenshot.ErrSelectionTooSmall)
	assert.Error(t, h.run("capture", "--from", "10,10", "--glossary-store", "memory"))
	assert.Error(t, h.run("capture", "--region", "0,0,50,50", "--from", "0,0", "--to", "50,50", "--glossary-store", "memory"))
	assert.Error(t, h.run("capture", "--region", "0,0,50,50", "--view", "0x720", "--glossary-store", "memory"))
	assert.Error(t, h.run("capture", "--glossary-store", "memory"))
}

func TestStyledFailurePrintsErrorCard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, os.WriteFile(path, testPNG(t), 0644))

	h := newHarness(&stubAnalyzer{err: errors.New("quota exceeded")})
	require.Error(t, h.run("analyze", "--file", path, "--styled", "--glossary-store", "memory"))
	assert.Empty(t, h.stdout.String())
	assert.Contains(t, h.stderr.String(), "LỖI PHÂN TÍCH")
	assert.Contains(t, h.stderr.String(), "quota exceeded")
}

func TestGlossaryCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glossary.yaml")
	t.Setenv("GLOSSARY_PATH", path)

	h := newHarness(nil)
	require.NoError(t, h.run("glossary", "add", "Bearing", "Gối cầu (Bearing)", "--category", "bridge", "--glossary-store", "yaml"))
	id := strings.TrimSpace(h.stdout.String())
	require.NotEmpty(t, id)

	h.stdout.Reset()
	require.NoError(t, h.run("glossary", "list", "--glossary-store", "yaml"))
	assert.Contains(t, h.stdout.String(), "Gối cầu (Bearing)")
	assert.Contains(t, h.stdout.String(), "TRANSLATION")

	h.stdout.Reset()
	require.NoError(t, h.run("glossary", "export", "--glossary-store", "yaml"))
	exported, err := glossary.Import(bytes.NewReader(h.stdout.Bytes()))
	require.NoError(t, err)
	assert.Len(t, exported, 16)

	require.NoError(t, h.run("glossary", "delete", id, "--glossary-store", "yaml"))
	assert.ErrorIs(t, h.run("glossary", "delete", id, "--glossary-store", "yaml"), glossary.ErrNotFound)

	importPath := filepath.Join(t.TempDir(), "more.yaml")
	require.NoError(t, os.WriteFile(importPath, []byte("entries:\n  - term: Culvert\n    translation: Cống\n    category: road\n"), 0644))
	require.NoError(t, h.run("glossary", "import", importPath, "--glossary-store", "yaml"))
	assert.Contains(t, h.stderr.String(), "Imported 1 entries")

	store, err := glossary.OpenFileStore(path)
	require.NoError(t, err)
	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 16)
	assert.Equal(t, "Culvert", list[15].Term)

	assert.Error(t, h.run("glossary", "add", "Deck", "Bản mặt cầu", "--category", "tunnel", "--glossary-store", "yaml"))
}
