package analysis

import (
	"errors"
	"image"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cad-lingo/src/config"
	"cad-lingo/src/glossary"
	"cad-lingo/src/imageinput"
)

func testPNG(t *testing.T) imageinput.Image {
	t.Helper()
	img, err := imageinput.FromImage(image.NewRGBA(image.Rect(0, 0, 8, 4)))
	require.NoError(t, err)
	return img
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []Result
	}{
		{
			name: "Empty",
			in:   "  ",
			want: []Result{},
		},
		{
			name: "Plain",
			in:   `{"items":[{"original":"Offset","translated":"Dời song song","isDictionaryMatch":true}]}`,
			want: []Result{{Original: "Offset", Translated: "Dời song song", IsDictionaryMatch: true}},
		},
		{
			name: "MissingItems",
			in:   `{"result":"nothing"}`,
			want: []Result{},
		},
		{
			name: "CodeFence",
			in:   "Here you go:\n```json\n{\"items\":[{\"original\":\"Layer {0}\",\"translated\":\"Lớp {0}\",\"isDictionaryMatch\":false}]}\n```",
			want: []Result{{Original: "Layer {0}", Translated: "Lớp {0}"}},
		},
		{
			name: "BareArray",
			in:   `[{"original":"Cancel","translated":"Hủy"}]`,
			want: []Result{{Original: "Cancel", Translated: "Hủy"}},
		},
		{
			name: "BlankItemsDropped",
			in:   `{"items":[{"original":" ","translated":""},{"original":" Pier ","translated":" Trụ cầu "}]}`,
			want: []Result{{Original: "Pier", Translated: "Trụ cầu"}},
		},
		{
			name: "ConfidenceKept",
			in:   `{"items":[{"original":"Grade","translated":"Độ dốc","isDictionaryMatch":false,"confidence":"medium"}]}`,
			want: []Result{{Original: "Grade", Translated: "Độ dốc", Confidence: "medium"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResponse(tt.in)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseResponse mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseResponseRejectsGarbage(t *testing.T) {
	_, err := ParseResponse("I could not read the screenshot.")
	assert.Error(t, err)

	_, err = ParseResponse(`{"items": [ {"original": "x"`)
	assert.Error(t, err)
}

func TestExtractJSONObject(t *testing.T) {
	assert.Equal(t, `{"a":"}"}`, extractJSONObject(`prefix {"a":"}"} suffix {"b":1}`))
	assert.Equal(t, `{"a":"\"{"}`, extractJSONObject(`{"a":"\"{"}`))
	assert.Equal(t, "", extractJSONObject("no braces"))
	assert.Equal(t, "", extractJSONObject("{unterminated"))
}

func TestReconcile(t *testing.T) {
	entries := glossary.Defaults()
	results := []Result{
		{Original: "offset", Translated: ""},
		{Original: "Alignment", Translated: "Tuyến đường"},
		{Original: "Properties", Translated: "Thuộc tính"},
	}
	got := Reconcile(results, entries)

	assert.True(t, got[0].IsDictionaryMatch)
	assert.Equal(t, "Dời song song (Offset)", got[0].Translated)
	assert.True(t, got[1].IsDictionaryMatch)
	assert.Equal(t, "Tuyến đường", got[1].Translated, "model translation is kept when present")
	assert.False(t, got[2].IsDictionaryMatch)
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt([]glossary.Entry{{Term: "Abutment", Translation: "Mố cầu"}})
	assert.Contains(t, p, "- Abutment: Mố cầu")
	assert.Contains(t, p, `"isDictionaryMatch"`)
	assert.True(t, strings.HasPrefix(p, "Analyze this image."))
}

func TestTranslateLines(t *testing.T) {
	text := "Offset\n\n  Properties  \noffset\nAbutment\n"
	got := translateLines(text, glossary.Defaults())
	want := []Result{
		{Original: "Offset", Translated: "Dời song song (Offset)", IsDictionaryMatch: true, Confidence: "high"},
		{Original: "Properties", Translated: "Properties", Confidence: "low"},
		{Original: "Abutment", Translated: "Mố cầu (Abutment)", IsDictionaryMatch: true, Confidence: "high"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("translateLines mismatch (-want +got):\n%s", diff)
	}
}

func TestNew(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = New(&config.Config{Engine: config.EngineGemini})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = New(&config.Config{Engine: config.EngineOpenRouter, APIKey: "k"})
	assert.ErrorIs(t, err, ErrNotConfigured, "openrouter needs a model")

	a, err := New(&config.Config{Engine: config.EngineGemini, APIKey: "k", Model: "gemini-test"})
	require.NoError(t, err)
	assert.Equal(t, "gemini:gemini-test", a.Name())

	a, err = New(&config.Config{Engine: config.EngineOpenRouter, APIKey: "k", Model: "google/gemini-flash"})
	require.NoError(t, err)
	assert.Equal(t, "openrouter:google/gemini-flash", a.Name())

	_, err = New(&config.Config{Engine: "bogus"})
	assert.False(t, errors.Is(err, ErrNotConfigured))
	assert.Error(t, err)
}
