package analysis

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cad-lingo/src/glossary"
)

func newTestGemini(t *testing.T, handler http.HandlerFunc) *Gemini {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	g, err := NewGemini(GeminiConfig{
		APIKey:     "test-key",
		Model:      "gemini-test",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)
	return g
}

func TestGeminiAnalyze(t *testing.T) {
	img := testPNG(t)
	var body string
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent") {
			http.NotFound(w, r)
			return
		}
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"items\":[{\"original\":\"Girder\",\"translated\":\"Dầm\",\"isDictionaryMatch\":false},{\"original\":\"Apply\",\"translated\":\"Áp dụng\",\"isDictionaryMatch\":false}]}"}]},"finishReason":"STOP"}]}`)
	})

	results, err := g.Analyze(context.Background(), img, glossary.Defaults())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, Result{Original: "Girder", Translated: "Dầm", IsDictionaryMatch: true}, results[0])
	assert.Equal(t, Result{Original: "Apply", Translated: "Áp dụng"}, results[1])

	assert.Contains(t, body, base64.StdEncoding.EncodeToString(img.Data), "image must be sent inline")
	assert.Contains(t, body, "application/json")
	assert.Contains(t, body, "- Girder: Dầm cầu (Girder)")
	assert.Contains(t, body, "Civil Engineer")
}

func TestGeminiEmptyResponse(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":""}]},"finishReason":"STOP"}]}`)
	})
	results, err := g.Analyze(context.Background(), testPNG(t), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestGeminiAPIError(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`)
	})
	_, err := g.Analyze(context.Background(), testPNG(t), nil)
	assert.Error(t, err)
	assert.Error(t, g.Ping(context.Background()))
}

func TestGeminiPing(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || !strings.HasSuffix(r.URL.Path, "/models/gemini-test") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"name":"models/gemini-test","displayName":"Gemini Test"}`)
	})
	assert.NoError(t, g.Ping(context.Background()))
}
