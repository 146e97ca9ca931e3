package analysis

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"cad-lingo/src/config"
	"cad-lingo/src/glossary"
	"cad-lingo/src/imageinput"
)

type GeminiConfig struct {
	APIKey string
	Model  string

	// BaseURL and HTTPClient override the Gemini endpoint, mainly for tests.
	BaseURL    string
	HTTPClient *http.Client
}

// Gemini analyzes screenshots with Google's Gemini models.
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: Gemini API key is required", ErrNotConfigured)
	}
	if cfg.Model == "" {
		cfg.Model = config.DefaultGeminiModel
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Gemini{client: client, model: cfg.Model}, nil
}

func (g *Gemini) Name() string {
	return "gemini:" + g.model
}

func (g *Gemini) Analyze(ctx context.Context, img imageinput.Image, entries []glossary.Entry) ([]Result, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(img.Data, img.MIMEType),
			genai.NewPartFromText(BuildPrompt(entries)),
		}, genai.RoleUser),
	}

	zap.S().Debugf("gemini: sending %dx%d %s (%d bytes) with %d glossary entries", img.Width, img.Height, img.MIMEType, len(img.Data), len(entries))
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemInstruction, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.1),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    responseSchema(),
	})
	if err != nil {
		return nil, fmt.Errorf("gemini analysis failed: %w", err)
	}

	results, err := ParseResponse(resp.Text())
	if err != nil {
		return nil, err
	}
	return Reconcile(results, entries), nil
}

// Ping checks that the key is accepted and the model exists.
func (g *Gemini) Ping(ctx context.Context) error {
	if _, err := g.client.Models.Get(ctx, g.model, nil); err != nil {
		return fmt.Errorf("gemini ping failed: %w", err)
	}
	return nil
}

func responseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"items": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"original":          {Type: genai.TypeString},
						"translated":        {Type: genai.TypeString},
						"isDictionaryMatch": {Type: genai.TypeBoolean},
					},
					Required: []string{"original", "translated", "isDictionaryMatch"},
				},
			},
		},
		Required: []string{"items"},
	}
}
