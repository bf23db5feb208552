package embedding

import (
	"context"
	"fmt"
	"net/http"
)

const defaultGeminiModel = "text-embedding-004"

type GeminiProvider struct {
	ApiKey string
	Model  string
	client *http.Client
}

func NewGeminiProvider(apiKey, model string) EmbeddingProvider {
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiProvider{
		ApiKey: apiKey,
		Model:  model,
		client: &http.Client{Timeout: defaultTimeout},
	}
}

func (p *GeminiProvider) Generate(ctx context.Context, text string, taskType string) (*EmbeddingResponse, error) {
	req := EmbeddingRequest{
		Model: p.Model,
		Content: EmbeddingRequestContent{
			Parts: []EmbeddingRequestContentPart{{Text: text}},
		},
		TaskType: taskType,
	}

	endpoint := fmt.Sprintf("https://generativelanguage.googleapis.com/v1/models/%s:embedContent", p.Model)

	var res EmbeddingResponse
	if err := postJSON(ctx, p.client, "gemini", endpoint, map[string]string{"x-goog-api-key": p.ApiKey}, req, &res); err != nil {
		return nil, err
	}
	if len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("gemini returned an empty embedding")
	}
	return &res, nil
}
