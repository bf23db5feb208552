package embedding

import (
	"context"
	"fmt"
	"net/http"
)

// OpenAICompatibleProvider talks to any /v1/embeddings endpoint that speaks the
// OpenAI wire format (OpenAI, Jina, vLLM, LocalAI).
type OpenAICompatibleProvider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

type openAIEmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewOpenAICompatibleProvider(baseURL, apiKey, model string) EmbeddingProvider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1/embeddings"
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &OpenAICompatibleProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

func (p *OpenAICompatibleProvider) Generate(ctx context.Context, text string, taskType string) (*EmbeddingResponse, error) {
	headers := map[string]string{}
	if p.apiKey != "" {
		headers["Authorization"] = "Bearer " + p.apiKey
	}

	var res openAIEmbeddingResponse
	if err := postJSON(ctx, p.client, "openai", p.baseURL, headers, openAIEmbeddingRequest{Model: p.model, Input: []string{text}}, &res); err != nil {
		return nil, err
	}
	if res.Error != nil {
		return nil, fmt.Errorf("openai embedding error: %s", res.Error.Message)
	}
	if len(res.Data) == 0 || len(res.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai returned an empty embedding")
	}
	return newResponse(normalizeVector(res.Data[0].Embedding)), nil
}
