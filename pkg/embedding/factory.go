package embedding

import "fmt"

const (
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type ProviderConfig struct {
	Provider string
	BaseURL  string
	Model    string
	ApiKey   string
	Retry    RetryConfig
}

// NewProvider builds the configured provider wrapped with retries.
func NewProvider(cfg ProviderConfig) (EmbeddingProvider, error) {
	var p EmbeddingProvider
	switch cfg.Provider {
	case ProviderOllama, "":
		p = NewOllamaProvider(cfg.BaseURL, cfg.Model)
	case ProviderGemini:
		if cfg.ApiKey == "" {
			return nil, fmt.Errorf("gemini embedding provider requires an api key")
		}
		p = NewGeminiProvider(cfg.ApiKey, cfg.Model)
	case ProviderOpenAI:
		p = NewOpenAICompatibleProvider(cfg.BaseURL, cfg.ApiKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	return WithRetry(p, cfg.Retry), nil
}
