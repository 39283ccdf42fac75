package pipeline

import (
	"qagen/internal/config"
	"qagen/internal/domain"
	"qagen/internal/extract"
	"qagen/internal/llm"
	"qagen/internal/observability"
	"qagen/internal/prompt"
	"qagen/internal/storage"
)

// NewFromConfig builds a pipeline with the production collaborators:
// the configured storage provider, the PDF extractor, and the inference
// client.
func NewFromConfig(cfg *config.Config, logger *observability.Logger) (*Pipeline, error) {
	provider, err := storage.NewProvider(cfg.Storage)
	if err != nil {
		return nil, err
	}

	extractor := extract.NewExtractor(extract.NewMasker(cfg.Masking.CompanyNames))

	client := llm.NewClient(llm.Options{
		BaseURL:     cfg.Inference.BaseURL,
		Model:       cfg.Inference.Model,
		Temperature: cfg.Inference.Temperature,
		Timeout:     cfg.Inference.TimeoutDuration(),
	})

	return New(cfg, provider, extractor, client, logger), nil
}

func promptRenderer(cfg *config.Config) (*prompt.Renderer, error) {
	return prompt.NewRenderer(
		cfg.Prompts.Template(domain.VariantDefault),
		cfg.Prompts.Template(domain.VariantAlternative),
	)
}

func retryPolicy(cfg *config.Config) llm.RetryPolicy {
	return llm.RetryPolicy{
		Attempts: cfg.Inference.Retries,
		Delay:    cfg.Inference.RetryDelayDuration(),
	}
}
