// Package config provides unified configuration loading for the QA
// generation pipeline. Supports YAML files, environment variables, and
// programmatic overrides.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"qagen/internal/domain"
)

// Config holds all configuration for a pipeline run. It is loaded once
// at startup and passed explicitly to every component.
type Config struct {
	Storage       StorageConfig       `yaml:"storage"`
	Input         InputConfig         `yaml:"input"`
	Output        OutputConfig        `yaml:"output"`
	Processing    ProcessingConfig    `yaml:"processing"`
	Inference     InferenceConfig     `yaml:"inference"`
	Observability ObservabilityConfig `yaml:"observability"`
	Masking       MaskingConfig       `yaml:"masking"`
	Keywords      []string            `yaml:"keywords"`
	Prompts       PromptsConfig       `yaml:"prompts"`
}

// StorageConfig selects the storage provider backing input documents
// and output artifacts.
type StorageConfig struct {
	Provider string `yaml:"provider"` // local or memory
}

// InputConfig holds input discovery settings.
type InputConfig struct {
	FileExtensions []string `yaml:"file_extensions"`
}

// OutputConfig holds the output folder layout.
type OutputConfig struct {
	BaseFolder          string `yaml:"base_folder"`
	MaskedSubfolder     string `yaml:"masked_subfolder"`
	QASubfolder         string `yaml:"qa_subfolder"`
	DefaultSubfolder    string `yaml:"default_prompt_subfolder"`
	AlternativeSubfolder string `yaml:"alternative_prompt_subfolder"`
}

// VariantSubfolder returns the per-variant output subfolder name.
func (o OutputConfig) VariantSubfolder(v domain.PromptVariant) string {
	if v == domain.VariantAlternative {
		return o.AlternativeSubfolder
	}
	return o.DefaultSubfolder
}

// ProcessingConfig holds orchestration settings.
type ProcessingConfig struct {
	AugmentationFactor int    `yaml:"augmentation_factor"`
	ParallelPrompts    bool   `yaml:"parallel_prompts"`
	MaxWorkers         int    `yaml:"max_workers"`
	Checkpointing      bool   `yaml:"checkpointing"`
	CheckpointFile     string `yaml:"checkpoint_file"`
}

// InferenceConfig holds inference endpoint settings. Timeout and
// RetryDelay are expressed in seconds, matching the configuration file
// contract.
type InferenceConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	Timeout     int     `yaml:"timeout"`
	Retries     int     `yaml:"retries"`
	RetryDelay  int     `yaml:"retry_delay"`
}

// TimeoutDuration returns the per-call inference timeout.
func (c InferenceConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// RetryDelayDuration returns the fixed delay between retry attempts.
func (c InferenceConfig) RetryDelayDuration() time.Duration {
	return time.Duration(c.RetryDelay) * time.Second
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// MaskingConfig holds content masking settings.
type MaskingConfig struct {
	CompanyNames []string `yaml:"company_names"`
}

// PromptsConfig holds the two named prompt templates and the citation
// suffixes the default variant's questions must end with.
type PromptsConfig struct {
	Default          string   `yaml:"default"`
	Alternative      string   `yaml:"alternative"`
	CitationSuffixes []string `yaml:"citation_suffixes"`
}

// Template returns the template for the given variant.
func (p PromptsConfig) Template(v domain.PromptVariant) string {
	if v == domain.VariantAlternative {
		return p.Alternative
	}
	return p.Default
}

// Load reads configuration from a YAML file and applies environment
// overrides. An empty path loads defaults only.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, domain.ConfigurationError("read config file", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, domain.ConfigurationError("parse config file", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with working defaults for a
// local Ollama endpoint.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Provider: "local",
		},
		Input: InputConfig{
			FileExtensions: []string{".pdf"},
		},
		Output: OutputConfig{
			BaseFolder:           "processed_outputs",
			MaskedSubfolder:      "masked_content",
			QASubfolder:          "qa_outputs",
			DefaultSubfolder:     "default_prompt",
			AlternativeSubfolder: "alternative_prompt",
		},
		Processing: ProcessingConfig{
			AugmentationFactor: 1,
			ParallelPrompts:    false,
			MaxWorkers:         4,
			Checkpointing:      true,
			CheckpointFile:     "processing_checkpoint.db",
		},
		Inference: InferenceConfig{
			BaseURL:     "http://localhost:11434",
			Model:       "llama3.1:8b",
			Temperature: 0.7,
			Timeout:     300,
			Retries:     3,
			RetryDelay:  5,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "console",
		},
		Masking: MaskingConfig{
			CompanyNames: []string{"Unum", "Hartford", "Lincoln"},
		},
		Keywords: []string{
			"Waiting Period",
			"Elimination Period",
			"Grace Period",
			"Pre-Existing Condition",
			"Benefit Amount",
			"Maximum Benefit Period",
			"Exclusions",
			"Termination",
		},
		Prompts: PromptsConfig{
			Default:          defaultPromptTemplate,
			Alternative:      alternativePromptTemplate,
			CitationSuffixes: []string{"based on {policy_doc_name}?", "as per {policy_doc_name}?"},
		},
	}
}

// Validate checks the configuration for errors. Any failure here is a
// configuration error raised before a single unit is scheduled.
func (c *Config) Validate() error {
	if len(c.Keywords) == 0 {
		return domain.ConfigurationError("no keywords defined", nil)
	}
	if c.Prompts.Default == "" {
		return domain.ConfigurationError("default prompt template is required", nil)
	}
	if c.Prompts.Alternative == "" {
		return domain.ConfigurationError("alternative prompt template is required", nil)
	}
	if len(c.Prompts.CitationSuffixes) != 2 {
		return domain.ConfigurationError("exactly two citation suffixes are required", nil)
	}
	if c.Processing.MaxWorkers < 1 {
		return domain.ConfigurationError("max_workers must be at least 1", nil)
	}
	if c.Processing.AugmentationFactor < 1 {
		return domain.ConfigurationError("augmentation_factor must be at least 1", nil)
	}
	if c.Inference.Retries < 1 {
		return domain.ConfigurationError("retries must be at least 1", nil)
	}
	if c.Inference.RetryDelay < 0 {
		return domain.ConfigurationError("retry_delay must not be negative", nil)
	}
	if c.Inference.Timeout < 1 {
		return domain.ConfigurationError("timeout must be at least 1 second", nil)
	}
	if c.Storage.Provider != "local" && c.Storage.Provider != "memory" {
		return domain.ConfigurationError("unsupported storage provider: "+c.Storage.Provider, nil)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		cfg.Inference.BaseURL = v
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		cfg.Inference.Model = v
	}
	if v := os.Getenv("QAGEN_OUTPUT_DIR"); v != "" {
		cfg.Output.BaseFolder = v
	}
	if v := os.Getenv("QAGEN_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Processing.MaxWorkers = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}

const defaultPromptTemplate = `You are generating training data from insurance policy documentation.

Policy document: {policy_doc_name}
Topic keyword: {keyword}
Source pages: {formatted_pages}

Context:
{content}

Write exactly 5 question-answer pairs about "{keyword}", strictly grounded in the context above.

Rules:
- Each question must end with "based on {policy_doc_name}?" or "as per {policy_doc_name}?".
- Each answer must contain the citation (Source: {policy_doc_name}, Page {formatted_pages}).
- Output only Q:/A: lines, one pair after another, with no numbering or commentary.

Format:
Q: <question>
A: <answer>`

const alternativePromptTemplate = `Restate the facts about "{keyword}" found in {policy_doc_name} (pages {formatted_pages}) as question-answer pairs.

Context:
{content}

Write 5 pairs. Each question must be a single sentence ending with a question mark. Each answer must contain the citation (Source: {policy_doc_name}, Page {formatted_pages}).

Format:
Q: <question>
A: <answer>`
