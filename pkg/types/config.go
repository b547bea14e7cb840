// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared settings for clients of external services.
type HTTPConfig struct {
	// Timeout is the per-request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// MaxRetries is the number of retries after a transient failure (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// RetryDelay is the fixed delay between retries (default 1s).
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay" mapstructure:"retry_delay"`
}

// StoreConfig locates the SQLite database holding the compound registry,
// the measurement stores, and the paper registry.
type StoreConfig struct {
	// DataDir is the base directory for the database and exports.
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`

	// DBFile is the database filename inside DataDir.
	DBFile string `json:"db_file" yaml:"db_file" mapstructure:"db_file"`
}

// DocumentBackend identifies how structured document content is obtained.
type DocumentBackend string

const (
	// DocumentContentList reads a content list already produced by the
	// document-structure service.
	DocumentContentList DocumentBackend = "contentlist"
	// DocumentContainer runs the document-structure service as a container.
	DocumentContainer DocumentBackend = "container"
)

// DocumentConfig holds settings for the document-structure collaborator.
type DocumentConfig struct {
	Backend DocumentBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// OutputDir is the base directory holding one content list directory per paper.
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`

	// Image is the container image used by the container backend.
	Image string `json:"image" yaml:"image" mapstructure:"image"`
}

// LLMConfig holds settings for the chat-completions service used for table
// extraction and figure classification.
type LLMConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// BaseURL is the OpenAI-compatible API base (".../v1").
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// Model is used for table extraction.
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// VisionModel is used for figure classification.
	VisionModel string `json:"vision_model" yaml:"vision_model" mapstructure:"vision_model"`

	Temperature float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`
}

// RecognitionConfig holds settings for the optical structure recognition service.
type RecognitionConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// URL is the prediction endpoint.
	URL string `json:"url" yaml:"url" mapstructure:"url"`

	// APIKey is sent as a bearer token when set.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// ConfidenceThreshold separates ok from low_confidence results (default 0.7).
	ConfidenceThreshold float64 `json:"confidence_threshold" yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
}

// CanonicalizerConfig selects how structure encodings are canonicalized
// before hashing.
type CanonicalizerConfig struct {
	// Backend is "raw" (hash the encoding as written) or "container".
	Backend string `json:"backend" yaml:"backend" mapstructure:"backend"`

	// Image is the cheminformatics container image for the container backend.
	Image string `json:"image" yaml:"image" mapstructure:"image"`
}

// QualityConfig holds validation settings.
type QualityConfig struct {
	// RulesFile overrides the built-in rule table when set.
	RulesFile string `json:"rules_file,omitempty" yaml:"rules_file,omitempty" mapstructure:"rules_file"`
}

// PipelineConfig holds per-paper orchestration settings.
type PipelineConfig struct {
	// Concurrency caps concurrent outbound calls within one paper (default 4).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`

	// ProcessedDir receives staged per-paper outputs.
	ProcessedDir string `json:"processed_dir" yaml:"processed_dir" mapstructure:"processed_dir"`
}

// FetchConfig holds settings for downloading open-access PDFs.
type FetchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// PapersDir receives downloaded PDFs.
	PapersDir string `json:"papers_dir" yaml:"papers_dir" mapstructure:"papers_dir"`

	// Mailto identifies the caller to OpenAlex and CrossRef (polite pool).
	Mailto string `json:"mailto,omitempty" yaml:"mailto,omitempty" mapstructure:"mailto"`

	// DownloadDelay spaces consecutive downloads in a batch.
	DownloadDelay time.Duration `json:"download_delay" yaml:"download_delay" mapstructure:"download_delay"`
}

// LogConfig selects the structured log level and format.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// Config groups every setting of the workbench.
type Config struct {
	Store         StoreConfig         `json:"store" yaml:"store" mapstructure:"store"`
	Document      DocumentConfig      `json:"document" yaml:"document" mapstructure:"document"`
	LLM           LLMConfig           `json:"llm" yaml:"llm" mapstructure:"llm"`
	Recognition   RecognitionConfig   `json:"recognition" yaml:"recognition" mapstructure:"recognition"`
	Canonicalizer CanonicalizerConfig `json:"canonicalizer" yaml:"canonicalizer" mapstructure:"canonicalizer"`
	Quality       QualityConfig       `json:"quality" yaml:"quality" mapstructure:"quality"`
	Pipeline      PipelineConfig      `json:"pipeline" yaml:"pipeline" mapstructure:"pipeline"`
	Fetch         FetchConfig         `json:"fetch" yaml:"fetch" mapstructure:"fetch"`
	Log           LogConfig           `json:"log" yaml:"log" mapstructure:"log"`
}
