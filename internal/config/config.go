// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config reads workbench settings from a YAML file, TADF_* environment
// variables, and built-in defaults, and fills API keys from the secrets
// directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/zouly-group/tadf-workbench/internal/secrets"
	"github.com/zouly-group/tadf-workbench/pkg/types"
)

const (
	// Name is the config file stem searched for in the working directory
	// and ~/.config/tadf-workbench/.
	Name = "tadf-workbench"

	// EnvPrefix prefixes environment overrides: TADF_LLM_MODEL sets llm.model.
	EnvPrefix = "TADF"
)

// SetDefaults registers the built-in value of every setting.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("store.data_dir", "data")
	v.SetDefault("store.db_file", "tadf.db")

	v.SetDefault("document.backend", string(types.DocumentContentList))
	v.SetDefault("document.output_dir", filepath.Join("data", "document_output"))
	v.SetDefault("document.image", "mineru:latest")

	v.SetDefault("llm.base_url", "https://dashscope.aliyuncs.com/compatible-mode/v1")
	v.SetDefault("llm.model", "qwen-max")
	v.SetDefault("llm.vision_model", "qwen-vl-max")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay", time.Second)

	v.SetDefault("recognition.url", "http://localhost:8000/predict")
	v.SetDefault("recognition.confidence_threshold", 0.7)
	v.SetDefault("recognition.timeout", 30*time.Second)
	v.SetDefault("recognition.max_retries", 3)
	v.SetDefault("recognition.retry_delay", time.Second)

	v.SetDefault("canonicalizer.backend", "raw")
	v.SetDefault("canonicalizer.image", "rdkit-canonicalize:latest")

	v.SetDefault("quality.rules_file", "")

	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.processed_dir", filepath.Join("data", "processed"))

	v.SetDefault("fetch.papers_dir", filepath.Join("data", "papers"))
	v.SetDefault("fetch.timeout", 120*time.Second)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.retry_delay", 2*time.Second)
	v.SetDefault("fetch.download_delay", time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Setup points v at cfgFile, or at the default search paths when empty,
// enables environment overrides, and reads the file if one exists. It
// returns the file used, or "" when none was found.
func Setup(v *viper.Viper, cfgFile string) (string, error) {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(Name)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", Name))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("reading config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// Load decodes v into a Config, fills API keys left empty by the file and
// environment from s, and validates the result.
func Load(v *viper.Viper, s secrets.Set) (types.Config, error) {
	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = s.Get(secrets.LLMAPIKey, "")
	}
	if cfg.Recognition.APIKey == "" {
		cfg.Recognition.APIKey = s.Get(secrets.RecognitionAPIKey, "")
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func Validate(cfg types.Config) error {
	switch cfg.Document.Backend {
	case types.DocumentContentList, types.DocumentContainer:
	default:
		return fmt.Errorf("document.backend: unknown backend %q", cfg.Document.Backend)
	}
	switch cfg.Canonicalizer.Backend {
	case "raw", "container":
	default:
		return fmt.Errorf("canonicalizer.backend: unknown backend %q", cfg.Canonicalizer.Backend)
	}
	if t := cfg.Recognition.ConfidenceThreshold; t < 0 || t > 1 {
		return fmt.Errorf("recognition.confidence_threshold: %v is outside [0, 1]", t)
	}
	if cfg.Pipeline.Concurrency < 1 {
		return fmt.Errorf("pipeline.concurrency: must be at least 1, got %d", cfg.Pipeline.Concurrency)
	}
	return nil
}
