// Package config loads the replicator's YAML configuration file: a
// small struct decoded with github.com/goccy/go-yaml, with environment
// variable overrides for secrets.
package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Config holds every option the queue, notification, storage, and
// upstream collaborators need, plus the batch size and poll interval
// the CLI's poll loop uses.
type Config struct {
	SQSQueueURL          string `yaml:"sqsQueueUrl"`
	TopicARN             string `yaml:"topicArn"`
	OCFLRepoDir          string `yaml:"ocflRepoDir"`
	OCFLWorkDir          string `yaml:"ocflWorkDir"`
	PreservicaBaseURL    string `yaml:"preservicaBaseUrl"`
	PreservicaSecretName string `yaml:"preservicaSecretName"`

	BatchSize           int    `yaml:"batchSize"`
	PollIntervalSeconds int    `yaml:"pollIntervalSeconds"`
	Concurrency         int    `yaml:"concurrency"`
	LogLevel            string `yaml:"logLevel"`
}

const envSecretOverride = "DR_REPLICATOR_PRESERVICA_SECRET"

// Load reads and decodes the config file at path, applying environment
// overrides for secret-bearing fields.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}
	if v := os.Getenv(envSecretOverride); v != "" {
		c.PreservicaSecretName = v
	}
	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.PollIntervalSeconds <= 0 {
		c.PollIntervalSeconds = 5
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) validate() error {
	missing := []string{}
	if c.SQSQueueURL == "" {
		missing = append(missing, "sqsQueueUrl")
	}
	if c.TopicARN == "" {
		missing = append(missing, "topicArn")
	}
	if c.OCFLRepoDir == "" {
		missing = append(missing, "ocflRepoDir")
	}
	if c.OCFLWorkDir == "" {
		missing = append(missing, "ocflWorkDir")
	}
	if c.PreservicaBaseURL == "" {
		missing = append(missing, "preservicaBaseUrl")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config fields: %v", missing)
	}
	return nil
}
