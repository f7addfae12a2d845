package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matryer/is"

	"github.com/preservica/dr-replicator/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dr-replicator.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	is := is.New(t)
	path := writeConfig(t, `
sqsQueueUrl: "awssqs://queue"
topicArn: "awssns://topic"
ocflRepoDir: "/data/repo"
ocflWorkDir: "/data/work"
preservicaBaseUrl: "https://preservica.example"
preservicaSecretName: "prod/preservica"
`)
	cfg, err := config.Load(path)
	is.NoErr(err)
	is.Equal(cfg.BatchSize, 10)
	is.Equal(cfg.PollIntervalSeconds, 5)
	is.Equal(cfg.Concurrency, 4)
	is.Equal(cfg.LogLevel, "info")
}

func TestLoadRespectsExplicitValues(t *testing.T) {
	is := is.New(t)
	path := writeConfig(t, `
sqsQueueUrl: "awssqs://queue"
topicArn: "awssns://topic"
ocflRepoDir: "/data/repo"
ocflWorkDir: "/data/work"
preservicaBaseUrl: "https://preservica.example"
preservicaSecretName: "prod/preservica"
batchSize: 25
pollIntervalSeconds: 15
concurrency: 8
logLevel: "debug"
`)
	cfg, err := config.Load(path)
	is.NoErr(err)
	is.Equal(cfg.BatchSize, 25)
	is.Equal(cfg.PollIntervalSeconds, 15)
	is.Equal(cfg.Concurrency, 8)
	is.Equal(cfg.LogLevel, "debug")
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	is := is.New(t)
	path := writeConfig(t, `sqsQueueUrl: "awssqs://queue"`)
	_, err := config.Load(path)
	is.True(err != nil)
}

func TestLoadEnvOverridesSecretName(t *testing.T) {
	is := is.New(t)
	path := writeConfig(t, `
sqsQueueUrl: "awssqs://queue"
topicArn: "awssns://topic"
ocflRepoDir: "/data/repo"
ocflWorkDir: "/data/work"
preservicaBaseUrl: "https://preservica.example"
preservicaSecretName: "prod/preservica"
`)
	t.Setenv("DR_REPLICATOR_PRESERVICA_SECRET", "resolved-secret-value")
	cfg, err := config.Load(path)
	is.NoErr(err)
	is.Equal(cfg.PreservicaSecretName, "resolved-secret-value")
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	is := is.New(t)
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	is.True(err != nil)
}
