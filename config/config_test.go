package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "omnifuzz.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Target.Simulate)
	assert.Len(t, cfg.Target.Protocols, 3)
	assert.Equal(t, 5*time.Second, cfg.Target.Protocols[0].TimeoutDuration)
	assert.Equal(t, 0.5, cfg.Rewards.Weights["vulnerability"])
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
target:
  ip: 10.0.0.7
  simulate: false
  protocols:
    - name: modbus_tcp
      port: 1502
      timeout: 250ms
training:
  episodes: 5
  prioritized_replay: true
rewards:
  weights:
    vulnerability: 0.8
    depth: 0.1
    diversity: 0.1
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.7", cfg.Target.IP)
	assert.False(t, cfg.Target.Simulate)
	require.Len(t, cfg.Target.Protocols, 1)
	assert.Equal(t, 1502, cfg.Target.Protocols[0].Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Target.Protocols[0].TimeoutDuration)

	assert.Equal(t, 5, cfg.Training.Episodes)
	assert.True(t, cfg.Training.PrioritizedReplay)
	// Untouched sections keep their defaults.
	assert.Equal(t, 32, cfg.Training.BatchSize)
	assert.Equal(t, 0.8, cfg.Rewards.Weights["vulnerability"])
	assert.Equal(t, 4.0, cfg.Rewards.VulnerabilityScores["critical"])
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_BadTimeout(t *testing.T) {
	path := writeConfig(t, `
target:
  protocols:
    - name: modbus_tcp
      timeout: soon
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "invalid timeout")
}

func TestValidate_DuplicateProtocol(t *testing.T) {
	cfg := Default()
	cfg.Target.Protocols = append(cfg.Target.Protocols, cfg.Target.Protocols[0])
	assert.ErrorContains(t, cfg.Validate(), "configured twice")
}

func TestValidate_NegativeWeight(t *testing.T) {
	cfg := Default()
	cfg.Rewards.Weights["depth"] = -1
	assert.ErrorContains(t, cfg.Validate(), "negative")
}

func TestValidate_NoProtocols(t *testing.T) {
	cfg := Default()
	cfg.Target.Protocols = nil
	assert.Error(t, cfg.Validate())
}
