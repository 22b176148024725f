// Copyright (C) 2025 FinCove Pvt. Ltd.
// Tests for the gateway config loader

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "banking", cfg.Routing.DefaultDomain)
	assert.Equal(t, 16, cfg.Memory.Window)
	assert.Equal(t, "mp3", cfg.Voice.Format)
	assert.Equal(t, 44100, cfg.Voice.SampleRate)
}

func TestLoadInternal(t *testing.T) {
	t.Run("missing file keeps defaults", func(t *testing.T) {
		t.Setenv("GATEWAY_CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, loadInternal())
		assert.Equal(t, DefaultConfig(), Global)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "gateway.yaml")
		content := "routing:\n  default_domain: loan\nmemory:\n  window: 8\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		t.Setenv("GATEWAY_CONFIG_PATH", path)

		require.NoError(t, loadInternal())
		assert.Equal(t, "loan", Global.Routing.DefaultDomain)
		assert.Equal(t, 8, Global.Memory.Window)
		// Untouched sections keep their defaults.
		assert.Equal(t, "mp3", Global.Voice.Format)
		assert.Equal(t, 44100, Global.Voice.SampleRate)
	})

	t.Run("malformed YAML is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "gateway.yaml")
		require.NoError(t, os.WriteFile(path, []byte("routing: ["), 0644))
		t.Setenv("GATEWAY_CONFIG_PATH", path)
		assert.Error(t, loadInternal())
	})
}
