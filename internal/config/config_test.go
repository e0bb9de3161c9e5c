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
	p := filepath.Join(t.TempDir(), "server.toml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 40, cfg.World.Width)
	assert.Equal(t, 30, cfg.World.Height)
	assert.Equal(t, time.Second, cfg.Network.TickInterval)
	assert.Equal(t, 0.70, cfg.World.DegradedThreshold)
	assert.Equal(t, uint64(30), cfg.Items.Reveal.Legendary)
}

func TestLoadOverridesDefaults(t *testing.T) {
	p := writeConfig(t, `
[world]
width = 20
height = 15

[network]
tick_interval = "500ms"
codec = "msgpack"

[items.reveal_ticks]
rare = 3
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.World.Width)
	assert.Equal(t, 15, cfg.World.Height)
	assert.Equal(t, 500*time.Millisecond, cfg.Network.TickInterval)
	assert.Equal(t, "msgpack", cfg.Network.Codec)
	assert.Equal(t, uint64(3), cfg.Items.Reveal.Rare)
	assert.Equal(t, uint64(2), cfg.Items.Reveal.Common, "untouched keys keep defaults")
	assert.NotZero(t, cfg.Server.StartTime)
}

func TestEnvOverridesFile(t *testing.T) {
	p := writeConfig(t, "[network]\nbind_address = \"127.0.0.1:1\"\n")
	t.Setenv("GRIDREALM_NETWORK_BIND_ADDRESS", "127.0.0.1:9000")
	t.Setenv("GRIDREALM_WORLD_WIDTH", "12")
	t.Setenv("GRIDREALM_SESSION_IDLE_TIMEOUT", "90s")
	t.Setenv("GRIDREALM_ITEMS_REVEAL_EPIC", "7")

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Network.BindAddress)
	assert.Equal(t, 12, cfg.World.Width)
	assert.Equal(t, 90*time.Second, cfg.Session.IdleTimeout)
	assert.Equal(t, uint64(7), cfg.Items.Reveal.Epic)
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadRejectsBadToml(t *testing.T) {
	_, err := Load(writeConfig(t, "[world\nwidth = "))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero width", func(c *Config) { c.World.Width = 0 }},
		{"zero tick", func(c *Config) { c.Network.TickInterval = 0 }},
		{"unknown codec", func(c *Config) { c.Network.Codec = "xml" }},
		{"threshold above one", func(c *Config) { c.World.DegradedThreshold = 1.5 }},
		{"no rate", func(c *Config) { c.Session.RateEvents = 0 }},
		{"negative afk", func(c *Config) { c.Session.AFKTimeout = -time.Second }},
		{"certain loot failure", func(c *Config) { c.Items.LootFailChance = 1 }},
		{"database without dsn", func(c *Config) { c.Database.Enabled = true; c.Database.DSN = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
