package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv(t *testing.T) {
	t.Setenv("CHATAUTH_DATABASE_DSN", "postgres://env")
	t.Setenv("CHATAUTH_AVATAR_MAX_BYTES", "4096")
	t.Setenv("CHATAUTH_RECONCILE_INTERVAL", "45s")

	cfg := &Config{}
	cfg.LoadDefaults()
	require.NoError(t, parseEnv(cfg))

	assert.Equal(t, "postgres://env", cfg.DatabaseDSN)
	assert.Equal(t, int64(4096), cfg.AvatarMaxBytes)
	assert.Equal(t, 45*time.Second, cfg.ReconcileInterval)
	assert.Equal(t, "avatars", cfg.S3Bucket, "unset variables keep defaults")
}

func TestParseEnv_BadValue(t *testing.T) {
	t.Setenv("CHATAUTH_HASH_COST", "lots")

	err := parseEnv(&Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}
