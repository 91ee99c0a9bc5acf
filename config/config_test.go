package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	assert := assert.New(t)

	c, err := loadFrom(filepath.Join(t.TempDir(), "missing.json"), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET": "secret",
	}))
	require.NoError(t, err)

	assert.Equal("8080", c.AppPort)
	assert.Equal("mysql", c.DBDriver)
	assert.Equal([]string{"*"}, c.AllowedOrigins)
	assert.Equal(60*time.Second, c.PublishTimeout)
	assert.Equal(3, c.PublishMaxAttempts)
	assert.Equal(2*time.Second, c.PublishRetryDelay)
	assert.Equal(100, c.SweepBatchSize)
	assert.False(c.StorageConfigured())
}

func TestLoadJSONThenEnv(t *testing.T) {
	assert := assert.New(t)

	path := writeConfig(t, `{
		"app": {"AppPort": "9000", "JWTSecret": "from-file", "CronSecret": "cron"},
		"database": {"Driver": "sqlite", "DBName": "posts"},
		"scheduler": {"PublishTimeout": "5s", "PublishMaxAttempts": 2},
		"oauth": {"instagram": {"ClientID": "ig-id", "ClientSecret": "ig-secret"}}
	}`)

	c, err := loadFrom(path, envconfig.MapLookuper(map[string]string{
		"APP_PORT":            "9100",
		"TWITTER_CLIENT_ID":   "tw-id",
		"PUBLISH_RETRY_DELAY": "10ms",
	}))
	require.NoError(t, err)

	assert.Equal("9100", c.AppPort, "env wins over file")
	assert.Equal("from-file", c.JWTSecret)
	assert.Equal("cron", c.CronSecret)
	assert.Equal("sqlite", c.DBDriver)
	assert.Equal(5*time.Second, c.PublishTimeout)
	assert.Equal(2, c.PublishMaxAttempts)
	assert.Equal(10*time.Millisecond, c.PublishRetryDelay)
	assert.Equal("ig-id", c.InstagramClientID)
	assert.Equal("ig-secret", c.InstagramClientSecret)
	assert.Equal("tw-id", c.TwitterClientID)
}

func TestValidate(t *testing.T) {
	_, err := loadFrom("", envconfig.MapLookuper(map[string]string{}))
	assert.ErrorContains(t, err, "JWT_SECRET")

	_, err = loadFrom("", envconfig.MapLookuper(map[string]string{
		"JWT_SECRET": "s",
		"DB_DRIVER":  "oracle",
	}))
	assert.ErrorContains(t, err, "DB_DRIVER")

	path := writeConfig(t, `{"scheduler": {"PublishTimeout": "soon"}}`)
	_, err = loadFrom(path, envconfig.MapLookuper(map[string]string{"JWT_SECRET": "s"}))
	assert.Error(t, err)
}
