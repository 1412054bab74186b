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

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestMustLoad(t *testing.T) {
	path := writeConfig(t, `
log-level: "debug"
http-port: "9191"
socket-port: "8181"
storage: "redis"
redis:
  host: "redis.internal"
  port: "6380"
rooms:
  ttl: "30m"
  sweep-interval: "15s"
`)

	conf := MustLoad(path)

	assert.Equal(t, "debug", conf.LogLevel)
	assert.Equal(t, "9191", conf.HTTPPort)
	assert.Equal(t, "8181", conf.SocketPort)
	assert.Equal(t, StorageRedis, conf.Storage)
	assert.Equal(t, "redis.internal:6380", conf.Redis.GetRedisAddr())
	assert.Equal(t, 30*time.Minute, conf.Rooms.GetTTL())
	assert.Equal(t, 15*time.Second, conf.Rooms.GetSweepInterval())
}

func TestMustLoad_Defaults(t *testing.T) {
	conf := MustLoad(writeConfig(t, "{}"))

	assert.Equal(t, "info", conf.LogLevel)
	assert.Equal(t, StorageMemory, conf.Storage)
	assert.Equal(t, time.Hour, conf.Rooms.GetTTL())
	assert.Equal(t, time.Minute, conf.Rooms.GetSweepInterval())
}

func TestMustLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `
rooms:
  ttl: "one hour"
`)

	assert.Panics(t, func() { MustLoad(path) })
}
