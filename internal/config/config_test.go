package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"cogscreen-go/internal/archive"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitDefaults(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, Init(root, zap.NewNop()))

	assert.Equal(t, "5050", Conf.Server.Port)
	assert.Equal(t, 30*time.Minute, Conf.Server.IdleTimeout)
	assert.Equal(t, "bolt", Conf.Storage.Backend)
	assert.Equal(t, filepath.Join(root, "data", "results.db"), Conf.Storage.BoltPath)
	assert.Equal(t, filepath.Join(root, "config", "variants.yaml"), Conf.TMT.VariantsFile)
	assert.Equal(t, archive.BackendNone, Conf.Archive.Backend)
	assert.Equal(t, 20*time.Second, Conf.Recording.SegmentLength)
	assert.Equal(t, 60*time.Second, Conf.Recording.Countdown)
	assert.Equal(t, 50*time.Millisecond, Conf.Recording.DrainInterval)
	assert.Len(t, Conf.Recording.Encodings, 3)
}

func TestInitFileAndEnv(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "config"), 0o755))
	yaml := []byte(`
server:
  port: "8088"
storage:
  backend: redis
archive:
  backend: s3
  bucket: speech-segments
recording:
  segment_length: 10s
`)
	require.NoError(t, os.WriteFile(filepath.Join(root, "config", "config.yaml"), yaml, 0o600))
	t.Setenv("COGSCREEN_SERVER_PORT", "9099")

	require.NoError(t, Init(root, zap.NewNop()))
	assert.Equal(t, "9099", Conf.Server.Port, "env wins over file")
	assert.Equal(t, "redis", Conf.Storage.Backend)
	assert.Equal(t, archive.BackendS3, Conf.Archive.Backend)
	assert.Equal(t, "speech-segments", Conf.Archive.Bucket)
	assert.Equal(t, 10*time.Second, Conf.Recording.SegmentLength)
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "cog"}
	assert.Equal(t, "host=db user=u password=p dbname=cog port=5432 sslmode=disable TimeZone=UTC", d.DSN())
}
