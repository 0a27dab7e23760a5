package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReadsEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("UPSERT_BATCH_SIZE", "25")
	t.Setenv("IGNORE_DUPLICATES", "true")
	t.Setenv("ASSIST_TIMEOUT", "3s")
	t.Setenv("ASSIST_MIN_CONFIDENCE", "not-a-number")

	cfg := Load()
	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, 25, cfg.UpsertBatchSize)
	assert.True(t, cfg.IgnoreDuplicates)
	assert.Equal(t, 3*time.Second, cfg.AssistTimeout)
	assert.Equal(t, 0, cfg.AssistMinConfidence, "invalid ints fall back to the default")
}

func TestDSN(t *testing.T) {
	cfg := &Config{
		PostgresHost: "db", PostgresPort: "5433", PostgresUser: "u",
		PostgresPassword: "p", PostgresDB: "d", PostgresSSLMode: "require",
	}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=d sslmode=require", cfg.DSN())
}

func TestAssistEnabled(t *testing.T) {
	assert.False(t, (&Config{}).AssistEnabled())
	assert.True(t, (&Config{GeminiAPIKey: "k"}).AssistEnabled())
}

func TestMappingProfileRoundTripThroughFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	in := &MappingProfile{Schema: "deals", Columns: map[string]string{"Asking $": "asking_price"}}
	require.NoError(t, in.Save(path))

	out, err := LoadMappingProfile(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestParseMappingProfileRejectsEmpty(t *testing.T) {
	_, err := ParseMappingProfile([]byte("schema: deals\n"))
	assert.Error(t, err)

	_, err = ParseMappingProfile([]byte("columns: [oops"))
	assert.Error(t, err)
}
