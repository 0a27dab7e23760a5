package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealflow-ingest/config"
	"dealflow-ingest/models"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("STORE_DRIVER", "sqlite")

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngestExportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "db.sqlite")
	csvPath := writeFile(t, dir, "in.csv", "Company,Asking Price,City,State\nAcme,\"$1,000\",Austin,TX\n,,,\n")
	profile := writeFile(t, dir, "profile.yaml", "schema: deals\ncolumns:\n  Asking Price: asking_price\n")

	_, err := run(t, "--sqlite-path", db, "migrate")
	require.NoError(t, err)

	accepted := filepath.Join(dir, "accepted.csv")
	out, err := run(t, "--sqlite-path", db, "ingest", "-s", "deals", "-f", csvPath,
		"--mapping", profile, "--json", "--export", accepted)
	require.NoError(t, err)

	var sum models.UploadSummary
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 1, sum.Successful)
	assert.Equal(t, 1, sum.Failed)

	data, err := os.ReadFile(accepted)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Acme")
	assert.Contains(t, string(data), "Austin, TX")

	out, err = run(t, "--sqlite-path", db, "export", "-s", "deals")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "1000")
	assert.Contains(t, lines[1], "CSV Import")
}

func TestIngestDryRunWithoutStore(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeFile(t, dir, "in.csv", "name,url\nAcme,http://x.com\n")
	raw := filepath.Join(dir, "raw.csv")

	out, err := run(t, "ingest", "-s", "business_listings", "-f", csvPath, "--dry-run", "--insights", "--export-raw", raw)
	require.NoError(t, err)
	assert.Contains(t, out, "dry run")
	assert.Contains(t, out, "BUSINESS_LISTINGS INSIGHTS")

	data, err := os.ReadFile(raw)
	require.NoError(t, err)
	assert.Equal(t, "name,url\nAcme,http://x.com\n", string(data))
}

func TestIngestRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeFile(t, dir, "in.csv", "a,b\n1,2,3\n")

	_, err := run(t, "ingest", "-s", "brands", "-f", csvPath, "--dry-run")
	assert.ErrorContains(t, err, "--schema")

	_, err = run(t, "ingest", "-s", "deals", "-f", csvPath, "--dry-run")
	assert.ErrorContains(t, err, "parse error on line 2")

	_, err = run(t, "ingest", "-s", "deals")
	assert.Error(t, err, "--file is required")
}

func TestMappingsSaveProfile(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeFile(t, dir, "in.csv", "Title,Price,Colour\n")
	profilePath := filepath.Join(dir, "saved.yaml")

	out, err := run(t, "mappings", "-s", "business_listings", "-f", csvPath, "--save", profilePath)
	require.NoError(t, err)
	assert.Contains(t, out, "unmapped: Colour")

	profile, err := config.LoadMappingProfile(profilePath)
	require.NoError(t, err)
	assert.Equal(t, "business_listings", profile.Schema)
	assert.Equal(t, map[string]string{"Title": "name", "Price": "asking_price"}, profile.Columns)
}
