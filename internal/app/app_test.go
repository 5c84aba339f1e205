package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/vk/dcmkit/internal/parser"
)

const validDCM = `* engine calibration extract
KONSERVIERUNG_FORMAT 2.0

FUNKTIONEN
  FKT EngineTemp "1.0" "Engine temperature"
END

FESTWERT idleTemp
  LANGNAME "Idle temperature"
  FUNKTION "EngineTemp"
  EINHEIT_W "°C"
  WERT 25.0
END

KENNLINIE torqueCurve 3
  FUNKTION "EngineTemp"
  ST/X 0.0 1.0 2.0
  WERT 10.0 20.0 30.0
END
`

const brokenDCM = `KONSERVIERUNG_FORMAT 2.0

KENNLINIE shuffled 3
  ST/X 2.0 1.0 0.0
  WERT 10.0 20.0 30.0
END
`

func writeInput(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func newTestApp(t *testing.T, cfg Config) (*App, *bytes.Buffer) {
	t.Helper()
	config, err := NewConfig(cfg)
	require.NoError(t, err)
	var out bytes.Buffer
	return NewApp(&out, config), &out
}

func TestNewConfigRequiresInput(t *testing.T) {
	_, err := NewConfig(Config{})
	require.Error(t, err)

	_, err = NewConfig(Config{InputPath: "a.dcm"})
	assert.NoError(t, err)

	_, err = NewConfig(Config{JobPath: "job.hcl"})
	assert.NoError(t, err)
}

func TestRunValidateOnly(t *testing.T) {
	dir := t.TempDir()
	writeInput(t, dir, "engine.dcm", validDCM)

	a, _ := newTestApp(t, Config{InputPath: dir, LogLevel: "error", LogFormat: "text"})
	require.NoError(t, a.Run(context.Background()))
}

func TestRunRewritesAndSummarizes(t *testing.T) {
	dir := t.TempDir()
	writeInput(t, dir, "engine.dcm", validDCM)
	outDir := filepath.Join(dir, "out")
	summaryPath := filepath.Join(dir, "report.yaml")

	a, _ := newTestApp(t, Config{
		InputPath: dir,
		OutputDir: outDir,
		Summary:   summaryPath,
		LogLevel:  "error",
		LogFormat: "text",
	})
	require.NoError(t, a.Run(context.Background()))

	// The rewritten file keeps its base name and parses again.
	data, err := os.ReadFile(filepath.Join(outDir, "engine.dcm"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "* engine calibration extract\n"))
	doc, err := parser.Parse(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)
	assert.Len(t, doc.Records, 2)
	assert.Len(t, doc.Funcs, 1)

	raw, err := os.ReadFile(summaryPath)
	require.NoError(t, err)
	var summary Summary
	require.NoError(t, yaml.Unmarshal(raw, &summary))
	require.Len(t, summary.Files, 1)
	fs := summary.Files[0]
	assert.Equal(t, 1, fs.Functions)
	assert.Equal(t, map[string]int{"FESTWERT": 1, "KENNLINIE": 1}, fs.Records)
	assert.Empty(t, fs.Errors)
}

func TestRunStrictFailure(t *testing.T) {
	dir := t.TempDir()
	writeInput(t, dir, "bad.dcm", brokenDCM)
	writeInput(t, dir, "good.dcm", validDCM)
	summaryPath := filepath.Join(dir, "report.yaml")

	a, _ := newTestApp(t, Config{
		InputPath: dir,
		Summary:   summaryPath,
		LogLevel:  "error",
		LogFormat: "text",
	})
	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 files failed to parse")

	// The summary still covers every file, including the failure.
	raw, err := os.ReadFile(summaryPath)
	require.NoError(t, err)
	var summary Summary
	require.NoError(t, yaml.Unmarshal(raw, &summary))
	require.Len(t, summary.Files, 2)
	var failures int
	for _, fs := range summary.Files {
		failures += len(fs.Errors)
	}
	assert.Equal(t, 1, failures)
}

func TestRunLenientKeepsGoing(t *testing.T) {
	dir := t.TempDir()
	writeInput(t, dir, "bad.dcm", brokenDCM)
	outDir := filepath.Join(dir, "out")

	a, _ := newTestApp(t, Config{
		InputPath: dir,
		OutputDir: outDir,
		Lenient:   true,
		LogLevel:  "error",
		LogFormat: "text",
	})
	require.NoError(t, a.Run(context.Background()))

	// The broken block was skipped but the file still rewrites.
	data, err := os.ReadFile(filepath.Join(outDir, "bad.dcm"))
	require.NoError(t, err)
	doc, err := parser.Parse(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)
	assert.Empty(t, doc.Records)
}

func TestRunJobFile(t *testing.T) {
	dir := t.TempDir()
	writeInput(t, dir, "engine.dcm", validDCM)
	outDir := filepath.Join(dir, "out")

	jobPath := filepath.Join(dir, "job.hcl")
	job := `
inputs     = ["` + filepath.ToSlash(dir) + `"]
output_dir = "` + filepath.ToSlash(outDir) + `"
`
	require.NoError(t, os.WriteFile(jobPath, []byte(job), 0o644))

	a, _ := newTestApp(t, Config{JobPath: jobPath, LogLevel: "error", LogFormat: "text"})
	require.NoError(t, a.Run(context.Background()))

	_, err := os.Stat(filepath.Join(outDir, "engine.dcm"))
	assert.NoError(t, err)
}

func TestRunNoFilesFound(t *testing.T) {
	a, _ := newTestApp(t, Config{InputPath: t.TempDir(), LogLevel: "error", LogFormat: "text"})
	assert.NoError(t, a.Run(context.Background()))
}

func TestRunMissingInput(t *testing.T) {
	a, _ := newTestApp(t, Config{
		InputPath: filepath.Join(t.TempDir(), "absent"),
		LogLevel:  "error",
		LogFormat: "text",
	})
	assert.Error(t, a.Run(context.Background()))
}
