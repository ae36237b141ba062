package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes dftl with args and returns what it wrote to stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cfgFile = ""
	initForce = false
	formatSize, formatOutput = "", "table"
	openDirty, openBands, openServe = false, false, false
	openAddr, openOutput = "", "table"
	versionShort = false

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := filepath.ToSlash(t.TempDir())
	path := dir + "/config.yaml"

	content := `
logging:
  level: ERROR
  output: stderr
device:
  name: nvme0
  base_path: "` + dir + `/base.img"
  size: 1Mi
  block_size: 4Ki
  band_size: 64Ki
  reclaim_unit_size: 1Mi
  large_device_threshold: 64Mi
metadata:
  backend: mmap
  path: "` + dir + `/md"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

type reportJSON struct {
	Report struct {
		NumBands uint64 `json:"num_bands"`
		NumFree  uint64 `json:"num_free"`
		NumShut  uint64 `json:"num_shut"`
		Level    string `json:"level"`
		Bands    []struct {
			ID     uint64 `json:"id"`
			PhysID uint64 `json:"phys_id"`
			State  string `json:"state"`
		} `json:"bands"`
	} `json:"report"`
	Startup struct {
		Process string `json:"process"`
		Steps   []struct {
			Name string `json:"name"`
		} `json:"steps"`
	} `json:"startup"`
}

func TestFormatAndOpen(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := run(t, "format", "--config", cfg, "-o", "json")
	require.NoError(t, err)

	var formatted reportJSON
	require.NoError(t, json.Unmarshal([]byte(out), &formatted))
	assert.Equal(t, uint64(16), formatted.Report.NumBands)
	assert.Equal(t, uint64(16), formatted.Report.NumFree)
	assert.Equal(t, "startup", formatted.Startup.Process)
	assert.Len(t, formatted.Startup.Steps, 7)
	assert.FileExists(t, strings.TrimSuffix(cfg, "config.yaml")+"base.img")

	out, err = run(t, "open", "--config", cfg, "-o", "json", "--bands")
	require.NoError(t, err)

	var opened reportJSON
	require.NoError(t, json.Unmarshal([]byte(out), &opened))
	assert.Equal(t, uint64(16), opened.Report.NumBands)
	assert.Equal(t, uint64(16), opened.Report.NumShut)
	assert.Equal(t, uint64(0), opened.Report.NumFree)
	assert.Equal(t, "crit", opened.Report.Level)
	require.Len(t, opened.Report.Bands, 16)
	assert.Equal(t, uint64(7), opened.Report.Bands[15].PhysID)
	assert.Equal(t, "FREE", opened.Report.Bands[0].State)

	out, err = run(t, "open", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Usable bands")
	assert.NotContains(t, out, "QUEUE")
}

func TestOpen_Unformatted(t *testing.T) {
	cfg := writeTestConfig(t)

	_, err := run(t, "open", "--config", cfg)
	assert.Error(t, err)
}

func TestFormat_InvalidSize(t *testing.T) {
	cfg := writeTestConfig(t)

	_, err := run(t, "format", "--config", cfg, "--size", "lots")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--size")

	_, err = run(t, "format", "--config", cfg, "--size", "32Ki")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "holds no")
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	out, err := run(t, "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.FileExists(t, path)

	_, err = run(t, "init", "--config", path)
	assert.Error(t, err)

	_, err = run(t, "init", "--config", path, "--force")
	assert.NoError(t, err)
}

func TestConfigCommands(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := run(t, "config", "validate", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Validation: OK")
	assert.Contains(t, out, "Blocks per band: 16")

	out, err = run(t, "config", "show", "--config", cfg, "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"Name": "nvme0"`)

	out, err = run(t, "config", "schema")
	require.NoError(t, err)
	assert.Contains(t, out, `"band_size"`)
	assert.Contains(t, out, `"oneOf"`)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)

	out, err = run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Go version")
}
