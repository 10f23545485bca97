package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhjs0000/QERC/internal/config"
	"github.com/dhjs0000/QERC/internal/export"
)

func TestBatch_DirectoryCSV(t *testing.T) {
	useDecoder(t, constDecoder("BATCH"))
	dir := t.TempDir()
	a := writeBlank(t, dir, "a.png")
	b := writeBlank(t, dir, "b.png")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	out, stderr, err := execute(t, "batch", dir, "--format", "csv", "--workers", "1", "--stats")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3, out)
	assert.True(t, strings.HasPrefix(lines[1], a+",QR_CODE,BATCH,"))
	assert.True(t, strings.HasPrefix(lines[2], b+",QR_CODE,BATCH,"))

	assert.Contains(t, stderr, "Processing Statistics:")
	assert.Contains(t, stderr, "Total images: 2")
}

func TestBatch_IncludeAndRecursive(t *testing.T) {
	useDecoder(t, constDecoder("R"))
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o750))
	writeBlank(t, dir, "top.png")
	writeBlank(t, dir, "skip.png")
	nested := writeBlank(t, sub, "nested.png")

	out, _, err := execute(t, "batch", dir, "-r", "--exclude", "skip*", "--format", "text", "--workers", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "top.png")
	assert.Contains(t, out, nested)
	assert.NotContains(t, out, "skip.png")
}

func TestBatch_NoImages(t *testing.T) {
	useDecoder(t, constDecoder("x"))
	_, _, err := execute(t, "batch", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no image files found")
}

func TestConfigToBatchConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Output.Format = "yaml"
	cfg.Batch.Include = []string{"*.jpg"}
	cfg.Batch.OutputDir = "batch-out"

	resetFlags(batchCmd)
	t.Cleanup(func() { resetFlags(batchCmd) })
	require.NoError(t, batchCmd.Flags().Set("exclude", "a*, b*"))
	require.NoError(t, batchCmd.Flags().Set("continue-on-error", "false"))

	bc, err := configToBatchConfig(&cfg, batchCmd)
	require.NoError(t, err)
	assert.Equal(t, export.FormatYAML, bc.Format)
	assert.Equal(t, []string{"*.jpg"}, bc.IncludePatterns)
	assert.Equal(t, []string{"a*", "b*"}, bc.ExcludePatterns)
	assert.False(t, bc.ContinueOnError)
	assert.Equal(t, "batch-out", bc.OverlayDir)
	assert.Len(t, bc.Search.Variants, 4)
}
