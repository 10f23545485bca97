package cmd

import (
	"bytes"
	"image"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/dhjs0000/QERC/internal/barcode"
	"github.com/dhjs0000/QERC/internal/testutil"
)

// resetFlags restores every flag of c and its children to its default, so
// tests sharing rootCmd do not see each other's flags.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := GetRootCommand()
	resetFlags(root)
	t.Cleanup(func() { resetFlags(root) })

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

// useDecoder swaps the decoder used by every command for the test.
func useDecoder(t *testing.T, dec barcode.Decoder) {
	t.Helper()
	decoderOverride = dec
	t.Cleanup(func() { decoderOverride = nil })
}

func constDecoder(text string) barcode.Decoder {
	return barcode.DecoderFunc(func(image.Image, barcode.Binarizer, barcode.Hints) (*barcode.Symbol, error) {
		return &barcode.Symbol{Format: barcode.FormatQR, Text: text}, nil
	})
}

// writeBlank writes a blank PNG named name into dir and returns its path.
func writeBlank(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, testutil.WritePNG(p, testutil.Blank(120, 90)))
	return p
}
