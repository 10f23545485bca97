package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dhjs0000/QERC/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printVersion(cmd.OutOrStdout())
	},
}

func printVersion(w io.Writer) error {
	v, commit, date := version.Info()
	_, err := fmt.Fprintf(w, "qerc version %s\nCommit: %s\nDate: %s\n", v, commit, date)
	return err
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
