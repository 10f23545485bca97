package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dhjs0000/QERC/internal/batch"
	"github.com/dhjs0000/QERC/internal/config"
)

// batchCmd represents the batch command for directories of images.
var batchCmd = &cobra.Command{
	Use:   "batch <dir|file>...",
	Short: "Search every image in files and directories",
	Long: `Search many images for barcodes and QR codes as one batch.

Directories are expanded to the supported image files they contain (add
--recursive to descend into subdirectories). Include and exclude patterns
are matched against file names. Results for all images are written as one
document.

Examples:
  qerc batch photos/
  qerc batch photos/ --recursive --include '*.png' --format csv
  qerc batch a.jpg b.png --stats --output results.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatchCommand,
}

// configToBatchConfig maps the loaded configuration to batch.Config. Flags
// the user set override config file values.
func configToBatchConfig(cfg *config.Config, cmd *cobra.Command) (*batch.Config, error) {
	format, err := outputFormat(cfg)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()

	bc := batch.DefaultConfig()
	bc.Search = cfg.ToPipelineConfig()
	bc.Decoder = decoderOverride
	bc.Format = format
	bc.OutputFile = cfg.Output.File
	bc.OverlayDir = cfg.Output.OverlayDir
	bc.OverlayStyle = overlayStyle(cfg)
	bc.ProgressInterval = cfg.ProgressInterval()
	bc.Out = cmd.ErrOrStderr()

	bc.Recursive = cfg.Batch.Recursive
	if flags.Changed("recursive") {
		bc.Recursive, _ = flags.GetBool("recursive")
	}
	bc.IncludePatterns = cfg.Batch.Include
	if flags.Changed("include") {
		s, _ := flags.GetString("include")
		bc.IncludePatterns = splitList(s)
	}
	bc.ExcludePatterns = cfg.Batch.Exclude
	if flags.Changed("exclude") {
		s, _ := flags.GetString("exclude")
		bc.ExcludePatterns = splitList(s)
	}
	bc.ContinueOnError = cfg.Batch.ContinueOnError
	if flags.Changed("continue-on-error") {
		bc.ContinueOnError, _ = flags.GetBool("continue-on-error")
	}
	// the batch output directory catches overlays unless one was given
	if bc.OverlayDir == "" && cfg.Batch.OutputDir != "" {
		bc.OverlayDir = cfg.Batch.OutputDir
	}

	bc.ShowProgress, _ = flags.GetBool("progress")
	bc.ShowStats, _ = flags.GetBool("stats")
	bc.Quiet, _ = flags.GetBool("quiet")
	return bc, nil
}

func runBatchCommand(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}
	bc, err := configToBatchConfig(cfg, cmd)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	result, err := batch.ProcessBatch(ctx, args, bc)
	if result == nil {
		return fmt.Errorf("batch failed: %w", err)
	}

	if saveErr := result.SaveResults(cmd.OutOrStdout(), bc.Format, bc.OutputFile, bc.Quiet); saveErr != nil {
		return saveErr
	}
	if bc.ShowStats {
		result.PrintStats(cmd.ErrOrStderr(), bc.Quiet)
	}
	return err
}

func init() {
	rootCmd.AddCommand(batchCmd)
	addSearchFlags(batchCmd)

	batchCmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	batchCmd.Flags().String("include", "", "comma-separated file name patterns to include (e.g. '*.png,*.jpg')")
	batchCmd.Flags().String("exclude", "", "comma-separated file name patterns to exclude")
	batchCmd.Flags().Bool("continue-on-error", true, "keep going when an image cannot be processed")
	batchCmd.Flags().Bool("stats", false, "print processing statistics on stderr")
	batchCmd.Flags().BoolP("quiet", "q", false, "suppress status output")
}
