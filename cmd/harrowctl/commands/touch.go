package commands

import (
	"fmt"

	"github.com/pnevyk/harrow/pkg/buffer"
	"github.com/spf13/cobra"
)

var touchLength int64

var touchCmd = &cobra.Command{
	Use:   "touch <file>",
	Short: "Create or truncate a writable buffer of the given length",
	Long: `touch opens <file> as a writable buffer truncated to --length.
An existing file keeps its new length. A file that did not exist is
created with delete-on-close semantics, so it is gone again once the
command exits.`,
	Args: cobra.ExactArgs(1),
	RunE: runTouch,
}

func init() {
	touchCmd.Flags().Int64Var(&touchLength, "length", 0, "length in bytes (required)")
}

func runTouch(cmd *cobra.Command, args []string) error {
	if touchLength == 0 {
		return fmt.Errorf("touch: --length is required and must be nonzero")
	}

	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	f, err := buffer.NewFileMutWithCache(args[0], touchLength, cfg.Capacity, cfg.BlockSize)
	if err != nil {
		return fmt.Errorf("touch: %w", err)
	}
	f.WithLogger(logger)
	defer f.Close()

	cmd.Printf("created %s, length=%d\n", args[0], f.Len())

	return nil
}
