package commands

import (
	"fmt"
	"os"

	"github.com/pnevyk/harrow/pkg/buffer"
	"github.com/spf13/cobra"
)

var (
	copySrc   int64
	copyDst   int64
	copyCount int64
)

var copyCmd = &cobra.Command{
	Use:   "copy <file>",
	Short: "Shift bytes within a file via copy_within",
	Args:  cobra.ExactArgs(1),
	RunE:  runCopy,
}

func init() {
	copyCmd.Flags().Int64Var(&copySrc, "src", 0, "source offset")
	copyCmd.Flags().Int64Var(&copyDst, "dst", 0, "destination offset")
	copyCmd.Flags().Int64Var(&copyCount, "count", 0, "number of bytes to copy")
}

func runCopy(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// FileMut::new truncates to the given length, so the existing
	// length must be preserved explicitly rather than passing an
	// arbitrary one.
	info, err := os.Stat(args[0])
	if err != nil {
		return fmt.Errorf("copy: %w", err)
	}

	f, err := buffer.NewFileMutWithCache(args[0], info.Size(), cfg.Capacity, cfg.BlockSize)
	if err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	f.WithLogger(logger)
	defer f.Close()

	if err := f.CopyWithin(copySrc, copyDst, copyCount); err != nil {
		return fmt.Errorf("copy: %w", err)
	}

	cmd.Printf("copied %d bytes from %d to %d\n", copyCount, copySrc, copyDst)

	return nil
}
