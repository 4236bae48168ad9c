package commands

import (
	"encoding/hex"
	"fmt"

	"github.com/pnevyk/harrow/pkg/buffer"
	"github.com/spf13/cobra"
)

var (
	dumpOffset int64
	dumpLength int64
)

var dumpCmd = &cobra.Command{
	Use:   "dump <file>",
	Short: "Hex-dump a range of a file through the buffer cache",
	Args:  cobra.ExactArgs(1),
	RunE:  runDump,
}

func init() {
	dumpCmd.Flags().Int64Var(&dumpOffset, "offset", 0, "start offset in bytes")
	dumpCmd.Flags().Int64Var(&dumpLength, "length", 256, "number of bytes to dump")
}

func runDump(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	f, err := buffer.NewFileRefWithCache(args[0], cfg.Capacity, cfg.BlockSize)
	if err != nil {
		return fmt.Errorf("dump: %w", err)
	}
	f.WithLogger(logger)
	defer f.Close()

	length := dumpLength
	if remaining := f.Len() - dumpOffset; length > remaining {
		length = remaining
	}

	if length < 0 {
		length = 0
	}

	buf := make([]byte, length)

	n, err := f.ReadAt(buf, dumpOffset)
	if err != nil {
		return fmt.Errorf("dump: %w", err)
	}

	cmd.Println(hex.Dump(buf[:n]))

	return nil
}
