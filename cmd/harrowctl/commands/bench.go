package commands

import (
	"fmt"
	"math/rand"

	"github.com/pnevyk/harrow/pkg/buffer"
	"github.com/spf13/cobra"
)

var (
	benchRequests int
	benchReqSize  int64
)

var benchCmd = &cobra.Command{
	Use:   "bench <file>",
	Short: "Issue random view() calls against a file and report cache stats",
	Long: `bench is a light operator-facing exerciser of the eviction
path, not a benchmark framework: it issues a configurable number of
random view() calls and reports the resulting cache hit/miss/eviction
counts.`,
	Args: cobra.ExactArgs(1),
	RunE: runBench,
}

func init() {
	benchCmd.Flags().IntVar(&benchRequests, "requests", 1000, "number of random view() calls to issue")
	benchCmd.Flags().Int64Var(&benchReqSize, "request-size", 4096, "size in bytes of each view() call")
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	f, err := buffer.NewFileRefWithCache(args[0], cfg.Capacity, cfg.BlockSize)
	if err != nil {
		return fmt.Errorf("bench: %w", err)
	}
	f.WithLogger(logger)
	defer f.Close()

	if f.Len() < benchReqSize {
		return fmt.Errorf("bench: file length %d is smaller than --request-size %d", f.Len(), benchReqSize)
	}

	maxOffset := f.Len() - benchReqSize

	for i := 0; i < benchRequests; i++ {
		off := int64(0)
		if maxOffset > 0 {
			off = rand.Int63n(maxOffset + 1)
		}

		view, err := f.View(off, benchReqSize)
		if err != nil {
			return fmt.Errorf("bench: %w", err)
		}

		view.Release()
	}

	stats := f.Stats()
	cmd.Printf("requests=%d available=%d lent=%d hits=%d misses=%d evictions=%d flushes=%d\n",
		benchRequests, stats.Available, stats.Lent, stats.Hits, stats.Misses, stats.Evictions, stats.Flushes)

	return nil
}
