// Package cli holds operational helpers invoked from the matbaa binary.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/matbaa-erp/matbaa-erp/internal/reset"
)

// ErrResetNotConfirmed indicates the operator did not pass --confirm.
var ErrResetNotConfirmed = errors.New("reset: pass --confirm to wipe and reseed the database")

// ResetCLI drives the staged system reset from the command line.
type ResetCLI struct {
	runner  *reset.Runner
	tracker reset.Tracker
	logger  *slog.Logger
}

// NewResetCLI constructs the helper with live database and Redis handles.
func NewResetCLI(pool *pgxpool.Pool, redisClient *redis.Client, logger *slog.Logger) *ResetCLI {
	tracker := reset.NewRedisTracker(redisClient)
	return &ResetCLI{
		runner:  reset.NewRunner(pool, tracker, logger),
		tracker: tracker,
		logger:  logger,
	}
}

// Run executes the reset after parsing flags. The progress record stays
// in Redis for 24 hours so operators can audit what happened.
func (c *ResetCLI) Run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	confirm := fs.Bool("confirm", false, "actually wipe and reseed the database")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*confirm {
		return ErrResetNotConfirmed
	}

	c.logger.Warn("system reset starting, all transactional data will be wiped")
	operationID, err := c.runner.Run(ctx)
	if operationID != "" {
		fmt.Printf("reset operation: %s\n", operationID)
		if progress, ok := c.tracker.Load(ctx, operationID); ok {
			for _, line := range progress.Log {
				fmt.Printf("  %s\n", line)
			}
			fmt.Printf("status: %s (%d%%)\n", progress.Status, progress.Percentage)
		}
	}
	return err
}
