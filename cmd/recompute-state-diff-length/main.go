// Command recompute-state-diff-length re-derives every stored block's
// state-diff length and commitment from its persisted state update and
// rewrites the header metadata wherever it disagrees with what was
// originally stored.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/starksyncd/starksyncd/internal/types"
	"github.com/starksyncd/starksyncd/internal/xlog"
	"github.com/starksyncd/starksyncd/storage"
	"github.com/starksyncd/starksyncd/storage/leveldb"
	"github.com/starksyncd/starksyncd/sync/statediff"
)

var log = xlog.Root().Named("recompute-state-diff-length")

func main() {
	app := &cli.App{
		Name:      "recompute-state-diff-length",
		Usage:     "verify and repair stored state-diff length/commitment metadata",
		ArgsUsage: "<datadir>",
		Flags: []cli.Flag{
			&cli.Uint64Flag{Name: "head", Required: true, Usage: "highest block number to check (inclusive)"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one datadir argument")
	}
	store, err := leveldb.Open(c.Args().Get(0))
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	head := types.BlockNumber(c.Uint64("head"))
	return Recompute(context.Background(), store, head)
}

// Recompute walks blocks 0 through head inclusive, recomputing each
// block's state-diff length and commitment from its stored state update
// and rewriting the header metadata whenever it disagrees with what was
// already stored. All rewrites land in a single transaction committed at
// the end; any error aborts with nothing written.
func Recompute(ctx context.Context, store storage.Store, head types.BlockNumber) error {
	tx, err := store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	for n := types.BlockNumber(0); n <= head; n++ {
		update, ok, err := tx.StateUpdate(n)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("fetching state update %d: %w", n, err)
		}
		if !ok {
			tx.Rollback()
			return fmt.Errorf("no state update stored for block %d", n)
		}

		storedCommitment, storedLength, ok, err := tx.StateDiffCommitmentAndLength(n)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("fetching state diff meta %d: %w", n, err)
		}
		if !ok {
			tx.Rollback()
			return fmt.Errorf("no state diff meta stored for block %d", n)
		}

		length := statediff.Length(update)
		commitment := statediff.Commitment(update)

		if length != storedLength || !commitment.Equal(storedCommitment) {
			log.Info("state diff mismatch",
				"block", n,
				"stored_length", storedLength, "actual_length", length,
				"stored_commitment", storedCommitment.String(), "actual_commitment", commitment.String())

			if err := tx.UpdateStateDiffCommitmentAndLength(n, commitment, length); err != nil {
				tx.Rollback()
				return fmt.Errorf("updating state diff meta %d: %w", n, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing state diff length changes: %w", err)
	}
	return nil
}
