// Command blobindexer runs the blob indexer: the dual-direction
// synchronizer, reorg-aware live follower, and parallel slot-processing
// pipeline.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/getsentry/sentry-go"
	"github.com/urfave/cli/v2"

	"github.com/blobscan/blob-indexer/beacon"
	"github.com/blobscan/blob-indexer/config"
	"github.com/blobscan/blob-indexer/execution"
	"github.com/blobscan/blob-indexer/historical"
	"github.com/blobscan/blob-indexer/indexerclient"
	"github.com/blobscan/blob-indexer/live"
	"github.com/blobscan/blob-indexer/log"
	"github.com/blobscan/blob-indexer/network"
	"github.com/blobscan/blob-indexer/rangerunner"
	"github.com/blobscan/blob-indexer/retry"
	"github.com/blobscan/blob-indexer/slotprocessor"
	"github.com/blobscan/blob-indexer/supervisor"
	"github.com/blobscan/blob-indexer/synchronizer"
	"github.com/blobscan/blob-indexer/token"
	"github.com/blobscan/blob-indexer/types"
)

func main() {
	app := &cli.App{
		Name:  "blobindexer",
		Usage: "index EIP-4844 blob transactions from a beacon chain into the downstream indexer API",
		Flags: config.Flags(),
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.FromCLI(c)
	if err != nil {
		return err
	}

	forkSlot, err := network.ForkSlot(cfg.NetworkName, cfg.DencunForkSlotOverride)
	if err != nil {
		return err
	}

	var reporter supervisor.CrashReporter
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			log.Warn("sentry init failed, continuing without crash reporting", "error", err)
		} else {
			reporter = sentryReporter{}
			defer sentry.Flush(2 * 1e9)
		}
	}

	printBanner(cfg, forkSlot)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tokenManager := token.NewManager([]byte(cfg.SecretKey))
	beaconClient := beacon.New(cfg.BeaconNodeEndpoint)
	executionClient := execution.New(cfg.ExecutionNodeEndpoint)
	indexerClient := indexerclient.New(cfg.BlobscanAPIEndpoint, tokenManager)

	processor := slotprocessor.New(beaconClient, executionClient, indexerClient, retry.DefaultPolicy())
	runner := rangerunner.New(processor, cfg.NumThreads)

	syncOpts := []synchronizer.Option{synchronizer.WithChunkSize(cfg.SlotsPerSave)}
	if cfg.DisableSyncCheckpointSave {
		syncOpts = append(syncOpts, synchronizer.WithCheckpointSaveDisabled())
	}

	upwardSync := synchronizer.New(beaconClient, runner, indexerClient, synchronizer.Up, syncOpts...)
	downwardSync := synchronizer.New(beaconClient, runner, indexerClient, synchronizer.Down, syncOpts...)

	state, err := indexerClient.GetSyncState(ctx)
	if err != nil {
		return err
	}

	historicalLower, liveStart := supervisor.DeriveInitialSlots(state, types.Slot(forkSlot))
	if cfg.FromSlot != nil {
		liveStart = types.Slot(*cfg.FromSlot)
	}

	var historicalFn func(ctx context.Context) error
	if !cfg.DisableSyncHistorical {
		historicalTask := historical.New(downwardSync, types.Slot(forkSlot))
		historicalFn = func(ctx context.Context) error {
			return historicalTask.Run(ctx, historicalLower)
		}
	}

	var lastUpperSynced *types.Slot
	if state.LastUpperSyncedSlot != nil {
		s := types.Slot(*state.LastUpperSyncedSlot)
		lastUpperSynced = &s
	}

	liveTask := live.New(beaconClient, beaconClient, beaconClient, indexerClient, runner, upwardSync, liveStart, lastUpperSynced)
	liveFn := liveTask.Run

	sup := supervisor.New(reporter)
	return sup.Run(ctx, historicalFn, liveFn)
}

func printBanner(cfg config.Config, forkSlot uint32) {
	fmt.Fprintf(os.Stderr, "blobindexer starting: network=%s fork_slot=%d threads=%d slots_per_save=%d\n",
		cfg.NetworkName, forkSlot, cfg.NumThreads, cfg.SlotsPerSave)
}

type sentryReporter struct{}

func (sentryReporter) CaptureError(err error) {
	sentry.CaptureException(err)
}
