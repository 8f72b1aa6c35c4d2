// Package config loads the process-boundary contract: the environment
// variables and CLI flags that configure a run, parsed with urfave/cli.
package config

import (
	"os"
	"runtime"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/urfave/cli/v2"
)

// Config is the fully resolved process configuration.
type Config struct {
	BlobscanAPIEndpoint    string
	BeaconNodeEndpoint     string
	ExecutionNodeEndpoint  string
	SecretKey              string
	NetworkName            string
	DencunForkSlotOverride *uint32
	SentryDSN              string

	FromSlot                  *uint32
	ToSlot                    *uint32
	NumThreads                int
	SlotsPerSave              uint32
	DisableSyncCheckpointSave bool
	DisableSyncHistorical     bool
}

// Flag names.
const (
	FlagFromSlot                  = "from-slot"
	FlagToSlot                    = "to-slot"
	FlagNumThreads                = "num-threads"
	FlagSlotsPerSave              = "slots-per-save"
	FlagDisableSyncCheckpointSave = "disable-sync-checkpoint-save"
	FlagDisableSyncHistorical     = "disable-sync-historical"
)

// Flags returns the urfave/cli flag set for the process's entry point.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.Uint64Flag{Name: FlagFromSlot, Usage: "slot the live task starts syncing from (used when above the SyncState upper checkpoint + 1)"},
		&cli.Uint64Flag{Name: FlagToSlot, Usage: "slot to stop syncing at (parsed into Config.ToSlot; no task reads it)"},
		&cli.StringFlag{Name: FlagNumThreads, Value: "auto", Usage: "worker shard count, or \"auto\" for runtime.NumCPU()"},
		&cli.Uint64Flag{Name: FlagSlotsPerSave, Value: 1000, Usage: "checkpoint chunk size (slots_per_checkpoint)"},
		&cli.BoolFlag{Name: FlagDisableSyncCheckpointSave, Usage: "run the range runner per chunk but skip the checkpoint write"},
		&cli.BoolFlag{Name: FlagDisableSyncHistorical, Usage: "do not spawn the Historical Task"},
	}
}

// FromCLI resolves a Config from a urfave/cli context plus the process
// environment.
func FromCLI(c *cli.Context) (Config, error) {
	cfg := Config{
		BlobscanAPIEndpoint:   os.Getenv("BLOBSCAN_API_ENDPOINT"),
		BeaconNodeEndpoint:    os.Getenv("BEACON_NODE_ENDPOINT"),
		ExecutionNodeEndpoint: os.Getenv("EXECUTION_NODE_ENDPOINT"),
		SecretKey:             os.Getenv("SECRET_KEY"),
		NetworkName:           os.Getenv("NETWORK_NAME"),
		SentryDSN:             os.Getenv("SENTRY_DSN"),

		SlotsPerSave:              uint32(c.Uint64(FlagSlotsPerSave)),
		DisableSyncCheckpointSave: c.Bool(FlagDisableSyncCheckpointSave),
		DisableSyncHistorical:     c.Bool(FlagDisableSyncHistorical),
	}

	if cfg.BlobscanAPIEndpoint == "" {
		return Config{}, errors.New("config: BLOBSCAN_API_ENDPOINT is required")
	}
	if cfg.BeaconNodeEndpoint == "" {
		return Config{}, errors.New("config: BEACON_NODE_ENDPOINT is required")
	}
	if cfg.ExecutionNodeEndpoint == "" {
		return Config{}, errors.New("config: EXECUTION_NODE_ENDPOINT is required")
	}
	if cfg.SecretKey == "" {
		return Config{}, errors.New("config: SECRET_KEY is required")
	}
	if cfg.NetworkName == "" {
		return Config{}, errors.New("config: NETWORK_NAME is required")
	}

	if raw := os.Getenv("DENCUN_FORK_SLOT"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return Config{}, errors.Wrapf(err, "config: invalid DENCUN_FORK_SLOT %q", raw)
		}
		v32 := uint32(v)
		cfg.DencunForkSlotOverride = &v32
	}

	if c.IsSet(FlagFromSlot) {
		v := uint32(c.Uint64(FlagFromSlot))
		cfg.FromSlot = &v
	}
	if c.IsSet(FlagToSlot) {
		v := uint32(c.Uint64(FlagToSlot))
		cfg.ToSlot = &v
	}

	numThreads, err := resolveNumThreads(c.String(FlagNumThreads))
	if err != nil {
		return Config{}, err
	}
	cfg.NumThreads = numThreads

	return cfg, nil
}

// resolveNumThreads implements --num-threads "auto" -> runtime.NumCPU().
func resolveNumThreads(raw string) (int, error) {
	if raw == "auto" {
		return runtime.NumCPU(), nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "config: invalid --%s %q", FlagNumThreads, raw)
	}
	if n < 1 {
		return 0, errors.Newf("config: --%s must be >= 1, got %d", FlagNumThreads, n)
	}
	return n, nil
}
