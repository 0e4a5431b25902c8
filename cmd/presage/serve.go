package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/presage-dev/presage/internal/config"
	"github.com/presage-dev/presage/pkg/forecast"
	"github.com/presage-dev/presage/pkg/server"
	"github.com/presage-dev/presage/pkg/state"
	"github.com/presage-dev/presage/pkg/vtree"
)

func serveCmd() *cobra.Command {
	var configPath string
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the forecasting server",
		Long: `Start the HTTP/WebSocket server: clients connect to /ws, request
forecasts, and receive authoritative patches and corrections. Metrics
are exposed on /metrics. Configuration comes from presage.json; a
missing file means defaults.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to presage.json")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")

	return cmd
}

func runServe(parent context.Context, cfg *config.Config) error {
	logger := cfg.Logger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	policy, err := forecast.ParseEvictionPolicy(cfg.Store.EvictionPolicy)
	if err != nil {
		return err
	}
	store := forecast.NewStore(forecast.Config{
		MaxBytes:          cfg.Store.MaxBytes,
		MinConfidence:     cfg.Store.MinConfidence,
		DeterministicSeed: cfg.Store.DeterministicSeed,
		ProbabilisticSeed: cfg.Store.ProbabilisticSeed,
		Policy:            policy,
		Shards:            cfg.Store.Shards,
		Logger:            logger,
		Metrics:           forecast.NewMetrics(registry),
	})

	var snapshots forecast.SnapshotStore
	if cfg.Snapshot.Bucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return fmt.Errorf("load aws config: %w", err)
		}
		snapshots = forecast.NewS3SnapshotStore(
			s3.NewFromConfig(awsCfg), cfg.Snapshot.Bucket, cfg.Snapshot.Key)

		if err := store.LoadSnapshot(ctx, snapshots); err != nil {
			logger.Warn("pattern snapshot load failed, starting cold", "error", err)
		} else {
			logger.Info("pattern snapshot restored",
				"entries", store.Len(), "bytes", store.TotalBytes())
		}
	}

	clientDefaults, err := json.Marshal(cfg.Intent)
	if err != nil {
		return err
	}

	svc := server.NewService(server.Config{
		Addr:               cfg.Server.Addr,
		MaxDiffConcurrency: cfg.Server.MaxDiffConcurrency,
		PatchHistory:       cfg.Server.PatchHistory,
		InitialTree:        vtree.Element(vtree.ChildPosition(0), "root", map[string]string{}),
		ClientDefaults:     clientDefaults,
		Logger:             logger,
		Registry:           registry,
	}, store, stateRenderer{})

	if snapshots != nil {
		go snapshotLoop(ctx, logger, store, snapshots, cfg.SnapshotInterval())
	}

	err = svc.Run(ctx)

	if snapshots != nil {
		saveCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if saveErr := store.SaveSnapshot(saveCtx, snapshots); saveErr != nil {
			logger.Error("final pattern snapshot failed", "error", saveErr)
		}
	}
	return err
}

// snapshotLoop persists learned patterns on a fixed cadence.
func snapshotLoop(ctx context.Context, logger *slog.Logger, store *forecast.Store, ss forecast.SnapshotStore, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.SaveSnapshot(ctx, ss); err != nil {
				logger.Error("pattern snapshot failed", "error", err)
				continue
			}
			logger.Debug("pattern snapshot saved",
				"entries", store.Len(), "bytes", store.TotalBytes())
		}
	}
}

// stateRenderer is the standalone-mode renderer: each component becomes
// a child element of the root, its state keys mirrored as attributes.
// Applications embedding presage supply their own Renderer instead.
type stateRenderer struct{}

func (stateRenderer) Render(current *vtree.Node, component string, changes []state.Change) (*vtree.Node, error) {
	next := current.Clone()

	var target *vtree.Node
	for _, c := range next.Children {
		if c.Kind == vtree.KindElement && c.Attrs["data-component"] == component {
			target = c
			break
		}
	}
	if target == nil {
		target = vtree.Element(
			vtree.ChildPosition(len(next.Children)),
			"div",
			map[string]string{"data-component": component},
		)
		next.Children = append(next.Children, target)
	}

	for _, ch := range changes {
		target.Attrs["data-"+ch.Key] = fmt.Sprint(ch.NewValue)
	}
	return next, nil
}
