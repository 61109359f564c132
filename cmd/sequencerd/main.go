// Command sequencerd runs a staging sequencer against a synthetic load
// generator, for local smoke-testing of the sequencer package outside of
// a unit test. It has no wire protocol and no subcommands, so it is a
// plain flag-parsed daemon rather than a Cobra/Viper CLI tree — see
// DESIGN.md's "CLI/shell ecosystem" entry for why that stack was left
// out of this module.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/akumuli/sequencer/internal/sequencer"
	"github.com/akumuli/sequencer/internal/sequencer/loadgen"
	"github.com/akumuli/sequencer/internal/telemetry"
)

// fileConfig is the on-disk shape decoded by -config, combining the
// sequencer's own tunables with the process logger's, in the idiom of
// cmd/influxd/run/config.go's top-level Config aggregating subsystem
// configs under named TOML tables.
type fileConfig struct {
	Sequencer sequencer.Config `toml:"sequencer"`
	Logger    telemetry.Config `toml:"logger"`
}

func newFileConfig() fileConfig {
	return fileConfig{
		Sequencer: sequencer.NewConfig(),
		Logger:    telemetry.NewConfig(),
	}
}

func main() {
	configPath := flag.String("config", "", "path to a TOML config file (defaults applied if omitted)")
	duration := flag.String("duration", "10s", "how long to run the synthetic producer before draining and exiting")
	producers := flag.Int("producers", 4, "number of concurrent synthetic producer goroutines")
	seed := flag.Uint64("seed", 1, "seed for the deterministic load generator")
	flag.Parse()

	cfg := newFileConfig()
	if *configPath != "" {
		if _, err := toml.DecodeFile(*configPath, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "sequencerd: decode config: %v\n", err)
			os.Exit(1)
		}
	}

	log := telemetry.New(os.Stdout, cfg.Logger)
	defer log.Sync()

	runFor, err := time.ParseDuration(*duration)
	if err != nil {
		log.Fatal("invalid -duration", zap.Error(err))
	}

	if err := run(cfg, log, runFor, *producers, *seed); err != nil {
		log.Fatal("sequencerd exited with error", zap.Error(err))
	}
}

func run(cfg fileConfig, log *zap.Logger, runFor time.Duration, producerCount int, seed uint64) error {
	metrics := sequencer.NewMetrics(prometheus.Labels{"instance": "sequencerd"})

	seq, err := sequencer.New(cfg.Sequencer, log, metrics)
	if err != nil {
		return fmt.Errorf("construct sequencer: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, runFor)
	defer cancel()

	tokens := make(chan *sequencer.CheckpointToken, producerCount)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < producerCount; i++ {
		i := i
		g.Go(func() error {
			return produce(gctx, seq, loadgen.NewStream(seed+uint64(i), cfg.Sequencer.WindowSize, cfg.Sequencer.WindowSize/2, 64), tokens)
		})
	}

	flushed := 0
	g.Go(func() error {
		for {
			select {
			case token, ok := <-tokens:
				if !ok {
					return nil
				}
				cur := sequencer.NewSliceCursor()
				seq.Merge(token, cur)
				flushed += len(cur.Offsets)
			case <-gctx.Done():
				return nil
			}
		}
	})

	if err := g.Wait(); err != nil {
		return err
	}
	close(tokens)

	cur := sequencer.NewSliceCursor()
	if err := seq.CloseAndDrain(cur); err != nil {
		return fmt.Errorf("drain on close: %w", err)
	}
	flushed += len(cur.Offsets)

	log.Info("sequencerd run complete",
		zap.Int("flushed_samples", flushed),
		zap.Duration("ran_for", runFor),
	)
	return nil
}

// produce drives one synthetic producer goroutine: generate a sample,
// add it, and forward any non-empty checkpoint token to the flusher.
func produce(ctx context.Context, seq *sequencer.Sequencer, stream *loadgen.Stream, tokens chan<- *sequencer.CheckpointToken) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		status, token := seq.Add(stream.Next())
		if token != nil {
			select {
			case tokens <- token:
			case <-ctx.Done():
				cur := sequencer.NewSliceCursor()
				seq.Merge(token, cur)
				return nil
			}
		}
		if status == sequencer.StatusBusy {
			time.Sleep(time.Millisecond)
		}
	}
}
