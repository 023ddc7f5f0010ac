package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/birdayz/kpipe"
	"github.com/birdayz/kpipe/kblock"
	"github.com/birdayz/kpipe/kmetrics"
	"github.com/birdayz/kpipe/kpipeline"
	"github.com/birdayz/kpipe/kport"
	"github.com/birdayz/kpipe/kprocessor"
	"github.com/birdayz/kpipe/kserde"
	"github.com/birdayz/kpipe/kstore/pebble"
	klog "github.com/birdayz/kpipe/pkg/log"
)

func newRunCommand() *cobra.Command {
	cfg, loadErr := loadConfig()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a synthetic scan-square-sum pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			if loadErr != nil {
				return loadErr
			}
			if err := cfg.validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (console|json), empty picks by environment")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	f.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve prometheus metrics on this address")
	f.IntVar(&cfg.Threads, "threads", cfg.Threads, "worker threads, 0 uses all CPUs")
	f.IntVar(&cfg.MaxAsync, "max-async", cfg.MaxAsync, "concurrent async steps, 0 is unbounded")
	f.IntVar(&cfg.Lanes, "lanes", cfg.Lanes, "parallel source lanes")
	f.IntVar(&cfg.Blocks, "blocks", cfg.Blocks, "blocks per lane")
	f.IntVar(&cfg.Rows, "rows", cfg.Rows, "rows per block")
	f.IntVar(&cfg.Limit, "limit", cfg.Limit, "stop after this many rows, 0 reads everything")
	f.StringVar(&cfg.StoreDir, "store-dir", cfg.StoreDir, "materialize results into a pebble store in this directory")

	return cmd
}

func run(ctx context.Context, cfg Config) error {
	level, err := klog.Parse(cfg.LogLevel)
	if err != nil {
		return err
	}
	log := klog.New(os.Stderr, klog.Format(cfg.LogFormat), level)

	reg := prometheus.NewRegistry()
	metrics := kmetrics.New(reg)
	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Metrics server failed", "error", err)
			}
		}()
		defer srv.Close()
	}

	p, sum, err := buildPipeline(cfg, log)
	if err != nil {
		return err
	}

	exec, err := kpipe.New(p,
		kpipe.WithLog(log),
		kpipe.WithMaxThreads(cfg.Threads),
		kpipe.WithMaxAsyncTasks(cfg.MaxAsync),
		kpipe.WithMetrics(metrics),
	)
	if err != nil {
		return err
	}

	if err := exec.Run(ctx); err != nil {
		return err
	}

	stats := exec.Stats()
	fmt.Printf("rows=%d sum=%d sync_steps=%d async_steps=%d duration=%s\n",
		sum.rows.Load(), sum.total.Load(), stats.SyncSteps, stats.AsyncSteps, stats.Duration)
	return nil
}

type summary struct {
	rows  atomic.Int64
	total atomic.Int64
}

// buildPipeline assembles lanes x (generate -> square) -> resize(1) ->
// [limit] -> sum, optionally materializing every block into pebble.
func buildPipeline(cfg Config, log *slog.Logger) (*kpipeline.Pipeline, *summary, error) {
	p := kpipeline.New()
	sum := &summary{}

	lane := 0
	err := p.AddSource(cfg.Lanes, func(out *kport.OutputPort) (kprocessor.Processor, error) {
		lane++
		return kprocessor.NewSyncSourcer(out, newGenerator(lane, cfg.Blocks, cfg.Rows)), nil
	})
	if err != nil {
		return nil, nil, err
	}

	err = p.AddTransform(func(in *kport.InputPort, out *kport.OutputPort) (kprocessor.Processor, error) {
		return kprocessor.NewTransformer(in, out, kprocessor.NewTransformFunc("square", square)), nil
	})
	if err != nil {
		return nil, nil, err
	}

	if err := p.Resize(1); err != nil {
		return nil, nil, err
	}

	if cfg.Limit > 0 {
		err = p.AddTransform(func(in *kport.InputPort, out *kport.OutputPort) (kprocessor.Processor, error) {
			return kprocessor.NewLimit(in, out, cfg.Limit), nil
		})
		if err != nil {
			return nil, nil, err
		}
	}

	var store *pebble.Store
	if cfg.StoreDir != "" {
		store, err = pebble.Open(cfg.StoreDir)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Materializing results", "dir", cfg.StoreDir)
	}

	err = p.AddSink(func(in *kport.InputPort) (kprocessor.Processor, error) {
		var materialize *pebble.MaterializeSink
		if store != nil {
			materialize = pebble.NewMaterializeSink(store, kserde.BlockCodec(kserde.Int64Column), []byte("result/"))
		}
		return kprocessor.NewSinker(in, kprocessor.NewSinkFunc("sum",
			func(b *kblock.DataBlock) error {
				// Limit caps NumRows without slicing plain columns.
				col := b.Payload().([]int64)[:b.NumRows()]
				for _, v := range col {
					sum.total.Add(v)
				}
				sum.rows.Add(int64(len(col)))
				if materialize != nil {
					return materialize.Consume(kblock.New(col, len(col)))
				}
				return nil
			},
			kprocessor.WithOnFinish(func() error {
				if materialize != nil {
					return materialize.OnFinish()
				}
				return nil
			}),
			kprocessor.WithClose(func() error {
				if store == nil {
					return nil
				}
				if err := materialize.Close(); err != nil {
					return err
				}
				return store.Close()
			}),
		)), nil
	})
	if err != nil {
		return nil, nil, err
	}
	return p, sum, nil
}

func square(b *kblock.DataBlock) (*kblock.DataBlock, error) {
	in, ok := b.Payload().([]int64)
	if !ok {
		return nil, fmt.Errorf("%w: %T", kserde.ErrPayloadType, b.Payload())
	}
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = v * v
	}
	return kblock.New(out, b.NumRows()), nil
}
