// cmd/opclogger/run.go
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/coffeye/xpod/internal/monitor"
	"github.com/coffeye/xpod/internal/opc"
	"github.com/coffeye/xpod/internal/poller"
	"github.com/coffeye/xpod/internal/status"
	"github.com/coffeye/xpod/internal/writer"
)

type runFlags struct {
	keepPowered bool
}

func newRunCmd(root *rootFlags) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Power the OPC on and log readings until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogger(cmd.Context(), root, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.keepPowered, "keep-powered", false, "Leave fan and laser on when exiting")
	return cmd
}

func runLogger(parent context.Context, root *rootFlags, flags *runFlags) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log, logCloser, err := setup(root)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	dlog := log.WithField("device", cfg.Device.ID)

	// --------------------
	// Metrics (optional)
	// --------------------

	var (
		obs    opc.Observer
		pubObs writer.PublishObserver
	)
	if cfg.Metrics.Enabled {
		m := monitor.New(cfg.Device.ID)
		obs, pubObs = m, m
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Listen, log); err != nil {
				log.WithError(err).Error("metrics server stopped")
			}
		}()
	}

	// --------------------
	// Device + poller
	// --------------------

	p, dev, closeBus, err := poller.Build(cfg, log, obs)
	if err != nil {
		return err
	}
	defer closeBus()

	// --------------------
	// Sinks
	// --------------------

	pipe, err := writer.Build(ctx, cfg, log, pubObs)
	if err != nil {
		return err
	}
	defer pipe.Close()

	dlog.Info("powering on")
	if err := dev.Begin(); err != nil {
		// Not fatal: the next read re-runs the handshake.
		dlog.WithError(err).Warn("power on failed")
	}

	interval := time.Duration(cfg.Poll.IntervalMs) * time.Millisecond
	tr := status.NewTracker(3 * interval)
	runPipeline(ctx, p, pipe, tr, dlog)

	if !flags.keepPowered {
		shutdown(dev, pipe, tr, dlog)
	}
	return nil
}

// runPipeline polls and delivers until ctx is cancelled. It returns only
// after the poller goroutine has exited, so no read is left in flight.
func runPipeline(ctx context.Context, p *poller.Poller, pipe *writer.Pipeline, tr *status.Tracker, log logrus.FieldLogger) {
	out := make(chan poller.PollResult)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.Run(ctx, out)
	}()

	orchestrate(ctx, out, pipe, tr, log)
	wg.Wait()
}

type powerOffer interface {
	Off() error
}

// shutdown powers the OPC off and publishes the Disabled state with the
// session's counters.
func shutdown(dev powerOffer, pipe *writer.Pipeline, tr *status.Tracker, log logrus.FieldLogger) {
	log.Info("powering off")
	if err := dev.Off(); err != nil {
		log.WithError(err).Warn("power off failed")
		return
	}
	if pipe.Status != nil && tr.Disable() {
		if err := pipe.Status.WriteStatus(tr.Snapshot()); err != nil {
			log.WithError(err).Warn("status write failed on exit")
		}
	}
}

// orchestrate owns the status tracker: it delivers every poll result, keeps
// the status block current and ticks seconds-in-error at 1 Hz.
func orchestrate(ctx context.Context, in <-chan poller.PollResult, pipe *writer.Pipeline, tr *status.Tracker, log logrus.FieldLogger) {
	writeStatus := func(reason string) {
		if pipe.Status == nil {
			return
		}
		if err := pipe.Status.WriteStatus(tr.Snapshot()); err != nil {
			log.WithError(err).WithField("on", reason).Warn("status write failed")
		}
	}

	secTicker := time.NewTicker(time.Second)
	defer secTicker.Stop()

	// Full block write on start (identity re-assert).
	writeStatus("start")

	for {
		select {
		case <-ctx.Done():
			return

		case res := <-in:
			logResult(log, res)

			if err := pipe.Data.Write(ctx, res); err != nil {
				log.WithError(err).Warn("delivery incomplete")
			}
			if tr.Apply(res) {
				writeStatus("poll")
			}

		case now := <-secTicker.C:
			if tr.Tick(now) {
				writeStatus("tick")
			}
		}
	}
}

func logResult(log logrus.FieldLogger, res poller.PollResult) {
	if res.Err != nil {
		log.WithError(res.Err).WithFields(logrus.Fields{
			"code":     res.ErrorCode,
			"duration": res.Duration,
		}).Error("read failed")
		return
	}

	r := res.Reading
	log.WithFields(logrus.Fields{
		"pm1":      r.PM1,
		"pm2_5":    r.PM25,
		"pm10":     r.PM10,
		"flow":     r.FlowRate,
		"period":   r.SamplePeriod,
		"degraded": r.Degraded,
		"duration": res.Duration,
	}).Info("reading")
}
