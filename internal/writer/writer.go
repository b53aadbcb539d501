// internal/writer/writer.go
package writer

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/coffeye/xpod/internal/poller"
)

// endpointClient is the exact contract the writer uses.
type endpointClient interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}

// fanout delivers each result to every sink. A failing sink never blocks
// the others.
type fanout struct {
	sinks []Sink
	obs   PublishObserver
	log   logrus.FieldLogger
}

// New builds a Writer over sinks. obs may be nil.
func New(log logrus.FieldLogger, obs PublishObserver, sinks ...Sink) Writer {
	return &fanout{sinks: sinks, obs: obs, log: log}
}

func (w *fanout) Write(ctx context.Context, res poller.PollResult) error {
	var errs []error

	for _, s := range w.sinks {
		err := s.Write(ctx, res)
		if w.obs != nil {
			w.obs.ObservePublish(s.Name(), err)
		}
		if err != nil {
			w.log.WithError(err).WithField("sink", s.Name()).Warn("publish failed")
			errs = append(errs, fmt.Errorf("writer: %s: %w", s.Name(), err))
		}
	}

	return errors.Join(errs...)
}

// registerSink writes the reading block into one Modbus endpoint.
type registerSink struct {
	plan RegisterPlan
	cli  endpointClient
}

func newRegisterSink(plan RegisterPlan, cli endpointClient) *registerSink {
	return &registerSink{plan: plan, cli: cli}
}

func (s *registerSink) Name() string { return "modbus" }

// Write skips failed cycles; the status block carries the failure.
func (s *registerSink) Write(_ context.Context, res poller.PollResult) error {
	if res.Err != nil {
		return nil
	}
	if s.cli == nil {
		return fmt.Errorf("missing client for endpoint %s", s.plan.Endpoint)
	}

	regs := EncodeReading(res.Reading)
	if err := s.cli.WriteRegisters(s.plan.UnitID, s.plan.Address, regs); err != nil {
		return fmt.Errorf("ep=%s unit=%d addr=%d: %w",
			s.plan.Endpoint, s.plan.UnitID, s.plan.Address, err)
	}
	return nil
}
