// internal/writer/builder.go
package writer

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	cfg "github.com/coffeye/xpod/internal/config"
	"github.com/coffeye/xpod/internal/storage"
	wmodbus "github.com/coffeye/xpod/internal/writer/modbus"
)

// Pipeline is everything the orchestrator delivers into.
type Pipeline struct {
	Data   Writer
	Status StatusWriter // nil when the status block is disabled
	Close  func() error
}

// BuildPlan converts the publish config into a register Plan.
// Assumes config has already passed Validate and Normalize.
func BuildPlan(c *cfg.Config) (Plan, error) {
	if c.Device.ID == "" {
		return Plan{}, errors.New("writer: device.id required")
	}

	plan := Plan{DeviceID: c.Device.ID}

	m := c.Publish.Modbus
	if m == nil {
		return plan, nil
	}

	plan.Registers = &RegisterPlan{
		Endpoint: m.Endpoint,
		UnitID:   m.UnitID,
		Address:  m.Address,
	}

	if m.StatusSlot != nil && m.StatusUnitID != nil {
		plan.Status = &StatusPlan{
			Endpoint:   m.Endpoint,
			UnitID:     *m.StatusUnitID,
			BaseSlot:   *m.StatusSlot,
			DeviceName: m.DeviceName,
		}
	}

	return plan, nil
}

// Build opens every configured sink. On failure, sinks already opened are
// closed again.
func Build(ctx context.Context, c *cfg.Config, log logrus.FieldLogger, obs PublishObserver) (*Pipeline, error) {
	plan, err := BuildPlan(c)
	if err != nil {
		return nil, err
	}

	var (
		sinks   []Sink
		closers []func() error
		status  StatusWriter
	)

	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	// ---- modbus: reading block + optional status block ----
	if plan.Registers != nil {
		m := c.Publish.Modbus
		cli, err := wmodbus.NewEndpointClient(wmodbus.Config{
			Endpoint: m.Endpoint,
			Timeout:  time.Duration(m.TimeoutMs) * time.Millisecond,
		})
		if err != nil {
			_ = closeAll()
			return nil, err
		}
		closers = append(closers, cli.Close)

		clients := map[string]endpointClient{m.Endpoint: cli}
		sinks = append(sinks, newRegisterSink(*plan.Registers, cli))

		if sw, enabled := NewDeviceStatusWriter(plan, clients); enabled {
			status = sw
		}
	}

	// ---- redis ----
	if r := c.Publish.Redis; r != nil {
		q, err := storage.NewMessageQueue(ctx, storage.Config{
			Addr:     r.Addr,
			Password: r.Password,
			DB:       r.DB,
			Channel:  r.Channel,
			History:  r.History,
			BinUnits: c.Device.BinUnits,
		}, log)
		if err != nil {
			_ = closeAll()
			return nil, err
		}
		closers = append(closers, q.Close)
		sinks = append(sinks, q)
	}

	// ---- text records ----
	if rc := c.Publish.Record; rc != nil {
		rs, err := OpenRecordSink(rc.Path, c.Device.PrintBins)
		if err != nil {
			_ = closeAll()
			return nil, err
		}
		closers = append(closers, rs.Close)
		sinks = append(sinks, rs)
	}

	return &Pipeline{
		Data:   New(log, obs, sinks...),
		Status: status,
		Close:  closeAll,
	}, nil
}
