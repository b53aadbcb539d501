// internal/writer/types.go
package writer

import (
	"context"

	"github.com/coffeye/xpod/internal/poller"
)

// RegisterPlan places the reading block on one Modbus endpoint.
type RegisterPlan struct {
	Endpoint string
	UnitID   uint8
	Address  uint16
}

// StatusPlan places the device status block. BaseSlot is in blocks, not
// registers.
type StatusPlan struct {
	Endpoint   string
	UnitID     uint8
	BaseSlot   uint16
	DeviceName string
}

// Plan is the fully-built write plan for one device.
type Plan struct {
	DeviceID  string
	Registers *RegisterPlan
	Status    *StatusPlan
}

// Sink delivers poll results to one destination.
type Sink interface {
	Name() string
	Write(ctx context.Context, res poller.PollResult) error
}

// Writer writes poll snapshots into every configured sink.
type Writer interface {
	Write(ctx context.Context, res poller.PollResult) error
}

// PublishObserver is told about every sink delivery.
type PublishObserver interface {
	ObservePublish(sink string, err error)
}
