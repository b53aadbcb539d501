// internal/poller/poller.go
package poller

import (
	"errors"
	"time"

	"github.com/coffeye/xpod/internal/opc"
)

// Config is the minimal runtime config the poller needs.
type Config struct {
	UnitID   string
	Interval time.Duration
}

// Poller is a dumb, clock-driven reader.
type Poller struct {
	cfg     Config
	sampler Sampler
	now     func() time.Time
}

// New creates a poller with immutable config.
func New(cfg Config, sampler Sampler) (*Poller, error) {
	if cfg.UnitID == "" {
		return nil, errors.New("poller: unit id required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if sampler == nil {
		return nil, errors.New("poller: sampler required")
	}
	return &Poller{cfg: cfg, sampler: sampler, now: time.Now}, nil
}

// PollOnce performs exactly one read transaction.
// All-or-nothing: a failed read carries no reading.
func (p *Poller) PollOnce() PollResult {
	start := p.now()
	res := PollResult{
		UnitID: p.cfg.UnitID,
		At:     start,
	}

	r, err := p.sampler.Read()
	res.Duration = p.now().Sub(start)
	if err != nil {
		res.Err = err
		res.ErrorCode = opc.ErrorCode(err)
		return res
	}

	res.Reading = r
	if r.Degraded {
		res.ErrorCode = opc.CodeDerivationDegraded
	}
	return res
}
