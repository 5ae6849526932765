package reactive

import (
	"context"
	"net"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gaborage/go-fetch/logger"
)

// Visibility is the foreground state of the consumer owning a request.
type Visibility string

const (
	Visible Visibility = "visible"
	Hidden  Visibility = "hidden"
)

// NewNetworkStatus creates an online/offline source, initially online.
func NewNetworkStatus() *Ref[bool] {
	return NewRef(true)
}

// NewVisibility creates a visibility source, initially visible.
func NewVisibility() *Ref[Visibility] {
	return NewRef(Visible)
}

// Prober drives a network status Ref by periodically dialing an address.
type Prober struct {
	Status   *Ref[bool]
	Address  string
	Interval time.Duration
	Timeout  time.Duration
	Logger   logger.Logger

	dialer net.Dialer
	sf     singleflight.Group
}

// NewProber creates a prober for address ("host:port").
func NewProber(status *Ref[bool], address string, interval time.Duration) *Prober {
	return &Prober{
		Status:   status,
		Address:  address,
		Interval: interval,
		Timeout:  interval / 2,
		Logger:   logger.Nop(),
	}
}

// Probe dials once and records the result, notifying watchers only on a
// transition. Concurrent calls share one dial.
func (p *Prober) Probe(ctx context.Context) bool {
	v, _, _ := p.sf.Do(p.Address, func() (any, error) {
		return p.probe(ctx), nil
	})
	return v.(bool)
}

func (p *Prober) probe(ctx context.Context) bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	online := true
	conn, err := p.dialer.DialContext(dialCtx, "tcp", p.Address)
	if err != nil {
		online = false
	} else {
		conn.Close()
	}

	if p.Status.Get() != online {
		log := p.Logger
		if log == nil {
			log = logger.Nop()
		}
		log.Info().
			Str("address", p.Address).
			Bool("online", online).
			Msg("network status changed")
		p.Status.Set(online)
	}
	return online
}

// Run probes every Interval until ctx is done.
func (p *Prober) Run(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Probe(ctx)
		}
	}
}
