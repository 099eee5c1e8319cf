// Package poller drives the detection sensor at a fixed interval and hands
// each tick's result to the check history and Home Assistant.
package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"object-detection-sensor/internal/database"
	"object-detection-sensor/internal/detection"
	"object-detection-sensor/internal/integrations/homeassistant"

	log "github.com/sirupsen/logrus"
)

// Sensor is the polled entity.
type Sensor interface {
	homeassistant.SensorSource
	Update(ctx context.Context) (detection.Result, error)
}

// HistoryStore persists tick results.
type HistoryStore interface {
	Save(rec *database.CheckRecord) error
}

// StatePublisher pushes the sensor state to Home Assistant.
type StatePublisher interface {
	PublishSensor(src homeassistant.SensorSource, force bool) error
}

// TickListener is notified after every tick.
type TickListener interface {
	OnTick(sensorName string, res detection.Result, err error)
}

// Option configures a Poller.
type Option func(*Poller)

// WithHistory records every tick that got past the throttle gate.
func WithHistory(h HistoryStore) Option {
	return func(p *Poller) { p.history = h }
}

// WithPublisher publishes the sensor after every tick.
func WithPublisher(sp StatePublisher) Option {
	return func(p *Poller) { p.publisher = sp }
}

// WithListener adds a listener that sees every tick result.
func WithListener(l TickListener) Option {
	return func(p *Poller) { p.listeners = append(p.listeners, l) }
}

// WithTickTimeout bounds a single tick. Zero means no timeout.
func WithTickTimeout(d time.Duration) Option {
	return func(p *Poller) { p.tickTimeout = d }
}

// Poller runs sensor ticks one at a time.
type Poller struct {
	sensor      Sensor
	interval    time.Duration
	tickTimeout time.Duration
	history     HistoryStore
	publisher   StatePublisher
	listeners   []TickListener

	ticks    atomic.Int64
	failures atomic.Int64
	lastTick atomic.Int64 // unix nanos

	mu       sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a poller for sensor.
func New(sensor Sensor, interval time.Duration, opts ...Option) *Poller {
	p := &Poller{sensor: sensor, interval: interval}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start runs a tick immediately and then every interval until Stop is called
// or ctx is cancelled.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopChan != nil {
		return
	}
	p.stopChan = make(chan struct{})
	p.done = make(chan struct{})

	log.Infof("Starting poller for %s (interval %s)", p.sensor.Name(), p.interval)

	ctx, cancel := context.WithCancel(ctx)
	stop, done := p.stopChan, p.done
	go func() {
		defer close(done)
		defer cancel()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.RunOnce(ctx)
		for {
			select {
			case <-ticker.C:
				p.RunOnce(ctx)
			case <-stop:
				log.Info("Stopping poller.")
				return
			case <-ctx.Done():
				log.Info("Poller context cancelled.")
				return
			}
		}
	}()
}

// Stop signals the loop to exit and waits for the running tick to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	stop, done := p.stopChan, p.done
	p.stopChan, p.done = nil, nil
	p.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// RunOnce performs a single tick. Errors are logged, never returned.
func (p *Poller) RunOnce(ctx context.Context) {
	if p.tickTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.tickTimeout)
		defer cancel()
	}

	res, err := p.sensor.Update(ctx)
	p.ticks.Add(1)
	if !res.StartedAt.IsZero() {
		p.lastTick.Store(res.StartedAt.UnixNano())
	}

	if err != nil {
		p.failures.Add(1)
		if errors.Is(err, detection.ErrLabelService) {
			log.WithError(err).Error("Label detection failed, keeping previous sensor state")
		} else {
			log.WithError(err).Error("Sensor update failed")
		}
	}

	if p.history != nil && res.Verdict == detection.Proceed {
		rec, rerr := database.NewCheckRecord(res, err)
		if rerr == nil {
			rerr = p.history.Save(rec)
		}
		if rerr != nil {
			log.WithError(rerr).Warn("Failed to record check")
		}
	}

	for _, l := range p.listeners {
		l.OnTick(p.sensor.Name(), res, err)
	}

	if p.publisher != nil {
		if perr := p.publisher.PublishSensor(p.sensor, false); perr != nil {
			log.WithError(perr).Debug("Failed to publish sensor state")
		}
	}
}

// TickCount returns the number of ticks run so far.
func (p *Poller) TickCount() int64 {
	return p.ticks.Load()
}

// ErrorCount returns the number of ticks that ended with an error.
func (p *Poller) ErrorCount() int64 {
	return p.failures.Load()
}

// LastTick returns the start time of the most recent tick.
func (p *Poller) LastTick() time.Time {
	n := p.lastTick.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
