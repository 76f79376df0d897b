// Package monitor drives the poll-publish cycle: read every source on a
// fixed interval, retry transient sensor failures with exponential backoff,
// evaluate alert thresholds, and fan readings out to the configured sinks.
package monitor

import (
	"context"
	"time"

	"codeberg.org/frostwatch/freezerctl/internal/config"
	"codeberg.org/frostwatch/freezerctl/internal/errors"
	"codeberg.org/frostwatch/freezerctl/internal/logger"
	"codeberg.org/frostwatch/freezerctl/internal/sensor"
	"codeberg.org/frostwatch/freezerctl/internal/sink"
)

// state of the loop. One poll-publish cycle runs to completion before the
// next begins; there are no overlapping polls.
type state int

const (
	stateIdle state = iota
	statePolling
	statePublishing
	stateRetrying
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case statePolling:
		return "polling"
	case statePublishing:
		return "publishing"
	case stateRetrying:
		return "retrying"
	default:
		return "unknown"
	}
}

// averageWindow is the span of the rolling temperature average kept per
// source, mirroring the 30 minute window the alert emails talk about.
const averageWindow = 30 * time.Minute

// Loop owns the sources, the sinks and the bus for its whole lifetime.
// Everything runs on the single goroutine that calls Run.
type Loop struct {
	cfg     *config.Config
	sources []sensor.Source
	sinks   []sink.Sink

	state     state
	lastTime  map[string]time.Time
	history   map[string]*rolling
	heaterOn  bool
	heaterAt  time.Time
	heaterOff time.Time

	// sleep and now are replaced in tests to skip real backoff waits and
	// to drive the heater schedule.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New builds a loop over the given sources and sinks.
func New(cfg *config.Config, sources []sensor.Source, sinks []sink.Sink) *Loop {
	window := int(averageWindow / cfg.PollInterval())
	if window < 1 {
		window = 1
	}

	history := make(map[string]*rolling, len(sources))
	for _, src := range sources {
		history[src.Name()] = newRolling(window)
	}

	return &Loop{
		cfg:      cfg,
		sources:  sources,
		sinks:    sinks,
		state:    stateIdle,
		lastTime: make(map[string]time.Time, len(sources)),
		history:  history,
		heaterAt: time.Now(),
		sleep:    sleepCtx,
		now:      time.Now,
	}
}

// Run executes poll-publish cycles until ctx is cancelled. The stop signal
// is honored at the top of each cycle; an in-flight sensor read completes
// or times out, it is never interrupted mid-transaction.
func (l *Loop) Run(ctx context.Context) error {
	interval := l.cfg.PollInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info().
		Dur("interval", interval).
		Int("sources", len(l.sources)).
		Int("sinks", len(l.sinks)).
		Msg("Monitoring started")

	l.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.cycle(ctx)
		}
	}
}

// cycle polls every source once and fans the results out. A cycle that
// overruns the interval by more than one backoff step surfaces a warning;
// slow sinks must not silently eat the schedule.
func (l *Loop) cycle(ctx context.Context) {
	started := time.Now()

	l.maintainHeater()

	for _, src := range l.sources {
		if ctx.Err() != nil {
			l.state = stateIdle
			return
		}

		reading, ok := l.poll(ctx, src)
		if ctx.Err() != nil {
			// Shutdown mid-poll is not a sensor failure; publish nothing.
			l.state = stateIdle
			return
		}
		if !ok {
			// Retries exhausted: escalate exactly one alert sentinel.
			reading = sensor.NewSentinel(src.Name(), l.now())
			logger.Warn().Str("source", src.Name()).Msg("Retries exhausted, publishing alert sentinel")
		} else {
			reading = l.checkThresholds(reading)
		}

		reading = l.clampTime(reading)
		l.record(reading)
		l.publish(ctx, reading)
	}

	l.state = stateIdle

	elapsed := time.Since(started)
	if elapsed > l.cfg.PollInterval()+l.cfg.RetryBackoff() {
		logger.Warn().
			Dur("elapsed", elapsed).
			Dur("interval", l.cfg.PollInterval()).
			Msg("Cycle overran the poll interval")
	}
}

// poll reads one source with bounded retry and exponential backoff. It
// reports ok=false once the retry budget is spent.
func (l *Loop) poll(ctx context.Context, src sensor.Source) (sensor.Reading, bool) {
	backoff := l.cfg.RetryBackoff()

	for attempt := 1; ; attempt++ {
		l.state = statePolling
		reading, err := src.Read(ctx)
		if err == nil {
			return reading, true
		}

		if !errors.IsRetryable(err) || ctx.Err() != nil {
			logger.ErrorWithCode(err).Str("source", src.Name()).Msg("Sensor read failed")
			return sensor.Reading{}, false
		}

		logger.Warn().
			Str("source", src.Name()).
			Str("error_code", string(errors.CodeOf(err))).
			Int("attempt", attempt).
			Err(err).
			Msg("Sensor read failed")

		if attempt >= l.cfg.Retry.MaxAttempts {
			return sensor.Reading{}, false
		}

		l.state = stateRetrying
		if err := l.sleep(ctx, backoff); err != nil {
			return sensor.Reading{}, false
		}
		backoff *= 2
	}
}

// checkThresholds marks the reading as an alert condition when any measured
// quantity falls outside its configured safe range.
func (l *Loop) checkThresholds(r sensor.Reading) sensor.Reading {
	for quantity, th := range l.cfg.Thresholds {
		v, ok := r.Value(quantity)
		if !ok {
			continue
		}
		if th.Min != nil && v < *th.Min {
			return r.WithAlert()
		}
		if th.Max != nil && v > *th.Max {
			return r.WithAlert()
		}
	}

	return r
}

// clampTime enforces monotonically non-decreasing timestamps per source.
func (l *Loop) clampTime(r sensor.Reading) sensor.Reading {
	if last, ok := l.lastTime[r.Source]; ok && r.Time.Before(last) {
		r.Time = last
	}
	l.lastTime[r.Source] = r.Time

	return r
}

func (l *Loop) record(r sensor.Reading) {
	h, ok := l.history[r.Source]
	if !ok || r.Sentinel {
		return
	}
	if t, found := r.Value(sensor.Temperature); found {
		h.push(t)
		logger.Debug().
			Str("source", r.Source).
			Float64("temperature", t).
			Float64("avg_temperature", h.avg()).
			Bool("alert", r.Alert).
			Msg("")
	}
}

// publish fans the reading out. A failing sink is logged and skipped; it
// must never block delivery to the remaining sinks or abort the loop.
func (l *Loop) publish(ctx context.Context, r sensor.Reading) {
	l.state = statePublishing

	for _, s := range l.sinks {
		if err := s.Publish(ctx, r); err != nil {
			logger.ErrorWithCode(err).
				Str("sink", s.Name()).
				Str("source", r.Source).
				Msg("Sink publish failed")
		}
	}
}

// maintainHeater drives the periodic SHT3x heater cycle from cycle
// timestamps, keeping the loop single-threaded. The heater is switched on
// every interval and off again once the duration has passed.
func (l *Loop) maintainHeater() {
	if !l.cfg.Heater.Enabled {
		return
	}

	now := l.now()
	interval := time.Duration(l.cfg.Heater.IntervalMin) * time.Minute
	duration := time.Duration(l.cfg.Heater.DurationSec) * time.Second

	switch {
	case l.heaterOn && now.Sub(l.heaterOff) >= 0:
		l.setHeater(false)
	case !l.heaterOn && now.Sub(l.heaterAt) >= interval:
		l.heaterAt = now
		l.heaterOff = now.Add(duration)
		l.setHeater(true)
	}
}

func (l *Loop) setHeater(on bool) {
	for _, src := range l.sources {
		h, ok := src.(sensor.Heatable)
		if !ok {
			continue
		}
		if err := h.Heater(on); err != nil {
			logger.Warn().Str("source", src.Name()).Err(err).Msg("Failed to toggle sensor heater")
			continue
		}
		logger.Debug().Str("source", src.Name()).Bool("on", on).Msg("Sensor heater toggled")
	}
	l.heaterOn = on
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
