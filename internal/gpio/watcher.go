package gpio

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/logger"
)

// errSampleSize is returned when a reader answers with the wrong number of values.
var errSampleSize = errors.New("unexpected gpio sample size")

// Watcher polls a Reader and forwards sensor edges to a sink.
// The first sample is compared with the states stored by the sink, so contacts
// that changed while nothing was watching are reported once. Later samples
// emit one event per line whose state changed since the previous sample.
type Watcher struct {
	// reader samples raw values.
	reader Reader
	// lines map sample positions to sensors.
	lines []Line
	// sink applies activation changes.
	sink SensorSink
	// interval is the polling period.
	interval time.Duration
	// last holds the previous sensor states, nil before the baseline.
	last []bool
}

// NewWatcher creates a Watcher. lines must be in the order the reader returns values.
func NewWatcher(reader Reader, lines []Line, sink SensorSink, interval time.Duration) *Watcher {
	return &Watcher{
		reader:   reader,
		lines:    lines,
		sink:     sink,
		interval: interval,
	}
}

// Run polls until ctx is done. Read failures are logged and polling continues.
func (w *Watcher) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "gpio")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logger.InfoKV(ctx, "Watching GPIO contacts", "lines", len(w.lines), "interval", w.interval)

	for {
		if err := w.Poll(ctx); err != nil {
			logger.WarnKV(ctx, "GPIO poll failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Poll takes one sample and forwards changed sensor states.
// Sink failures are logged so one unknown sensor does not stall the others.
func (w *Watcher) Poll(ctx context.Context) error {
	values, err := w.reader.Values()
	if err != nil {
		return fmt.Errorf("read gpio: %w", err)
	}

	if len(values) != len(w.lines) {
		return fmt.Errorf("%w: got %d, want %d", errSampleSize, len(values), len(w.lines))
	}

	states := make([]bool, len(values))

	for i, raw := range values {
		states[i] = w.lines[i].Active(raw)
	}

	previous := w.last
	if previous == nil {
		if previous, err = w.stored(ctx); err != nil {
			return err
		}
	}

	w.last = states

	for i, active := range states {
		if active == previous[i] {
			continue
		}

		line := w.lines[i]

		logger.DebugKV(ctx, "GPIO edge", "offset", line.Offset, "sensor", line.Sensor.String(), "active", active)

		if err = w.sink.ChangeSensorActivationStatus(ctx, line.Sensor, active); err != nil {
			logger.WarnKV(ctx, "Failed to apply GPIO sensor event", "sensor", line.Sensor.String(), "error", err)
		}
	}

	return nil
}

// stored returns the sink's sensor states in line order.
// Lines without a registered sensor count as inactive.
func (w *Watcher) stored(ctx context.Context) ([]bool, error) {
	sensors, err := w.sink.Sensors(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sensor states: %w", err)
	}

	active := make(map[domain.SensorKey]bool, len(sensors))
	for _, sensor := range sensors {
		active[sensor.Key()] = sensor.Active
	}

	states := make([]bool, len(w.lines))
	for i, line := range w.lines {
		states[i] = active[line.Sensor]
	}

	return states, nil
}
