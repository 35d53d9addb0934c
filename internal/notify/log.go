package notify

import (
	"context"

	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/logger"
)

// LogListener writes every event to the context logger.
type LogListener struct{}

// NewLogListener creates a LogListener.
func NewLogListener() *LogListener {
	return new(LogListener)
}

// AlarmStatusChanged logs the new alarm status.
func (*LogListener) AlarmStatusChanged(ctx context.Context, status domain.AlarmStatus) {
	logger.InfoKV(ctx, "Alarm status changed", "alarm_status", status.String(), "description", status.Description())
}

// ArmingStatusChanged logs the new arming status.
func (*LogListener) ArmingStatusChanged(ctx context.Context, status domain.ArmingStatus) {
	logger.InfoKV(ctx, "Arming status changed", "arming_status", status.String(), "description", status.Description())
}

// CatDetected logs the classification result.
func (*LogListener) CatDetected(ctx context.Context, detected bool) {
	if detected {
		logger.Warn(ctx, "DANGER - CAT DETECTED")
		return
	}

	logger.Debug(ctx, "Camera frame processed, no cats detected")
}

// SensorsChanged logs a summary of the sensor set.
func (*LogListener) SensorsChanged(ctx context.Context, sensors []domain.Sensor) {
	active := 0

	for _, sensor := range sensors {
		if sensor.Active {
			active++
		}
	}

	logger.DebugKV(ctx, "Sensors changed", "total", len(sensors), "active", active)
}
