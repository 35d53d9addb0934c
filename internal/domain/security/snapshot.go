package security

import "slices"

// Snapshot is a point-in-time view of the security system.
// It is a value type and safe to hand out after locks are released.
type Snapshot struct {
	// AlarmStatus is the current escalation level.
	AlarmStatus AlarmStatus
	// ArmingStatus is the current arming mode.
	ArmingStatus ArmingStatus
	// CatDetected is the result of the last processed image.
	CatDetected bool
	// Sensors holds every known sensor, ordered by name then type.
	Sensors []Sensor
}

// Clone returns a copy of the snapshot that does not share the sensor slice.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}

	return &Snapshot{
		AlarmStatus:  s.AlarmStatus,
		ArmingStatus: s.ArmingStatus,
		CatDetected:  s.CatDetected,
		Sensors:      slices.Clone(s.Sensors),
	}
}
