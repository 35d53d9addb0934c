package security

import (
	"errors"
	"fmt"
	"strings"
)

// AlarmStatus is the escalation level of a detected intrusion.
type AlarmStatus int

const (
	// NoAlarm means nothing is being reported.
	NoAlarm AlarmStatus = iota
	// PendingAlarm means a sensor tripped while the system was armed.
	PendingAlarm
	// Alarm means the intrusion is confirmed.
	Alarm
)

// ArmingStatus describes whether the system is actively monitoring.
type ArmingStatus int

const (
	// Disarmed turns detection off.
	Disarmed ArmingStatus = iota
	// ArmedHome monitors while people are at home.
	ArmedHome
	// ArmedAway monitors an empty house.
	ArmedAway
)

var (
	// ErrInvalidAlarmStatus is returned when an alarm status name is not recognized.
	ErrInvalidAlarmStatus = errors.New("invalid alarm status")
	// ErrInvalidArmingStatus is returned when an arming status name is not recognized.
	ErrInvalidArmingStatus = errors.New("invalid arming status")
)

//nolint:gochecknoglobals // Lookup tables for enum names.
var (
	alarmStatusNames = map[AlarmStatus]string{
		NoAlarm:      "NO_ALARM",
		PendingAlarm: "PENDING_ALARM",
		Alarm:        "ALARM",
	}
	armingStatusNames = map[ArmingStatus]string{
		Disarmed:  "DISARMED",
		ArmedHome: "ARMED_HOME",
		ArmedAway: "ARMED_AWAY",
	}
)

// String returns the canonical upper-case name of the status.
func (s AlarmStatus) String() string {
	if name, ok := alarmStatusNames[s]; ok {
		return name
	}

	return fmt.Sprintf("AlarmStatus(%d)", int(s))
}

// Description returns the human-readable text shown by displays.
func (s AlarmStatus) Description() string {
	switch s {
	case NoAlarm:
		return "Cool and Good"
	case PendingAlarm:
		return "I'm in Danger..."
	case Alarm:
		return "Awooga!"
	default:
		return s.String()
	}
}

// ParseAlarmStatus converts a status name (case-insensitive) into an AlarmStatus.
func ParseAlarmStatus(s string) (AlarmStatus, error) {
	normalized := normalizeName(s)

	for status, name := range alarmStatusNames {
		if name == normalized {
			return status, nil
		}
	}

	return NoAlarm, fmt.Errorf("%w: %q", ErrInvalidAlarmStatus, s)
}

// String returns the canonical upper-case name of the status.
func (s ArmingStatus) String() string {
	if name, ok := armingStatusNames[s]; ok {
		return name
	}

	return fmt.Sprintf("ArmingStatus(%d)", int(s))
}

// Description returns the human-readable text shown by displays.
func (s ArmingStatus) Description() string {
	switch s {
	case Disarmed:
		return "Disarmed"
	case ArmedHome:
		return "Armed - At Home"
	case ArmedAway:
		return "Armed - Away"
	default:
		return s.String()
	}
}

// IsArmed reports whether detection is active.
func (s ArmingStatus) IsArmed() bool {
	return s == ArmedHome || s == ArmedAway
}

// Validate checks that the status is one of the known values.
func (s ArmingStatus) Validate() error {
	if _, ok := armingStatusNames[s]; !ok {
		return fmt.Errorf("%w: %d", ErrInvalidArmingStatus, int(s))
	}

	return nil
}

// ParseArmingStatus converts a status name (case-insensitive) into an ArmingStatus.
// Short forms "home" and "away" are accepted as well.
func ParseArmingStatus(s string) (ArmingStatus, error) {
	normalized := normalizeName(s)

	switch normalized {
	case "HOME":
		return ArmedHome, nil
	case "AWAY":
		return ArmedAway, nil
	}

	for status, name := range armingStatusNames {
		if name == normalized {
			return status, nil
		}
	}

	return Disarmed, fmt.Errorf("%w: %q", ErrInvalidArmingStatus, s)
}

// normalizeName upper-cases the input and turns dashes and spaces into underscores.
func normalizeName(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))

	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}
