package security

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestParseStatuses verifies case-insensitive parsing and rejection of unknown names.
func TestParseStatuses(t *testing.T) {
	t.Parallel()

	alarm, err := ParseAlarmStatus("pending_alarm")
	require.NoError(t, err)
	require.Equal(t, PendingAlarm, alarm)

	_, err = ParseAlarmStatus("siren")
	require.ErrorIs(t, err, ErrInvalidAlarmStatus)

	arming, err := ParseArmingStatus("armed-away")
	require.NoError(t, err)
	require.Equal(t, ArmedAway, arming)

	arming, err = ParseArmingStatus("home")
	require.NoError(t, err)
	require.Equal(t, ArmedHome, arming)

	_, err = ParseArmingStatus("vacation")
	require.ErrorIs(t, err, ErrInvalidArmingStatus)

	sensorType, err := ParseSensorType(" Motion ")
	require.NoError(t, err)
	require.Equal(t, Motion, sensorType)

	_, err = ParseSensorType("smoke")
	require.ErrorIs(t, err, ErrInvalidSensorType)
}

// TestStatusStrings checks the canonical names survive a parse round.
func TestStatusStrings(t *testing.T) {
	t.Parallel()

	for _, status := range []AlarmStatus{NoAlarm, PendingAlarm, Alarm} {
		parsed, err := ParseAlarmStatus(status.String())
		require.NoError(t, err)
		require.Equal(t, status, parsed)
	}

	for _, status := range []ArmingStatus{Disarmed, ArmedHome, ArmedAway} {
		parsed, err := ParseArmingStatus(status.String())
		require.NoError(t, err)
		require.Equal(t, status, parsed)
	}

	require.Equal(t, "AlarmStatus(42)", AlarmStatus(42).String())
	require.True(t, ArmedAway.IsArmed())
	require.False(t, Disarmed.IsArmed())
}

// TestSortSensors verifies display ordering by name, then by type.
func TestSortSensors(t *testing.T) {
	t.Parallel()

	sensors := []Sensor{
		NewSensor("window", Window),
		NewSensor("hall", Motion),
		NewSensor("hall", Door),
		NewSensor("attic", Window),
	}

	SortSensors(sensors)

	require.Equal(t, []SensorKey{
		{Name: "attic", Type: Window},
		{Name: "hall", Type: Door},
		{Name: "hall", Type: Motion},
		{Name: "window", Type: Window},
	}, []SensorKey{sensors[0].Key(), sensors[1].Key(), sensors[2].Key(), sensors[3].Key()})
}

// TestSensorValidate rejects empty names and unknown types.
func TestSensorValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, NewSensor("front", Door).Validate())
	require.ErrorIs(t, NewSensor("", Door).Validate(), ErrEmptySensorName)
	require.ErrorIs(t, NewSensor("front", SensorType(9)).Validate(), ErrInvalidSensorType)
	require.NoError(t, ArmedAway.Validate())
	require.ErrorIs(t, ArmingStatus(9).Validate(), ErrInvalidArmingStatus)
}

// TestSnapshotClone ensures the sensor slice is not shared.
func TestSnapshotClone(t *testing.T) {
	t.Parallel()

	require.Nil(t, (*Snapshot)(nil).Clone())

	s := &Snapshot{
		AlarmStatus:  PendingAlarm,
		ArmingStatus: ArmedAway,
		Sensors:      []Sensor{{Name: "front", Type: Door, Active: true}},
	}

	c := s.Clone()
	require.Equal(t, s, c)

	c.Sensors[0].Active = false
	require.True(t, s.Sensors[0].Active)
	require.True(t, AnyActive(s.Sensors))
	require.False(t, AnyActive(c.Sensors))
}
