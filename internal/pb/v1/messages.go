package pb

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/catpoint/internal/domain/security"
)

// Field names used inside Struct messages.
const (
	FieldAlarmStatus  = "alarm_status"
	FieldArmingStatus = "arming_status"
	FieldCatDetected  = "cat_detected"
	FieldSensors      = "sensors"
	FieldName         = "name"
	FieldType         = "type"
	FieldActive       = "active"
	FieldEvent        = "event"
)

// Event names carried by Watch messages in FieldEvent.
const (
	EventSnapshot     = "SNAPSHOT"
	EventAlarmStatus  = "ALARM_STATUS"
	EventArmingStatus = "ARMING_STATUS"
	EventCatDetected  = "CAT_DETECTED"
	EventSensors      = "SENSORS"
)

// Metadata keys identifying the caller for audit logs.
const (
	MetadataHostname = "x-catpoint-hostname"
	MetadataUsername = "x-catpoint-username"
)

var (
	// ErrNilMessage is returned when a required message is missing.
	ErrNilMessage = errors.New("message is nil")
	// ErrMissingField is returned when a required field is absent from a Struct.
	ErrMissingField = errors.New("missing field")
)

// SnapshotToStruct encodes a snapshot into a Struct message.
func SnapshotToStruct(snapshot *domain.Snapshot) (*structpb.Struct, error) {
	if snapshot == nil {
		return nil, ErrNilMessage
	}

	fields := map[string]any{
		FieldAlarmStatus:  snapshot.AlarmStatus.String(),
		FieldArmingStatus: snapshot.ArmingStatus.String(),
		FieldCatDetected:  snapshot.CatDetected,
		FieldSensors:      sensorsToList(snapshot.Sensors),
	}

	result, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	return result, nil
}

// StructToSnapshot decodes a Struct message produced by SnapshotToStruct.
// Missing status fields fall back to the initial NO_ALARM/DISARMED values.
func StructToSnapshot(message *structpb.Struct) (*domain.Snapshot, error) {
	if message == nil {
		return nil, ErrNilMessage
	}

	var (
		fields   = message.GetFields()
		snapshot = &domain.Snapshot{
			AlarmStatus:  domain.NoAlarm,
			ArmingStatus: domain.Disarmed,
		}
	)

	if value, ok := fields[FieldAlarmStatus]; ok {
		status, err := domain.ParseAlarmStatus(value.GetStringValue())
		if err != nil {
			return nil, err
		}

		snapshot.AlarmStatus = status
	}

	if value, ok := fields[FieldArmingStatus]; ok {
		status, err := domain.ParseArmingStatus(value.GetStringValue())
		if err != nil {
			return nil, err
		}

		snapshot.ArmingStatus = status
	}

	snapshot.CatDetected = fields[FieldCatDetected].GetBoolValue()

	sensors, err := SensorsFromList(fields[FieldSensors].GetListValue())
	if err != nil {
		return nil, err
	}

	snapshot.Sensors = sensors

	return snapshot, nil
}

// SensorToStruct encodes a sensor into a Struct message.
func SensorToStruct(sensor domain.Sensor) *structpb.Struct {
	return &structpb.Struct{
		Fields: map[string]*structpb.Value{
			FieldName:   structpb.NewStringValue(sensor.Name),
			FieldType:   structpb.NewStringValue(sensor.Type.String()),
			FieldActive: structpb.NewBoolValue(sensor.Active),
		},
	}
}

// StructToSensor decodes a sensor Struct. The name and type fields are required;
// active defaults to false.
func StructToSensor(message *structpb.Struct) (domain.Sensor, error) {
	if message == nil {
		return domain.Sensor{}, ErrNilMessage
	}

	fields := message.GetFields()

	name, ok := fields[FieldName]
	if !ok {
		return domain.Sensor{}, fmt.Errorf("%w: %s", ErrMissingField, FieldName)
	}

	typeName, ok := fields[FieldType]
	if !ok {
		return domain.Sensor{}, fmt.Errorf("%w: %s", ErrMissingField, FieldType)
	}

	sensorType, err := domain.ParseSensorType(typeName.GetStringValue())
	if err != nil {
		return domain.Sensor{}, err
	}

	sensor := domain.Sensor{
		Name:   name.GetStringValue(),
		Type:   sensorType,
		Active: fields[FieldActive].GetBoolValue(),
	}

	if err = sensor.Validate(); err != nil {
		return domain.Sensor{}, err
	}

	return sensor, nil
}

// SensorsFromList decodes a list of sensor structs. A nil list yields no sensors.
func SensorsFromList(list *structpb.ListValue) ([]domain.Sensor, error) {
	values := list.GetValues()
	sensors := make([]domain.Sensor, 0, len(values))

	for _, value := range values {
		sensor, err := StructToSensor(value.GetStructValue())
		if err != nil {
			return nil, fmt.Errorf("decode sensor: %w", err)
		}

		sensors = append(sensors, sensor)
	}

	domain.SortSensors(sensors)

	return sensors, nil
}

// EventStruct builds a Watch message: the snapshot fields plus the event name.
func EventStruct(event string, snapshot *domain.Snapshot) (*structpb.Struct, error) {
	message, err := SnapshotToStruct(snapshot)
	if err != nil {
		return nil, err
	}

	message.Fields[FieldEvent] = structpb.NewStringValue(event)

	return message, nil
}

// sensorsToList converts sensors into the []any shape accepted by structpb.NewStruct.
func sensorsToList(sensors []domain.Sensor) []any {
	result := make([]any, 0, len(sensors))

	for _, sensor := range sensors {
		result = append(result, map[string]any{
			FieldName:   sensor.Name,
			FieldType:   sensor.Type.String(),
			FieldActive: sensor.Active,
		})
	}

	return result
}
