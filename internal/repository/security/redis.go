package security

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/logger"
)

const (
	// DefaultRedisKeyPrefix namespaces every key written by RedisRepository.
	DefaultRedisKeyPrefix = "catpoint:security:"
	// RedisLockTTL bounds how long a crashed holder can keep the lock.
	RedisLockTTL = 10 * time.Second
	// redisLockRetryInterval is the delay between acquisition attempts.
	redisLockRetryInterval = 10 * time.Millisecond
	// redisTrue and redisFalse encode the cat flag.
	redisTrue  = "1"
	redisFalse = "0"
)

// sensorRecord is the CBOR representation of a sensor stored in Redis.
type sensorRecord struct {
	// Name is the sensor name.
	Name string `cbor:"name"`
	// Type is the canonical sensor type name.
	Type string `cbor:"type"`
	// Active reports whether the sensor is tripped.
	Active bool `cbor:"active"`
}

//nolint:gochecknoglobals // Codec modes and scripts are immutable after init.
var (
	// sensorEncMode encodes records with Core Deterministic Encoding so that
	// the same sensor always produces identical bytes.
	sensorEncMode cbor.EncMode
	// updateSensorScript replaces a hash field only when it already exists.
	updateSensorScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 1 then
	redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
	return 1
end
return 0
`)
	// releaseLockScript deletes the lock only while it still holds the caller's token.
	releaseLockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)
)

func init() { //nolint:gochecknoinits // CBOR modes must be built once before use.
	var err error

	sensorEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("security: CBOR encoder initialization failed: " + err.Error())
	}
}

// RedisRepository keeps statuses as plain strings and sensors as CBOR values
// in a single hash keyed by "name|TYPE".
type RedisRepository struct {
	// client is the Redis connection.
	client *redis.Client
	// prefix namespaces every key.
	prefix string
}

// NewRedisRepository creates a repository on top of an existing client.
// An empty prefix falls back to DefaultRedisKeyPrefix.
func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}

	return &RedisRepository{
		client: client,
		prefix: prefix,
	}
}

// AlarmStatus returns the stored alarm status, NO_ALARM when unset.
func (r *RedisRepository) AlarmStatus(ctx context.Context) (domain.AlarmStatus, error) {
	value, err := r.getString(ctx, r.alarmKey())
	if err != nil || value == "" {
		return domain.NoAlarm, err
	}

	return domain.ParseAlarmStatus(value)
}

// SetAlarmStatus stores the alarm status.
func (r *RedisRepository) SetAlarmStatus(ctx context.Context, status domain.AlarmStatus) error {
	if err := r.client.Set(ctx, r.alarmKey(), status.String(), 0).Err(); err != nil {
		return fmt.Errorf("set alarm status: %w", err)
	}

	return nil
}

// ArmingStatus returns the stored arming status, DISARMED when unset.
func (r *RedisRepository) ArmingStatus(ctx context.Context) (domain.ArmingStatus, error) {
	value, err := r.getString(ctx, r.armingKey())
	if err != nil || value == "" {
		return domain.Disarmed, err
	}

	return domain.ParseArmingStatus(value)
}

// SetArmingStatus stores the arming status.
func (r *RedisRepository) SetArmingStatus(ctx context.Context, status domain.ArmingStatus) error {
	if err := r.client.Set(ctx, r.armingKey(), status.String(), 0).Err(); err != nil {
		return fmt.Errorf("set arming status: %w", err)
	}

	return nil
}

// CatDetected returns the latched cat flag, false when unset.
func (r *RedisRepository) CatDetected(ctx context.Context) (bool, error) {
	value, err := r.getString(ctx, r.catKey())
	if err != nil {
		return false, err
	}

	return value == redisTrue, nil
}

// SetCatDetected stores the cat flag.
func (r *RedisRepository) SetCatDetected(ctx context.Context, detected bool) error {
	value := redisFalse
	if detected {
		value = redisTrue
	}

	if err := r.client.Set(ctx, r.catKey(), value, 0).Err(); err != nil {
		return fmt.Errorf("set cat detected: %w", err)
	}

	return nil
}

// Lock takes the system-wide lock with SET NX and a random token, polling until
// it is free. The lock expires after RedisLockTTL if the holder never releases it.
func (r *RedisRepository) Lock(ctx context.Context) (func(), error) {
	token := uuid.NewString()

	ticker := time.NewTicker(redisLockRetryInterval)
	defer ticker.Stop()

	for {
		acquired, err := r.client.SetNX(ctx, r.lockKey(), token, RedisLockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock: %w", err)
		}

		if acquired {
			return func() { r.unlock(ctx, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lock: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// unlock releases the lock held with token. It runs even when ctx is already canceled.
func (r *RedisRepository) unlock(ctx context.Context, token string) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), RedisLockTTL)
	defer cancel()

	if err := releaseLockScript.Run(releaseCtx, r.client, []string{r.lockKey()}, token).Err(); err != nil {
		logger.WarnKV(ctx, "Failed to release Redis lock", "error", err)
	}
}

// Sensors returns all sensors in display order.
func (r *RedisRepository) Sensors(ctx context.Context) ([]domain.Sensor, error) {
	values, err := r.client.HGetAll(ctx, r.sensorsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list sensors: %w", err)
	}

	sensors := make([]domain.Sensor, 0, len(values))

	for field, value := range values {
		sensor, err := decodeSensor([]byte(value))
		if err != nil {
			return nil, fmt.Errorf("decode sensor %q: %w", field, err)
		}

		sensors = append(sensors, sensor)
	}

	domain.SortSensors(sensors)

	return sensors, nil
}

// Sensor returns a single sensor.
func (r *RedisRepository) Sensor(ctx context.Context, key domain.SensorKey) (domain.Sensor, error) {
	value, err := r.client.HGet(ctx, r.sensorsKey(), sensorField(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Sensor{}, fmt.Errorf("%w: %s", ErrSensorNotFound, key)
		}

		return domain.Sensor{}, fmt.Errorf("get sensor: %w", err)
	}

	return decodeSensor(value)
}

// AddSensor registers a new sensor.
func (r *RedisRepository) AddSensor(ctx context.Context, sensor domain.Sensor) error {
	if err := sensor.Validate(); err != nil {
		return err
	}

	data, err := encodeSensor(sensor)
	if err != nil {
		return err
	}

	added, err := r.client.HSetNX(ctx, r.sensorsKey(), sensorField(sensor.Key()), data).Result()
	if err != nil {
		return fmt.Errorf("add sensor: %w", err)
	}

	if !added {
		return fmt.Errorf("%w: %s", ErrSensorExists, sensor.Key())
	}

	return nil
}

// RemoveSensor unregisters a sensor.
func (r *RedisRepository) RemoveSensor(ctx context.Context, key domain.SensorKey) error {
	removed, err := r.client.HDel(ctx, r.sensorsKey(), sensorField(key)).Result()
	if err != nil {
		return fmt.Errorf("remove sensor: %w", err)
	}

	if removed == 0 {
		return fmt.Errorf("%w: %s", ErrSensorNotFound, key)
	}

	return nil
}

// UpdateSensor replaces a stored sensor.
func (r *RedisRepository) UpdateSensor(ctx context.Context, sensor domain.Sensor) error {
	data, err := encodeSensor(sensor)
	if err != nil {
		return err
	}

	updated, err := updateSensorScript.Run(
		ctx,
		r.client,
		[]string{r.sensorsKey()},
		sensorField(sensor.Key()),
		data,
	).Int()
	if err != nil {
		return fmt.Errorf("update sensor: %w", err)
	}

	if updated == 0 {
		return fmt.Errorf("%w: %s", ErrSensorNotFound, sensor.Key())
	}

	return nil
}

// getString reads a string key, returning "" when the key does not exist.
func (r *RedisRepository) getString(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}

		return "", fmt.Errorf("get %s: %w", key, err)
	}

	return value, nil
}

func (r *RedisRepository) alarmKey() string   { return r.prefix + "alarm_status" }
func (r *RedisRepository) armingKey() string  { return r.prefix + "arming_status" }
func (r *RedisRepository) catKey() string     { return r.prefix + "cat_detected" }
func (r *RedisRepository) sensorsKey() string { return r.prefix + "sensors" }
func (r *RedisRepository) lockKey() string    { return r.prefix + "lock" }

// sensorField builds the hash field name for a sensor key.
func sensorField(key domain.SensorKey) string {
	return strings.Join([]string{key.Name, key.Type.String()}, "|")
}

// encodeSensor serializes a sensor into CBOR.
func encodeSensor(sensor domain.Sensor) ([]byte, error) {
	data, err := sensorEncMode.Marshal(sensorRecord{
		Name:   sensor.Name,
		Type:   sensor.Type.String(),
		Active: sensor.Active,
	})
	if err != nil {
		return nil, fmt.Errorf("encode sensor: %w", err)
	}

	return data, nil
}

// decodeSensor parses a CBOR sensor record.
func decodeSensor(data []byte) (domain.Sensor, error) {
	var record sensorRecord
	if err := cbor.Unmarshal(data, &record); err != nil {
		return domain.Sensor{}, fmt.Errorf("decode sensor: %w", err)
	}

	sensorType, err := domain.ParseSensorType(record.Type)
	if err != nil {
		return domain.Sensor{}, err
	}

	return domain.Sensor{
		Name:   record.Name,
		Type:   sensorType,
		Active: record.Active,
	}, nil
}
