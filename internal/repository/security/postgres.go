package security

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// Register the "postgres" database/sql driver.
	_ "github.com/lib/pq"

	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/logger"
)

const (
	// statusRowID is the primary key of the single status row.
	statusRowID = 1
	// advisoryLockKey identifies the system-wide advisory lock.
	advisoryLockKey int64 = 0x63617470

	schemaStatements = `
CREATE TABLE IF NOT EXISTS security_status (
	id            SMALLINT PRIMARY KEY,
	alarm_status  TEXT NOT NULL,
	arming_status TEXT NOT NULL
);
ALTER TABLE security_status ADD COLUMN IF NOT EXISTS cat_detected BOOLEAN NOT NULL DEFAULT FALSE;
CREATE TABLE IF NOT EXISTS security_sensors (
	name        TEXT    NOT NULL,
	sensor_type TEXT    NOT NULL,
	active      BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (name, sensor_type)
);`

	seedStatusQuery = `INSERT INTO security_status (id, alarm_status, arming_status)
VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`
	selectAlarmStatusQuery   = `SELECT alarm_status FROM security_status WHERE id = $1`
	updateAlarmStatusQuery   = `UPDATE security_status SET alarm_status = $1 WHERE id = $2`
	selectArmingStatusQuery  = `SELECT arming_status FROM security_status WHERE id = $1`
	updateArmingStatusQuery  = `UPDATE security_status SET arming_status = $1 WHERE id = $2`
	selectCatDetectedQuery   = `SELECT cat_detected FROM security_status WHERE id = $1`
	updateCatDetectedQuery   = `UPDATE security_status SET cat_detected = $1 WHERE id = $2`
	advisoryLockQuery        = `SELECT pg_advisory_lock($1)`
	advisoryUnlockQuery      = `SELECT pg_advisory_unlock($1)`
	selectSensorsQuery       = `SELECT name, sensor_type, active FROM security_sensors ORDER BY name, sensor_type`
	selectSensorQuery        = `SELECT active FROM security_sensors WHERE name = $1 AND sensor_type = $2`
	insertSensorQuery        = `INSERT INTO security_sensors (name, sensor_type, active)
VALUES ($1, $2, $3) ON CONFLICT (name, sensor_type) DO NOTHING`
	deleteSensorQuery = `DELETE FROM security_sensors WHERE name = $1 AND sensor_type = $2`
	updateSensorQuery = `UPDATE security_sensors SET active = $1 WHERE name = $2 AND sensor_type = $3`
)

// errStatusRowMissing is returned when the status row was never seeded.
var errStatusRowMissing = errors.New("status row missing, run EnsureSchema first")

// PostgresRepository stores the state in PostgreSQL.
type PostgresRepository struct {
	// db is the connection pool.
	db *sql.DB
}

// OpenPostgres opens a connection pool for the DSN and verifies it with a ping.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// NewPostgresRepository creates a repository on top of an open pool.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// EnsureSchema creates the tables if needed and seeds the status row.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaStatements); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	_, err := r.db.ExecContext(
		ctx,
		seedStatusQuery,
		statusRowID,
		domain.NoAlarm.String(),
		domain.Disarmed.String(),
	)
	if err != nil {
		return fmt.Errorf("seed status: %w", err)
	}

	return nil
}

// AlarmStatus returns the stored alarm status.
func (r *PostgresRepository) AlarmStatus(ctx context.Context) (domain.AlarmStatus, error) {
	value, err := r.selectStatus(ctx, selectAlarmStatusQuery)
	if err != nil {
		return domain.NoAlarm, fmt.Errorf("get alarm status: %w", err)
	}

	return domain.ParseAlarmStatus(value)
}

// SetAlarmStatus stores the alarm status.
func (r *PostgresRepository) SetAlarmStatus(ctx context.Context, status domain.AlarmStatus) error {
	if err := r.updateStatus(ctx, updateAlarmStatusQuery, status.String()); err != nil {
		return fmt.Errorf("set alarm status: %w", err)
	}

	return nil
}

// ArmingStatus returns the stored arming status.
func (r *PostgresRepository) ArmingStatus(ctx context.Context) (domain.ArmingStatus, error) {
	value, err := r.selectStatus(ctx, selectArmingStatusQuery)
	if err != nil {
		return domain.Disarmed, fmt.Errorf("get arming status: %w", err)
	}

	return domain.ParseArmingStatus(value)
}

// SetArmingStatus stores the arming status.
func (r *PostgresRepository) SetArmingStatus(ctx context.Context, status domain.ArmingStatus) error {
	if err := r.updateStatus(ctx, updateArmingStatusQuery, status.String()); err != nil {
		return fmt.Errorf("set arming status: %w", err)
	}

	return nil
}

// CatDetected returns the latched cat flag.
func (r *PostgresRepository) CatDetected(ctx context.Context) (bool, error) {
	var detected bool

	err := r.db.QueryRowContext(ctx, selectCatDetectedQuery, statusRowID).Scan(&detected)
	if errors.Is(err, sql.ErrNoRows) {
		return false, errStatusRowMissing
	}

	if err != nil {
		return false, fmt.Errorf("get cat detected: %w", err)
	}

	return detected, nil
}

// SetCatDetected stores the cat flag.
func (r *PostgresRepository) SetCatDetected(ctx context.Context, detected bool) error {
	if err := r.updateStatus(ctx, updateCatDetectedQuery, detected); err != nil {
		return fmt.Errorf("set cat detected: %w", err)
	}

	return nil
}

// Lock takes a session-level advisory lock on a dedicated connection.
// The connection returns to the pool once the lock is released.
func (r *PostgresRepository) Lock(ctx context.Context) (func(), error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire lock connection: %w", err)
	}

	if _, err = conn.ExecContext(ctx, advisoryLockQuery, advisoryLockKey); err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("acquire lock: %w", err)
	}

	return func() {
		if _, err := conn.ExecContext(context.WithoutCancel(ctx), advisoryUnlockQuery, advisoryLockKey); err != nil {
			logger.WarnKV(ctx, "Failed to release advisory lock", "error", err)
		}

		_ = conn.Close()
	}, nil
}

// Sensors returns all sensors in display order.
func (r *PostgresRepository) Sensors(ctx context.Context) ([]domain.Sensor, error) {
	rows, err := r.db.QueryContext(ctx, selectSensorsQuery)
	if err != nil {
		return nil, fmt.Errorf("list sensors: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var sensors []domain.Sensor

	for rows.Next() {
		var (
			name, typeName string
			active         bool
		)

		if err = rows.Scan(&name, &typeName, &active); err != nil {
			return nil, fmt.Errorf("scan sensor: %w", err)
		}

		sensorType, err := domain.ParseSensorType(typeName)
		if err != nil {
			return nil, err
		}

		sensors = append(sensors, domain.Sensor{
			Name:   name,
			Type:   sensorType,
			Active: active,
		})
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("list sensors: %w", err)
	}

	domain.SortSensors(sensors)

	return sensors, nil
}

// Sensor returns a single sensor.
func (r *PostgresRepository) Sensor(ctx context.Context, key domain.SensorKey) (domain.Sensor, error) {
	var active bool

	err := r.db.QueryRowContext(ctx, selectSensorQuery, key.Name, key.Type.String()).Scan(&active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Sensor{}, fmt.Errorf("%w: %s", ErrSensorNotFound, key)
		}

		return domain.Sensor{}, fmt.Errorf("get sensor: %w", err)
	}

	return domain.Sensor{
		Name:   key.Name,
		Type:   key.Type,
		Active: active,
	}, nil
}

// AddSensor registers a new sensor.
func (r *PostgresRepository) AddSensor(ctx context.Context, sensor domain.Sensor) error {
	if err := sensor.Validate(); err != nil {
		return err
	}

	affected, err := r.exec(ctx, insertSensorQuery, sensor.Name, sensor.Type.String(), sensor.Active)
	if err != nil {
		return fmt.Errorf("add sensor: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrSensorExists, sensor.Key())
	}

	return nil
}

// RemoveSensor unregisters a sensor.
func (r *PostgresRepository) RemoveSensor(ctx context.Context, key domain.SensorKey) error {
	affected, err := r.exec(ctx, deleteSensorQuery, key.Name, key.Type.String())
	if err != nil {
		return fmt.Errorf("remove sensor: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrSensorNotFound, key)
	}

	return nil
}

// UpdateSensor replaces a stored sensor.
func (r *PostgresRepository) UpdateSensor(ctx context.Context, sensor domain.Sensor) error {
	affected, err := r.exec(ctx, updateSensorQuery, sensor.Active, sensor.Name, sensor.Type.String())
	if err != nil {
		return fmt.Errorf("update sensor: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrSensorNotFound, sensor.Key())
	}

	return nil
}

// selectStatus reads one column of the status row.
func (r *PostgresRepository) selectStatus(ctx context.Context, query string) (string, error) {
	var value string

	err := r.db.QueryRowContext(ctx, query, statusRowID).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errStatusRowMissing
	}

	return value, err
}

// updateStatus writes one column of the status row.
func (r *PostgresRepository) updateStatus(ctx context.Context, query string, value any) error {
	affected, err := r.exec(ctx, query, value, statusRowID)
	if err != nil {
		return err
	}

	if affected == 0 {
		return errStatusRowMissing
	}

	return nil
}

// exec runs a statement and returns the number of affected rows.
func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
