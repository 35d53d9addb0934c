package security

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/catpoint/internal/domain/security"
)

// setupMockDB returns a repository backed by sqlmock.
func setupMockDB(t *testing.T) (sqlmock.Sqlmock, *PostgresRepository) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
	})

	return mock, NewPostgresRepository(db)
}

// TestPostgresRepository_EnsureSchema verifies tables are created and the status row seeded.
func TestPostgresRepository_EnsureSchema(t *testing.T) {
	t.Parallel()

	mock, repo := setupMockDB(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS security_status`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO security_status`).
		WithArgs(statusRowID, "NO_ALARM", "DISARMED").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestPostgresRepository_Statuses covers status reads and writes.
func TestPostgresRepository_Statuses(t *testing.T) {
	t.Parallel()

	mock, repo := setupMockDB(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(selectAlarmStatusQuery)).
		WithArgs(statusRowID).
		WillReturnRows(sqlmock.NewRows([]string{"alarm_status"}).AddRow("PENDING_ALARM"))

	alarm, err := repo.AlarmStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.PendingAlarm, alarm)

	mock.ExpectExec(regexp.QuoteMeta(updateArmingStatusQuery)).
		WithArgs("ARMED_AWAY", statusRowID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetArmingStatus(ctx, domain.ArmedAway))

	mock.ExpectExec(regexp.QuoteMeta(updateAlarmStatusQuery)).
		WithArgs("ALARM", statusRowID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.ErrorIs(t, repo.SetAlarmStatus(ctx, domain.Alarm), errStatusRowMissing)

	mock.ExpectQuery(regexp.QuoteMeta(selectArmingStatusQuery)).
		WithArgs(statusRowID).
		WillReturnError(sql.ErrNoRows)

	_, err = repo.ArmingStatus(ctx)
	require.ErrorIs(t, err, errStatusRowMissing)

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestPostgresRepository_Sensors covers listing and single lookups.
func TestPostgresRepository_Sensors(t *testing.T) {
	t.Parallel()

	mock, repo := setupMockDB(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(selectSensorsQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "sensor_type", "active"}).
			AddRow("front", "DOOR", true).
			AddRow("hall", "MOTION", false))

	sensors, err := repo.Sensors(ctx)
	require.NoError(t, err)
	require.Equal(t, []domain.Sensor{
		{Name: "front", Type: domain.Door, Active: true},
		{Name: "hall", Type: domain.Motion},
	}, sensors)

	mock.ExpectQuery(regexp.QuoteMeta(selectSensorQuery)).
		WithArgs("garage", "DOOR").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.Sensor(ctx, domain.SensorKey{Name: "garage", Type: domain.Door})
	require.ErrorIs(t, err, ErrSensorNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestPostgresRepository_SensorMutations maps affected row counts to sentinel errors.
func TestPostgresRepository_SensorMutations(t *testing.T) {
	t.Parallel()

	mock, repo := setupMockDB(t)
	ctx := context.Background()
	front := domain.NewSensor("front", domain.Door)

	mock.ExpectExec(regexp.QuoteMeta(insertSensorQuery)).
		WithArgs("front", "DOOR", false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertSensorQuery)).
		WithArgs("front", "DOOR", false).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.AddSensor(ctx, front))
	require.ErrorIs(t, repo.AddSensor(ctx, front), ErrSensorExists)

	front.Active = true

	mock.ExpectExec(regexp.QuoteMeta(updateSensorQuery)).
		WithArgs(true, "front", "DOOR").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateSensor(ctx, front))

	mock.ExpectExec(regexp.QuoteMeta(deleteSensorQuery)).
		WithArgs("front", "DOOR").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.ErrorIs(t, repo.RemoveSensor(ctx, front.Key()), ErrSensorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestPostgresRepository_CatDetected covers the latched cat flag column.
func TestPostgresRepository_CatDetected(t *testing.T) {
	t.Parallel()

	mock, repo := setupMockDB(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(updateCatDetectedQuery)).
		WithArgs(true, statusRowID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetCatDetected(ctx, true))

	mock.ExpectQuery(regexp.QuoteMeta(selectCatDetectedQuery)).
		WithArgs(statusRowID).
		WillReturnRows(sqlmock.NewRows([]string{"cat_detected"}).AddRow(true))

	detected, err := repo.CatDetected(ctx)
	require.NoError(t, err)
	require.True(t, detected)

	mock.ExpectQuery(regexp.QuoteMeta(selectCatDetectedQuery)).
		WithArgs(statusRowID).
		WillReturnError(sql.ErrNoRows)

	_, err = repo.CatDetected(ctx)
	require.ErrorIs(t, err, errStatusRowMissing)

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestPostgresRepository_Lock takes and releases the advisory lock.
func TestPostgresRepository_Lock(t *testing.T) {
	t.Parallel()

	mock, repo := setupMockDB(t)

	var locker Locker = repo

	mock.ExpectExec(regexp.QuoteMeta(advisoryLockQuery)).
		WithArgs(advisoryLockKey).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(advisoryUnlockQuery)).
		WithArgs(advisoryLockKey).
		WillReturnResult(sqlmock.NewResult(0, 0))

	unlock, err := locker.Lock(context.Background())
	require.NoError(t, err)

	unlock()

	require.NoError(t, mock.ExpectationsWereMet())
}
