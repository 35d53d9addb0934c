package server

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/oshokin/catpoint/internal/classifier"
	"github.com/oshokin/catpoint/internal/config"
	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/gpio"
	"github.com/oshokin/catpoint/internal/mqtt"
	pb "github.com/oshokin/catpoint/internal/pb/v1"
	repository "github.com/oshokin/catpoint/internal/repository/security"
	"github.com/oshokin/catpoint/internal/service/security"
)

// TestResolveListenAddress covers override, port extraction and errors.
func TestResolveListenAddress(t *testing.T) {
	t.Parallel()

	address, err := resolveListenAddress("alarm.local:50051", "")
	require.NoError(t, err)
	require.Equal(t, ":50051", address)

	address, err = resolveListenAddress("alarm.local:50051", "127.0.0.1:9090")
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9090", address)

	_, err = resolveListenAddress("", "")
	require.ErrorIs(t, err, ErrNoServerAddress)

	_, err = resolveListenAddress("no-port", "")
	require.Error(t, err)
}

// TestOpenRepository builds every backend that runs without external services.
func TestOpenRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	repo, release, err := openRepository(ctx, &config.Config{
		Storage: config.StorageConfig{Backend: config.StorageMemory},
	}, "")
	require.NoError(t, err)
	require.IsType(t, new(repository.MemoryRepository), repo)
	release()

	stateFile := filepath.Join(t.TempDir(), "state.json")

	repo, release, err = openRepository(ctx, &config.Config{
		Storage: config.StorageConfig{Backend: config.StorageFile},
	}, stateFile)
	require.NoError(t, err)
	require.IsType(t, new(repository.FileRepository), repo)
	release()

	mr := miniredis.RunT(t)

	repo, release, err = openRepository(ctx, &config.Config{
		Timeout: time.Second,
		Storage: config.StorageConfig{Backend: config.StorageRedis, RedisAddress: mr.Addr()},
	}, "")
	require.NoError(t, err)
	require.IsType(t, new(repository.RedisRepository), repo)
	require.NoError(t, repo.SetArmingStatus(ctx, domain.ArmedAway))
	require.True(t, mr.Exists(repository.DefaultRedisKeyPrefix+"arming_status"))
	release()

	_, _, err = openRepository(ctx, &config.Config{
		Storage: config.StorageConfig{Backend: "etcd"},
	}, "")
	require.ErrorIs(t, err, errUnknownBackend)
}

// TestNewClassifier selects and decorates the classifier backend.
func TestNewClassifier(t *testing.T) {
	t.Parallel()

	c, err := newClassifier(&config.Config{Classifier: config.ClassifierConfig{Backend: config.ClassifierFake}})
	require.NoError(t, err)
	require.IsType(t, new(classifier.Fake), c)

	c, err = newClassifier(&config.Config{
		Timeout: time.Second,
		Classifier: config.ClassifierConfig{
			Backend:   config.ClassifierHTTP,
			Endpoint:  "http://127.0.0.1:1/detect",
			CacheSize: 16,
		},
	})
	require.NoError(t, err)
	require.IsType(t, new(classifier.Caching), c)

	_, err = newClassifier(&config.Config{Classifier: config.ClassifierConfig{Backend: "oracle"}})
	require.ErrorIs(t, err, errUnknownBackend)
}

// TestAttachMQTT mirrors engine changes to the broker and applies remote sensor events.
func TestAttachMQTT(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	engine, err := security.New(repository.NewMemoryRepository(), classifier.NewFake(1))
	require.NoError(t, err)
	require.NoError(t, engine.AddSensor(ctx, domain.NewSensor("front", domain.Door)))
	require.NoError(t, engine.SetArmingStatus(ctx, domain.ArmedAway))

	client := mqtt.NewFake()

	stop, err := attachMQTT(ctx, client, "catpoint/security", engine)
	require.NoError(t, err)

	require.Equal(t, 1, client.Deliver("catpoint/security/sensor/DOOR/front", []byte("ON")))

	status, err := engine.AlarmStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.PendingAlarm, status)

	topics := make(map[string]bool)
	for _, message := range client.Published() {
		topics[message.Topic] = true
	}

	require.True(t, topics["catpoint/security/alarm"])
	require.True(t, topics["catpoint/security/sensors"])

	stop()

	published := len(client.Published())
	require.NoError(t, engine.SetArmingStatus(ctx, domain.Disarmed))
	require.Len(t, client.Published(), published)
}

// TestRunWatcher forwards GPIO edges and closes the reader on stop.
func TestRunWatcher(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	engine, err := security.New(repository.NewMemoryRepository(), classifier.NewFake(1))
	require.NoError(t, err)

	key := domain.SensorKey{Name: "front", Type: domain.Door}
	require.NoError(t, engine.AddSensor(ctx, domain.NewSensor(key.Name, key.Type)))

	reader := gpio.NewFake([]int{0}, []int{1})
	lines := []gpio.Line{{Offset: 4, Sensor: key}}

	stop := runWatcher(ctx, gpio.NewWatcher(reader, lines, engine, time.Millisecond), reader)

	require.Eventually(t, func() bool {
		sensors, err := engine.Sensors(ctx)

		return err == nil && len(sensors) == 1 && sensors[0].Active
	}, 5*time.Second, time.Millisecond)

	stop()
	require.True(t, reader.Closed())
}

// TestServe answers gRPC calls until the context is canceled.
func TestServe(t *testing.T) {
	t.Parallel()

	stateFile := filepath.Join(t.TempDir(), "state.json")
	settings := &config.Config{
		Timeout:    time.Second,
		Storage:    config.StorageConfig{Backend: config.StorageFile},
		Classifier: config.ClassifierConfig{Backend: config.ClassifierFake, ConfidenceThreshold: 50},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, release, err := build(ctx, settings, stateFile)
	require.NoError(t, err)

	defer release()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)

	go func() {
		done <- serve(ctx, lis, engine, lis.Addr().String(), settings.Storage.Backend)
	}()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	defer conn.Close()

	response, err := pb.NewSecurityServiceClient(conn).GetStatus(ctx, new(emptypb.Empty))
	require.NoError(t, err)

	snapshot, err := pb.StructToSnapshot(response)
	require.NoError(t, err)
	require.Equal(t, domain.NoAlarm, snapshot.AlarmStatus)

	cancel()

	select {
	case err = <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "server did not stop")
	}
}
