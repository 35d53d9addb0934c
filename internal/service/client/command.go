package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oshokin/catpoint/internal/config"
	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/logger"
	"github.com/oshokin/catpoint/internal/service/common"
)

// Options configures how catpoint-ctl reaches the server.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string

	// ServerAddress overrides server address from config when specified.
	ServerAddress string

	// Retry keeps repeating the call while the server is unavailable.
	Retry bool
}

// Action performs one call and returns the resulting snapshot.
type Action func(ctx context.Context, client *common.Client) (*domain.Snapshot, error)

// defaultRetryInterval defines the delay between attempts when Retry is set.
const defaultRetryInterval = 1 * time.Second

// maxImageSize bounds images read from disk.
const maxImageSize = 32 << 20

// errImageTooLarge is returned for images above maxImageSize.
var errImageTooLarge = errors.New("image is too large")

// Run connects to the server, performs action and logs the snapshot.
func Run(ctx context.Context, opts *Options, name string, action Action) error {
	ctx = logger.WithName(ctx, "catpoint-ctl")

	client, err := connect(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	snapshot, err := perform(ctx, opts.Retry, name, func() (*domain.Snapshot, error) {
		return action(ctx, client)
	})
	if err != nil {
		return err
	}

	logger.Infof(ctx, "%s: %s", name, FormatSnapshot(snapshot))

	return nil
}

// Watch logs every status event until ctx is canceled.
func Watch(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "catpoint-ctl")

	client, err := connect(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	logger.Info(ctx, "Watching status events, press Ctrl+C to stop")

	return client.Watch(ctx, func(event string, snapshot *domain.Snapshot) error {
		logger.Infof(ctx, "%s: %s", event, FormatSnapshot(snapshot))

		return nil
	})
}

// Status reads the current snapshot.
func Status() Action {
	return func(ctx context.Context, client *common.Client) (*domain.Snapshot, error) {
		return client.Status(ctx)
	}
}

// Arm changes the arming status.
func Arm(armingStatus domain.ArmingStatus) Action {
	return func(ctx context.Context, client *common.Client) (*domain.Snapshot, error) {
		return client.SetArmingStatus(ctx, armingStatus)
	}
}

// AddSensor registers a sensor.
func AddSensor(key domain.SensorKey) Action {
	return func(ctx context.Context, client *common.Client) (*domain.Snapshot, error) {
		return client.AddSensor(ctx, key)
	}
}

// RemoveSensor unregisters a sensor.
func RemoveSensor(key domain.SensorKey) Action {
	return func(ctx context.Context, client *common.Client) (*domain.Snapshot, error) {
		return client.RemoveSensor(ctx, key)
	}
}

// ChangeSensor reports a sensor becoming active or inactive.
func ChangeSensor(key domain.SensorKey, active bool) Action {
	return func(ctx context.Context, client *common.Client) (*domain.Snapshot, error) {
		return client.ChangeSensorActivation(ctx, key, active)
	}
}

// SubmitImage reads an image from path and submits it for cat detection.
// The file is read before any call is made.
func SubmitImage(path string) (Action, error) {
	image, err := readImage(path)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, client *common.Client) (*domain.Snapshot, error) {
		return client.ProcessImage(ctx, image)
	}, nil
}

// FormatSnapshot renders a snapshot as a single log line.
func FormatSnapshot(snapshot *domain.Snapshot) string {
	if snapshot == nil {
		return "<nil snapshot>"
	}

	sensors := make([]string, 0, len(snapshot.Sensors))

	for _, sensor := range snapshot.Sensors {
		state := "inactive"
		if sensor.Active {
			state = "active"
		}

		sensors = append(sensors, fmt.Sprintf("%s %s", sensor.Key(), state))
	}

	cat := "no cat"
	if snapshot.CatDetected {
		cat = "cat detected"
	}

	return fmt.Sprintf("alarm: %s (%s), arming: %s, %s, sensors: [%s]",
		snapshot.AlarmStatus,
		snapshot.AlarmStatus.Description(),
		snapshot.ArmingStatus,
		cat,
		strings.Join(sensors, ", "))
}

// connect loads settings, detects the actor and dials the server.
func connect(ctx context.Context, opts *Options) (*common.Client, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	serverAddress := cfg.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	// Identify current user and hostname for audit logging.
	actor, err := common.DetectActor()
	if err != nil {
		return nil, err
	}

	client, err := common.Dial(ctx, serverAddress,
		common.WithCallTimeout(cfg.Timeout),
		common.WithActor(actor),
	)
	if err != nil {
		return nil, err
	}

	logger.DebugKV(ctx, "Connected", "server_address", serverAddress)

	return client, nil
}

// perform runs call once, or until it stops failing with a transient error when retry is set.
func perform(
	ctx context.Context,
	retry bool,
	name string,
	call func() (*domain.Snapshot, error),
) (*domain.Snapshot, error) {
	// attempt tries once, returns (snapshot, completed, error).
	attempt := func() (*domain.Snapshot, bool, error) {
		snapshot, err := call()
		if err == nil {
			return snapshot, true, nil
		}

		if !retry || !isTransient(err) {
			return nil, true, err
		}

		// Log error but continue retrying for transient failures.
		logger.ErrorKV(ctx, "Call failed, retrying", "action", name, "error", err)

		return nil, false, nil
	}

	// Attempt immediately before starting retry loop.
	if snapshot, done, err := attempt(); done {
		return snapshot, err
	}

	ticker := time.NewTicker(defaultRetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			if snapshot, done, err := attempt(); done {
				return snapshot, err
			}
		}
	}
}

// isTransient reports whether err is worth retrying.
func isTransient(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// readImage loads an image file and bounds its size.
func readImage(path string) ([]byte, error) {
	path = filepath.Clean(path)

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat image: %w", err)
	}

	if info.Size() > maxImageSize {
		return nil, fmt.Errorf("%w: %d bytes", errImageTooLarge, info.Size())
	}

	image, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	return image, nil
}
