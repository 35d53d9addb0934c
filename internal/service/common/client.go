//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/catpoint/internal/config"
	domain "github.com/oshokin/catpoint/internal/domain/security"
	pb "github.com/oshokin/catpoint/internal/pb/v1"
)

// Client wraps the gRPC SecurityService client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the security server.
	conn *grpc.ClientConn
	// api is the SecurityService client interface.
	api pb.SecurityServiceClient
	// actor is attached to every call when set.
	actor *Actor

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithActor sends the actor with every call.
func WithActor(actor *Actor) Option {
	return func(c *Client) {
		c.actor = actor
	}
}

// WatchHandler receives one Watch event. Returning an error stops watching.
type WatchHandler func(event string, snapshot *domain.Snapshot) error

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errImageRequired is returned when an empty image is submitted.
	errImageRequired = errors.New("image must be provided")
)

// Dial establishes a gRPC connection to the security server.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy until native TLS is added.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial security server: %w", err)
	}

	client := &Client{
		conn:        conn,
		api:         pb.NewSecurityServiceClient(conn),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// Status retrieves the current snapshot.
func (c *Client) Status(ctx context.Context) (*domain.Snapshot, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.GetStatus(callCtx, new(emptypb.Empty))
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}

	return pb.StructToSnapshot(response)
}

// SetArmingStatus changes the arming status.
func (c *Client) SetArmingStatus(ctx context.Context, status domain.ArmingStatus) (*domain.Snapshot, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.SetArmingStatus(callCtx, wrapperspb.String(status.String()))
	if err != nil {
		return nil, fmt.Errorf("set arming status: %w", err)
	}

	return pb.StructToSnapshot(response)
}

// AddSensor registers a sensor.
func (c *Client) AddSensor(ctx context.Context, key domain.SensorKey) (*domain.Snapshot, error) {
	sensor := domain.Sensor{Name: key.Name, Type: key.Type}

	return c.sensorCall(ctx, "add sensor", pb.SecurityServiceClient.AddSensor, sensor)
}

// RemoveSensor unregisters a sensor.
func (c *Client) RemoveSensor(ctx context.Context, key domain.SensorKey) (*domain.Snapshot, error) {
	sensor := domain.Sensor{Name: key.Name, Type: key.Type}

	return c.sensorCall(ctx, "remove sensor", pb.SecurityServiceClient.RemoveSensor, sensor)
}

// ChangeSensorActivation reports a sensor becoming active or inactive.
func (c *Client) ChangeSensorActivation(
	ctx context.Context,
	key domain.SensorKey,
	active bool,
) (*domain.Snapshot, error) {
	sensor := domain.Sensor{
		Name:   key.Name,
		Type:   key.Type,
		Active: active,
	}

	return c.sensorCall(ctx, "change sensor activation", pb.SecurityServiceClient.ChangeSensorActivation, sensor)
}

// ProcessImage submits a camera frame for cat detection.
func (c *Client) ProcessImage(ctx context.Context, image []byte) (*domain.Snapshot, error) {
	if len(image) == 0 {
		return nil, errImageRequired
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.ProcessImage(callCtx, wrapperspb.Bytes(image))
	if err != nil {
		return nil, fmt.Errorf("process image: %w", err)
	}

	return pb.StructToSnapshot(response)
}

// Watch streams status events to handler until ctx is done, the server closes
// the stream or handler fails. The call timeout does not apply.
func (c *Client) Watch(ctx context.Context, handler WatchHandler) error {
	stream, err := c.api.Watch(c.actor.outgoingContext(ctx), new(emptypb.Empty))
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}

		return fmt.Errorf("open watch stream: %w", err)
	}

	for {
		message, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("receive watch event: %w", err)
		}

		snapshot, err := pb.StructToSnapshot(message)
		if err != nil {
			return fmt.Errorf("decode watch event: %w", err)
		}

		if err = handler(message.GetFields()[pb.FieldEvent].GetStringValue(), snapshot); err != nil {
			return err
		}
	}
}

// sensorRPC is a SecurityServiceClient method expression taking a sensor struct.
// The client is bound only after the sensor passes validation.
type sensorRPC func(
	pb.SecurityServiceClient,
	context.Context,
	*structpb.Struct,
	...grpc.CallOption,
) (*structpb.Struct, error)

// sensorCall performs a unary call carrying a sensor.

func (c *Client) sensorCall(
	ctx context.Context,
	operation string,
	call sensorRPC,
	sensor domain.Sensor,
) (*domain.Snapshot, error) {
	if err := sensor.Validate(); err != nil {
		return nil, err
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := call(c.api, callCtx, pb.SensorToStruct(sensor))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	return pb.StructToSnapshot(response)
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
// The actor, if any, is attached as metadata.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = c.actor.outgoingContext(ctx)

	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
