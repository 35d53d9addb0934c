package security

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/catpoint/internal/classifier"
	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/logger"
	"github.com/oshokin/catpoint/internal/notify"
	pb "github.com/oshokin/catpoint/internal/pb/v1"
	repo "github.com/oshokin/catpoint/internal/repository/security"
	engine "github.com/oshokin/catpoint/internal/service/security"
)

// watchBufferSize is the number of pending events a slow watcher may fall behind by.
const watchBufferSize = 32

// Service abstracts the business operations the transport layer depends on.
type Service interface {
	Snapshot(ctx context.Context) (*domain.Snapshot, error)
	SetArmingStatus(ctx context.Context, status domain.ArmingStatus) error
	AddSensor(ctx context.Context, sensor domain.Sensor) error
	RemoveSensor(ctx context.Context, key domain.SensorKey) error
	ChangeSensorActivationStatus(ctx context.Context, key domain.SensorKey, active bool) error
	ProcessImage(ctx context.Context, image []byte) error
	Subscribe(listener notify.Listener)
	Unsubscribe(listener notify.Listener)
}

var _ pb.SecurityServiceServer = (*Server)(nil)

// Server implements the SecurityService gRPC API.
type Server struct {
	// service provides the business logic for security operations.
	service Service
}

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// GetStatus returns the current snapshot.
func (s *Server) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.snapshot(ctx)
}

// SetArmingStatus changes the arming status.
func (s *Server) SetArmingStatus(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "arming status is required")
	}

	armingStatus, err := domain.ParseArmingStatus(req.GetValue())
	if err != nil {
		return nil, toStatusError(ctx, err)
	}

	if err = s.service.SetArmingStatus(ctx, armingStatus); err != nil {
		return nil, toStatusError(ctx, err)
	}

	return s.snapshot(ctx)
}

// AddSensor registers a sensor.
func (s *Server) AddSensor(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sensor, err := pb.StructToSensor(req)
	if err != nil {
		return nil, toStatusError(ctx, err)
	}

	if err = s.service.AddSensor(ctx, sensor); err != nil {
		return nil, toStatusError(ctx, err)
	}

	return s.snapshot(ctx)
}

// RemoveSensor unregisters a sensor.
func (s *Server) RemoveSensor(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sensor, err := pb.StructToSensor(req)
	if err != nil {
		return nil, toStatusError(ctx, err)
	}

	if err = s.service.RemoveSensor(ctx, sensor.Key()); err != nil {
		return nil, toStatusError(ctx, err)
	}

	return s.snapshot(ctx)
}

// ChangeSensorActivation applies a sensor activation event.
func (s *Server) ChangeSensorActivation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sensor, err := pb.StructToSensor(req)
	if err != nil {
		return nil, toStatusError(ctx, err)
	}

	if err = s.service.ChangeSensorActivationStatus(ctx, sensor.Key(), sensor.Active); err != nil {
		return nil, toStatusError(ctx, err)
	}

	return s.snapshot(ctx)
}

// ProcessImage runs cat detection over a camera frame.
func (s *Server) ProcessImage(ctx context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "image is required")
	}

	if err := s.service.ProcessImage(ctx, req.GetValue()); err != nil {
		return nil, toStatusError(ctx, err)
	}

	return s.snapshot(ctx)
}

// Watch streams a snapshot first and then one message per committed change.
// Each message carries the event name and the snapshot taken when it is sent.
// Events that do not fit the buffer are dropped.
func (s *Server) Watch(_ *emptypb.Empty, stream pb.SecurityServiceWatchServer) error {
	ctx := logger.WithName(stream.Context(), "watch")
	events := make(chan string, watchBufferSize)

	push := func(event string) {
		select {
		case events <- event:
		default:
			logger.WarnKV(ctx, "Watcher is too slow, event dropped", "event", event)
		}
	}

	listener := &notify.Funcs{
		OnAlarmStatus: func(context.Context, domain.AlarmStatus) {
			push(pb.EventAlarmStatus)
		},
		OnArmingStatus: func(context.Context, domain.ArmingStatus) {
			push(pb.EventArmingStatus)
		},
		OnCatDetected: func(context.Context, bool) {
			push(pb.EventCatDetected)
		},
		OnSensors: func(context.Context, []domain.Sensor) {
			push(pb.EventSensors)
		},
	}

	s.service.Subscribe(listener)
	defer s.service.Unsubscribe(listener)

	if err := s.send(ctx, stream, pb.EventSnapshot); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-events:
			if err := s.send(ctx, stream, event); err != nil {
				return err
			}
		}
	}
}

// send writes one event message to the stream.
func (s *Server) send(ctx context.Context, stream pb.SecurityServiceWatchServer, event string) error {
	snapshot, err := s.service.Snapshot(ctx)
	if err != nil {
		return toStatusError(ctx, err)
	}

	message, err := pb.EventStruct(event, snapshot)
	if err != nil {
		return toStatusError(ctx, err)
	}

	return stream.Send(message)
}

// snapshot returns the current state as a Struct message.
func (s *Server) snapshot(ctx context.Context) (*structpb.Struct, error) {
	snapshot, err := s.service.Snapshot(ctx)
	if err != nil {
		return nil, toStatusError(ctx, err)
	}

	result, err := pb.SnapshotToStruct(snapshot)
	if err != nil {
		return nil, toStatusError(ctx, err)
	}

	return result, nil
}

// toStatusError maps domain errors to gRPC status codes.
// Unclassified errors are logged and reported as Internal without details.
func toStatusError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, engine.ErrUnknownSensor), errors.Is(err, repo.ErrSensorNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, repo.ErrSensorExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, domain.ErrInvalidArmingStatus),
		errors.Is(err, domain.ErrInvalidAlarmStatus),
		errors.Is(err, domain.ErrInvalidSensorType),
		errors.Is(err, domain.ErrEmptySensorName),
		errors.Is(err, pb.ErrNilMessage),
		errors.Is(err, pb.ErrMissingField),
		errors.Is(err, classifier.ErrEmptyImage):
		return status.Error(codes.InvalidArgument, err.Error())
	}

	logger.ErrorKV(ctx, "Security operation failed", "error", err)

	return status.Error(codes.Internal, "unable to process request")
}
