package pb

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "catpoint.v1.SecurityService"

// Full method names.
const (
	SecurityServiceGetStatusFullMethodName              = "/" + ServiceName + "/GetStatus"
	SecurityServiceSetArmingStatusFullMethodName        = "/" + ServiceName + "/SetArmingStatus"
	SecurityServiceAddSensorFullMethodName              = "/" + ServiceName + "/AddSensor"
	SecurityServiceRemoveSensorFullMethodName           = "/" + ServiceName + "/RemoveSensor"
	SecurityServiceChangeSensorActivationFullMethodName = "/" + ServiceName + "/ChangeSensorActivation"
	SecurityServiceProcessImageFullMethodName           = "/" + ServiceName + "/ProcessImage"
	SecurityServiceWatchFullMethodName                  = "/" + ServiceName + "/Watch"
)

// SecurityServiceServer is the server API for SecurityService.
type SecurityServiceServer interface {
	GetStatus(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	SetArmingStatus(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	AddSensor(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	RemoveSensor(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ChangeSensorActivation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ProcessImage(ctx context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error)
	Watch(req *emptypb.Empty, stream SecurityServiceWatchServer) error
}

// SecurityServiceWatchServer is the server side of the Watch stream.
type SecurityServiceWatchServer interface {
	Send(message *structpb.Struct) error
	grpc.ServerStream
}

// SecurityServiceWatchClient is the client side of the Watch stream.
type SecurityServiceWatchClient interface {
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

// SecurityServiceClient is the client API for SecurityService.
type SecurityServiceClient interface {
	GetStatus(ctx context.Context, req *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	SetArmingStatus(ctx context.Context, req *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	AddSensor(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	RemoveSensor(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ChangeSensorActivation(
		ctx context.Context,
		req *structpb.Struct,
		opts ...grpc.CallOption,
	) (*structpb.Struct, error)
	ProcessImage(ctx context.Context, req *wrapperspb.BytesValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	Watch(ctx context.Context, req *emptypb.Empty, opts ...grpc.CallOption) (SecurityServiceWatchClient, error)
}

// errUnexpectedRequest is returned when a handler receives a message of the wrong type.
var errUnexpectedRequest = errors.New("unexpected request type")

// RegisterSecurityServiceServer registers the implementation with a gRPC server.
func RegisterSecurityServiceServer(registrar grpc.ServiceRegistrar, srv SecurityServiceServer) {
	registrar.RegisterService(&securityServiceDesc, srv)
}

// NewSecurityServiceClient creates a client stub bound to the connection.
//
//nolint:ireturn // Mirrors generated gRPC constructors.
func NewSecurityServiceClient(conn grpc.ClientConnInterface) SecurityServiceClient {
	return &securityServiceClient{conn: conn}
}

//nolint:gochecknoglobals // Service descriptors are package-level by gRPC convention.
var securityServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SecurityServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetStatus",
			Handler: unaryHandler(
				SecurityServiceGetStatusFullMethodName,
				func() *emptypb.Empty { return new(emptypb.Empty) },
				SecurityServiceServer.GetStatus,
			),
		},
		{
			MethodName: "SetArmingStatus",
			Handler: unaryHandler(
				SecurityServiceSetArmingStatusFullMethodName,
				func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) },
				SecurityServiceServer.SetArmingStatus,
			),
		},
		{
			MethodName: "AddSensor",
			Handler: unaryHandler(
				SecurityServiceAddSensorFullMethodName,
				newStruct,
				SecurityServiceServer.AddSensor,
			),
		},
		{
			MethodName: "RemoveSensor",
			Handler: unaryHandler(
				SecurityServiceRemoveSensorFullMethodName,
				newStruct,
				SecurityServiceServer.RemoveSensor,
			),
		},
		{
			MethodName: "ChangeSensorActivation",
			Handler: unaryHandler(
				SecurityServiceChangeSensorActivationFullMethodName,
				newStruct,
				SecurityServiceServer.ChangeSensorActivation,
			),
		},
		{
			MethodName: "ProcessImage",
			Handler: unaryHandler(
				SecurityServiceProcessImageFullMethodName,
				func() *wrapperspb.BytesValue { return new(wrapperspb.BytesValue) },
				SecurityServiceServer.ProcessImage,
			),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       watchHandler,
			ServerStreams: true,
		},
	},
	Metadata: "catpoint/v1/security.proto",
}

// newStruct allocates an empty Struct request.
func newStruct() *structpb.Struct {
	return new(structpb.Struct)
}

// unaryHandler adapts a typed server method to grpc.MethodHandler.
func unaryHandler[Req any](
	fullMethod string,
	newRequest func() Req,
	call func(SecurityServiceServer, context.Context, Req) (*structpb.Struct, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newRequest()
		if err := dec(in); err != nil {
			return nil, err
		}

		server, ok := srv.(SecurityServiceServer)
		if !ok {
			return nil, fmt.Errorf("%w: %T", errUnexpectedRequest, srv)
		}

		if interceptor == nil {
			return call(server, ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}

		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(Req)
			if !ok {
				return nil, fmt.Errorf("%w: %T", errUnexpectedRequest, req)
			}

			return call(server, ctx, typed)
		}

		return interceptor(ctx, in, info, handler)
	}
}

// watchHandler serves the Watch server stream.
func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}

	server, ok := srv.(SecurityServiceServer)
	if !ok {
		return fmt.Errorf("%w: %T", errUnexpectedRequest, srv)
	}

	return server.Watch(in, &securityServiceWatchServer{ServerStream: stream})
}

// securityServiceWatchServer implements SecurityServiceWatchServer over a raw stream.
type securityServiceWatchServer struct {
	grpc.ServerStream
}

// Send writes one event to the stream.
func (s *securityServiceWatchServer) Send(message *structpb.Struct) error {
	return s.SendMsg(message)
}

// securityServiceClient implements SecurityServiceClient over a connection.
type securityServiceClient struct {
	// conn is the underlying client connection.
	conn grpc.ClientConnInterface
}

// GetStatus returns the current snapshot.
func (c *securityServiceClient) GetStatus(
	ctx context.Context,
	req *emptypb.Empty,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, SecurityServiceGetStatusFullMethodName, req, opts...)
}

// SetArmingStatus changes the arming status.
func (c *securityServiceClient) SetArmingStatus(
	ctx context.Context,
	req *wrapperspb.StringValue,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, SecurityServiceSetArmingStatusFullMethodName, req, opts...)
}

// AddSensor registers a sensor.
func (c *securityServiceClient) AddSensor(
	ctx context.Context,
	req *structpb.Struct,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, SecurityServiceAddSensorFullMethodName, req, opts...)
}

// RemoveSensor unregisters a sensor.
func (c *securityServiceClient) RemoveSensor(
	ctx context.Context,
	req *structpb.Struct,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, SecurityServiceRemoveSensorFullMethodName, req, opts...)
}

// ChangeSensorActivation reports a sensor activation change.
func (c *securityServiceClient) ChangeSensorActivation(
	ctx context.Context,
	req *structpb.Struct,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, SecurityServiceChangeSensorActivationFullMethodName, req, opts...)
}

// ProcessImage submits a camera frame for cat detection.
func (c *securityServiceClient) ProcessImage(
	ctx context.Context,
	req *wrapperspb.BytesValue,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, SecurityServiceProcessImageFullMethodName, req, opts...)
}

// Watch opens the status event stream.
//
//nolint:ireturn // Mirrors generated gRPC stream constructors.
func (c *securityServiceClient) Watch(
	ctx context.Context,
	req *emptypb.Empty,
	opts ...grpc.CallOption,
) (SecurityServiceWatchClient, error) {
	stream, err := c.conn.NewStream(ctx, &securityServiceDesc.Streams[0], SecurityServiceWatchFullMethodName, opts...)
	if err != nil {
		return nil, err
	}

	client := &securityServiceWatchClient{ClientStream: stream}

	if err = client.SendMsg(req); err != nil {
		return nil, err
	}

	if err = client.CloseSend(); err != nil {
		return nil, err
	}

	return client, nil
}

// invoke performs a unary call returning a Struct.
func (c *securityServiceClient) invoke(
	ctx context.Context,
	method string,
	req any,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, req, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// securityServiceWatchClient implements SecurityServiceWatchClient.
type securityServiceWatchClient struct {
	grpc.ClientStream
}

// Recv reads the next event from the stream.
func (c *securityServiceWatchClient) Recv() (*structpb.Struct, error) {
	message := new(structpb.Struct)
	if err := c.RecvMsg(message); err != nil {
		return nil, err
	}

	return message, nil
}
