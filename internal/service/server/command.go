package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"

	api "github.com/oshokin/catpoint/internal/api/grpc/security"
	"github.com/oshokin/catpoint/internal/config"
	"github.com/oshokin/catpoint/internal/logger"
	"github.com/oshokin/catpoint/internal/notify"
	pb "github.com/oshokin/catpoint/internal/pb/v1"
	"github.com/oshokin/catpoint/internal/service/security"
	"github.com/oshokin/catpoint/internal/version"
)

// Options controls the catpoint-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the gRPC server.
	ListenAddress string
	// StateFile specifies the path to persist state JSON for the file backend.
	StateFile string
}

// ErrNoServerAddress indicates missing server configuration.
var ErrNoServerAddress = errors.New("no server address configured")

// Run starts the gRPC server and blocks until context is canceled or server stops.
// Loads configuration first, then determines listen address from config or override.
func Run(ctx context.Context, opts *Options) error {
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if !logger.Configure(settings.LogLevel, settings.LogFormat) && settings.LogLevel != "" {
		logger.WarnKV(ctx, "Unknown log level, keeping the default", "log_level", settings.LogLevel)
	}

	ctx = logger.WithName(ctx, "catpoint-server")

	logger.InfoKV(ctx, "Starting", version.KV()...)

	stateFile := settings.StateFile
	if opts.StateFile != "" {
		stateFile = opts.StateFile
	}

	listenAddress, err := resolveListenAddress(settings.ServerAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	engine, release, err := build(ctx, settings, stateFile)
	if err != nil {
		return err
	}

	defer release()

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	return serve(ctx, lis, engine, listenAddress, settings.Storage.Backend)
}

// build wires repository, classifier, engine and optional inputs.
// The returned closer releases everything in reverse order.
func build(ctx context.Context, settings *config.Config, stateFile string) (*security.Service, closer, error) {
	repo, closeRepo, err := openRepository(ctx, settings, stateFile)
	if err != nil {
		return nil, nil, fmt.Errorf("open repository: %w", err)
	}

	imageClassifier, err := newClassifier(settings)
	if err != nil {
		closeRepo()

		return nil, nil, fmt.Errorf("create classifier: %w", err)
	}

	engine, err := security.New(repo, imageClassifier,
		security.WithConfidenceThreshold(settings.Classifier.ConfidenceThreshold),
		security.WithListeners(notify.NewLogListener()),
	)
	if err != nil {
		closeRepo()

		return nil, nil, fmt.Errorf("initialise service: %w", err)
	}

	closeMQTT, err := startMQTT(ctx, settings, engine)
	if err != nil {
		closeRepo()

		return nil, nil, fmt.Errorf("start mqtt bridge: %w", err)
	}

	closeGPIO, err := startGPIO(ctx, settings, engine)
	if err != nil {
		closeMQTT()
		closeRepo()

		return nil, nil, fmt.Errorf("start gpio watcher: %w", err)
	}

	return engine, func() {
		closeGPIO()
		closeMQTT()
		closeRepo()
	}, nil
}

// serve runs the gRPC server on lis until ctx is canceled.
func serve(ctx context.Context, lis net.Listener, engine api.Service, listenAddress, backend string) error {
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(api.UnaryActorInterceptor),
		grpc.ChainStreamInterceptor(api.StreamActorInterceptor),
	)
	pb.RegisterSecurityServiceServer(grpcServer, api.NewServer(engine))

	logger.InfoKV(ctx, "Security server listening", "listen_address", listenAddress, "storage", backend)

	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "GRPC server stopped")

	return nil
}

// resolveListenAddress determines the listen address for the gRPC server.
// If override is provided, uses it directly. Otherwise extracts port from configAddr.
func resolveListenAddress(configAddr, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if configAddr == "" {
		return "", ErrNoServerAddress
	}

	_, port, err := net.SplitHostPort(configAddr)
	if err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", configAddr, err)
	}

	// Port-only address binds on all interfaces.
	return ":" + port, nil
}
