package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// GeneratorService is the gRPC service name a remote agent must serve.
	GeneratorService = "goalpath.tutor.v1.Generator"
	generateMethod   = "/" + GeneratorService + "/Generate"
)

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
	errAgentResponse            = errors.New("agent returned error")
)

// GRPCClientConfig holds configuration for the gRPC client.
type GRPCClientConfig struct {
	Address          string
	ConnectTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
}

// DefaultGRPCClientConfig returns default configuration.
func DefaultGRPCClientConfig() GRPCClientConfig {
	return GRPCClientConfig{
		Address:          "localhost:50051",
		ConnectTimeout:   5 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// GRPCClient generates text through a remote agent service. Requests and
// responses are google.protobuf.Struct messages: {"prompt"} in,
// {"text"} or {"error"} out.
type GRPCClient struct {
	conn   *grpc.ClientConn
	health healthpb.HealthClient
	addr   string
	logger *slog.Logger
}

// NewGRPCClient connects to the agent at addr and waits until the channel is ready.
func NewGRPCClient(ctx context.Context, addr string, logger *slog.Logger) (*GRPCClient, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg := DefaultGRPCClientConfig()
	if addr != "" {
		cfg.Address = addr
	}

	kacp := keepalive.ClientParameters{
		Time:                cfg.KeepaliveTime,
		Timeout:             cfg.KeepaliveTimeout,
		PermitWithoutStream: false,
	}

	conn, err := grpc.NewClient(cfg.Address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to agent at %s: %w", cfg.Address, err)
	}

	// Fail fast on bad agent endpoints.
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("agent at %s not ready: %w", cfg.Address, err)
	}

	logger.Info("Connected to agent service", "address", cfg.Address)

	return &GRPCClient{
		conn:   conn,
		health: healthpb.NewHealthClient(conn),
		addr:   cfg.Address,
		logger: logger,
	}, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Generate implements Generator.
func (c *GRPCClient) Generate(ctx context.Context, prompt string) (string, error) {
	req, err := structpb.NewStruct(map[string]any{"prompt": prompt})
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	var resp structpb.Struct
	if err := c.conn.Invoke(ctx, generateMethod, req, &resp); err != nil {
		return "", fmt.Errorf("generate request failed: %w", err)
	}

	fields := resp.GetFields()
	if msg := fields["error"].GetStringValue(); msg != "" {
		return "", fmt.Errorf("%w: %s", errAgentResponse, msg)
	}
	text := fields["text"].GetStringValue()
	if text == "" {
		return "", ErrEmptyOutput
	}
	return text, nil
}

// Health reports whether the agent serves the generator service.
func (c *GRPCClient) Health(ctx context.Context) error {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: GeneratorService})
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("agent status %s", resp.GetStatus())
	}
	return nil
}

// Close closes the gRPC connection.
func (c *GRPCClient) Close() error {
	if c.conn == nil {
		return nil
	}
	if err := c.conn.Close(); err != nil {
		c.logger.Warn("failed to close gRPC connection", "error", err)
		return err
	}
	return nil
}
