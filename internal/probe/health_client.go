// Package probe checks a running gateway over its gRPC health endpoint.
package probe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	"github.com/echomind/coach-gateway/internal/resilience"
)

// ErrClosed is returned by Check after Close.
var ErrClosed = errors.New("health client is closed")

// HealthClient holds a gRPC connection to a gateway's health service.
type HealthClient struct {
	addr   string
	conn   *grpc.ClientConn
	client healthpb.HealthClient
	retry  *resilience.RetryConfig
	mu     sync.RWMutex
	logger zerolog.Logger
}

// NewHealthClient prepares a connection to addr. The connection is made
// lazily on the first Check.
func NewHealthClient(addr string, retry *resilience.RetryConfig, logger zerolog.Logger) (*HealthClient, error) {
	if retry == nil {
		retry = resilience.DefaultRetryConfig()
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             3 * time.Second,
			PermitWithoutStream: true,
		}),
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create health client for %s: %w", addr, err)
	}

	return &HealthClient{
		addr:   addr,
		conn:   conn,
		client: healthpb.NewHealthClient(conn),
		retry:  retry,
		logger: logger.With().Str("component", "health_probe").Str("addr", addr).Logger(),
	}, nil
}

// Check asks for the serving status of service ("" for the whole server).
// Transient transport failures are retried.
func (c *HealthClient) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()
	if client == nil {
		return healthpb.HealthCheckResponse_UNKNOWN, ErrClosed
	}

	result := healthpb.HealthCheckResponse_UNKNOWN
	attempt := 0
	err := resilience.Retry(ctx, c.retry, func(ctx context.Context) error {
		attempt++
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		if err != nil {
			c.logger.Debug().Err(err).Int("attempt", attempt).Msg("Health check attempt failed")
			if isRetryableError(err) {
				return resilience.NewRetryableError(err)
			}
			return err
		}
		result = resp.GetStatus()
		return nil
	}, resilience.IsRetryableNetworkError)
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("health check failed: %w", err)
	}
	return result, nil
}

// Close releases the connection.
func (c *HealthClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.client = nil
	return err
}

func isRetryableError(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}
