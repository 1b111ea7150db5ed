package control

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/mcules/seedplan/internal/metrics"
)

// Client reads free space from a remote disk agent. It satisfies
// space.Oracle.
type Client struct {
	conn    *grpc.ClientConn
	addr    string
	timeout time.Duration

	Latency *metrics.LatencyTracker
}

// Dial creates a client for the agent at addr. The connection is lazy; a
// down agent surfaces on the first FreeSpace call.
func Dial(addr string, timeout time.Duration, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, addr: addr, timeout: timeout}, nil
}

func (c *Client) FreeSpace(ctx context.Context, dir string) (int64, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	out := new(wrapperspb.Int64Value)
	err := c.conn.Invoke(ctx, freeSpaceMethod, wrapperspb.String(dir), out)
	c.Latency.Observe(c.addr, time.Since(start), err == nil)
	if err != nil {
		return 0, fmt.Errorf("free space of %s from %s: %w", dir, c.addr, err)
	}
	return out.GetValue(), nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
