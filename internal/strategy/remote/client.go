package remote

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client calls a remote strategy worker. It never imports generated stubs:
// each method issues conn.Invoke directly against the hand-authored method
// names in serviceDesc, with the JSON codec selected per-call.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to a worker process at addr (host:port).
func Dial(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("remote: dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) callOpts() []grpc.CallOption {
	return []grpc.CallOption{grpc.CallContentSubtype(codecName)}
}

func (c *Client) OnInit(ctx context.Context, req *InitRequest) (*InitResponse, error) {
	resp := new(InitResponse)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/OnInit", req, resp, c.callOpts()...); err != nil {
		return nil, fmt.Errorf("remote: OnInit: %w", err)
	}
	return resp, nil
}

func (c *Client) OnBar(ctx context.Context, req *BarRequest) (*BarResponse, error) {
	resp := new(BarResponse)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/OnBar", req, resp, c.callOpts()...); err != nil {
		return nil, fmt.Errorf("remote: OnBar: %w", err)
	}
	return resp, nil
}

func (c *Client) OnDeinit(ctx context.Context, req *DeinitRequest) (*DeinitResponse, error) {
	resp := new(DeinitResponse)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/OnDeinit", req, resp, c.callOpts()...); err != nil {
		return nil, fmt.Errorf("remote: OnDeinit: %w", err)
	}
	return resp, nil
}
