package health

import (
	"context"
	"errors"
)

// Pinger interface for dependencies that support ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker checks a dependency through its Ping method.
type PingChecker struct {
	name   string
	pinger Pinger
}

// NewPingChecker creates a checker named name, e.g. "database" or "redis".
func NewPingChecker(name string, p Pinger) *PingChecker {
	return &PingChecker{name: name, pinger: p}
}

// Name returns the checker name.
func (c *PingChecker) Name() string {
	return c.name
}

// Check pings the dependency.
func (c *PingChecker) Check(ctx context.Context) error {
	if c.pinger == nil {
		return errors.New(c.name + " not configured")
	}
	return c.pinger.Ping(ctx)
}

// ConnChecker reports a connection-oriented client such as the MQTT
// subscriber as healthy while it is connected.
type ConnChecker struct {
	name        string
	isConnected func() bool
}

// NewConnChecker creates a connection state checker.
func NewConnChecker(name string, isConnected func() bool) *ConnChecker {
	return &ConnChecker{name: name, isConnected: isConnected}
}

// Name returns the checker name.
func (c *ConnChecker) Name() string {
	return c.name
}

// Check fails while the client is disconnected.
func (c *ConnChecker) Check(ctx context.Context) error {
	if c.isConnected == nil || !c.isConnected() {
		return errors.New(c.name + " not connected")
	}
	return nil
}
