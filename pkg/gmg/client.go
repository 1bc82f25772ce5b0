package gmg

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sourcegraph/conc"
)

const (
	// DefaultPort is the grill controller's UDP port.
	DefaultPort = 8080

	// DefaultBroadcastAddress is used as the host until discovery finds the grill.
	DefaultBroadcastAddress = "255.255.255.255"

	DefaultTries         = 5
	DefaultRetryInterval = 2 * time.Second

	readBufferSize = 1024
)

// Config configures a Client. Zero values are replaced by the defaults.
type Config struct {
	// Host is the grill address. When it equals BroadcastAddress the grill is
	// discovered before the first command is sent.
	Host string
	Port int

	// Tries is the number of transmissions made before giving up.
	Tries int

	// RetryInterval is the time between transmissions.
	RetryInterval time.Duration

	BroadcastAddress string
}

func (c Config) withDefaults() Config {
	if c.BroadcastAddress == "" {
		c.BroadcastAddress = DefaultBroadcastAddress
	}
	if c.Host == "" {
		c.Host = c.BroadcastAddress
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Tries <= 0 {
		c.Tries = DefaultTries
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = DefaultRetryInterval
	}
	return c
}

// Client talks to a single grill controller.
//
// Only one command is in flight at a time; concurrent calls are serialized.
type Client struct {
	cfg    Config
	logger *slog.Logger

	// mu serializes commands and discovery.
	mu sync.Mutex

	hostMu   sync.RWMutex
	host     string
	resolved bool
}

// Option configures optional Client behaviour.
type Option func(*Client)

// WithLogger sets the logger used for protocol diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient returns a client for the grill described by cfg.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg = cfg.withDefaults()

	c := &Client{
		cfg:      cfg,
		logger:   slog.Default(),
		host:     cfg.Host,
		resolved: cfg.Host != cfg.BroadcastAddress,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Host returns the grill address currently in use.
func (c *Client) Host() string {
	c.hostMu.RLock()
	defer c.hostMu.RUnlock()
	return c.host
}

// Port returns the grill's UDP port.
func (c *Client) Port() int {
	return c.cfg.Port
}

func (c *Client) isResolved() bool {
	c.hostMu.RLock()
	defer c.hostMu.RUnlock()
	return c.resolved
}

func (c *Client) setHost(host string) {
	c.hostMu.Lock()
	defer c.hostMu.Unlock()
	c.host = host
	c.resolved = true
}

// Response is a datagram received in reply to a command.
type Response struct {
	Data []byte
	Addr *net.UDPAddr
}

func (r *Response) String() string {
	return strings.TrimRight(string(r.Data), "\x00\r\n ")
}

// Send transmits cmd and returns the first datagram received from the grill.
// The grill is discovered first if no host is known yet.
func (c *Client) Send(ctx context.Context, cmd Command) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.send(ctx, cmd)
}

func (c *Client) send(ctx context.Context, cmd Command) (*Response, error) {
	if !c.isResolved() {
		c.logger.InfoContext(ctx, "Grill host is the broadcast address, discovering grill")
		if _, err := c.discover(ctx); err != nil {
			return nil, err
		}
	}

	host := net.ParseIP(c.Host())
	if host == nil {
		return nil, errors.Errorf("invalid grill host %q", c.Host())
	}

	dest := &net.UDPAddr{IP: host, Port: c.cfg.Port}
	resp, err := c.exchange(ctx, exchange{
		name:    cmd.String(),
		payload: cmd.Bytes(),
		dest:    dest,
		accept: func(d datagram) bool {
			return d.addr.IP.Equal(host)
		},
	})
	if err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "Received response from grill", "command", cmd, "addr", resp.Addr.String(), "bytes", len(resp.Data))
	return resp, nil
}

type datagram struct {
	data []byte
	addr *net.UDPAddr
}

type exchange struct {
	name    string
	payload []byte
	dest    *net.UDPAddr
	accept  func(datagram) bool
}

// exchange transmits ex.payload immediately and again on every retry tick
// until a datagram passes ex.accept or the configured tries are used up.
func (c *Client) exchange(ctx context.Context, ex exchange) (*Response, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero})
	if err != nil {
		return nil, errors.Wrap(err, "opening udp socket")
	}

	datagrams := make(chan datagram)
	readErr := make(chan error, 1)
	done := make(chan struct{})

	var wg conc.WaitGroup
	wg.Go(func() {
		readDatagrams(conn, datagrams, readErr, done)
	})

	ticker := time.NewTicker(c.cfg.RetryInterval)
	defer func() {
		ticker.Stop()
		close(done)
		conn.Close()
		wg.Wait()
	}()

	attempts := 0
	transmit := func() {
		attempts++
		if _, err := conn.WriteToUDP(ex.payload, ex.dest); err != nil {
			c.logger.WarnContext(ctx, "Grill datagram send failed", "command", ex.name, "addr", ex.dest.String(), "attempt", attempts, "error", err)
			return
		}
		c.logger.DebugContext(ctx, "Grill datagram sent", "command", ex.name, "addr", ex.dest.String(), "attempt", attempts)
	}

	transmit()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case d := <-datagrams:
			if !ex.accept(d) {
				c.logger.DebugContext(ctx, "Ignoring datagram", "command", ex.name, "from", d.addr.String())
				continue
			}
			return &Response{Data: d.data, Addr: d.addr}, nil

		case err := <-readErr:
			return nil, errors.Wrap(err, "reading from udp socket")

		case <-ticker.C:
			if attempts >= c.cfg.Tries {
				err := errors.Wrapf(ErrDeviceUnresponsive, "no response from grill (%s) to %s after %d attempts", ex.dest, ex.name, attempts)
				c.logger.ErrorContext(ctx, err.Error())
				return nil, err
			}
			transmit()
		}
	}
}

func readDatagrams(conn *net.UDPConn, out chan<- datagram, errs chan<- error, done <-chan struct{}) {
	for {
		buf := make([]byte, readBufferSize)
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-done:
			case errs <- err:
			}
			return
		}

		select {
		case out <- datagram{data: buf[:n], addr: addr}:
		case <-done:
			return
		}
	}
}
