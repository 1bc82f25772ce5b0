package gmg

import (
	"bytes"
	"context"
	"net"

	"github.com/pkg/errors"
)

// Discover broadcasts CommandGetID and adopts the address of the first grill
// that answers as the client's host.
func (c *Client) Discover(ctx context.Context) (net.IP, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.discover(ctx)
}

func (c *Client) discover(ctx context.Context) (net.IP, error) {
	bcast := net.ParseIP(c.cfg.BroadcastAddress)
	if bcast == nil {
		return nil, errors.Errorf("invalid broadcast address %q", c.cfg.BroadcastAddress)
	}

	payload := CommandGetID.Bytes()
	c.logger.InfoContext(ctx, "Attempting grill discovery", "addr", c.cfg.BroadcastAddress, "port", c.cfg.Port)

	resp, err := c.exchange(ctx, exchange{
		name:    "discovery",
		payload: payload,
		dest:    &net.UDPAddr{IP: bcast, Port: c.cfg.Port},
		accept: func(d datagram) bool {
			// Our own broadcast can come straight back to us.
			return !bytes.Equal(d.data, payload)
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "discovering grill")
	}

	c.setHost(resp.Addr.IP.String())
	c.logger.InfoContext(ctx, "Received discovery response from grill", "addr", resp.Addr.String(), "id", resp.String())

	return resp.Addr.IP, nil
}
