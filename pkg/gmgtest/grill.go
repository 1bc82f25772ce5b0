// Package gmgtest provides a fake grill controller listening on loopback UDP.
package gmgtest

import (
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/sourcegraph/conc"
)

// StatusPayloadSize is the size of the status payloads the fake grill sends.
const StatusPayloadSize = 36

// State is the fake grill's internal state. Temperatures are raw Fahrenheit.
type State struct {
	Power          int // 0 off, 1 on, 2 fan mode
	GrillTemp      int
	DesiredGrill   int
	FoodTemp       int
	DesiredFood    int
	LowPelletAlarm bool
}

// Grill is a fake controller answering the grill protocol on 127.0.0.1.
type Grill struct {
	conn *net.UDPConn
	wg   conc.WaitGroup

	mu       sync.Mutex
	state    State
	received []string

	id       string
	model    string
	ack      string
	silent   bool
	echo     bool
	echoOnly bool
	stuck    bool
}

// Option configures a fake grill before it starts serving.
type Option func(*Grill)

// WithState sets the initial grill state.
func WithState(s State) Option {
	return func(g *Grill) { g.state = s }
}

// WithID sets the response to the get-id command.
func WithID(id string) Option {
	return func(g *Grill) { g.id = id }
}

// WithModel sets the raw response to the get-model command.
func WithModel(model string) Option {
	return func(g *Grill) { g.model = model }
}

// WithAck overrides the acknowledgement for power and temperature commands.
func WithAck(ack string) Option {
	return func(g *Grill) { g.ack = ack }
}

// Silent makes the grill swallow every datagram.
func Silent() Option {
	return func(g *Grill) { g.silent = true }
}

// Echo makes the grill send each datagram back before answering it.
func Echo() Option {
	return func(g *Grill) { g.echo = true }
}

// EchoOnly makes the grill send each datagram back and nothing else.
func EchoOnly() Option {
	return func(g *Grill) { g.echoOnly = true }
}

// Stuck makes the grill acknowledge commands without changing state.
func Stuck() Option {
	return func(g *Grill) { g.stuck = true }
}

// New starts a fake grill and stops it when the test ends.
func New(t testing.TB, opts ...Option) *Grill {
	t.Helper()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listening for fake grill: %v", err)
	}

	g := &Grill{
		conn:  conn,
		id:    "GMG12345678",
		model: "UNJB0000000v1.2.3",
		ack:   "OK",
	}
	for _, opt := range opts {
		opt(g)
	}
	g.wg.Go(g.serve)

	t.Cleanup(g.Close)
	return g
}

// Close stops the fake grill.
func (g *Grill) Close() {
	g.conn.Close()
	g.wg.Wait()
}

// Port returns the UDP port the grill listens on.
func (g *Grill) Port() int {
	return g.conn.LocalAddr().(*net.UDPAddr).Port
}

// SetState replaces the grill state.
func (g *Grill) SetState(s State) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = s
}

// State returns the current grill state.
func (g *Grill) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Received returns the command tokens received so far, without framing.
func (g *Grill) Received() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.received...)
}

// Count returns how many times a command token was received.
func (g *Grill) Count(token string) int {
	n := 0
	for _, r := range g.Received() {
		if r == token {
			n++
		}
	}
	return n
}

func (g *Grill) serve() {
	buf := make([]byte, 1024)
	for {
		n, addr, err := g.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}

		data := append([]byte(nil), buf[:n]...)
		token := strings.TrimSuffix(strings.TrimSuffix(string(data), "\n"), "!")

		g.mu.Lock()
		g.received = append(g.received, token)
		g.mu.Unlock()

		if g.silent {
			continue
		}

		if g.echo || g.echoOnly {
			g.conn.WriteToUDP(data, addr)
			if g.echoOnly {
				continue
			}
		}

		if reply := g.handle(token); reply != nil {
			g.conn.WriteToUDP(reply, addr)
		}
	}
}

func (g *Grill) handle(token string) []byte {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case token == "UR001":
		return StatusPayload(g.state)
	case token == "UL":
		return []byte(g.id)
	case token == "UN":
		return []byte(g.model)
	case token == "UK001":
		if !g.stuck {
			g.state.Power = 1
		}
		return []byte(g.ack)
	case token == "UK004":
		if !g.stuck {
			g.state.Power = 0
		}
		return []byte(g.ack)
	case strings.HasPrefix(token, "UT"):
		if v, err := strconv.Atoi(token[2:]); err == nil && !g.stuck {
			g.state.DesiredGrill = v
		}
		return []byte(g.ack)
	case strings.HasPrefix(token, "UF"):
		if v, err := strconv.Atoi(token[2:]); err == nil && !g.stuck {
			g.state.DesiredFood = v
		}
		return []byte(g.ack)
	}

	return nil
}

// StatusPayload encodes s the way the controller reports it.
func StatusPayload(s State) []byte {
	p := make([]byte, StatusPayloadSize)
	p[0], p[1] = 'U', 'R'
	putUint16(p, 2, s.GrillTemp)
	putUint16(p, 4, s.FoodTemp)
	putUint16(p, 6, s.DesiredGrill)
	if s.LowPelletAlarm {
		putUint16(p, 24, 128)
	}
	putUint16(p, 28, s.DesiredFood)
	// The state digit is the low nibble of byte 30.
	p[30] = byte(s.Power & 0x0f)
	return p
}

func putUint16(p []byte, offset, v int) {
	p[offset] = byte(v)
	p[offset+1] = byte(v >> 8)
}
