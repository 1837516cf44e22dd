// Package peer implements the gossip node: a listening socket, a set of
// live connections, registry bootstrap, message dispatch and liveness
// pings. A single malformed message or unreachable peer never terminates
// the local node.
package peer

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"swarmnet/datamodel/node"
	"swarmnet/net/msgconn"
	"swarmnet/swarm/protocol"
	"swarmnet/swarm/registry"

	log "github.com/sirupsen/logrus"
)

const (
	defaultDialAttempts = 3
	dialTimeout         = 5 * time.Second
	dialRetryDelay      = 200 * time.Millisecond
)

type Options struct {
	// AdvertisedAddress is the address other nodes use to reach this one.
	// Defaults to the listener's bound address.
	AdvertisedAddress string
	// Credential is this node's registry credential (its public key).
	Credential []byte
	// Bootstrap addresses are registered before the initial dial round.
	Bootstrap []string
	// MaxConns caps the live connection set. Zero means unbounded.
	MaxConns int
	// DialAttempts bounds the per-address dial retries.
	DialAttempts uint
}

type Peer struct {
	addr         string
	reg          *registry.Registry
	ln           net.Listener
	maxConns     int
	dialAttempts uint

	mu       sync.Mutex
	conns    map[string]*msgconn.Conn // keyed by remote address
	stopping bool

	sf singleflight.Group // deduplicates concurrent dials per address
	wg sync.WaitGroup     // read loops and dial goroutines
}

// New binds the listener, registers this node and every bootstrap address
// in the registry. The initial dial round runs from Run.
func New(listenAddress string, reg *registry.Registry, opts Options) (*Peer, error) {
	ln, err := net.Listen("tcp", listenAddress)
	if err != nil {
		return nil, err
	}

	addr := opts.AdvertisedAddress
	if addr == "" {
		addr = ln.Addr().String()
	}

	attempts := opts.DialAttempts
	if attempts == 0 {
		attempts = defaultDialAttempts
	}

	p := &Peer{
		addr:         addr,
		reg:          reg,
		ln:           ln,
		maxConns:     opts.MaxConns,
		dialAttempts: attempts,
		conns:        make(map[string]*msgconn.Conn),
	}

	reg.Register(addr, opts.Credential)
	for _, b := range opts.Bootstrap {
		if b != addr {
			reg.Register(b, node.PlaceholderCredential)
		}
	}

	log.Infof("peer: %s listening on %s", addr, ln.Addr())
	return p, nil
}

// Addr returns this peer's advertised address.
func (p *Peer) Addr() string {
	return p.addr
}

// Run accepts inbound connections and dials every known address until the
// context is cancelled, then closes the listener and all connections.
func (p *Peer) Run(ctx context.Context) error {
	wg, cctx := errgroup.WithContext(ctx)

	wg.Go(func() error {
		return p.acceptLoop(cctx)
	})

	wg.Go(func() error {
		p.bootstrap(cctx)
		return nil
	})

	err := wg.Wait()

	p.closeConns()
	p.wg.Wait()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (p *Peer) acceptLoop(ctx context.Context) error {
	// Closing the listener unblocks Accept when the context is cancelled.
	go func() {
		<-ctx.Done()
		if err := p.ln.Close(); err != nil {
			log.Warnf("peer: error closing listener %s: %v", p.ln.Addr(), err)
		}
	}()

	var tempDelay time.Duration // how long to sleep on accept failure
	for {
		nc, err := p.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				log.Infof("peer: %s shutting down listener", p.addr)
				return ctx.Err()
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if max := 1 * time.Second; tempDelay > max {
					tempDelay = max
				}
				log.Warnf("peer: accept error on %s: %v; retrying in %v", p.ln.Addr(), err, tempDelay)
				time.Sleep(tempDelay)
				continue
			}
			log.Errorf("peer: critical accept error on %s: %v", p.ln.Addr(), err)
			return err
		}

		tempDelay = 0
		log.Debugf("peer: accepted connection from %s", nc.RemoteAddr())
		// The welcome push may block on a slow remote; never stall the
		// accept loop on it.
		go p.handleConn(nc)
	}
}

// bootstrap dials every address currently known, except our own.
func (p *Peer) bootstrap(ctx context.Context) {
	for _, addr := range p.dialTargets() {
		p.wg.Add(1)
		go func(addr string) {
			defer p.wg.Done()
			p.Dial(ctx, addr)
		}(addr)
	}
}

// dialTargets returns the registry snapshot minus this peer's own address.
func (p *Peer) dialTargets() []string {
	var out []string
	for _, addr := range p.reg.Snapshot() {
		if addr != p.addr {
			out = append(out, addr)
		}
	}
	return out
}

// Dial connects to a remote address with bounded retries and exponential
// backoff. An address that stays unreachable is logged and skipped, never
// fatal. Concurrent dials to the same address are collapsed into one.
func (p *Peer) Dial(ctx context.Context, address string) error {
	_, err, _ := p.sf.Do(address, func() (any, error) {
		if p.atConnLimit() {
			log.Warnf("peer: connection limit reached, not dialing %s", address)
			return nil, nil
		}

		var nc net.Conn
		err := retry.Do(
			func() error {
				d := net.Dialer{Timeout: dialTimeout}
				c, err := d.DialContext(ctx, "tcp", address)
				if err != nil {
					return err
				}
				nc = c
				return nil
			},
			retry.Context(ctx),
			retry.Attempts(p.dialAttempts),
			retry.Delay(dialRetryDelay),
			retry.DelayType(retry.BackOffDelay),
			retry.LastErrorOnly(true),
		)
		if err != nil {
			return nil, err
		}

		log.Debugf("peer: connected to %s", address)
		p.handleConn(nc)
		return nil, nil
	})

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warnf("peer: %s unreachable: %v", address, err)
	}
	return err
}

// handleConn installs an established connection, inbound or outbound: the
// connection joins the live set, receives a welcome announcement with the
// full current snapshot, and gets a dispatch loop.
func (p *Peer) handleConn(nc net.Conn) {
	mc := msgconn.New(nc)

	if !p.addConn(mc) {
		log.Warnf("peer: refusing connection from %s", mc.RemoteAddr())
		mc.Close()
		return
	}

	if err := mc.Send(protocol.NewAnnounce(p.reg.Snapshot())); err != nil {
		log.Warnf("peer: welcome push to %s failed: %v", mc.RemoteAddr(), err)
		p.removeConn(mc)
		mc.Close()
		return
	}

	p.wg.Add(1)
	go p.readLoop(mc)
}

func (p *Peer) readLoop(mc *msgconn.Conn) {
	defer p.wg.Done()
	defer func() {
		// Teardown touches the live set only; registry entries stay.
		p.removeConn(mc)
		mc.Close()
		log.Debugf("peer: connection to %s closed", mc.RemoteAddr())
	}()

	for {
		var env protocol.Envelope
		if err := mc.Receive(&env); err != nil {
			if msgconn.IsDecodeErr(err) {
				// The frame was consumed; drop it and keep the connection.
				log.Warnf("peer: dropping malformed frame from %s: %v", mc.RemoteAddr(), err)
				continue
			}
			if msgconn.IsClosedErr(err) {
				log.Debugf("peer: %s disconnected", mc.RemoteAddr())
			} else {
				// Framing is lost; this connection is unrecoverable.
				log.Errorf("peer: receive error from %s, closing connection: %v", mc.RemoteAddr(), err)
			}
			return
		}
		p.dispatch(&env, mc.RemoteAddr())
	}
}

func (p *Peer) dispatch(env *protocol.Envelope, from string) {
	if err := env.Validate(); err != nil {
		if errors.Is(err, protocol.ErrUnknownKind) {
			log.Warnf("peer: ignoring message with unknown kind from %s: %v", from, err)
		} else {
			log.Warnf("peer: dropping malformed %s message from %s: %v", env.Kind, from, err)
		}
		return
	}

	switch env.Kind {
	case protocol.KindList:
		p.merge(env.Nodes)
	case protocol.KindPing:
		if !p.reg.Touch(env.Nodes[0]) {
			// Liveness signal for a node we never registered; ignore.
			log.Debugf("peer: ping for unknown node %s", env.Nodes[0])
		}
	}
}

// merge registers every address we do not already know. Announcements do
// not carry per-node credentials, so new entries get a placeholder. The
// merge is idempotent; duplicate or stale announcements are harmless.
func (p *Peer) merge(addrs []string) {
	for _, addr := range addrs {
		if p.reg.Register(addr, node.PlaceholderCredential) {
			log.Infof("peer: learned %s (%d known)", addr, p.reg.Len())
		}
	}
}

// Ping unicasts a liveness message naming this peer's own address to every
// live connection. It is externally triggered; periodic pings come from a
// jittered ticker in the serve command.
func (p *Peer) Ping() {
	for _, mc := range p.connList() {
		if err := mc.Send(protocol.NewPing(p.addr)); err != nil {
			log.Warnf("peer: ping to %s failed: %v", mc.RemoteAddr(), err)
		}
	}
}

// ConnCount returns the size of the live connection set.
func (p *Peer) ConnCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

func (p *Peer) atConnLimit() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxConns > 0 && len(p.conns) >= p.maxConns
}

func (p *Peer) addConn(mc *msgconn.Conn) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopping {
		return false
	}
	if p.maxConns > 0 && len(p.conns) >= p.maxConns {
		return false
	}
	// One connection per remote address; a duplicate dial must not
	// displace the live entry.
	if _, dup := p.conns[mc.RemoteAddr()]; dup {
		return false
	}
	p.conns[mc.RemoteAddr()] = mc
	return true
}

// removeConn deletes mc from the live set. Removal is identity-checked so
// the teardown of one connection can never evict another that holds the
// same remote address.
func (p *Peer) removeConn(mc *msgconn.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conns[mc.RemoteAddr()] == mc {
		delete(p.conns, mc.RemoteAddr())
	}
}

func (p *Peer) connList() []*msgconn.Conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*msgconn.Conn, 0, len(p.conns))
	for _, mc := range p.conns {
		out = append(out, mc)
	}
	return out
}

// closeConns marks the peer as stopping, so no new connection can join
// the set, then closes every live connection.
func (p *Peer) closeConns() {
	p.mu.Lock()
	p.stopping = true
	p.mu.Unlock()

	for _, mc := range p.connList() {
		mc.Close()
	}
}
