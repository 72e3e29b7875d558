package transport

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/ardanlabs/minichain/foundation/blockchain/peer"
)

// Default heartbeat settings used when the configuration leaves them empty.
const (
	DefaultHeartbeatInterval = 5 * time.Second
	DefaultHeartbeatTimeout  = 15 * time.Second
)

// Timeouts for connecting to a peer and for writing a single message.
const (
	dialTimeout  = 5 * time.Second
	writeTimeout = 5 * time.Second
)

// queueSize is the number of messages and packets buffered between the
// peer read loops, the processing loop and the node.
const queueSize = 256

// Config represents the configuration required to start the TCP transport.
type Config struct {
	Host              string
	KnownPeers        []string
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	EvHandler         EventHandler
}

// conn is a live connection to a peer. Writes are serialized so frames from
// different goroutines never interleave.
type conn struct {
	addr string
	nc   net.Conn
	mu   sync.Mutex
	w    *bufio.Writer
}

// write frames the message and flushes it to the socket.
func (c *conn) write(m Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.nc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}

	if err := writeFrame(c.w, m.Bytes()); err != nil {
		return err
	}

	return c.w.Flush()
}

// =============================================================================

// TCP manages the listener and the connections to peers. It implements the
// Transport interface.
type TCP struct {
	addr      string
	cfg       Config
	listener  net.Listener
	peers     *peer.PeerSet
	mu        sync.RWMutex
	conns     map[string]*conn
	messages  chan Message
	packets   chan Packet
	wg        sync.WaitGroup
	ticker    *time.Ticker
	shutOnce  sync.Once
	shut      chan struct{}
	evHandler EventHandler
}

// NewTCP binds the listener for the transport. Call Start to begin
// accepting connections.
func NewTCP(cfg Config) (*TCP, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}

	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = DefaultHeartbeatTimeout
	}

	listener, err := net.Listen("tcp", cfg.Host)
	if err != nil {
		return nil, NewNetworkError(KindConnect, "listen on %s: %s", cfg.Host, err)
	}

	t := TCP{
		addr:      listener.Addr().String(),
		cfg:       cfg,
		listener:  listener,
		peers:     peer.NewPeerSet(),
		conns:     make(map[string]*conn),
		messages:  make(chan Message, queueSize),
		packets:   make(chan Packet, queueSize),
		ticker:    time.NewTicker(cfg.HeartbeatInterval),
		shut:      make(chan struct{}),
		evHandler: ev,
	}

	return &t, nil
}

// Start launches the accept, processing and heartbeat goroutines and then
// connects to the known peers. A known peer that can't be reached is
// reported and skipped.
func (t *TCP) Start() {
	t.evHandler("transport: Start: listening on %s", t.addr)

	// Load the set of operations we need to run.
	operations := []func(){
		t.acceptOperations,
		t.processOperations,
		t.heartbeatOperations,
	}

	// Set waitgroup to match the number of G's we need for the set
	// of operations we have.
	g := len(operations)
	t.wg.Add(g)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	// Start all the operational G's.
	for _, op := range operations {
		go func(op func()) {
			defer t.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	// Wait for the G's to report they are running.
	for i := 0; i < g; i++ {
		<-hasStarted
	}

	for _, addr := range t.cfg.KnownPeers {
		if err := t.Connect(addr); err != nil {
			t.evHandler("transport: Start: connect[%s]: ERROR: %s", addr, err)
		}
	}
}

// Addr returns the address the transport is listening on.
func (t *TCP) Addr() string {
	return t.addr
}

// Connect dials the peer at the specified address and starts reading from
// the connection.
func (t *TCP) Connect(addr string) error {
	if t.isShutdown() {
		return NewNetworkError(KindConnect, "transport is shut down")
	}

	if _, exists := t.peers.Get(addr); exists {
		return nil
	}

	p := peer.New(addr, peer.Outgoing)
	if !t.peers.Add(p) {
		return nil
	}
	t.evHandler("transport: Connect: peer[%s]: state[%s]", addr, p.State)

	nc, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		t.peers.Remove(addr)
		return NewNetworkError(KindConnect, "dial %s: %s", addr, err)
	}

	t.attach(addr, nc)
	return nil
}

// SendRPC writes the payload to the connected peer with the specified
// address.
func (t *TCP) SendRPC(to string, payload []byte) error {
	c, exists := t.conn(to)
	if !exists {
		return NewNetworkError(KindNotFound, "peer not found: %s", to)
	}

	if err := c.write(NewRPCMessage(t.addr, payload)); err != nil {
		t.remove(to, err.Error())
		return NewNetworkError(KindMessage, "unable to send message to %s: %s", to, err)
	}

	return nil
}

// Broadcast writes the payload to every connected peer. A peer that can't
// be written to is removed and the remaining peers are still attempted.
func (t *TCP) Broadcast(payload []byte) error {
	var errs []error
	for _, c := range t.connList() {
		if err := c.write(NewRPCMessage(t.addr, payload)); err != nil {
			t.remove(c.addr, err.Error())
			errs = append(errs, NewNetworkError(KindMessage, "unable to send message to %s: %s", c.addr, err))
		}
	}

	return errors.Join(errs...)
}

// Consume returns the channel every RPC received from a peer arrives on.
// The channel is closed once the transport is shut down.
func (t *TCP) Consume() <-chan Packet {
	return t.packets
}

// Peers returns the current set of peers.
func (t *TCP) Peers() []peer.Peer {
	return t.peers.Copy("")
}

// Shutdown closes the listener and every connection and waits for all the
// goroutines to finish.
func (t *TCP) Shutdown() error {
	var err error

	t.shutOnce.Do(func() {
		t.evHandler("transport: shutdown: started")
		defer t.evHandler("transport: shutdown: completed")

		t.evHandler("transport: shutdown: stop ticker")
		t.ticker.Stop()

		t.evHandler("transport: shutdown: terminate goroutines")
		close(t.shut)
		err = t.listener.Close()

		for _, c := range t.connList() {
			c.write(NewDisconnectMessage(t.addr, "shutdown"))
			t.remove(c.addr, "shutdown")
		}

		t.wg.Wait()
		close(t.packets)
	})

	return err
}

// =============================================================================

// acceptOperations accepts incoming connections until the listener is
// closed.
func (t *TCP) acceptOperations() {
	t.evHandler("transport: acceptOperations: G started")
	defer t.evHandler("transport: acceptOperations: G completed")

	for {
		nc, err := t.listener.Accept()
		if err != nil {
			if t.isShutdown() {
				return
			}
			t.evHandler("transport: acceptOperations: ERROR: %s", err)
			continue
		}

		addr := nc.RemoteAddr().String()
		p := peer.New(addr, peer.Incoming)
		if !t.peers.Add(p) {
			nc.Close()
			continue
		}
		t.evHandler("transport: acceptOperations: peer[%s]: state[%s]", addr, p.State)

		t.attach(addr, nc)
	}
}

// processOperations handles every message read from the peers in the order
// they arrive.
func (t *TCP) processOperations() {
	t.evHandler("transport: processOperations: G started")
	defer t.evHandler("transport: processOperations: G completed")

	for {
		select {
		case m := <-t.messages:
			t.process(m)
		case <-t.shut:
			return
		}
	}
}

// process applies the effect of a single message.
func (t *TCP) process(m Message) {
	switch m.Tag {
	case TagPing:
		if c, exists := t.conn(m.From); exists {
			if err := c.write(NewPongMessage(t.addr)); err != nil {
				t.remove(m.From, err.Error())
			}
		}

	case TagPong:
		t.peers.Touch(m.From, time.Now())

	case TagError:
		t.evHandler("transport: process: peer[%s]: ERROR: %s", m.From, m.Text())
		t.remove(m.From, m.Text())

	case TagDisconnect:
		t.evHandler("transport: process: peer[%s]: DISCONNECT: %s", m.From, m.Text())
		t.remove(m.From, m.Text())

	case TagRPC:
		select {
		case t.packets <- Packet{From: m.From, To: t.addr, Payload: m.Payload}:
		case <-t.shut:
		}
	}
}

// heartbeatOperations pings every peer on each tick and evicts the peers
// that haven't answered within the timeout.
func (t *TCP) heartbeatOperations() {
	t.evHandler("transport: heartbeatOperations: G started")
	defer t.evHandler("transport: heartbeatOperations: G completed")

	for {
		select {
		case <-t.ticker.C:
			if !t.isShutdown() {
				t.heartbeat(time.Now())
			}
		case <-t.shut:
			return
		}
	}
}

// heartbeat sends a ping to every peer and evicts stale peers.
func (t *TCP) heartbeat(now time.Time) {
	for _, p := range t.peers.Stale(now, t.cfg.HeartbeatTimeout) {
		t.evHandler("transport: heartbeat: peer[%s]: last heartbeat[%s]: evicting", p.Addr, p.LastHeartbeat.Format(time.RFC3339))

		if c, exists := t.conn(p.Addr); exists {
			c.write(NewDisconnectMessage(t.addr, "heartbeat timeout"))
		}
		t.remove(p.Addr, "heartbeat timeout")
	}

	for _, c := range t.connList() {
		if err := c.write(NewPingMessage(t.addr)); err != nil {
			t.remove(c.addr, err.Error())
		}
	}
}

// attach registers the connection and starts its read loop.
func (t *TCP) attach(addr string, nc net.Conn) {
	c := conn{
		addr: addr,
		nc:   nc,
		w:    bufio.NewWriter(nc),
	}

	t.mu.Lock()
	t.conns[addr] = &c
	t.mu.Unlock()

	if t.isShutdown() {
		t.remove(addr, "shutdown")
		return
	}

	t.peers.Connected(addr)
	t.evHandler("transport: attach: peer[%s]: state[%s]", addr, peer.Connected)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.readOperations(&c)
	}()
}

// readOperations decodes frames from the connection and queues them for
// processing until the connection fails.
func (t *TCP) readOperations(c *conn) {
	t.evHandler("transport: readOperations: peer[%s]: G started", c.addr)
	defer t.evHandler("transport: readOperations: peer[%s]: G completed", c.addr)

	r := bufio.NewReaderSize(c.nc, readBufferSize)

	for {
		data, err := readFrame(r)
		if err != nil {
			switch {
			case t.isShutdown():
				return
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
				t.queue(NewDisconnectMessage(c.addr, "disconnected"))
			default:
				t.queue(NewErrorMessage(c.addr, err.Error()))
			}
			return
		}

		m, err := DecodeMessage(c.addr, data)
		if err != nil {
			t.queue(NewErrorMessage(c.addr, err.Error()))
			return
		}

		t.queue(m)
	}
}

// queue hands a message to the processing goroutine.
func (t *TCP) queue(m Message) {
	select {
	case t.messages <- m:
	case <-t.shut:
	}
}

// remove closes the connection to the peer and drops it from the set.
func (t *TCP) remove(addr string, reason string) {
	t.mu.Lock()
	c, exists := t.conns[addr]
	delete(t.conns, addr)
	t.mu.Unlock()

	if exists {
		c.nc.Close()
	}

	if p, exists := t.peers.Remove(addr); exists {
		t.evHandler("transport: remove: peer[%s]: state[%s]: %s", addr, p.State, reason)
	}
}

func (t *TCP) conn(addr string) (*conn, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	c, exists := t.conns[addr]
	return c, exists
}

func (t *TCP) connList() []*conn {
	t.mu.RLock()
	defer t.mu.RUnlock()

	list := make([]*conn, 0, len(t.conns))
	for _, c := range t.conns {
		list = append(list, c)
	}

	return list
}

// isShutdown is used to test if a shutdown has been signaled.
func (t *TCP) isShutdown() bool {
	select {
	case <-t.shut:
		return true
	default:
		return false
	}
}
