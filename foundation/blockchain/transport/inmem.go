package transport

import (
	"sort"
	"sync"
	"time"

	"github.com/ardanlabs/minichain/foundation/blockchain/peer"
)

// inMemQueueSize is the number of packets an in-memory transport buffers
// before a send fails.
const inMemQueueSize = 256

// Network connects in-memory transports to each other by address.
type Network struct {
	mu         sync.RWMutex
	transports map[string]*InMem
}

// NewNetwork constructs an empty in-memory network.
func NewNetwork() *Network {
	return &Network{
		transports: make(map[string]*InMem),
	}
}

// Register constructs a transport at the specified address and connects it
// to every transport already registered.
func (n *Network) Register(addr string) (*InMem, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, exists := n.transports[addr]; exists {
		return nil, NewNetworkError(KindConnect, "transport address already registered: %s", addr)
	}

	im := InMem{
		addr:    addr,
		network: n,
		packets: make(chan Packet, inMemQueueSize),
		shut:    make(chan struct{}),
	}
	n.transports[addr] = &im

	return &im, nil
}

func (n *Network) lookup(addr string) (*InMem, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	im, exists := n.transports[addr]
	return im, exists
}

func (n *Network) others(addr string) []*InMem {
	n.mu.RLock()
	defer n.mu.RUnlock()

	var list []*InMem
	for a, im := range n.transports {
		if a != addr {
			list = append(list, im)
		}
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].addr < list[j].addr
	})

	return list
}

func (n *Network) remove(addr string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	delete(n.transports, addr)
}

// =============================================================================

// InMem is a transport that delivers packets through channels. It
// implements the Transport interface.
type InMem struct {
	addr     string
	network  *Network
	packets  chan Packet
	shutOnce sync.Once
	shut     chan struct{}
}

// Addr returns the address the transport is registered under.
func (im *InMem) Addr() string {
	return im.addr
}

// SendRPC delivers the payload to the transport registered at the
// specified address.
func (im *InMem) SendRPC(to string, payload []byte) error {
	if to == im.addr {
		return NewNetworkError(KindNotFound, "cannot send rpc message to self, from address: %s, to address: %s", im.addr, to)
	}

	if _, exists := im.network.lookup(im.addr); !exists {
		return NewNetworkError(KindNotFound, "from transport address not found: %s", im.addr)
	}

	dst, exists := im.network.lookup(to)
	if !exists {
		return NewNetworkError(KindNotFound, "to transport address not found: %s", to)
	}

	return dst.deliver(Packet{From: im.addr, To: to, Payload: payload})
}

// Broadcast delivers the payload to every other registered transport.
func (im *InMem) Broadcast(payload []byte) error {
	for _, dst := range im.network.others(im.addr) {
		if err := dst.deliver(Packet{From: im.addr, To: dst.addr, Payload: payload}); err != nil {
			return err
		}
	}

	return nil
}

// Consume returns the channel packets sent to this transport arrive on.
func (im *InMem) Consume() <-chan Packet {
	return im.packets
}

// Peers returns every other registered transport as a connected peer.
func (im *InMem) Peers() []peer.Peer {
	var peers []peer.Peer
	for _, other := range im.network.others(im.addr) {
		p := peer.New(other.addr, peer.Outgoing)
		p.State = peer.Connected
		p.LastHeartbeat = time.Now()
		peers = append(peers, p)
	}

	return peers
}

// Shutdown removes the transport from the network.
func (im *InMem) Shutdown() error {
	im.shutOnce.Do(func() {
		im.network.remove(im.addr)
		close(im.shut)
	})

	return nil
}

func (im *InMem) deliver(p Packet) error {
	select {
	case <-im.shut:
		return NewNetworkError(KindNotFound, "to transport address not found: %s", im.addr)
	default:
	}

	select {
	case im.packets <- p:
		return nil
	default:
		return NewNetworkError(KindMessage, "unable to send message to %s: queue is full", im.addr)
	}
}
