// Package peer maintains the peer related information such as the set
// of known peers and their liveness.
package peer

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Direction identifies who opened the connection to a peer.
type Direction uint8

// Set of connection directions.
const (
	Incoming Direction = iota + 1
	Outgoing
)

// String implements the fmt.Stringer interface.
func (d Direction) String() string {
	switch d {
	case Incoming:
		return "incoming"
	case Outgoing:
		return "outgoing"
	}
	return fmt.Sprintf("unknown(%d)", uint8(d))
}

// State represents where a peer is in its connection lifecycle.
type State uint8

// Set of peer states. Disconnected is terminal.
const (
	Connecting State = iota + 1
	Connected
	Disconnected
)

// String implements the fmt.Stringer interface.
func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

// =============================================================================

// Peer represents information about a node in the network.
type Peer struct {
	Addr          string    `json:"addr"`
	Direction     Direction `json:"-"`
	State         State     `json:"-"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// New constructs a peer that is in the process of connecting.
func New(addr string, dir Direction) Peer {
	return Peer{
		Addr:          addr,
		Direction:     dir,
		State:         Connecting,
		LastHeartbeat: time.Now(),
	}
}

// Match validates if the specified address matches this peer.
func (p Peer) Match(addr string) bool {
	return p.Addr == addr
}

// Status is the view of a peer handed out to clients.
type Status struct {
	Addr          string    `json:"addr"`
	Direction     string    `json:"direction"`
	State         string    `json:"state"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// Status returns the client view of the peer.
func (p Peer) Status() Status {
	return Status{
		Addr:          p.Addr,
		Direction:     p.Direction.String(),
		State:         p.State.String(),
		LastHeartbeat: p.LastHeartbeat,
	}
}

// =============================================================================

// PeerSet represents the data representation to maintain a set of known peers.
type PeerSet struct {
	mu  sync.RWMutex
	set map[string]Peer
}

// NewPeerSet constructs a new set to manage node peer information.
func NewPeerSet() *PeerSet {
	return &PeerSet{
		set: make(map[string]Peer),
	}
}

// Add adds a new peer to the set. It returns false if a peer with the
// same address already exists.
func (ps *PeerSet) Add(peer Peer) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if _, exists := ps.set[peer.Addr]; exists {
		return false
	}

	ps.set[peer.Addr] = peer
	return true
}

// Connected moves the peer into the connected state and resets its
// heartbeat.
func (ps *PeerSet) Connected(addr string) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	p, exists := ps.set[addr]
	if !exists {
		return false
	}

	p.State = Connected
	p.LastHeartbeat = time.Now()
	ps.set[addr] = p

	return true
}

// Touch records a heartbeat from the peer.
func (ps *PeerSet) Touch(addr string, now time.Time) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	p, exists := ps.set[addr]
	if !exists {
		return false
	}

	p.LastHeartbeat = now
	ps.set[addr] = p

	return true
}

// Remove removes a peer from the set and returns its final value in the
// disconnected state.
func (ps *PeerSet) Remove(addr string) (Peer, bool) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	p, exists := ps.set[addr]
	if !exists {
		return Peer{}, false
	}

	delete(ps.set, addr)
	p.State = Disconnected

	return p, true
}

// Get returns the peer with the specified address.
func (ps *PeerSet) Get(addr string) (Peer, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	p, exists := ps.set[addr]
	return p, exists
}

// Len returns the number of peers in the set.
func (ps *PeerSet) Len() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	return len(ps.set)
}

// Stale returns the connected peers whose last heartbeat is older than
// the timeout.
func (ps *PeerSet) Stale(now time.Time, timeout time.Duration) []Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	var peers []Peer
	for _, p := range ps.set {
		if p.State == Connected && now.Sub(p.LastHeartbeat) > timeout {
			peers = append(peers, p)
		}
	}

	sortPeers(peers)
	return peers
}

// Copy returns a list of the known peers, excluding the specified address.
func (ps *PeerSet) Copy(addr string) []Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	var peers []Peer
	for _, p := range ps.set {
		if !p.Match(addr) {
			peers = append(peers, p)
		}
	}

	sortPeers(peers)
	return peers
}

func sortPeers(peers []Peer) {
	sort.Slice(peers, func(i, j int) bool {
		return peers[i].Addr < peers[j].Addr
	})
}
