// Package transport moves RPC payloads between nodes. It frames and decodes
// peer messages, tracks peer liveness with heartbeats and forwards every
// received RPC to a single channel for the node to process.
package transport

import (
	"github.com/ardanlabs/minichain/foundation/blockchain/peer"
)

// EventHandler defines a function that is called when events
// occur in the processing of peer connections.
type EventHandler func(v string, args ...any)

// Packet is an RPC payload received from a peer.
type Packet struct {
	From    string
	To      string
	Payload []byte
}

// Transport represents the behavior required to exchange RPC payloads with
// other nodes.
type Transport interface {
	Addr() string
	SendRPC(to string, payload []byte) error
	Broadcast(payload []byte) error
	Consume() <-chan Packet
	Peers() []peer.Peer
	Shutdown() error
}
