package transport_test

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/ardanlabs/minichain/foundation/blockchain/transport"
)

func startTCP(t *testing.T, cfg transport.Config) *transport.TCP {
	t.Helper()

	cfg.Host = "127.0.0.1:0"
	cfg.EvHandler = func(v string, args ...any) { t.Logf(v, args...) }

	tcp, err := transport.NewTCP(cfg)
	if err != nil {
		t.Fatalf("Should be able to construct the transport: %s", err)
	}
	tcp.Start()

	t.Cleanup(func() { tcp.Shutdown() })

	return tcp
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func writeRaw(nc net.Conn, data []byte) error {
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(data)))

	if _, err := nc.Write(size[:]); err != nil {
		return err
	}

	_, err := nc.Write(data)
	return err
}

func readRaw(r *bufio.Reader) ([]byte, error) {
	var size [4]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		return nil, err
	}

	data := make([]byte, binary.BigEndian.Uint32(size[:]))
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}

	return data, nil
}

// =============================================================================

func Test_TCP(t *testing.T) {
	t.Log("Given the need to exchange RPCs over TCP.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen two nodes are connected.", testID)
		{
			server := startTCP(t, transport.Config{})
			client := startTCP(t, transport.Config{KnownPeers: []string{server.Addr()}})

			if !waitFor(func() bool { return len(server.Peers()) == 1 && len(client.Peers()) == 1 }) {
				t.Fatalf("\t%s\tTest %d:\tShould see each other as peers.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould see each other as peers.", success, testID)

			if err := client.SendRPC(server.Addr(), []byte("Hello world")); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to send an RPC: %v", failed, testID, err)
			}

			select {
			case p := <-server.Consume():
				if string(p.Payload) != "Hello world" || p.To != server.Addr() {
					t.Fatalf("\t%s\tTest %d:\tShould receive the RPC as sent, got %+v.", failed, testID, p)
				}
			case <-time.After(3 * time.Second):
				t.Fatalf("\t%s\tTest %d:\tShould receive the RPC.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould receive the RPC.", success, testID)

			if err := server.Broadcast([]byte("block")); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to broadcast: %v", failed, testID, err)
			}

			select {
			case p := <-client.Consume():
				if string(p.Payload) != "block" || p.From != server.Addr() {
					t.Fatalf("\t%s\tTest %d:\tShould receive the broadcast, got %+v.", failed, testID, p)
				}
			case <-time.After(3 * time.Second):
				t.Fatalf("\t%s\tTest %d:\tShould receive the broadcast.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould receive the broadcast.", success, testID)

			if err := client.SendRPC("127.0.0.1:1", nil); !errors.Is(err, transport.ErrNotFound) {
				t.Fatalf("\t%s\tTest %d:\tShould fail with not found for an unknown peer: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould fail with not found for an unknown peer.", success, testID)

			client.Shutdown()
			if !waitFor(func() bool { return len(server.Peers()) == 0 }) {
				t.Fatalf("\t%s\tTest %d:\tShould remove the peer after it shuts down.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould remove the peer after it shuts down.", success, testID)

			if _, open := <-client.Consume(); open {
				t.Fatalf("\t%s\tTest %d:\tShould close the packet channel on shutdown.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould close the packet channel on shutdown.", success, testID)
		}
	}
}

func Test_TCPPeerLifecycle(t *testing.T) {
	t.Log("Given the need to manage the lifecycle of TCP peers.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen a raw peer pings and disconnects.", testID)
		{
			server := startTCP(t, transport.Config{})

			nc, err := net.Dial("tcp", server.Addr())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to dial the server: %v", failed, testID, err)
			}
			defer nc.Close()

			if !waitFor(func() bool { return len(server.Peers()) == 1 }) {
				t.Fatalf("\t%s\tTest %d:\tShould accept the peer.", failed, testID)
			}

			if err := writeRaw(nc, transport.NewPingMessage("").Bytes()); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to ping: %v", failed, testID, err)
			}

			nc.SetReadDeadline(time.Now().Add(3 * time.Second))
			data, err := readRaw(bufio.NewReader(nc))
			if err != nil || len(data) == 0 || transport.Tag(data[0]) != transport.TagPong {
				t.Fatalf("\t%s\tTest %d:\tShould get a pong back: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get a pong back.", success, testID)

			if err := writeRaw(nc, transport.NewDisconnectMessage("", "bye").Bytes()); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to disconnect: %v", failed, testID, err)
			}

			if !waitFor(func() bool { return len(server.Peers()) == 0 }) {
				t.Fatalf("\t%s\tTest %d:\tShould remove the peer on disconnect.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould remove the peer on disconnect.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen a raw peer never answers a heartbeat.", testID)
		{
			server := startTCP(t, transport.Config{
				HeartbeatInterval: 50 * time.Millisecond,
				HeartbeatTimeout:  200 * time.Millisecond,
			})

			nc, err := net.Dial("tcp", server.Addr())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to dial the server: %v", failed, testID, err)
			}
			defer nc.Close()

			if !waitFor(func() bool { return len(server.Peers()) == 1 }) {
				t.Fatalf("\t%s\tTest %d:\tShould accept the peer.", failed, testID)
			}

			r := bufio.NewReader(nc)
			nc.SetReadDeadline(time.Now().Add(3 * time.Second))

			var reason string
			for {
				data, err := readRaw(r)
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be told about the eviction: %v", failed, testID, err)
				}

				msg, _ := transport.DecodeMessage(server.Addr(), data)
				if msg.Tag == transport.TagDisconnect {
					reason = msg.Text()
					break
				}
			}

			if reason != "heartbeat timeout" {
				t.Fatalf("\t%s\tTest %d:\tShould be evicted for a heartbeat timeout, got %q.", failed, testID, reason)
			}
			t.Logf("\t%s\tTest %d:\tShould be evicted for a heartbeat timeout.", success, testID)

			if !waitFor(func() bool { return len(server.Peers()) == 0 }) {
				t.Fatalf("\t%s\tTest %d:\tShould remove the silent peer.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould remove the silent peer.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen a raw peer sends an empty frame.", testID)
		{
			server := startTCP(t, transport.Config{})

			nc, err := net.Dial("tcp", server.Addr())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to dial the server: %v", failed, testID, err)
			}
			defer nc.Close()

			if !waitFor(func() bool { return len(server.Peers()) == 1 }) {
				t.Fatalf("\t%s\tTest %d:\tShould accept the peer.", failed, testID)
			}

			if err := writeRaw(nc, nil); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to write: %v", failed, testID, err)
			}

			if !waitFor(func() bool { return len(server.Peers()) == 0 }) {
				t.Fatalf("\t%s\tTest %d:\tShould remove the peer on a decode failure.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould remove the peer on a decode failure.", success, testID)
		}
	}
}
