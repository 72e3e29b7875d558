package transport_test

import (
	"errors"
	"testing"
	"time"

	"github.com/ardanlabs/minichain/foundation/blockchain/transport"
)

func Test_InMem(t *testing.T) {
	t.Log("Given the need to exchange RPCs between in-memory transports.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen sending between local and remote.", testID)
		{
			network := transport.NewNetwork()

			local, err := network.Register("local")
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to register local: %v", failed, testID, err)
			}

			remote, err := network.Register("remote")
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to register remote: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to register both transports.", success, testID)

			if _, err := network.Register("local"); !errors.Is(err, transport.ErrConnect) {
				t.Fatalf("\t%s\tTest %d:\tShould not register the same address twice: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould not register the same address twice.", success, testID)

			err = local.SendRPC("ghost", []byte("boo"))
			if !errors.Is(err, transport.ErrNotFound) {
				t.Fatalf("\t%s\tTest %d:\tShould fail with not found for ghost: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould fail with not found for ghost.", success, testID)

			if err := local.SendRPC("remote", []byte("hello")); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to send to remote: %v", failed, testID, err)
			}

			select {
			case p := <-remote.Consume():
				if p.From != "local" || p.To != "remote" || string(p.Payload) != "hello" {
					t.Fatalf("\t%s\tTest %d:\tShould receive the packet as sent, got %+v.", failed, testID, p)
				}
			case <-time.After(time.Second):
				t.Fatalf("\t%s\tTest %d:\tShould receive the packet at remote.", failed, testID)
			}

			select {
			case p := <-remote.Consume():
				t.Fatalf("\t%s\tTest %d:\tShould receive the packet exactly once, got another %+v.", failed, testID, p)
			default:
			}

			select {
			case p := <-local.Consume():
				t.Fatalf("\t%s\tTest %d:\tShould not deliver to the sender, got %+v.", failed, testID, p)
			default:
			}
			t.Logf("\t%s\tTest %d:\tShould receive the packet exactly once at remote.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen broadcasting and shutting down.", testID)
		{
			network := transport.NewNetwork()
			a, _ := network.Register("a")
			b, _ := network.Register("b")
			c, _ := network.Register("c")

			if len(a.Peers()) != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould see two peers, got %d.", failed, testID, len(a.Peers()))
			}

			if err := a.Broadcast([]byte("block")); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to broadcast: %v", failed, testID, err)
			}

			for _, im := range []*transport.InMem{b, c} {
				select {
				case p := <-im.Consume():
					if string(p.Payload) != "block" {
						t.Fatalf("\t%s\tTest %d:\tShould receive the broadcast at %s.", failed, testID, im.Addr())
					}
				case <-time.After(time.Second):
					t.Fatalf("\t%s\tTest %d:\tShould receive the broadcast at %s.", failed, testID, im.Addr())
				}
			}
			t.Logf("\t%s\tTest %d:\tShould receive the broadcast at every peer.", success, testID)

			c.Shutdown()
			if err := a.SendRPC("c", nil); !errors.Is(err, transport.ErrNotFound) {
				t.Fatalf("\t%s\tTest %d:\tShould not reach a shut down transport: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould not reach a shut down transport.", success, testID)
		}
	}
}
