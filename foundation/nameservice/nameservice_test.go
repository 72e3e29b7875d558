package nameservice_test

import (
	"path/filepath"
	"testing"

	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/ardanlabs/minichain/foundation/nameservice"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Lookup(t *testing.T) {
	t.Log("Given the need to name the addresses of local key files.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the folder holds a key file.", testID)
		{
			root := t.TempDir()

			key, _ := crypto.GenerateKey()
			if err := crypto.SaveECDSA(filepath.Join(root, "miner1.ecdsa"), key); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to save the key: %v", failed, testID, err)
			}

			ns, err := nameservice.New(root)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to construct the name service: %v", failed, testID, err)
			}

			addr := database.PublicKeyToAddress(key.PublicKey)
			if name := ns.Lookup(addr); name != "miner1" {
				t.Fatalf("\t%s\tTest %d:\tShould name the address, got %q.", failed, testID, name)
			}
			t.Logf("\t%s\tTest %d:\tShould name the address.", success, testID)

			other := database.Address{0x01}
			if name := ns.Lookup(other); name != other.String() {
				t.Fatalf("\t%s\tTest %d:\tShould fall back to the address, got %q.", failed, testID, name)
			}
			t.Logf("\t%s\tTest %d:\tShould fall back to the address.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the folder doesn't exist.", testID)
		{
			ns, err := nameservice.New(filepath.Join(t.TempDir(), "missing"))
			if err != nil || len(ns.Copy()) != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould construct an empty name service: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould construct an empty name service.", success, testID)
		}
	}
}
