package cmd_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ardanlabs/minichain/app/wallet/cli/cmd"
	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := cmd.NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.Execute()
	return strings.TrimSpace(out.String()), err
}

func Test_Wallet(t *testing.T) {
	t.Log("Given the need to manage an account from the command line.")
	{
		dir := t.TempDir()

		testID := 0
		t.Logf("\tTest %d:\tWhen generating a key and printing its address.", testID)
		{
			generated, err := run(t, "generate", "--account-path", dir, "--account", "kennedy")
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to generate a key: %v", failed, testID, err)
			}

			addr, err := run(t, "address", "--account-path", dir, "--account", "kennedy")
			if err != nil || addr != generated {
				t.Fatalf("\t%s\tTest %d:\tShould print the generated address, got %q want %q: %v", failed, testID, addr, generated, err)
			}
			t.Logf("\t%s\tTest %d:\tShould print the generated address.", success, testID)

			if _, err := run(t, "generate", "--account-path", dir, "--account", "kennedy"); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould not overwrite an existing key.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not overwrite an existing key.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen sending a transfer to a node.", testID)
		{
			to := database.Address{0xb0}

			txs := make(chan database.Tx, 1)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var body struct {
					Tx string `json:"tx"`
				}
				json.NewDecoder(r.Body).Decode(&body)

				data, _ := hexutil.Decode(body.Tx)
				tx, _ := database.DecodeTx(data)
				txs <- tx

				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"status":"ok"}`))
			}))
			defer srv.Close()

			_, err := run(t, "send", "--account-path", dir, "--account", "kennedy", "--url", srv.URL, "--to", to.String(), "--amount", "42")
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to send: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to send.", success, testID)

			got := <-txs
			if err := got.Verify(); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould send a signed transaction: %v", failed, testID, err)
			}

			td, err := got.Transfer()
			if err != nil || td.To != to || td.Amount != 42 {
				t.Fatalf("\t%s\tTest %d:\tShould send the requested transfer: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould send the requested transfer.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the node rejects the request.", testID)
		{
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"error":"Block with height: 9 not found"}`))
			}))
			defer srv.Close()

			_, err := run(t, "block", "--url", srv.URL, "--height", "9")
			if err == nil || !strings.Contains(err.Error(), "Block with height: 9 not found") {
				t.Fatalf("\t%s\tTest %d:\tShould report the node error: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould report the node error.", success, testID)

			if _, err := run(t, "block", "--url", srv.URL); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould require a height or hash.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould require a height or hash.", success, testID)
		}
	}
}
