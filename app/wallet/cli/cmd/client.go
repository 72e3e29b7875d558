package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

var client = http.Client{Timeout: 10 * time.Second}

// send performs the request against the node and pretty prints the JSON
// response. A status other than 200 is returned as an error carrying the
// node's message.
func send(w io.Writer, method string, url string, body any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		var er struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(data, &er); err == nil && er.Error != "" {
			return fmt.Errorf("node: %s: %s", resp.Status, er.Error)
		}
		return fmt.Errorf("node: %s", resp.Status)
	}

	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return err
	}

	fmt.Fprintln(w, out.String())
	return nil
}
