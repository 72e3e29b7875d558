// Package commands contains the functionality for the set of commands
// currently supported by the admin tool.
package commands

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/ardanlabs/minichain/foundation/blockchain/storage"
)

// Blocks prints the blocks held in storage starting at the optional height
// argument.
func Blocks(w io.Writer, args []string, blocks storage.BlockStorage) error {
	var from uint64
	if len(args) == 3 {
		n, err := strconv.ParseUint(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("parsing height: %w", err)
		}
		from = n
	}

	for height := from; ; height++ {
		block, err := blocks.GetByHeight(height)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil
			}
			return err
		}

		fmt.Fprintf(w, "Height: %d  Hash: %s  Prev: %s  Txs: %d  StateRoot: %s\n",
			block.Header.Height, block.Hash(), block.Header.PrevHash, len(block.Transactions), block.Header.StateRoot)
	}
}
