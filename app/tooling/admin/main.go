// This program performs administrative tasks against the chain data of a
// stopped node.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ardanlabs/minichain/app/tooling/admin/commands"
	"github.com/ardanlabs/minichain/foundation/blockchain/storage/disk"
	"github.com/ardanlabs/minichain/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("ADMIN")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {
	if len(os.Args) < 2 {
		return errors.New("usage: admin blocks|accounts [arg]")
	}

	dataPath := os.Getenv("ADMIN_DATA_PATH")
	if dataPath == "" {
		dataPath = "zblock/"
	}

	log.Infow("startup", "version", build, "data", dataPath)

	ev := func(v string, args ...any) {
		log.Infow(fmt.Sprintf(v, args...))
	}

	return processCommands(os.Args, dataPath, ev)
}

// processCommands handles the execution of the commands specified on
// the command line.
func processCommands(args []string, dataPath string, ev disk.EventHandler) error {
	switch args[1] {
	case "blocks":
		blocks, err := disk.NewBlocks(filepath.Join(dataPath, "blocks"), ev)
		if err != nil {
			return err
		}
		defer blocks.Close()

		if err := commands.Blocks(os.Stdout, args, blocks); err != nil {
			return fmt.Errorf("getting blocks: %w", err)
		}

	case "accounts":
		acts, err := disk.NewAccounts(filepath.Join(dataPath, "accounts"), ev)
		if err != nil {
			return err
		}
		defer acts.Close()

		if err := commands.Accounts(os.Stdout, args, acts); err != nil {
			return fmt.Errorf("getting accounts: %w", err)
		}

	default:
		return fmt.Errorf("unknown command %q", args[1])
	}

	return nil
}
