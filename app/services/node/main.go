package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/minichain/app/services/node/handlers"
	"github.com/ardanlabs/minichain/foundation/blockchain/accounts"
	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/ardanlabs/minichain/foundation/blockchain/genesis"
	"github.com/ardanlabs/minichain/foundation/blockchain/ledger"
	"github.com/ardanlabs/minichain/foundation/blockchain/mempool"
	"github.com/ardanlabs/minichain/foundation/blockchain/rpc"
	"github.com/ardanlabs/minichain/foundation/blockchain/state"
	"github.com/ardanlabs/minichain/foundation/blockchain/storage"
	"github.com/ardanlabs/minichain/foundation/blockchain/storage/disk"
	"github.com/ardanlabs/minichain/foundation/blockchain/storage/memory"
	"github.com/ardanlabs/minichain/foundation/blockchain/transport"
	"github.com/ardanlabs/minichain/foundation/blockchain/worker"
	"github.com/ardanlabs/minichain/foundation/events"
	"github.com/ardanlabs/minichain/foundation/logger"
	"github.com/ardanlabs/minichain/foundation/nameservice"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("NODE")
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

	// =========================================================================
	// Configuration

	// This is all the configuration for the application and the default values.
	// Configuration values will be passed through the application as individual
	// values.
	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
		}
		Node struct {
			PeerHost          string `conf:"default:0.0.0.0:5000"`
			KnownPeers        []string
			BlockTime         time.Duration `conf:"default:5s"`
			MempoolTake       int           `conf:"default:50"`
			HeartbeatInterval time.Duration `conf:"default:5s"`
			HeartbeatTimeout  time.Duration `conf:"default:15s"`
			Storage           string        `conf:"default:disk"`
			DataPath          string        `conf:"default:zblock/"`
			KeyPath           string        `conf:"default:zblock/accounts/miner.ecdsa"`
			GenesisPath       string
			Dev               bool `conf:"default:false"`
		}
		NameService struct {
			Folder string `conf:"default:zblock/accounts/"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "minichain node",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Name Service Support

	// The nameservice package provides name resolution for account addresses.
	// The names come from the file names in the accounts folder.
	ns, err := nameservice.New(cfg.NameService.Folder)
	if err != nil {
		return fmt.Errorf("unable to load account name service: %w", err)
	}

	// Logging the accounts for documentation in the logs.
	for addr, name := range ns.Copy() {
		log.Infow("startup", "status", "nameservice", "name", name, "address", addr)
	}

	// =========================================================================
	// Blockchain Support

	// The blockchain packages accept a function of this signature to allow the
	// application to log. Events carrying the viewer prefix are also sent to
	// any websocket client that is connected through the events package.
	evts := events.New("viewer:")
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Publish(v, args...)
	}

	// Need to load the private key file for the configured miner so the
	// block rewards can be credited and blocks signed.
	privateKey, err := loadKey(cfg.Node.KeyPath, cfg.Node.Dev)
	if err != nil {
		return fmt.Errorf("unable to load private key for node: %w", err)
	}
	log.Infow("startup", "status", "miner", "address", database.PublicKeyToAddress(privateKey.PublicKey))

	gen, err := genesis.Load(cfg.Node.GenesisPath)
	if err != nil {
		return fmt.Errorf("unable to load genesis: %w", err)
	}

	genBlock, err := database.GenesisBlock(gen)
	if err != nil {
		return fmt.Errorf("unable to construct genesis block: %w", err)
	}

	if cfg.Node.Dev && cfg.Node.Storage == "disk" {
		log.Infow("startup", "status", "dev mode, removing chain data", "path", cfg.Node.DataPath)
		for _, dir := range []string{"blocks", "accounts"} {
			if err := os.RemoveAll(filepath.Join(cfg.Node.DataPath, dir)); err != nil {
				return fmt.Errorf("removing chain data: %w", err)
			}
		}
	}

	blocks, acts, err := openStorage(cfg.Node.Storage, cfg.Node.DataPath, ev)
	if err != nil {
		return err
	}

	chain, err := ledger.New(ledger.Config{
		Storage:   blocks,
		Genesis:   genBlock,
		EvHandler: ev,
	})
	if err != nil {
		return fmt.Errorf("unable to construct ledger: %w", err)
	}

	accountEngine, err := accounts.New(accounts.Config{
		Storage:   acts,
		Genesis:   gen,
		EvHandler: ev,
	})
	if err != nil {
		return fmt.Errorf("unable to construct accounts: %w", err)
	}

	// The state value represents the blockchain node and manages the ledger,
	// mempool and account state.
	st, err := state.New(state.Config{
		MinerKey:    privateKey,
		Genesis:     gen,
		Ledger:      chain,
		Mempool:     mempool.New(),
		Accounts:    accountEngine,
		MempoolTake: cfg.Node.MempoolTake,
		EvHandler:   ev,
	})
	if err != nil {
		return err
	}

	// The transport connects this node to its peers.
	tcp, err := transport.NewTCP(transport.Config{
		Host:              cfg.Node.PeerHost,
		KnownPeers:        cfg.Node.KnownPeers,
		HeartbeatInterval: cfg.Node.HeartbeatInterval,
		HeartbeatTimeout:  cfg.Node.HeartbeatTimeout,
		EvHandler:         ev,
	})
	if err != nil {
		st.Shutdown()
		return fmt.Errorf("unable to start transport: %w", err)
	}
	defer tcp.Shutdown()
	tcp.Start()

	// Stop the worker before the transport goes away.
	defer st.Shutdown()

	dispatcher := rpc.NewDispatcher(rpc.Config{
		Node:      st,
		EvHandler: ev,
	})

	// The worker package implements mining and the processing of peer
	// requests. The worker will register itself with the state.
	worker.Run(worker.Config{
		State:      st,
		Transport:  tcp,
		Dispatcher: dispatcher,
		BlockTime:  cfg.Node.BlockTime,
		EvHandler:  ev,
	})

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log, st.Ledger().Height)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	// Construct the mux for the public API calls.
	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown:   shutdown,
		Log:        log,
		Dispatcher: dispatcher,
		Transport:  tcp,
		Genesis:    gen,
		NS:         ns,
		Evts:       evts,
	})

	// Construct a server to service the requests against the mux.
	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}

// loadKey reads the miner key. In dev mode a missing key is generated and
// saved at the path.
func loadKey(path string, dev bool) (*ecdsa.PrivateKey, error) {
	privateKey, err := crypto.LoadECDSA(path)
	if err == nil {
		return privateKey, nil
	}

	if !dev || !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	privateKey, err = crypto.GenerateKey()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	if err := crypto.SaveECDSA(path, privateKey); err != nil {
		return nil, err
	}

	return privateKey, nil
}

// openStorage constructs the block and account stores of the configured kind.
func openStorage(kind string, dataPath string, ev func(v string, args ...any)) (storage.BlockStorage, storage.AccountStorage, error) {
	switch kind {
	case "memory":
		return memory.NewBlocks(), memory.NewAccounts(), nil

	case "disk":
		blocks, err := disk.NewBlocks(filepath.Join(dataPath, "blocks"), ev)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to open block storage: %w", err)
		}

		acts, err := disk.NewAccounts(filepath.Join(dataPath, "accounts"), ev)
		if err != nil {
			blocks.Close()
			return nil, nil, fmt.Errorf("unable to open account storage: %w", err)
		}

		return blocks, acts, nil
	}

	return nil, nil, fmt.Errorf("unknown storage %q, expecting disk or memory", kind)
}
