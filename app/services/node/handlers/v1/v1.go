// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/ardanlabs/minichain/app/services/node/handlers/v1/public"
	"github.com/ardanlabs/minichain/foundation/blockchain/genesis"
	"github.com/ardanlabs/minichain/foundation/blockchain/rpc"
	"github.com/ardanlabs/minichain/foundation/blockchain/transport"
	"github.com/ardanlabs/minichain/foundation/events"
	"github.com/ardanlabs/minichain/foundation/nameservice"
	"github.com/ardanlabs/minichain/foundation/web"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log        *zap.SugaredLogger
	Dispatcher *rpc.Dispatcher
	Transport  transport.Transport
	Genesis    genesis.Genesis
	NS         *nameservice.NameService
	Evts       *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:        cfg.Log,
		Dispatcher: cfg.Dispatcher,
		Transport:  cfg.Transport,
		Gen:        cfg.Genesis,
		NS:         cfg.NS,
		Evts:       cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/genesis", pbl.Genesis)
	app.Handle(http.MethodGet, version, "/peers", pbl.Peers)
	app.Handle(http.MethodGet, version, "/chain/height", pbl.ChainHeight)
	app.Handle(http.MethodGet, version, "/blocks/last", pbl.LastBlock)
	app.Handle(http.MethodGet, version, "/blocks", pbl.Block)
	app.Handle(http.MethodGet, version, "/headers", pbl.Header)
	app.Handle(http.MethodGet, version, "/tx/:hash", pbl.Tx)
	app.Handle(http.MethodPost, version, "/tx", pbl.SubmitTx)
	app.Handle(http.MethodGet, version, "/accounts/:address", pbl.Account)
}
