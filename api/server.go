package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ghost-mesh/ghost-node/assets"
	"github.com/ghost-mesh/ghost-node/chain"
	"github.com/ghost-mesh/ghost-node/config"
	"github.com/ghost-mesh/ghost-node/fees"
	"github.com/ghost-mesh/ghost-node/p2p"
	"github.com/ghost-mesh/ghost-node/transactions"
	"github.com/gorilla/mux"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("api")

// maxBody bounds request bodies, asset uploads included.
const maxBody = 64 << 20

// Backend is what the handlers call into.
type Backend struct {
	Chain     *chain.Engine
	Miner     *chain.Miner
	Pool      *transactions.Pool
	Assets    *assets.Registry
	Fees      *fees.Governance
	Discovery *p2p.Discovery
}

// Server serves the unauthenticated peer api next to the local hooks a
// presentation layer calls after it has mapped a session to an address.
type Server struct {
	*mux.Router

	options *config.APIOptions
	backend *Backend
	http    *http.Server

	availablePaths []string
}

func NewAPIServer(options *config.APIOptions, backend *Backend) *Server {
	s := &Server{
		Router: mux.NewRouter(),

		options: options,
		backend: backend,

		availablePaths: make([]string, 0),
	}

	s.RegisterFunc("/", s.indexFunc, http.MethodGet)

	// peers
	s.RegisterFunc("/api/chain_meta", s.chainMetaFunc, http.MethodGet)
	s.RegisterFunc("/api/block/{hash}", s.blockFunc, http.MethodGet)
	s.RegisterFunc("/api/assets_meta", s.assetsMetaFunc, http.MethodGet)
	s.RegisterFunc("/api/asset_data/{id}", s.assetDataFunc, http.MethodGet)
	s.RegisterFunc("/api/send_transaction", s.sendTransactionFunc, http.MethodPost)
	s.RegisterFunc("/api/receive_block", s.receiveBlockFunc, http.MethodPost)
	s.RegisterFunc("/api/get_fees", s.getFeesFunc, http.MethodGet)
	s.RegisterFunc("/peer_update", s.peerUpdateFunc, http.MethodPost)

	// local
	s.RegisterFunc("/api/mine", s.mineFunc, http.MethodPost)
	s.RegisterFunc("/api/transfer", s.transferFunc, http.MethodPost)
	s.RegisterFunc("/api/assets", s.ownedAssetsFunc, http.MethodGet)
	s.RegisterFunc("/api/assets", s.registerAssetFunc, http.MethodPost)
	s.RegisterFunc("/api/assets/{id}", s.updateAssetFunc, http.MethodPut)
	s.RegisterFunc("/api/assets/{id}", s.deleteAssetFunc, http.MethodDelete)
	s.RegisterFunc("/api/assets/{id}/clone", s.cloneAssetFunc, http.MethodPost)
	s.RegisterFunc("/api/search", s.searchFunc, http.MethodGet)
	s.RegisterFunc("/api/balance/{address}", s.balanceFunc, http.MethodGet)
	s.RegisterFunc("/api/transactions/{address}", s.transactionsFunc, http.MethodGet)
	s.RegisterFunc("/api/stats", s.statsFunc, http.MethodGet)
	s.RegisterFunc("/api/peers", s.peersFunc, http.MethodGet)
	s.RegisterFunc("/view_asset/{id}", s.viewAssetFunc, http.MethodGet)

	s.Use(mux.CORSMethodMiddleware(s.Router))

	return s
}

func (s *Server) RegisterFunc(path string, fn func(http.ResponseWriter, *http.Request), methods ...string) {
	s.HandleFunc(path, fn).Methods(methods...)

	for _, p := range s.availablePaths {
		if p == path {
			return
		}
	}
	s.availablePaths = append(s.availablePaths, path)
}

// Serve listens in the background until Shutdown.
func (s *Server) Serve() {
	addr := s.options.Addr()
	s.http = &http.Server{Addr: addr, Handler: s}

	go func() {
		var err error
		if s.options.TLS.Enabled() {
			log.Warn("API server listening with tls on ", addr)
			err = s.http.ListenAndServeTLS(s.options.TLS.CertFile, s.options.TLS.KeyFile)
		} else {
			log.Warn("API server listening on ", addr)
			err = s.http.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("API server stopped: %s", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}

	return s.http.Shutdown(ctx)
}

func (s *Server) indexFunc(writer http.ResponseWriter, _ *http.Request) {
	raw, _ := json.Marshal(s.availablePaths)
	_, _ = writer.Write(raw)
}
