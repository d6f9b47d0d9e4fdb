package api

import (
	"net"
	"net/http"

	"github.com/ghost-mesh/ghost-node/types"
	"github.com/gorilla/mux"
)

func (s *Server) chainMetaFunc(writer http.ResponseWriter, r *http.Request) {
	headers, err := s.backend.Chain.Headers(r.Context())
	if err != nil {
		writeError(writer, r, err)
		return
	}
	if headers == nil {
		headers = []types.BlockHeader{}
	}

	writeJSON(writer, http.StatusOK, headers)
}

func (s *Server) blockFunc(writer http.ResponseWriter, r *http.Request) {
	block, err := s.backend.Chain.BlockByHash(r.Context(), mux.Vars(r)["hash"])
	if err != nil {
		writeError(writer, r, err)
		return
	}

	writeJSON(writer, http.StatusOK, block)
}

func (s *Server) assetsMetaFunc(writer http.ResponseWriter, r *http.Request) {
	metas, err := s.backend.Assets.Metas(r.Context())
	if err != nil {
		writeError(writer, r, err)
		return
	}
	if metas == nil {
		metas = []types.AssetMeta{}
	}

	writeJSON(writer, http.StatusOK, metas)
}

// assetDataFunc serves expired assets too, replicas keep the full set.
func (s *Server) assetDataFunc(writer http.ResponseWriter, r *http.Request) {
	a, err := s.backend.Assets.Raw(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(writer, r, err)
		return
	}

	writeJSON(writer, http.StatusOK, a)
}

func (s *Server) sendTransactionFunc(writer http.ResponseWriter, r *http.Request) {
	var tx types.Transaction
	if err := decode(writer, r, &tx); err != nil {
		writeError(writer, r, err)
		return
	}

	accepted, err := s.backend.Pool.ReceiveTransaction(r.Context(), &tx)
	if err != nil {
		writeError(writer, r, err)
		return
	}

	writeJSON(writer, http.StatusOK, map[string]interface{}{"status": "ok", "accepted": accepted})
}

func (s *Server) receiveBlockFunc(writer http.ResponseWriter, r *http.Request) {
	var block types.Block
	if err := decode(writer, r, &block); err != nil {
		writeError(writer, r, err)
		return
	}

	accepted, err := s.backend.Chain.AcceptRemoteBlock(r.Context(), &block)
	if err != nil {
		writeError(writer, r, err)
		return
	}

	writeJSON(writer, http.StatusOK, map[string]interface{}{"status": "ok", "accepted": accepted})
}

func (s *Server) getFeesFunc(writer http.ResponseWriter, r *http.Request) {
	schedule, err := s.backend.Fees.All(r.Context())
	if err != nil {
		writeError(writer, r, err)
		return
	}

	writeJSON(writer, http.StatusOK, schedule)
}

type peerUpdate struct {
	Address string `json:"ip_address"`
}

// peerUpdateFunc registers the caller. Without an ip_address the connection's
// source host is used with this node's api port.
func (s *Server) peerUpdateFunc(writer http.ResponseWriter, r *http.Request) {
	var update peerUpdate
	if r.ContentLength != 0 {
		if err := decode(writer, r, &update); err != nil {
			writeError(writer, r, err)
			return
		}
	}

	if update.Address == "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			update.Address = host
		}
	}

	registered, err := s.backend.Discovery.RegisterPeer(r.Context(), update.Address, types.DiscoveredByUpdate)
	if err != nil {
		writeError(writer, r, err)
		return
	}

	writeJSON(writer, http.StatusOK, map[string]interface{}{"status": "ok", "registered": registered})
}
