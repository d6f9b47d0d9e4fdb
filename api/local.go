package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/ghost-mesh/ghost-node/types"
	"github.com/gorilla/mux"
)

const defaultHistoryLimit = 20

type mineRequest struct {
	Address string `json:"address"`
}

func (s *Server) mineFunc(writer http.ResponseWriter, r *http.Request) {
	var req mineRequest
	if err := decode(writer, r, &req); err != nil {
		writeError(writer, r, err)
		return
	}

	block, err := s.backend.Miner.Mine(r.Context(), req.Address)
	if err != nil {
		writeError(writer, r, err)
		return
	}

	writeJSON(writer, http.StatusCreated, block)
}

type transferRequest struct {
	Sender    string  `json:"sender"`
	Recipient string  `json:"recipient"`
	Amount    float64 `json:"amount"`
}

func (s *Server) transferFunc(writer http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decode(writer, r, &req); err != nil {
		writeError(writer, r, err)
		return
	}

	id, err := s.backend.Pool.Transfer(r.Context(), req.Sender, req.Recipient, req.Amount)
	if err != nil {
		writeError(writer, r, err)
		return
	}

	writeJSON(writer, http.StatusCreated, map[string]string{"tx_id": id})
}

// assetRequest carries content base64 encoded, like the peer api.
type assetRequest struct {
	Owner   string          `json:"owner_pub_key"`
	Type    types.AssetType `json:"type"`
	Name    string          `json:"name"`
	Content []byte          `json:"content"`
}

func (s *Server) registerAssetFunc(writer http.ResponseWriter, r *http.Request) {
	var req assetRequest
	if err := decode(writer, r, &req); err != nil {
		writeError(writer, r, err)
		return
	}

	id, err := s.backend.Assets.Register(r.Context(), req.Owner, req.Type, req.Name, req.Content)
	if err != nil {
		writeError(writer, r, err)
		return
	}

	writeJSON(writer, http.StatusCreated, map[string]string{"asset_id": id})
}

func (s *Server) updateAssetFunc(writer http.ResponseWriter, r *http.Request) {
	var req assetRequest
	if err := decode(writer, r, &req); err != nil {
		writeError(writer, r, err)
		return
	}

	if err := s.backend.Assets.Update(r.Context(), mux.Vars(r)["id"], req.Owner, req.Content); err != nil {
		writeError(writer, r, err)
		return
	}

	writeJSON(writer, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) cloneAssetFunc(writer http.ResponseWriter, r *http.Request) {
	var req assetRequest
	if err := decode(writer, r, &req); err != nil {
		writeError(writer, r, err)
		return
	}

	id, err := s.backend.Assets.Clone(r.Context(), mux.Vars(r)["id"], req.Owner, req.Name)
	if err != nil {
		writeError(writer, r, err)
		return
	}

	writeJSON(writer, http.StatusCreated, map[string]string{"asset_id": id})
}

func (s *Server) deleteAssetFunc(writer http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if err := s.backend.Assets.Delete(r.Context(), mux.Vars(r)["id"], owner); err != nil {
		writeError(writer, r, err)
		return
	}

	writeJSON(writer, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ownedAssetsFunc(writer http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		writeError(writer, r, fmt.Errorf("%w: owner is required", types.ErrValidation))
		return
	}

	list, err := s.backend.Assets.Owned(r.Context(), owner)
	if err != nil {
		writeError(writer, r, err)
		return
	}
	if list == nil {
		list = []*types.Asset{}
	}

	writeJSON(writer, http.StatusOK, list)
}

func (s *Server) searchFunc(writer http.ResponseWriter, r *http.Request) {
	found, err := s.backend.Assets.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(writer, r, err)
		return
	}

	metas := make([]types.AssetMeta, 0, len(found))
	for _, a := range found {
		metas = append(metas, a.Meta())
	}

	writeJSON(writer, http.StatusOK, metas)
}

type balanceResponse struct {
	Address   string  `json:"address"`
	Balance   float64 `json:"balance"`
	Cached    float64 `json:"cached_balance"`
	LastMined float64 `json:"last_mined"`
}

func (s *Server) balanceFunc(writer http.ResponseWriter, r *http.Request) {
	acc, derived, err := s.backend.Pool.Account(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		writeError(writer, r, err)
		return
	}

	writeJSON(writer, http.StatusOK, &balanceResponse{
		Address:   acc.Address,
		Balance:   derived,
		Cached:    acc.Balance,
		LastMined: acc.LastMined,
	})
}

func (s *Server) transactionsFunc(writer http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(writer, r, fmt.Errorf("%w: bad limit %q", types.ErrValidation, raw))
			return
		}
		limit = n
	}

	history, err := s.backend.Pool.History(r.Context(), mux.Vars(r)["address"], limit)
	if err != nil {
		writeError(writer, r, err)
		return
	}
	if history == nil {
		history = []*types.Transaction{}
	}

	writeJSON(writer, http.StatusOK, history)
}

func (s *Server) statsFunc(writer http.ResponseWriter, r *http.Request) {
	stats, err := s.backend.Chain.Stats(r.Context())
	if err != nil {
		writeError(writer, r, err)
		return
	}

	writeJSON(writer, http.StatusOK, stats)
}

func (s *Server) peersFunc(writer http.ResponseWriter, r *http.Request) {
	peers, err := s.backend.Discovery.Candidates(r.Context())
	if err != nil {
		writeError(writer, r, err)
		return
	}
	if peers == nil {
		peers = []*types.Peer{}
	}

	writeJSON(writer, http.StatusOK, peers)
}

func (s *Server) viewAssetFunc(writer http.ResponseWriter, r *http.Request) {
	content, mime, err := s.backend.Assets.View(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(writer, r, err)
		return
	}

	writer.Header().Set("Content-Type", mime)
	writer.WriteHeader(http.StatusOK)
	_, _ = writer.Write(content)
}
