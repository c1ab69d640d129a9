package api

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/gftj/tipjar-go/feed"
)

// jarAddress parses the address path parameter. A malformed address is
// reported to the caller and the zero address returned.
func (s *Server) jarAddress(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	raw := chi.URLParam(r, "address")
	if !common.IsHexAddress(raw) {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("invalid jar address %q", raw),
			Kind:  "unknown",
		})
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "invalid request body",
			Kind:  "unknown",
		})
		return false
	}
	return true
}

type jarSummary struct {
	Address   string `json:"address"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
}

func (s *Server) handleListJars(w http.ResponseWriter, r *http.Request) {
	if s.deps.Registry == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"jars": []jarSummary{}})
		return
	}

	entries, err := s.deps.Registry.List()
	if err != nil {
		s.writeError(w, err)
		return
	}

	jarList := make([]jarSummary, 0, len(entries))
	for _, e := range entries {
		jarList = append(jarList, jarSummary{
			Address:   e.Address,
			Name:      e.Name,
			CreatedAt: e.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jars": jarList})
}

type createJarRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateJar(w http.ResponseWriter, r *http.Request) {
	var req createJarRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.Jars.Create(r.Context(), req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

type jarDetail struct {
	Address    string `json:"address"`
	Name       string `json:"name,omitempty"`
	Owner      string `json:"owner"`
	BalanceWei string `json:"balanceWei"`
	BalanceEth string `json:"balanceEth"`
}

func (s *Server) handleGetJar(w http.ResponseWriter, r *http.Request) {
	jar, ok := s.jarAddress(w, r)
	if !ok {
		return
	}

	owner, err := s.deps.Jars.Owner(r.Context(), jar)
	if err != nil {
		s.writeError(w, err)
		return
	}
	balance, err := s.deps.Jars.Balance(r.Context(), jar)
	if err != nil {
		s.writeError(w, err)
		return
	}

	detail := jarDetail{
		Address:    jar.Hex(),
		Owner:      owner.Hex(),
		BalanceWei: balance.String(),
		BalanceEth: weiToEth(balance),
	}
	if s.deps.Registry != nil {
		if entries, err := s.deps.Registry.List(); err == nil {
			for _, e := range entries {
				if common.HexToAddress(e.Address) == jar {
					detail.Name = e.Name
					break
				}
			}
		}
	}
	writeJSON(w, http.StatusOK, detail)
}

type renameJarRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleRenameJar(w http.ResponseWriter, r *http.Request) {
	jar, ok := s.jarAddress(w, r)
	if !ok {
		return
	}
	var req renameJarRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if s.deps.Registry == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error: "jar registry is not configured",
			Kind:  "not_configured",
		})
		return
	}
	if err := s.deps.Registry.Rename(jar.Hex(), req.Name); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRemoveJar(w http.ResponseWriter, r *http.Request) {
	jar, ok := s.jarAddress(w, r)
	if !ok {
		return
	}
	if s.deps.Registry == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error: "jar registry is not configured",
			Kind:  "not_configured",
		})
		return
	}
	if err := s.deps.Registry.Remove(jar.Hex()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetTips(w http.ResponseWriter, r *http.Request) {
	jar, ok := s.jarAddress(w, r)
	if !ok {
		return
	}

	result, err := s.deps.Feed.Feed(r.Context(), jar)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.annotateDisplayNames(r, result)
	writeJSON(w, http.StatusOK, result)
}

// annotateDisplayNames fills FromDisplay for tippers with a resolvable
// primary name. Resolution failures leave the address bare.
func (s *Server) annotateDisplayNames(r *http.Request, result *feed.Result) {
	if s.deps.Identity == nil || len(result.Tips) == 0 {
		return
	}

	addrs := make([]common.Address, 0, len(result.Tips))
	for _, tip := range result.Tips {
		addrs = append(addrs, tip.From)
	}

	names := s.deps.Identity.ResolveBatch(r.Context(), addrs)
	for i := range result.Tips {
		if name, ok := names[result.Tips[i].From]; ok {
			result.Tips[i].FromDisplay = name
		}
	}
}

type sendTipRequest struct {
	AmountWei string `json:"amountWei"`
	Message   string `json:"message"`
}

func (s *Server) handleSendTip(w http.ResponseWriter, r *http.Request) {
	jar, ok := s.jarAddress(w, r)
	if !ok {
		return
	}
	var req sendTipRequest
	if !decodeBody(w, r, &req) {
		return
	}

	amount, ok := new(big.Int).SetString(req.AmountWei, 10)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("invalid amount %q", req.AmountWei),
			Kind:  "unknown",
		})
		return
	}

	result, err := s.deps.Jars.Tip(r.Context(), jar, amount, req.Message)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	jar, ok := s.jarAddress(w, r)
	if !ok {
		return
	}

	result, err := s.deps.Jars.Withdraw(r.Context(), jar)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type visibilityRequest struct {
	Hidden bool `json:"hidden"`
}

func (s *Server) handleVisibility(w http.ResponseWriter, r *http.Request) {
	jar, ok := s.jarAddress(w, r)
	if !ok {
		return
	}
	var req visibilityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	poller, err := s.deps.Feed.Poller(jar)
	if err != nil {
		s.writeError(w, err)
		return
	}
	poller.SetHidden(req.Hidden)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIdentity(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "address")
	if !common.IsHexAddress(raw) {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("invalid address %q", raw),
			Kind:  "unknown",
		})
		return
	}
	if s.deps.Identity == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error: "name resolution is not configured",
			Kind:  "not_configured",
		})
		return
	}

	profile := s.deps.Identity.Profile(r.Context(), common.HexToAddress(raw))
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	if s.deps.Price == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error: "price feed is not configured",
			Kind:  "not_configured",
		})
		return
	}

	snap := s.deps.Price.Snapshot()
	if snap == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error: "no price available yet",
			Kind:  "backend_unhealthy",
		})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type gasResponse struct {
	PriceWei     string `json:"priceWei"`
	PriceGwei    string `json:"priceGwei"`
	FallbackUsed bool   `json:"fallbackUsed"`
	FetchedAt    string `json:"fetchedAt"`
}

func (s *Server) handleGas(w http.ResponseWriter, r *http.Request) {
	if s.deps.Gas == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error: "gas feed is not configured",
			Kind:  "not_configured",
		})
		return
	}

	estimate := s.deps.Gas.Estimate()
	if estimate == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error: "no gas estimate available yet",
			Kind:  "backend_unhealthy",
		})
		return
	}
	writeJSON(w, http.StatusOK, gasResponse{
		PriceWei:     estimate.PriceWei.String(),
		PriceGwei:    weiToGwei(estimate.PriceWei),
		FallbackUsed: estimate.FallbackUsed,
		FetchedAt:    estimate.FetchedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}
