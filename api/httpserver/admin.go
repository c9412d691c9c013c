package httpserver

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleAuctionMode(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.pairFromRequest(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown pair")
		return
	}

	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	mode, err := parseAuctionMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.svc.SetAuctionMode(cfg.ID, mode); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"mode": mode.String()})
}

func (s *Server) handleAuctionPrice(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.pairFromRequest(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown pair")
		return
	}

	var req struct {
		Price string `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	price, err := toUnits(req.Price, cfg.QuoteDecimals)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.svc.SetAuctionPrice(cfg.ID, price); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"price": req.Price})
}

func (s *Server) handleAuctionMatch(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.pairFromRequest(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown pair")
		return
	}

	var req struct {
		MaxFills int `json:"max_fills"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.MaxFills <= 0 {
		writeError(w, http.StatusBadRequest, "max_fills must be positive")
		return
	}

	done, err := s.svc.MatchAuction(cfg.ID, req.MaxFills)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"done": done})
}

func (s *Server) handleFeeRates(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.pairFromRequest(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown pair")
		return
	}

	var req struct {
		MakerBps int64 `json:"maker_bps"`
		TakerBps int64 `json:"taker_bps"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.MakerBps < 0 || req.TakerBps < 0 {
		writeError(w, http.StatusBadRequest, "fee rates must be non-negative")
		return
	}

	if err := s.svc.SetFeeRates(cfg.ID, req.MakerBps, req.TakerBps); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{
		"maker_bps": req.MakerBps,
		"taker_bps": req.TakerBps,
	})
}
