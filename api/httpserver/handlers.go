package httpserver

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"odin/domain/engine"
	"odin/domain/orderbook"
)

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	cfg, ok := s.pairs[req.Pair]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown pair "+req.Pair)
		return
	}

	side, err := parseSide(req.Side)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	typ, err := parseType(req.Type)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tif, err := parseTIF(req.TIF)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var price int64
	if typ == orderbook.Limit {
		if req.Price == "" {
			writeError(w, http.StatusBadRequest, "price is required for LIMIT orders")
			return
		}
		if price, err = toUnits(req.Price, cfg.QuoteDecimals); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	qty, err := toUnits(req.Qty, cfg.BaseDecimals)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	o, err := s.svc.Submit(cfg.ID, engine.SubmitReq{
		ID:     id,
		Trader: req.Trader,
		Side:   side,
		Type:   typ,
		TIF:    tif,
		Price:  price,
		Qty:    qty,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	status := http.StatusCreated
	if o.Status == orderbook.Filled {
		status = http.StatusOK
	}
	writeJSON(w, status, viewOrder(o, cfg))
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.pairFromRequest(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown pair")
		return
	}

	o, err := s.svc.Order(cfg.ID, mux.Vars(r)["id"])
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if o == nil {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	writeJSON(w, http.StatusOK, viewOrder(o, cfg))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.pairFromRequest(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown pair")
		return
	}

	if err := s.svc.Cancel(cfg.ID, mux.Vars(r)["id"]); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCancelBatch(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.pairFromRequest(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown pair")
		return
	}

	var req cancelBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids is required")
		return
	}

	n, err := s.svc.CancelBatch(cfg.ID, req.IDs)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cancelled": n})
}

func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.pairFromRequest(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown pair")
		return
	}

	var req replaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	price, err := toUnits(req.Price, cfg.QuoteDecimals)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	qty, err := toUnits(req.Qty, cfg.BaseDecimals)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	newID := req.NewID
	if newID == "" {
		newID = uuid.NewString()
	}

	o, err := s.svc.CancelReplace(cfg.ID, mux.Vars(r)["id"], newID, price, qty)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOrder(o, cfg))
}

func (s *Server) handlePairs(w http.ResponseWriter, _ *http.Request) {
	cfgs := s.svc.Pairs()
	sort.Slice(cfgs, func(i, j int) bool { return cfgs[i].ID < cfgs[j].ID })

	views := make([]pairView, 0, len(cfgs))
	for _, cfg := range cfgs {
		views = append(views, viewPair(cfg))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.pairFromRequest(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown pair")
		return
	}

	q := r.URL.Query()
	side, err := parseSide(q.Get("side"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	maxPrices := intParam(q.Get("max_prices"), 20)
	maxOrders := intParam(q.Get("max_orders"), 200)

	var resumePrice int64
	if v := q.Get("resume_price"); v != "" {
		if resumePrice, err = toUnits(v, cfg.QuoteDecimals); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	page, err := s.svc.BookPage(cfg.ID, side, maxPrices, maxOrders, resumePrice, q.Get("resume_order"))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	view := bookView{Pair: cfg.ID, Side: side.String()}
	for i, p := range page.Prices {
		if p == 0 {
			continue
		}
		view.Levels = append(view.Levels, levelView{
			Price: fromUnits(p, cfg.QuoteDecimals),
			Qty:   fromUnits(page.Quantities[i], cfg.BaseDecimals),
		})
	}
	if page.NextPrice != 0 {
		view.NextPrice = fromUnits(page.NextPrice, cfg.QuoteDecimals)
		view.NextOrder = page.NextOrder
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleBookSize(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.pairFromRequest(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown pair")
		return
	}

	bids, asks, err := s.svc.BookSize(cfg.ID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"bids": bids, "asks": asks})
}

func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.pairFromRequest(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown pair")
		return
	}

	bid, ask, err := s.svc.TopOfBook(cfg.ID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	resp := struct {
		Pair string `json:"pair"`
		Bid  string `json:"bid,omitempty"`
		Ask  string `json:"ask,omitempty"`
	}{Pair: cfg.ID}
	if bid != 0 {
		resp.Bid = fromUnits(bid, cfg.QuoteDecimals)
	}
	if ask != 0 {
		resp.Ask = fromUnits(ask, cfg.QuoteDecimals)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAuctionState(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.pairFromRequest(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown pair")
		return
	}

	mode, price, err := s.svc.AuctionState(cfg.ID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	resp := struct {
		Pair  string `json:"pair"`
		Mode  string `json:"mode"`
		Price string `json:"price,omitempty"`
	}{Pair: cfg.ID, Mode: mode.String()}
	if price != 0 {
		resp.Price = fromUnits(price, cfg.QuoteDecimals)
	}
	writeJSON(w, http.StatusOK, resp)
}

func intParam(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
