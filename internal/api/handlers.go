package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"agent-pump/internal/domain"
	"agent-pump/internal/events"
	"agent-pump/internal/ledger"
)

type launchRequest struct {
	Name     string                `json:"name"`
	Symbol   string                `json:"symbol"`
	AgentID  string                `json:"agent_id"`
	Curve    domain.CurveConfig    `json:"curve"`
	Metadata domain.LaunchMetadata `json:"metadata"`
}

type tradeRequest struct {
	Amount     int64            `json:"amount"`
	LimitPrice *decimal.Decimal `json:"limit_price,omitempty"`
	// AutoLimit applies the default slippage bound to a fresh quote when
	// LimitPrice is omitted.
	AutoLimit bool `json:"auto_limit,omitempty"`
}

type registerAgentRequest struct {
	ID       string `json:"id"`
	Owner    string `json:"owner"`
	Name     string `json:"name"`
	Metadata string `json:"metadata"`
}

type verifyRequest struct {
	Verified bool `json:"verified"`
}

func (h *handlers) launch(w http.ResponseWriter, r *http.Request) {
	var req launchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	c, err := h.engine.Launch(r.Context(), domain.LaunchParams{
		Name:     req.Name,
		Symbol:   req.Symbol,
		AgentID:  req.AgentID,
		Curve:    req.Curve,
		Metadata: req.Metadata,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c.Info())
}

func (h *handlers) tokenInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.engine.GetTokenInfo(r.Context(), chi.URLParam(r, "mint"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *handlers) quote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	side := domain.Side(q.Get("side"))
	if side == "" {
		side = domain.SideBuy
	}
	amount, err := strconv.ParseInt(q.Get("amount"), 10, 64)
	if err != nil {
		writeBadRequest(w, "amount must be an integer")
		return
	}

	quote, err := h.engine.Quote(r.Context(), chi.URLParam(r, "mint"), side, amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (h *handlers) buy(w http.ResponseWriter, r *http.Request) {
	h.trade(w, r, domain.SideBuy)
}

func (h *handlers) sell(w http.ResponseWriter, r *http.Request) {
	h.trade(w, r, domain.SideSell)
}

func (h *handlers) trade(w http.ResponseWriter, r *http.Request, side domain.Side) {
	var req tradeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	mint := chi.URLParam(r, "mint")

	limit := req.LimitPrice
	if limit == nil && req.AutoLimit {
		q, err := h.engine.Quote(r.Context(), mint, side, req.Amount)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		limit = &q.LimitPrice
	}

	res, err := h.engine.Execute(r.Context(), domain.TradeRequest{
		Mint:       mint,
		Side:       side,
		Amount:     req.Amount,
		LimitPrice: limit,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) fills(w http.ResponseWriter, r *http.Request) {
	fills, err := h.engine.Fills(r.Context(), chi.URLParam(r, "mint"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]events.FillEvent, 0, len(fills))
	for _, f := range fills {
		out = append(out, events.NewFillEvent(f))
	}
	writeJSON(w, http.StatusOK, out)
}

// volume serves interval buckets; start and end default to the last 24h.
func (h *handlers) volume(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	interval, err := intParam(q.Get("interval"), 60)
	if err != nil || interval <= 0 {
		writeBadRequest(w, "interval must be a positive integer")
		return
	}
	end, err := int64Param(q.Get("end"), time.Now().UnixMilli())
	if err != nil {
		writeBadRequest(w, "end must be a Unix ms timestamp")
		return
	}
	start, err := int64Param(q.Get("start"), end-24*time.Hour.Milliseconds())
	if err != nil {
		writeBadRequest(w, "start must be a Unix ms timestamp")
		return
	}

	buckets, err := h.engine.Volume(r.Context(), chi.URLParam(r, "mint"), interval, start, end)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if buckets == nil {
		buckets = []*domain.VolumeBucket{}
	}
	writeJSON(w, http.StatusOK, buckets)
}

func (h *handlers) trending(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), 0)
	if err != nil {
		writeBadRequest(w, "limit must be an integer")
		return
	}
	tokens, err := h.engine.Trending(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (h *handlers) registerAgent(w http.ResponseWriter, r *http.Request) {
	var req registerAgentRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	rec, err := h.engine.RegisterAgent(r.Context(), ledger.RegisterParams{
		ID:       req.ID,
		Owner:    req.Owner,
		Name:     req.Name,
		Metadata: req.Metadata,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *handlers) agent(w http.ResponseWriter, r *http.Request) {
	rec, err := h.engine.GetAgent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handlers) agentTokens(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.engine.GetAgent(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	tokens, err := h.engine.TokensByAgent(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (h *handlers) featured(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	minRep, err := int64Param(q.Get("min"), h.featuredMin)
	if err != nil {
		writeBadRequest(w, "min must be an integer")
		return
	}
	limit, err := intParam(q.Get("limit"), 0)
	if err != nil {
		writeBadRequest(w, "limit must be an integer")
		return
	}

	agents, err := h.engine.FeaturedAgents(r.Context(), minRep, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if agents == nil {
		agents = []*domain.AgentRecord{}
	}
	writeJSON(w, http.StatusOK, agents)
}

func (h *handlers) verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	rec, err := h.engine.SetAgentVerified(r.Context(), chi.URLParam(r, "id"), req.Verified)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func int64Param(s string, def int64) (int64, error) {
	if s == "" {
		return def, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
