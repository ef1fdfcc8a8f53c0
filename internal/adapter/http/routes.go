package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/simaogato/redpacket-backend/internal/domain"
)

const (
	queryMoney = "money"
	queryCount = "count"
	paramID    = "id"

	statusOK    = "OK"
	statusError = "ERROR"
)

// handler contains the HTTP handlers and shared dependencies for the REST API.
type handler struct {
	creator PacketCreator
	reader  PacketReader
	logger  *zap.Logger

	defaultAmount decimal.Decimal
	defaultShares int
}

func registerRoutes(router chi.Router, h *handler) {
	router.Get("/healthz", h.handleHealth)
	router.Route("/api", func(r chi.Router) {
		r.Get("/distributeRedPacket", h.handleDistribute)
		r.Post("/distributeRedPacket", h.handleDistribute)
		r.Get("/packets", h.handleListPackets)
		r.Get("/packets/{"+paramID+"}", h.handleGetPacket)
	})
}

type distributeResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

type packetResponse struct {
	ID              string `json:"id"`
	TotalShares     int    `json:"total_shares"`
	RemainingShares int    `json:"remaining_shares"`
	TotalAmount     string `json:"total_amount"`
	RemainingAmount string `json:"remaining_amount"`
	Drift           string `json:"drift"`
	CreatedAt       string `json:"created_at"`
}

type errorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

func toPacketResponse(p domain.Packet) packetResponse {
	return packetResponse{
		ID:              p.ID,
		TotalShares:     p.TotalShares,
		RemainingShares: p.RemainingShares,
		TotalAmount:     p.TotalAmount.StringFixed(domain.AmountPlaces),
		RemainingAmount: p.RemainingAmount.StringFixed(domain.AmountPlaces),
		Drift:           p.Drift.StringFixed(domain.AmountPlaces),
		CreatedAt:       p.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": statusOK})
}

func (h *handler) handleDistribute(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	amount := h.defaultAmount
	if raw := params.Get(queryMoney); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid money parameter")
			return
		}
		amount = parsed
	}

	shares := h.defaultShares
	if raw := params.Get(queryCount); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid count parameter")
			return
		}
		shares = parsed
	}

	packet, err := h.creator.CreatePacket(r.Context(), shares, amount)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, distributeResponse{Status: statusOK, ID: packet.ID})
}

func (h *handler) handleListPackets(w http.ResponseWriter, r *http.Request) {
	packets, err := h.reader.List(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	resp := make([]packetResponse, 0, len(packets))
	for _, p := range packets {
		resp = append(resp, toPacketResponse(p))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleGetPacket(w http.ResponseWriter, r *http.Request) {
	packet, err := h.reader.Get(r.Context(), chi.URLParam(r, paramID))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toPacketResponse(packet))
}

func (h *handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrMalformed):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrPacketNotFound):
		h.writeError(w, http.StatusNotFound, "red packet not found")
	default:
		h.logger.Error("request failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Status: statusError, Error: message})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
