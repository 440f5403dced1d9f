package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cardswap/trade-engine/marketcore/pipeline"
	"github.com/cardswap/trade-engine/marketcore/trade"
	"github.com/go-chi/chi/v5"
)

// TradeService is the slice of the trade core this surface exposes;
// *trade.Service satisfies it.
type TradeService interface {
	CreateOffer(ctx context.Context, sc *pipeline.Scope, in trade.CreateOfferInput) (*trade.CreateOfferResult, error)
	AcceptOffer(ctx context.Context, sc *pipeline.Scope, in trade.AcceptOfferInput) (*trade.AcceptOfferResult, error)
	DeclineOffer(ctx context.Context, sc *pipeline.Scope, in trade.DeclineOfferInput) (*trade.DeclineOfferResult, error)
	ExpireListing(ctx context.Context, sc *pipeline.Scope, in trade.ExpireListingInput) (*trade.ExpireListingResult, error)
	CompleteMeetup(ctx context.Context, sc *pipeline.Scope, in trade.CompleteMeetupInput) (*trade.CompleteMeetupResult, error)
	SendMessage(ctx context.Context, sc *pipeline.Scope, in trade.SendMessageInput) (*trade.SendMessageResult, error)
}

type TradeHandler struct {
	Service TradeService
}

func (h *TradeHandler) Register(r *chi.Mux) {
	r.Post("/offers", h.createOffer)
	r.Post("/listings/{listingID}/offers/{offerID}/accept", h.acceptOffer)
	r.Post("/listings/{listingID}/offers/{offerID}/decline", h.declineOffer)
	r.Post("/listings/{listingID}/expire", h.expireListing)
	r.Post("/meetups/{meetupID}/complete", h.completeMeetup)
	r.Post("/conversations/{conversationID}/messages", h.sendMessage)
}

// scope builds the execution scope from request headers. The real gateway
// authenticates upstream and forwards the verified identity.
func scope(r *http.Request) *pipeline.Scope {
	return &pipeline.Scope{
		UserID:         r.Header.Get("X-User-ID"),
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		TraceID:        r.Header.Get("X-Request-Id"),
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	pe, ok := pipeline.AsError(err)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Code:    string(pipeline.CodeMutationFailed),
			Message: "internal error",
		})
		return
	}

	status := http.StatusInternalServerError
	switch pe.Code {
	case pipeline.CodeAuthenticationRequired:
		status = http.StatusUnauthorized
	case pipeline.CodeInvalidInput:
		status = http.StatusBadRequest
	case pipeline.CodeNotFound:
		status = http.StatusNotFound
	case pipeline.CodeNotAuthorized:
		status = http.StatusForbidden
	case pipeline.CodeInvalidTransition:
		status = http.StatusConflict
	case pipeline.CodeMutationFailed:
		status = http.StatusUnprocessableEntity
	case pipeline.CodeMalformedResult:
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, errorResponse{
		Code:    string(pe.Code),
		Message: pe.Message,
		Data:    pe.Data,
	})
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func (h *TradeHandler) createOffer(w http.ResponseWriter, r *http.Request) {
	var in trade.CreateOfferInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, pipeline.InvalidInput("body"))
		return
	}

	out, err := h.Service.CreateOffer(r.Context(), scope(r), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *TradeHandler) acceptOffer(w http.ResponseWriter, r *http.Request) {
	listingID, ok1 := pathID(r, "listingID")
	offerID, ok2 := pathID(r, "offerID")
	if !ok1 || !ok2 {
		writeError(w, pipeline.InvalidInput("listing_id", "offer_id"))
		return
	}

	out, err := h.Service.AcceptOffer(r.Context(), scope(r), trade.AcceptOfferInput{
		OfferID:   offerID,
		ListingID: listingID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *TradeHandler) declineOffer(w http.ResponseWriter, r *http.Request) {
	listingID, ok1 := pathID(r, "listingID")
	offerID, ok2 := pathID(r, "offerID")
	if !ok1 || !ok2 {
		writeError(w, pipeline.InvalidInput("listing_id", "offer_id"))
		return
	}

	out, err := h.Service.DeclineOffer(r.Context(), scope(r), trade.DeclineOfferInput{
		OfferID:   offerID,
		ListingID: listingID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *TradeHandler) expireListing(w http.ResponseWriter, r *http.Request) {
	listingID, ok := pathID(r, "listingID")
	if !ok {
		writeError(w, pipeline.InvalidInput("listing_id"))
		return
	}

	out, err := h.Service.ExpireListing(r.Context(), scope(r), trade.ExpireListingInput{
		ListingID: listingID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *TradeHandler) completeMeetup(w http.ResponseWriter, r *http.Request) {
	meetupID, ok := pathID(r, "meetupID")
	if !ok {
		writeError(w, pipeline.InvalidInput("meetup_id"))
		return
	}

	out, err := h.Service.CompleteMeetup(r.Context(), scope(r), trade.CompleteMeetupInput{
		MeetupID: meetupID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *TradeHandler) sendMessage(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := pathID(r, "conversationID")
	if !ok {
		writeError(w, pipeline.InvalidInput("conversation_id"))
		return
	}

	var in trade.SendMessageInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, pipeline.InvalidInput("body"))
		return
	}
	in.ConversationID = conversationID

	out, err := h.Service.SendMessage(r.Context(), scope(r), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}
