package httpx

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/cardswap/trade-engine/marketcore/database/repositories"
	"github.com/cardswap/trade-engine/marketcore/pipeline"
	"github.com/go-chi/chi/v5"
)

// ReadHandler serves the read side: listings, their open offers, and
// conversation history. Reads go straight to the repositories; only mutations
// pass through the pipelines.
type ReadHandler struct {
	Listings      repositories.ListingRepository
	Offers        repositories.OfferRepository
	Conversations repositories.ConversationRepository
}

func (h *ReadHandler) Register(r *chi.Mux) {
	r.Get("/listings/{listingID}", h.getListing)
	r.Get("/listings/{listingID}/offers", h.listOpenOffers)
	r.Get("/users/{userID}/listings", h.listUserListings)
	r.Get("/conversations/{conversationID}/messages", h.listMessages)
}

// liftRepoErr converts repository not-found errors into the structured form
// writeError knows how to map.
func liftRepoErr(err error) error {
	var nf *repositories.NotFoundError
	if errors.As(err, &nf) {
		return pipeline.NotFound(nf.Entity, nf.ID)
	}
	return err
}

func (h *ReadHandler) getListing(w http.ResponseWriter, r *http.Request) {
	listingID, ok := pathID(r, "listingID")
	if !ok {
		writeError(w, pipeline.InvalidInput("listing_id"))
		return
	}

	listing, err := h.Listings.GetByID(r.Context(), listingID)
	if err != nil {
		writeError(w, liftRepoErr(err))
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (h *ReadHandler) listOpenOffers(w http.ResponseWriter, r *http.Request) {
	listingID, ok := pathID(r, "listingID")
	if !ok {
		writeError(w, pipeline.InvalidInput("listing_id"))
		return
	}

	// Open offers are visible to the listing owner only.
	listing, err := h.Listings.GetByID(r.Context(), listingID)
	if err != nil {
		writeError(w, liftRepoErr(err))
		return
	}
	if listing.OwnerID != scope(r).UserID {
		writeError(w, pipeline.NotAuthorized("only the listing owner can view its offers"))
		return
	}

	offers, err := h.Offers.GetOpenByListing(r.Context(), listingID)
	if err != nil {
		writeError(w, liftRepoErr(err))
		return
	}
	writeJSON(w, http.StatusOK, offers)
}

func (h *ReadHandler) listUserListings(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeError(w, pipeline.InvalidInput("user_id"))
		return
	}

	listings, err := h.Listings.GetByOwner(r.Context(), userID)
	if err != nil {
		writeError(w, liftRepoErr(err))
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

func (h *ReadHandler) listMessages(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := pathID(r, "conversationID")
	if !ok {
		writeError(w, pipeline.InvalidInput("conversation_id"))
		return
	}

	conversation, err := h.Conversations.GetByID(r.Context(), conversationID)
	if err != nil {
		writeError(w, liftRepoErr(err))
		return
	}
	if !conversation.HasParticipant(scope(r).UserID) {
		writeError(w, pipeline.NotAuthorized("only a participant can read this conversation"))
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	messages, err := h.Conversations.GetMessages(r.Context(), conversationID, limit)
	if err != nil {
		writeError(w, liftRepoErr(err))
		return
	}
	writeJSON(w, http.StatusOK, messages)
}
