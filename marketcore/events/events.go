package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventOfferCreated    = "OfferCreated"
	EventOfferAccepted   = "OfferAccepted"
	EventOfferDeclined   = "OfferDeclined"
	EventListingExpired  = "ListingExpired"
	EventMeetupCompleted = "MeetupCompleted"
	EventMessageSent     = "MessageSent"
)

// Envelope is the versioned wrapper written to the trade-events topic.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope wraps a payload. The payload must be JSON-marshalable; a
// marshal failure here is a programming error and panics.
func NewEnvelope(eventType, producer, traceID, correlationID string, payload any) Envelope {
	raw, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}

	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: correlationID,
		Payload:       raw,
	}
}

// ---- Payloads per event ----

type OfferCreatedPayload struct {
	OfferID   int64  `json:"offer_id"`
	ListingID int64  `json:"listing_id"`
	OffererID string `json:"offerer_id"`
	CashCents int64  `json:"cash_cents"`
	ItemCount int    `json:"item_count"`
}

type OfferAcceptedPayload struct {
	OfferID        int64  `json:"offer_id"`
	ListingID      int64  `json:"listing_id"`
	MatchID        int64  `json:"match_id"`
	ConversationID int64  `json:"conversation_id"`
	DeclinedOffers int    `json:"declined_offer_count"`
	OffererID      string `json:"offerer_id"`
}

type OfferDeclinedPayload struct {
	OfferID   int64  `json:"offer_id"`
	ListingID int64  `json:"listing_id"`
	OffererID string `json:"offerer_id"`
}

type ListingExpiredPayload struct {
	ListingID       int64 `json:"listing_id"`
	WithdrawnOffers int   `json:"withdrawn_offer_count"`
}

type MeetupCompletedPayload struct {
	MeetupID      int64 `json:"meetup_id"`
	MatchID       int64 `json:"match_id"`
	BothCompleted bool  `json:"both_completed"`
}

type MessageSentPayload struct {
	MessageID      int64  `json:"message_id"`
	ConversationID int64  `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Type           string `json:"type"`
}
