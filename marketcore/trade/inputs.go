package trade

import (
	"encoding/json"

	"github.com/cardswap/trade-engine/marketcore/database/models"
	"github.com/cardswap/trade-engine/marketcore/pipeline"
)

type OfferItemInput struct {
	CardID   int64 `json:"card_id"`
	Quantity int   `json:"quantity"`
}

type CreateOfferInput struct {
	ListingID int64            `json:"listing_id"`
	CashCents int64            `json:"cash_cents"`
	Note      string           `json:"note,omitempty"`
	Items     []OfferItemInput `json:"items"`
}

func (in CreateOfferInput) Validate() error {
	var fields []string
	if in.ListingID <= 0 {
		fields = append(fields, "listing_id")
	}
	if in.CashCents < 0 {
		fields = append(fields, "cash_cents")
	}
	for _, item := range in.Items {
		if item.CardID <= 0 || item.Quantity <= 0 {
			fields = append(fields, "items")
			break
		}
	}
	if in.CashCents == 0 && len(in.Items) == 0 {
		fields = append(fields, "cash_cents", "items")
	}
	if len(fields) > 0 {
		return pipeline.InvalidInput(fields...)
	}
	return nil
}

type CreateOfferResult struct {
	OfferID   int64  `json:"offer_id"`
	OfferUUID string `json:"offer_uuid"`
	Status    string `json:"status"`
	// Idempotent marks a duplicate submission answered from the idempotency
	// record; no new offer was inserted.
	Idempotent bool `json:"idempotent,omitempty"`
}

type AcceptOfferInput struct {
	OfferID   int64 `json:"offer_id"`
	ListingID int64 `json:"listing_id"`
}

func (in AcceptOfferInput) Validate() error {
	var fields []string
	if in.OfferID <= 0 {
		fields = append(fields, "offer_id")
	}
	if in.ListingID <= 0 {
		fields = append(fields, "listing_id")
	}
	if len(fields) > 0 {
		return pipeline.InvalidInput(fields...)
	}
	return nil
}

type AcceptOfferResult struct {
	MatchID            int64  `json:"match_id"`
	MatchUUID          string `json:"match_uuid"`
	ConversationID     int64  `json:"conversation_id"`
	DeclinedOfferCount int    `json:"declined_offer_count"`
	OffererID          string `json:"offerer_id"`
	ListingTitle       string `json:"listing_title"`
}

type DeclineOfferInput struct {
	OfferID   int64 `json:"offer_id"`
	ListingID int64 `json:"listing_id"`
}

func (in DeclineOfferInput) Validate() error {
	var fields []string
	if in.OfferID <= 0 {
		fields = append(fields, "offer_id")
	}
	if in.ListingID <= 0 {
		fields = append(fields, "listing_id")
	}
	if len(fields) > 0 {
		return pipeline.InvalidInput(fields...)
	}
	return nil
}

type DeclineOfferResult struct {
	OfferID   int64  `json:"offer_id"`
	OffererID string `json:"offerer_id"`
	Status    string `json:"status"`

	// listingTitle feeds the decline notification; not part of the caller
	// contract.
	listingTitle string
}

type ExpireListingInput struct {
	ListingID int64 `json:"listing_id"`
}

func (in ExpireListingInput) Validate() error {
	if in.ListingID <= 0 {
		return pipeline.InvalidInput("listing_id")
	}
	return nil
}

type ExpireListingResult struct {
	ListingID           int64 `json:"listing_id"`
	WithdrawnOfferCount int   `json:"withdrawn_offer_count"`
}

type CompleteMeetupInput struct {
	MeetupID int64 `json:"meetup_id"`
}

func (in CompleteMeetupInput) Validate() error {
	if in.MeetupID <= 0 {
		return pipeline.InvalidInput("meetup_id")
	}
	return nil
}

type CompleteMeetupResult struct {
	MeetupID      int64 `json:"meetup_id"`
	MatchID       int64 `json:"match_id"`
	BothCompleted bool  `json:"both_completed"`

	// otherUserID feeds the half-complete notification; not part of the
	// caller contract.
	otherUserID string
}

type SendMessageInput struct {
	ConversationID int64              `json:"conversation_id"`
	Type           models.MessageType `json:"type"`
	Body           string             `json:"body,omitempty"`
	Payload        json.RawMessage    `json:"payload,omitempty"`
}

func (in SendMessageInput) Validate() error {
	var fields []string
	if in.ConversationID <= 0 {
		fields = append(fields, "conversation_id")
	}
	if !models.KnownMessageType(in.Type) {
		fields = append(fields, "type")
	}
	if in.Type == models.MessageText && in.Body == "" {
		fields = append(fields, "body")
	}
	if len(fields) > 0 {
		return pipeline.InvalidInput(fields...)
	}
	return nil
}

type SendMessageResult struct {
	MessageID   int64  `json:"message_id"`
	SenderID    string `json:"sender_id"`
	RecipientID string `json:"recipient_id"`
}
