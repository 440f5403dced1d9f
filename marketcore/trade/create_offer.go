package trade

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cardswap/trade-engine/marketcore/database/models"
	"github.com/cardswap/trade-engine/marketcore/events"
	"github.com/cardswap/trade-engine/marketcore/notifications"
	"github.com/cardswap/trade-engine/marketcore/pipeline"
	"github.com/cardswap/trade-engine/marketcore/transitions"
)

// errListingNotAccepting is the guard failure for an offer against a listing
// that has left the active state.
func errListingNotAccepting(status models.ListingStatus) error {
	return &pipeline.Error{
		Code:    pipeline.CodeInvalidTransition,
		Message: fmt.Sprintf("listing is %s and no longer accepts offers", status),
		Data: map[string]any{
			"entity": string(transitions.KindListing),
			"from":   string(status),
		},
	}
}

func (s *Service) buildCreateOffer() *pipeline.Pipeline[CreateOfferInput, *CreateOfferResult] {
	return &pipeline.Pipeline[CreateOfferInput, *CreateOfferResult]{
		Name: "createOffer",
		PreChecks: []pipeline.PreCheck[CreateOfferInput]{
			// Listing must still be active and must not belong to the
			// offerer. Advisory only: the mutation re-checks under lock.
			func(ctx context.Context, sc *pipeline.Scope, in CreateOfferInput) error {
				listing, err := s.listings.GetByID(ctx, in.ListingID)
				if err != nil {
					return mapRepoErr(err)
				}
				if listing.OwnerID == sc.UserID {
					return pipeline.NotAuthorized("cannot make an offer on your own listing")
				}
				if listing.Status != models.ListingActive {
					return errListingNotAccepting(listing.Status)
				}
				return nil
			},
		},
		Mutate: func(ctx context.Context, sc *pipeline.Scope, in CreateOfferInput) (*CreateOfferResult, error) {
			if sc.IdempotencyKey != "" && s.idem != nil {
				proceed, prior, err := s.idem.Begin(ctx, "createOffer", sc.IdempotencyKey)
				if err != nil {
					slog.Warn("Idempotency guard unavailable, proceeding",
						slog.Any("error", err))
				}
				if !proceed {
					if prior == "" {
						return nil, pipeline.NewError(pipeline.CodeMutationFailed,
							"duplicate submission is still in progress")
					}
					return &CreateOfferResult{OfferUUID: prior, Status: string(models.OfferPending), Idempotent: true}, nil
				}
			}

			offer := &models.Offer{
				ListingID: in.ListingID,
				OffererID: sc.UserID,
				CashCents: in.CashCents,
				Note:      in.Note,
			}
			items := make([]models.OfferItem, len(in.Items))
			for i, item := range in.Items {
				items[i] = models.OfferItem{CardID: item.CardID, Quantity: item.Quantity}
			}

			if err := s.offers.CreateOffer(ctx, offer, items); err != nil {
				if sc.IdempotencyKey != "" && s.idem != nil {
					s.idem.Release(ctx, "createOffer", sc.IdempotencyKey)
				}
				return nil, mapRepoErr(err)
			}

			if sc.IdempotencyKey != "" && s.idem != nil {
				if err := s.idem.Complete(ctx, "createOffer", sc.IdempotencyKey, offer.OfferID); err != nil {
					slog.Warn("Failed to record idempotency result",
						slog.Any("error", err))
				}
			}

			return &CreateOfferResult{
				OfferID:   offer.ID,
				OfferUUID: offer.OfferID,
				Status:    string(offer.Status),
			}, nil
		},
		CheckResult: func(out *CreateOfferResult) error {
			if out == nil || out.OfferUUID == "" || (!out.Idempotent && out.OfferID <= 0) {
				return fmt.Errorf("missing offer identifiers")
			}
			return nil
		},
		PostEffects: []pipeline.PostEffect[CreateOfferInput, *CreateOfferResult]{
			func(ctx context.Context, sc *pipeline.Scope, in CreateOfferInput, out *CreateOfferResult) error {
				if out.Idempotent {
					return nil
				}
				listing, err := s.listings.GetByID(ctx, in.ListingID)
				if err != nil {
					return err
				}
				s.notify(ctx, listing.OwnerID, notifications.OfferCreated(listing.Title, in.CashCents, len(in.Items)))
				return nil
			},
			func(ctx context.Context, sc *pipeline.Scope, in CreateOfferInput, out *CreateOfferResult) error {
				if out.Idempotent {
					return nil
				}
				s.publish(events.NewEnvelope(events.EventOfferCreated, producerName, sc.TraceID, out.OfferUUID,
					events.OfferCreatedPayload{
						OfferID:   out.OfferID,
						ListingID: in.ListingID,
						OffererID: sc.UserID,
						CashCents: in.CashCents,
						ItemCount: len(in.Items),
					}))
				return nil
			},
		},
	}
}
