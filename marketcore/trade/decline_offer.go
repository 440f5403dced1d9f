package trade

import (
	"context"
	"fmt"

	"github.com/cardswap/trade-engine/marketcore/database/models"
	"github.com/cardswap/trade-engine/marketcore/events"
	"github.com/cardswap/trade-engine/marketcore/notifications"
	"github.com/cardswap/trade-engine/marketcore/pipeline"
	"github.com/cardswap/trade-engine/marketcore/transitions"
)

func (s *Service) buildDeclineOffer() *pipeline.Pipeline[DeclineOfferInput, *DeclineOfferResult] {
	return &pipeline.Pipeline[DeclineOfferInput, *DeclineOfferResult]{
		Name: "declineOffer",
		PreChecks: []pipeline.PreCheck[DeclineOfferInput]{
			func(ctx context.Context, sc *pipeline.Scope, in DeclineOfferInput) error {
				listing, err := s.listings.GetByID(ctx, in.ListingID)
				if err != nil {
					return mapRepoErr(err)
				}
				if listing.OwnerID != sc.UserID {
					return pipeline.NotAuthorized("only the listing owner can decline offers")
				}
				return nil
			},
			func(ctx context.Context, sc *pipeline.Scope, in DeclineOfferInput) error {
				offer, err := s.offers.GetByID(ctx, in.OfferID)
				if err != nil {
					return mapRepoErr(err)
				}
				if offer.ListingID != in.ListingID {
					return pipeline.NotFound("offer", in.OfferID)
				}
				return transitions.AssertTransition(transitions.KindOffer, offer.Status, models.OfferDeclined)
			},
		},
		Mutate: func(ctx context.Context, sc *pipeline.Scope, in DeclineOfferInput) (*DeclineOfferResult, error) {
			res, err := s.offers.Decline(ctx, in.OfferID, in.ListingID, sc.UserID)
			if err != nil {
				return nil, mapRepoErr(err)
			}
			out := &DeclineOfferResult{
				OfferID:   res.OfferID,
				OffererID: res.OffererID,
				Status:    string(models.OfferDeclined),
			}
			out.listingTitle = res.ListingTitle
			return out, nil
		},
		CheckResult: func(out *DeclineOfferResult) error {
			if out == nil || out.OfferID <= 0 || out.OffererID == "" {
				return fmt.Errorf("missing offer identifiers")
			}
			return nil
		},
		PostEffects: []pipeline.PostEffect[DeclineOfferInput, *DeclineOfferResult]{
			func(ctx context.Context, sc *pipeline.Scope, in DeclineOfferInput, out *DeclineOfferResult) error {
				s.notify(ctx, out.OffererID, notifications.OfferDeclined(out.listingTitle))
				return nil
			},
			func(ctx context.Context, sc *pipeline.Scope, in DeclineOfferInput, out *DeclineOfferResult) error {
				s.publish(events.NewEnvelope(events.EventOfferDeclined, producerName, sc.TraceID, "",
					events.OfferDeclinedPayload{
						OfferID:   in.OfferID,
						ListingID: in.ListingID,
						OffererID: out.OffererID,
					}))
				return nil
			},
		},
	}
}
