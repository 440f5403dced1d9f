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

func (s *Service) buildAcceptOffer() *pipeline.Pipeline[AcceptOfferInput, *AcceptOfferResult] {
	return &pipeline.Pipeline[AcceptOfferInput, *AcceptOfferResult]{
		Name: "acceptOffer",
		PreChecks: []pipeline.PreCheck[AcceptOfferInput]{
			// Acting user owns the listing and the listing can still match.
			func(ctx context.Context, sc *pipeline.Scope, in AcceptOfferInput) error {
				listing, err := s.listings.GetByID(ctx, in.ListingID)
				if err != nil {
					return mapRepoErr(err)
				}
				if listing.OwnerID != sc.UserID {
					return pipeline.NotAuthorized("only the listing owner can accept offers")
				}
				return transitions.AssertTransition(transitions.KindListing, listing.Status, models.ListingMatched)
			},
			// Target offer belongs to that listing and can still be accepted.
			func(ctx context.Context, sc *pipeline.Scope, in AcceptOfferInput) error {
				offer, err := s.offers.GetByID(ctx, in.OfferID)
				if err != nil {
					return mapRepoErr(err)
				}
				if offer.ListingID != in.ListingID {
					return pipeline.NotFound("offer", in.OfferID)
				}
				return transitions.AssertTransition(transitions.KindOffer, offer.Status, models.OfferAccepted)
			},
		},
		Mutate: func(ctx context.Context, sc *pipeline.Scope, in AcceptOfferInput) (*AcceptOfferResult, error) {
			res, err := s.offers.Accept(ctx, in.OfferID, in.ListingID, sc.UserID)
			if err != nil {
				return nil, mapRepoErr(err)
			}
			return &AcceptOfferResult{
				MatchID:            res.MatchID,
				MatchUUID:          res.MatchUUID,
				ConversationID:     res.ConversationID,
				DeclinedOfferCount: res.DeclinedOffers,
				OffererID:          res.OffererID,
				ListingTitle:       res.ListingTitle,
			}, nil
		},
		CheckResult: func(out *AcceptOfferResult) error {
			if out == nil || out.MatchID <= 0 || out.ConversationID <= 0 || out.MatchUUID == "" {
				return fmt.Errorf("missing match or conversation identifiers")
			}
			if out.DeclinedOfferCount < 0 {
				return fmt.Errorf("negative declined offer count")
			}
			return nil
		},
		PostEffects: []pipeline.PostEffect[AcceptOfferInput, *AcceptOfferResult]{
			func(ctx context.Context, sc *pipeline.Scope, in AcceptOfferInput, out *AcceptOfferResult) error {
				s.notify(ctx, out.OffererID, notifications.OfferAccepted(out.ListingTitle))
				return nil
			},
			func(ctx context.Context, sc *pipeline.Scope, in AcceptOfferInput, out *AcceptOfferResult) error {
				s.publish(events.NewEnvelope(events.EventOfferAccepted, producerName, sc.TraceID, out.MatchUUID,
					events.OfferAcceptedPayload{
						OfferID:        in.OfferID,
						ListingID:      in.ListingID,
						MatchID:        out.MatchID,
						ConversationID: out.ConversationID,
						DeclinedOffers: out.DeclinedOfferCount,
						OffererID:      out.OffererID,
					}))
				return nil
			},
		},
	}
}
