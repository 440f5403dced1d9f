package trade

import (
	"context"
	"fmt"

	"github.com/cardswap/trade-engine/marketcore/database/models"
	"github.com/cardswap/trade-engine/marketcore/events"
	"github.com/cardswap/trade-engine/marketcore/pipeline"
	"github.com/cardswap/trade-engine/marketcore/transitions"
)

func (s *Service) buildExpireListing() *pipeline.Pipeline[ExpireListingInput, *ExpireListingResult] {
	return &pipeline.Pipeline[ExpireListingInput, *ExpireListingResult]{
		Name: "expireListing",
		PreChecks: []pipeline.PreCheck[ExpireListingInput]{
			func(ctx context.Context, sc *pipeline.Scope, in ExpireListingInput) error {
				listing, err := s.listings.GetByID(ctx, in.ListingID)
				if err != nil {
					return mapRepoErr(err)
				}
				if listing.OwnerID != sc.UserID {
					return pipeline.NotAuthorized("only the listing owner can expire it")
				}
				return transitions.AssertTransition(transitions.KindListing, listing.Status, models.ListingExpired)
			},
		},
		Mutate: func(ctx context.Context, sc *pipeline.Scope, in ExpireListingInput) (*ExpireListingResult, error) {
			withdrawn, err := s.listings.Expire(ctx, in.ListingID, sc.UserID)
			if err != nil {
				return nil, mapRepoErr(err)
			}
			return &ExpireListingResult{
				ListingID:           in.ListingID,
				WithdrawnOfferCount: withdrawn,
			}, nil
		},
		CheckResult: func(out *ExpireListingResult) error {
			if out == nil || out.WithdrawnOfferCount < 0 {
				return fmt.Errorf("negative withdrawn offer count")
			}
			return nil
		},
		// No user-facing notification when a listing expires; only the
		// telemetry event goes out.
		PostEffects: []pipeline.PostEffect[ExpireListingInput, *ExpireListingResult]{
			func(ctx context.Context, sc *pipeline.Scope, in ExpireListingInput, out *ExpireListingResult) error {
				s.publish(events.NewEnvelope(events.EventListingExpired, producerName, sc.TraceID, "",
					events.ListingExpiredPayload{
						ListingID:       in.ListingID,
						WithdrawnOffers: out.WithdrawnOfferCount,
					}))
				return nil
			},
		},
	}
}
