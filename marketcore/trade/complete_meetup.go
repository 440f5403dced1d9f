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

func (s *Service) buildCompleteMeetup() *pipeline.Pipeline[CompleteMeetupInput, *CompleteMeetupResult] {
	return &pipeline.Pipeline[CompleteMeetupInput, *CompleteMeetupResult]{
		Name: "completeMeetup",
		PreChecks: []pipeline.PreCheck[CompleteMeetupInput]{
			// Meetup must be confirmed and the acting user must be one of
			// the two match participants.
			func(ctx context.Context, sc *pipeline.Scope, in CompleteMeetupInput) error {
				meetup, err := s.meetups.GetByID(ctx, in.MeetupID)
				if err != nil {
					return mapRepoErr(err)
				}
				if err := transitions.AssertTransition(transitions.KindMeetup, meetup.Status, models.MeetupCompleted); err != nil {
					return err
				}

				match, err := s.meetups.GetMatch(ctx, meetup.MatchID)
				if err != nil {
					return mapRepoErr(err)
				}
				if !match.HasParticipant(sc.UserID) {
					return pipeline.NotAuthorized("only a meetup participant can mark it complete")
				}
				return nil
			},
		},
		Mutate: func(ctx context.Context, sc *pipeline.Scope, in CompleteMeetupInput) (*CompleteMeetupResult, error) {
			res, err := s.meetups.Complete(ctx, in.MeetupID, sc.UserID)
			if err != nil {
				return nil, mapRepoErr(err)
			}
			out := &CompleteMeetupResult{
				MeetupID:      res.MeetupID,
				MatchID:       res.MatchID,
				BothCompleted: res.BothCompleted,
			}
			out.otherUserID = res.OtherUserID
			return out, nil
		},
		CheckResult: func(out *CompleteMeetupResult) error {
			if out == nil || out.MeetupID <= 0 || out.MatchID <= 0 {
				return fmt.Errorf("missing meetup or match identifiers")
			}
			return nil
		},
		PostEffects: []pipeline.PostEffect[CompleteMeetupInput, *CompleteMeetupResult]{
			// The counterparty only hears about the half-done state; full
			// completion is its own moment in the app, not a push.
			func(ctx context.Context, sc *pipeline.Scope, in CompleteMeetupInput, out *CompleteMeetupResult) error {
				if out.BothCompleted {
					return nil
				}
				s.notify(ctx, out.otherUserID, notifications.MeetupHalfComplete(sc.UserID))
				return nil
			},
			func(ctx context.Context, sc *pipeline.Scope, in CompleteMeetupInput, out *CompleteMeetupResult) error {
				s.publish(events.NewEnvelope(events.EventMeetupCompleted, producerName, sc.TraceID, "",
					events.MeetupCompletedPayload{
						MeetupID:      out.MeetupID,
						MatchID:       out.MatchID,
						BothCompleted: out.BothCompleted,
					}))
				return nil
			},
		},
	}
}
