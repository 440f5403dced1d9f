// Package trade holds the six trade-lifecycle pipelines: createOffer,
// acceptOffer, declineOffer, expireListing, completeMeetup and sendMessage.
// Each one is a declarative composition of read-only pre-checks, exactly one
// atomic repository mutation, and best-effort post-effects.
package trade

import (
	"context"
	"errors"

	"github.com/cardswap/trade-engine/marketcore/database/repositories"
	"github.com/cardswap/trade-engine/marketcore/events"
	"github.com/cardswap/trade-engine/marketcore/notifications"
	"github.com/cardswap/trade-engine/marketcore/pipeline"
)

const producerName = "trade-engine"

// Notifier is the best-effort push boundary; *notifications.Notifier
// satisfies it. Notify must never fail the caller.
type Notifier interface {
	Notify(ctx context.Context, userID string, payload notifications.Payload)
}

// IdemGuard suppresses duplicate submissions carrying the same client key;
// *redisx.Idempotency satisfies it. Begin claims the key (prior carries the
// first run's recorded result, empty while it is still in flight), Complete
// records the committed result, Release frees the key after a failed run.
type IdemGuard interface {
	Begin(ctx context.Context, pipeline, key string) (proceed bool, priorResult string, err error)
	Complete(ctx context.Context, pipeline, key, resultID string) error
	Release(ctx context.Context, pipeline, key string)
}

// Service wires the pipelines to their backends. Zero in-process mutable
// state is shared between executions; concurrency control lives entirely in
// the repositories' transactions.
type Service struct {
	listings      repositories.ListingRepository
	offers        repositories.OfferRepository
	meetups       repositories.MeetupRepository
	conversations repositories.ConversationRepository
	notifier      Notifier
	events        events.Publisher
	idem          IdemGuard

	createOffer    *pipeline.Pipeline[CreateOfferInput, *CreateOfferResult]
	acceptOffer    *pipeline.Pipeline[AcceptOfferInput, *AcceptOfferResult]
	declineOffer   *pipeline.Pipeline[DeclineOfferInput, *DeclineOfferResult]
	expireListing  *pipeline.Pipeline[ExpireListingInput, *ExpireListingResult]
	completeMeetup *pipeline.Pipeline[CompleteMeetupInput, *CompleteMeetupResult]
	sendMessage    *pipeline.Pipeline[SendMessageInput, *SendMessageResult]
}

// Options carries the optional collaborators. Nil fields disable the
// corresponding side concern; the mutations are unaffected.
type Options struct {
	Notifier Notifier
	Events   events.Publisher
	Idem     IdemGuard
}

func NewService(
	listings repositories.ListingRepository,
	offers repositories.OfferRepository,
	meetups repositories.MeetupRepository,
	conversations repositories.ConversationRepository,
	opts Options,
) *Service {
	s := &Service{
		listings:      listings,
		offers:        offers,
		meetups:       meetups,
		conversations: conversations,
		notifier:      opts.Notifier,
		events:        opts.Events,
		idem:          opts.Idem,
	}

	s.createOffer = s.buildCreateOffer()
	s.acceptOffer = s.buildAcceptOffer()
	s.declineOffer = s.buildDeclineOffer()
	s.expireListing = s.buildExpireListing()
	s.completeMeetup = s.buildCompleteMeetup()
	s.sendMessage = s.buildSendMessage()

	return s
}

func (s *Service) CreateOffer(ctx context.Context, sc *pipeline.Scope, in CreateOfferInput) (*CreateOfferResult, error) {
	return s.createOffer.Execute(ctx, sc, in)
}

func (s *Service) AcceptOffer(ctx context.Context, sc *pipeline.Scope, in AcceptOfferInput) (*AcceptOfferResult, error) {
	return s.acceptOffer.Execute(ctx, sc, in)
}

func (s *Service) DeclineOffer(ctx context.Context, sc *pipeline.Scope, in DeclineOfferInput) (*DeclineOfferResult, error) {
	return s.declineOffer.Execute(ctx, sc, in)
}

func (s *Service) ExpireListing(ctx context.Context, sc *pipeline.Scope, in ExpireListingInput) (*ExpireListingResult, error) {
	return s.expireListing.Execute(ctx, sc, in)
}

func (s *Service) CompleteMeetup(ctx context.Context, sc *pipeline.Scope, in CompleteMeetupInput) (*CompleteMeetupResult, error) {
	return s.completeMeetup.Execute(ctx, sc, in)
}

func (s *Service) SendMessage(ctx context.Context, sc *pipeline.Scope, in SendMessageInput) (*SendMessageResult, error) {
	return s.sendMessage.Execute(ctx, sc, in)
}

func (s *Service) notify(ctx context.Context, userID string, payload notifications.Payload) {
	if s.notifier == nil || userID == "" {
		return
	}
	s.notifier.Notify(ctx, userID, payload)
}

func (s *Service) publish(env events.Envelope) {
	if s.events == nil {
		return
	}
	s.events.Publish(env)
}

// mapRepoErr lifts repository not-found errors into structured pipeline
// errors; everything else passes through for the engine to classify.
func mapRepoErr(err error) error {
	if err == nil {
		return nil
	}
	var nf *repositories.NotFoundError
	if errors.As(err, &nf) {
		return pipeline.NotFound(nf.Entity, nf.ID)
	}
	return err
}
