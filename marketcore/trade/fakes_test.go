package trade

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cardswap/trade-engine/marketcore/database/models"
	"github.com/cardswap/trade-engine/marketcore/database/repositories"
	"github.com/cardswap/trade-engine/marketcore/events"
	"github.com/cardswap/trade-engine/marketcore/notifications"
	"github.com/cardswap/trade-engine/marketcore/pipeline"
	"github.com/cardswap/trade-engine/marketcore/transitions"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// memStore is an in-memory stand-in for the database. The fake repositories
// below implement the same locking-era semantics the real ones enforce inside
// their transactions, so the pipelines can be exercised end to end.
type memStore struct {
	mu sync.Mutex

	listings      map[int64]*models.Listing
	offers        map[int64]*models.Offer
	matches       map[int64]*models.Match
	meetups       map[int64]*models.Meetup
	conversations map[int64]*models.Conversation
	messages      []*models.Message
	tradeCounts   map[string]int

	nextID int64
}

func newMemStore() *memStore {
	return &memStore{
		listings:      map[int64]*models.Listing{},
		offers:        map[int64]*models.Offer{},
		matches:       map[int64]*models.Match{},
		meetups:       map[int64]*models.Meetup{},
		conversations: map[int64]*models.Conversation{},
		tradeCounts:   map[string]int{},
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) addListing(ownerID, title string, status models.ListingStatus) *models.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := &models.Listing{
		ID:        s.id(),
		ListingID: uuid.NewString(),
		OwnerID:   ownerID,
		Title:     title,
		Status:    status,
		CreatedAt: time.Now(),
	}
	s.listings[l.ID] = l
	return l
}

func (s *memStore) addOffer(listingID int64, offererID string, status models.OfferStatus) *models.Offer {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := &models.Offer{
		ID:        s.id(),
		OfferID:   uuid.NewString(),
		ListingID: listingID,
		OffererID: offererID,
		CashCents: 500,
		Status:    status,
		CreatedAt: time.Now(),
	}
	s.offers[o.ID] = o
	return o
}

func (s *memStore) addMatch(listingID, offerID int64, ownerID, offererID string) *models.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := &models.Match{
		ID:        s.id(),
		MatchID:   uuid.NewString(),
		ListingID: listingID,
		OfferID:   offerID,
		OwnerID:   ownerID,
		OffererID: offererID,
		Status:    models.MatchActive,
	}
	s.matches[m.ID] = m
	return m
}

func (s *memStore) addMeetup(matchID int64, status models.MeetupStatus) *models.Meetup {
	s.mu.Lock()
	defer s.mu.Unlock()
	mu := &models.Meetup{
		ID:      s.id(),
		MatchID: matchID,
		Status:  status,
	}
	s.meetups[mu.ID] = mu
	return mu
}

func (s *memStore) addConversation(matchID int64, ownerID, offererID string) *models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &models.Conversation{
		ID:        s.id(),
		MatchID:   matchID,
		OwnerID:   ownerID,
		OffererID: offererID,
	}
	s.conversations[c.ID] = c
	return c
}

type fakeListingRepo struct{ store *memStore }

func (r *fakeListingRepo) DB() *bun.DB { return nil }

func (r *fakeListingRepo) Create(ctx context.Context, listing *models.Listing) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	listing.ID = r.store.id()
	if listing.ListingID == "" {
		listing.ListingID = uuid.NewString()
	}
	if listing.Status == "" {
		listing.Status = models.ListingActive
	}
	r.store.listings[listing.ID] = listing
	return nil
}

func (r *fakeListingRepo) GetByID(ctx context.Context, id int64) (*models.Listing, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	l, ok := r.store.listings[id]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "listing", ID: id}
	}
	cp := *l
	return &cp, nil
}

func (r *fakeListingRepo) GetByOwner(ctx context.Context, ownerID string) ([]*models.Listing, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.Listing
	for _, l := range r.store.listings {
		if l.OwnerID == ownerID {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeListingRepo) Expire(ctx context.Context, listingID int64, actorID string) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	l, ok := r.store.listings[listingID]
	if !ok {
		return 0, &repositories.NotFoundError{Entity: "listing", ID: listingID}
	}
	if l.OwnerID != actorID {
		return 0, pipeline.NotAuthorized("only the listing owner can expire it")
	}
	if err := transitions.AssertTransition(transitions.KindListing, l.Status, models.ListingExpired); err != nil {
		return 0, err
	}

	l.Status = models.ListingExpired
	withdrawn := 0
	for _, o := range r.store.offers {
		if o.ListingID != listingID {
			continue
		}
		if o.Status == models.OfferPending || o.Status == models.OfferCountered {
			o.Status = models.OfferWithdrawn
			withdrawn++
		}
	}
	return withdrawn, nil
}

type fakeOfferRepo struct{ store *memStore }

func (r *fakeOfferRepo) DB() *bun.DB { return nil }

func (r *fakeOfferRepo) GetByID(ctx context.Context, id int64) (*models.Offer, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	o, ok := r.store.offers[id]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "offer", ID: id}
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOfferRepo) GetOpenByListing(ctx context.Context, listingID int64) ([]*models.Offer, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.Offer
	for _, o := range r.store.offers {
		if o.ListingID == listingID &&
			(o.Status == models.OfferPending || o.Status == models.OfferCountered) {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeOfferRepo) CreateOffer(ctx context.Context, offer *models.Offer, items []models.OfferItem) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	l, ok := r.store.listings[offer.ListingID]
	if !ok {
		return &repositories.NotFoundError{Entity: "listing", ID: offer.ListingID}
	}
	if l.OwnerID == offer.OffererID {
		return pipeline.NotAuthorized("cannot make an offer on your own listing")
	}
	if l.Status != models.ListingActive {
		return &pipeline.Error{
			Code:    pipeline.CodeInvalidTransition,
			Message: fmt.Sprintf("listing is %s and no longer accepts offers", l.Status),
			Data:    map[string]any{"entity": "listing", "from": string(l.Status)},
		}
	}

	offer.ID = r.store.id()
	if offer.OfferID == "" {
		offer.OfferID = uuid.NewString()
	}
	offer.Status = models.OfferPending
	r.store.offers[offer.ID] = offer
	return nil
}

func (r *fakeOfferRepo) Accept(ctx context.Context, offerID, listingID int64, actorID string) (*repositories.AcceptOfferResult, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	l, ok := r.store.listings[listingID]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "listing", ID: listingID}
	}
	if l.OwnerID != actorID {
		return nil, pipeline.NotAuthorized("only the listing owner can accept offers")
	}
	if err := transitions.AssertTransition(transitions.KindListing, l.Status, models.ListingMatched); err != nil {
		return nil, err
	}

	o, ok := r.store.offers[offerID]
	if !ok || o.ListingID != listingID {
		return nil, &repositories.NotFoundError{Entity: "offer", ID: offerID}
	}
	if err := transitions.AssertTransition(transitions.KindOffer, o.Status, models.OfferAccepted); err != nil {
		return nil, err
	}

	o.Status = models.OfferAccepted
	declined := 0
	for _, sib := range r.store.offers {
		if sib.ListingID != listingID || sib.ID == offerID {
			continue
		}
		if sib.Status == models.OfferPending || sib.Status == models.OfferCountered {
			sib.Status = models.OfferDeclined
			declined++
		}
	}
	l.Status = models.ListingMatched

	m := &models.Match{
		ID:        r.store.id(),
		MatchID:   uuid.NewString(),
		ListingID: listingID,
		OfferID:   offerID,
		OwnerID:   l.OwnerID,
		OffererID: o.OffererID,
		Status:    models.MatchActive,
	}
	r.store.matches[m.ID] = m

	c := &models.Conversation{
		ID:        r.store.id(),
		MatchID:   m.ID,
		OwnerID:   l.OwnerID,
		OffererID: o.OffererID,
	}
	r.store.conversations[c.ID] = c

	return &repositories.AcceptOfferResult{
		MatchID:        m.ID,
		MatchUUID:      m.MatchID,
		ConversationID: c.ID,
		DeclinedOffers: declined,
		OffererID:      o.OffererID,
		ListingTitle:   l.Title,
	}, nil
}

func (r *fakeOfferRepo) Decline(ctx context.Context, offerID, listingID int64, actorID string) (*repositories.DeclineOfferResult, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	l, ok := r.store.listings[listingID]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "listing", ID: listingID}
	}
	if l.OwnerID != actorID {
		return nil, pipeline.NotAuthorized("only the listing owner can decline offers")
	}

	o, ok := r.store.offers[offerID]
	if !ok || o.ListingID != listingID {
		return nil, &repositories.NotFoundError{Entity: "offer", ID: offerID}
	}
	if err := transitions.AssertTransition(transitions.KindOffer, o.Status, models.OfferDeclined); err != nil {
		return nil, err
	}

	o.Status = models.OfferDeclined
	return &repositories.DeclineOfferResult{
		OfferID:      o.ID,
		OffererID:    o.OffererID,
		ListingTitle: l.Title,
	}, nil
}

type fakeMeetupRepo struct{ store *memStore }

func (r *fakeMeetupRepo) DB() *bun.DB { return nil }

func (r *fakeMeetupRepo) Create(ctx context.Context, meetup *models.Meetup) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	meetup.ID = r.store.id()
	if meetup.Status == "" {
		meetup.Status = models.MeetupProposed
	}
	r.store.meetups[meetup.ID] = meetup
	return nil
}

func (r *fakeMeetupRepo) GetByID(ctx context.Context, id int64) (*models.Meetup, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	mu, ok := r.store.meetups[id]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "meetup", ID: id}
	}
	cp := *mu
	return &cp, nil
}

func (r *fakeMeetupRepo) GetMatch(ctx context.Context, matchID int64) (*models.Match, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	m, ok := r.store.matches[matchID]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "match", ID: matchID}
	}
	cp := *m
	return &cp, nil
}

func (r *fakeMeetupRepo) Complete(ctx context.Context, meetupID int64, actorID string) (*repositories.CompleteMeetupResult, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	mu, ok := r.store.meetups[meetupID]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "meetup", ID: meetupID}
	}
	if err := transitions.AssertTransition(transitions.KindMeetup, mu.Status, models.MeetupCompleted); err != nil {
		return nil, err
	}

	m, ok := r.store.matches[mu.MatchID]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "match", ID: mu.MatchID}
	}
	if !m.HasParticipant(actorID) {
		return nil, pipeline.NotAuthorized("only a meetup participant can mark it complete")
	}

	if actorID == m.OwnerID {
		mu.OwnerCompleted = true
	} else {
		mu.OffererCompleted = true
	}

	if mu.BothCompleted() {
		mu.Status = models.MeetupCompleted
		if err := transitions.AssertTransition(transitions.KindMatch, m.Status, models.MatchCompleted); err != nil {
			return nil, err
		}
		m.Status = models.MatchCompleted
		r.store.tradeCounts[m.OwnerID]++
		r.store.tradeCounts[m.OffererID]++
	}

	return &repositories.CompleteMeetupResult{
		MeetupID:      mu.ID,
		MatchID:       m.ID,
		BothCompleted: mu.BothCompleted(),
		OtherUserID:   m.OtherParticipant(actorID),
	}, nil
}

type fakeConversationRepo struct{ store *memStore }

func (r *fakeConversationRepo) DB() *bun.DB { return nil }

func (r *fakeConversationRepo) GetByID(ctx context.Context, id int64) (*models.Conversation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c, ok := r.store.conversations[id]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "conversation", ID: id}
	}
	cp := *c
	return &cp, nil
}

func (r *fakeConversationRepo) GetMessages(ctx context.Context, conversationID int64, limit int) ([]*models.Message, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.Message
	for _, msg := range r.store.messages {
		if msg.ConversationID == conversationID {
			cp := *msg
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeConversationRepo) SendMessage(ctx context.Context, conversationID int64, senderID string, msgType models.MessageType, body string, payload json.RawMessage) (*repositories.SendMessageResult, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	c, ok := r.store.conversations[conversationID]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "conversation", ID: conversationID}
	}
	if !c.HasParticipant(senderID) {
		return nil, pipeline.NotAuthorized("sender is not part of this conversation")
	}

	msg := &models.Message{
		ID:             r.store.id(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Type:           msgType,
		Body:           body,
		Payload:        payload,
	}
	r.store.messages = append(r.store.messages, msg)

	return &repositories.SendMessageResult{
		MessageID:   msg.ID,
		SenderID:    senderID,
		RecipientID: c.OtherParticipant(senderID),
	}, nil
}

// fakeIdem mirrors the Redis guard's claim semantics: a held key with an
// empty value is an in-flight first run, a non-empty value is its recorded
// result.
type fakeIdem struct {
	mu       sync.Mutex
	state    map[string]string
	releases []string
}

func newFakeIdem() *fakeIdem {
	return &fakeIdem{state: map[string]string{}}
}

func idemKey(pipeline, key string) string { return pipeline + ":" + key }

func (f *fakeIdem) Begin(ctx context.Context, pipeline, key string) (bool, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := idemKey(pipeline, key)
	prior, held := f.state[k]
	if !held {
		f.state[k] = ""
		return true, "", nil
	}
	return false, prior, nil
}

func (f *fakeIdem) Complete(ctx context.Context, pipeline, key, resultID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state[idemKey(pipeline, key)] = resultID
	return nil
}

func (f *fakeIdem) Release(ctx context.Context, pipeline, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := idemKey(pipeline, key)
	f.releases = append(f.releases, k)
	delete(f.state, k)
}

type sentPush struct {
	UserID  string
	Payload notifications.Payload
}

type captureNotifier struct {
	mu    sync.Mutex
	sent  []sentPush
	panic bool
}

func (n *captureNotifier) Notify(ctx context.Context, userID string, payload notifications.Payload) {
	if n.panic {
		panic("notifier down")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentPush{UserID: userID, Payload: payload})
}

func (n *captureNotifier) all() []sentPush {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentPush(nil), n.sent...)
}

type capturePublisher struct {
	mu   sync.Mutex
	envs []events.Envelope
}

func (p *capturePublisher) Publish(env events.Envelope) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envs = append(p.envs, env)
}

func (p *capturePublisher) all() []events.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Envelope(nil), p.envs...)
}

// world bundles a seeded store with a service wired to capture fakes.
type world struct {
	store    *memStore
	notifier *captureNotifier
	events   *capturePublisher
	idem     *fakeIdem
	svc      *Service
}

func newWorld() *world {
	return newIdemWorld(nil)
}

func newIdemWorld(idem *fakeIdem) *world {
	w := &world{
		store:    newMemStore(),
		notifier: &captureNotifier{},
		events:   &capturePublisher{},
		idem:     idem,
	}
	opts := Options{Notifier: w.notifier, Events: w.events}
	if idem != nil {
		opts.Idem = idem
	}
	w.svc = NewService(
		&fakeListingRepo{store: w.store},
		&fakeOfferRepo{store: w.store},
		&fakeMeetupRepo{store: w.store},
		&fakeConversationRepo{store: w.store},
		opts,
	)
	return w
}

func scope(userID string) *pipeline.Scope {
	return &pipeline.Scope{UserID: userID}
}
