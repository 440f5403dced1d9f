package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cardswap/trade-engine/marketcore/pipeline"
	"github.com/cardswap/trade-engine/marketcore/trade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubService returns canned results and records the scope it was called with.
type stubService struct {
	lastScope *pipeline.Scope
	err       error

	createOut   *trade.CreateOfferResult
	acceptOut   *trade.AcceptOfferResult
	acceptInput trade.AcceptOfferInput
}

func (s *stubService) CreateOffer(ctx context.Context, sc *pipeline.Scope, in trade.CreateOfferInput) (*trade.CreateOfferResult, error) {
	s.lastScope = sc
	return s.createOut, s.err
}

func (s *stubService) AcceptOffer(ctx context.Context, sc *pipeline.Scope, in trade.AcceptOfferInput) (*trade.AcceptOfferResult, error) {
	s.lastScope = sc
	s.acceptInput = in
	return s.acceptOut, s.err
}

func (s *stubService) DeclineOffer(ctx context.Context, sc *pipeline.Scope, in trade.DeclineOfferInput) (*trade.DeclineOfferResult, error) {
	s.lastScope = sc
	return &trade.DeclineOfferResult{OfferID: in.OfferID, OffererID: "u2", Status: "declined"}, s.err
}

func (s *stubService) ExpireListing(ctx context.Context, sc *pipeline.Scope, in trade.ExpireListingInput) (*trade.ExpireListingResult, error) {
	s.lastScope = sc
	return &trade.ExpireListingResult{ListingID: in.ListingID}, s.err
}

func (s *stubService) CompleteMeetup(ctx context.Context, sc *pipeline.Scope, in trade.CompleteMeetupInput) (*trade.CompleteMeetupResult, error) {
	s.lastScope = sc
	return &trade.CompleteMeetupResult{MeetupID: in.MeetupID, MatchID: 1}, s.err
}

func (s *stubService) SendMessage(ctx context.Context, sc *pipeline.Scope, in trade.SendMessageInput) (*trade.SendMessageResult, error) {
	s.lastScope = sc
	return &trade.SendMessageResult{MessageID: 1, SenderID: sc.UserID, RecipientID: "u2"}, s.err
}

func newTestServer(svc *stubService) *httptest.Server {
	r := NewRouter()
	h := &TradeHandler{Service: svc}
	h.Register(r)
	return httptest.NewServer(r)
}

func post(t *testing.T, srv *httptest.Server, path, body string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func TestCreateOfferEndpoint(t *testing.T) {
	svc := &stubService{createOut: &trade.CreateOfferResult{OfferID: 42, OfferUUID: "uuid-42", Status: "pending"}}
	srv := newTestServer(svc)
	defer srv.Close()

	resp := post(t, srv, "/offers", `{"listing_id":1,"cash_cents":500}`, map[string]string{
		"X-User-ID":       "u1",
		"Idempotency-Key": "k1",
	})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotNil(t, svc.lastScope)
	assert.Equal(t, "u1", svc.lastScope.UserID)
	assert.Equal(t, "k1", svc.lastScope.IdempotencyKey)

	var out trade.CreateOfferResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, int64(42), out.OfferID)
}

func TestAcceptOfferEndpointParsesPathIDs(t *testing.T) {
	svc := &stubService{acceptOut: &trade.AcceptOfferResult{MatchID: 1, MatchUUID: "m", ConversationID: 2}}
	srv := newTestServer(svc)
	defer srv.Close()

	resp := post(t, srv, "/listings/7/offers/9/accept", "", map[string]string{"X-User-ID": "u1"})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(7), svc.acceptInput.ListingID)
	assert.Equal(t, int64(9), svc.acceptInput.OfferID)
}

func TestBadPathIDIsRejectedBeforeTheService(t *testing.T) {
	svc := &stubService{}
	srv := newTestServer(svc)
	defer srv.Close()

	resp := post(t, srv, "/listings/abc/offers/9/accept", "", map[string]string{"X-User-ID": "u1"})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Nil(t, svc.lastScope, "service must not be reached")
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"auth required", pipeline.AuthenticationRequired(), http.StatusUnauthorized},
		{"invalid input", pipeline.InvalidInput("listing_id"), http.StatusBadRequest},
		{"not found", pipeline.NotFound("listing", 1), http.StatusNotFound},
		{"not authorized", pipeline.NotAuthorized("nope"), http.StatusForbidden},
		{"invalid transition", pipeline.NewError(pipeline.CodeInvalidTransition, "no"), http.StatusConflict},
		{"mutation failed", pipeline.MutationFailed(assert.AnError), http.StatusUnprocessableEntity},
		{"malformed result", pipeline.MalformedResult("createOffer", assert.AnError), http.StatusInternalServerError},
		{"plain error", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{err: tt.err}
			srv := newTestServer(svc)
			defer srv.Close()

			resp := post(t, srv, "/listings/1/expire", "", map[string]string{"X-User-ID": "u1"})
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)

			var body struct {
				Code string `json:"code"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.NotEmpty(t, body.Code)
		})
	}
}

func TestSendMessageEndpointUsesPathConversation(t *testing.T) {
	svc := &stubService{}
	srv := newTestServer(svc)
	defer srv.Close()

	resp := post(t, srv, "/conversations/5/messages", `{"type":"text","body":"hi","conversation_id":999}`,
		map[string]string{"X-User-ID": "u1"})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var out trade.SendMessageResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "u1", out.SenderID)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&stubService{})
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
