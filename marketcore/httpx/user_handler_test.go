package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cardswap/trade-engine/marketcore/database/models"
	"github.com/cardswap/trade-engine/marketcore/database/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type stubUsers struct {
	users map[string]*models.User
}

func (s *stubUsers) DB() *bun.DB { return nil }

func (s *stubUsers) Create(ctx context.Context, user *models.User) error {
	s.users[user.UserID] = user
	return nil
}

func (s *stubUsers) GetByUserID(ctx context.Context, userID string) (*models.User, error) {
	u, ok := s.users[userID]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "user", ID: userID}
	}
	return u, nil
}

type stubDevices struct {
	registered []*models.Device
}

func (s *stubDevices) Register(ctx context.Context, device *models.Device) error {
	s.registered = append(s.registered, device)
	return nil
}

func (s *stubDevices) GetTokens(ctx context.Context, userID string) ([]string, error) {
	return nil, nil
}

func newUserServer() (*httptest.Server, *stubUsers, *stubDevices) {
	users := &stubUsers{users: map[string]*models.User{}}
	devices := &stubDevices{}
	r := NewRouter()
	h := &UserHandler{Users: users, Devices: devices}
	h.Register(r)
	return httptest.NewServer(r), users, devices
}

func TestUserProfileRoundTrip(t *testing.T) {
	srv, users, _ := newUserServer()
	defer srv.Close()

	resp := post(t, srv, "/users", `{"user_id":"u1","username":"ash"}`, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	users.users["u1"].TradeCount = 3

	getResp, err := srv.Client().Get(srv.URL + "/users/u1")
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	var out userResponse
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&out))
	assert.Equal(t, "ash", out.Username)
	assert.Equal(t, int64(3), out.TradeCount)
}

func TestGetUnknownUser(t *testing.T) {
	srv, _, _ := newUserServer()
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/users/nobody")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRegisterDevice(t *testing.T) {
	srv, _, devices := newUserServer()
	defer srv.Close()

	t.Run("requires identity", func(t *testing.T) {
		resp := post(t, srv, "/devices", `{"token":"tok-1"}`, nil)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("registers for the acting user", func(t *testing.T) {
		resp := post(t, srv, "/devices", `{"token":"tok-1","platform":"ios"}`,
			map[string]string{"X-User-ID": "u1"})
		resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		require.Len(t, devices.registered, 1)
		assert.Equal(t, "u1", devices.registered[0].UserID)
		assert.Equal(t, "tok-1", devices.registered[0].Token)
	})
}
