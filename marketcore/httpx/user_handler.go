package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cardswap/trade-engine/marketcore/database/models"
	"github.com/cardswap/trade-engine/marketcore/database/repositories"
	"github.com/cardswap/trade-engine/marketcore/notifications"
	"github.com/cardswap/trade-engine/marketcore/pipeline"
	"github.com/go-chi/chi/v5"
)

// UserHandler serves user profiles and push-device registration.
type UserHandler struct {
	Users   repositories.UserRepository
	Devices repositories.DeviceRepository
	// Notifier is optional; when present its token cache is invalidated on
	// device changes so new devices hear about trades immediately.
	Notifier *notifications.Notifier
}

func (h *UserHandler) Register(r *chi.Mux) {
	r.Post("/users", h.createUser)
	r.Get("/users/{userID}", h.getUser)
	r.Post("/devices", h.registerDevice)
}

type userResponse struct {
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	TradeCount int64  `json:"trade_count"`
}

func (h *UserHandler) createUser(w http.ResponseWriter, r *http.Request) {
	var in struct {
		UserID   string `json:"user_id"`
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.UserID == "" || in.Username == "" {
		writeError(w, pipeline.InvalidInput("user_id", "username"))
		return
	}

	user := &models.User{UserID: in.UserID, Username: in.Username}
	if err := h.Users.Create(r.Context(), user); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, userResponse{
		UserID:   user.UserID,
		Username: user.Username,
	})
}

func (h *UserHandler) getUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeError(w, pipeline.InvalidInput("user_id"))
		return
	}

	user, err := h.Users.GetByUserID(r.Context(), userID)
	if err != nil {
		var nf *repositories.NotFoundError
		if errors.As(err, &nf) {
			writeError(w, pipeline.NotFound(nf.Entity, nf.ID))
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{
		UserID:     user.UserID,
		Username:   user.Username,
		TradeCount: user.TradeCount,
	})
}

func (h *UserHandler) registerDevice(w http.ResponseWriter, r *http.Request) {
	sc := scope(r)
	if sc.UserID == "" {
		writeError(w, pipeline.AuthenticationRequired())
		return
	}

	var in struct {
		Token    string `json:"token"`
		Platform string `json:"platform"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Token == "" {
		writeError(w, pipeline.InvalidInput("token"))
		return
	}
	if in.Platform == "" {
		in.Platform = "unknown"
	}

	device := &models.Device{UserID: sc.UserID, Token: in.Token, Platform: in.Platform}
	if err := h.Devices.Register(r.Context(), device); err != nil {
		writeError(w, err)
		return
	}
	if h.Notifier != nil {
		h.Notifier.Invalidate(sc.UserID)
	}
	w.WriteHeader(http.StatusNoContent)
}
