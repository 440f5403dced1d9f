package notifications

import (
	"context"
	"log/slog"

	lru "github.com/hashicorp/golang-lru"
)

const tokenCacheSize = 10000

// Sender delivers one payload to one device token. Implementations wrap the
// actual push provider (APNs/FCM relay).
type Sender interface {
	Send(ctx context.Context, token string, payload Payload) error
}

// TokenSource resolves the registered device tokens for a user.
type TokenSource interface {
	GetTokens(ctx context.Context, userID string) ([]string, error)
}

// Notifier is the best-effort push adapter. Notify never returns an error and
// never panics past its own boundary: delivery problems are logged and the
// calling pipeline's outcome stands.
type Notifier struct {
	sender Sender
	tokens TokenSource
	cache  *lru.Cache
}

func NewNotifier(sender Sender, tokens TokenSource) *Notifier {
	cache, _ := lru.New(tokenCacheSize)
	return &Notifier{
		sender: sender,
		tokens: tokens,
		cache:  cache,
	}
}

// Notify dispatches the payload to every device the user has registered.
func (n *Notifier) Notify(ctx context.Context, userID string, payload Payload) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Notification dispatch panicked",
				slog.String("type", "error"),
				slog.String("target_user", userID),
				slog.Any("panic", r))
		}
	}()

	if n == nil || n.sender == nil {
		return
	}

	tokens, err := n.userTokens(ctx, userID)
	if err != nil {
		slog.Error("Failed to resolve device tokens",
			slog.String("type", "error"),
			slog.String("target_user", userID),
			slog.Any("error", err))
		return
	}
	if len(tokens) == 0 {
		slog.Debug("No devices registered for user",
			slog.String("target_user", userID))
		return
	}

	for _, token := range tokens {
		if err := n.sender.Send(ctx, token, payload); err != nil {
			slog.Error("Push delivery failed",
				slog.String("type", "error"),
				slog.String("target_user", userID),
				slog.Any("error", err))
		}
	}
}

func (n *Notifier) userTokens(ctx context.Context, userID string) ([]string, error) {
	if cached, ok := n.cache.Get(userID); ok {
		return cached.([]string), nil
	}

	tokens, err := n.tokens.GetTokens(ctx, userID)
	if err != nil {
		return nil, err
	}

	n.cache.Add(userID, tokens)
	return tokens, nil
}

// Invalidate drops a user's cached tokens, e.g. after device registration.
func (n *Notifier) Invalidate(userID string) {
	n.cache.Remove(userID)
}
