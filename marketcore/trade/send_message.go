package trade

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cardswap/trade-engine/marketcore/database/models"
	"github.com/cardswap/trade-engine/marketcore/events"
	"github.com/cardswap/trade-engine/marketcore/notifications"
	"github.com/cardswap/trade-engine/marketcore/pipeline"
)

func (s *Service) buildSendMessage() *pipeline.Pipeline[SendMessageInput, *SendMessageResult] {
	return &pipeline.Pipeline[SendMessageInput, *SendMessageResult]{
		Name: "sendMessage",
		// No pre-checks: conversation membership is enforced by the mutation
		// itself, which does the one authoritative read.
		Mutate: func(ctx context.Context, sc *pipeline.Scope, in SendMessageInput) (*SendMessageResult, error) {
			if sc.IdempotencyKey != "" && s.idem != nil {
				proceed, prior, err := s.idem.Begin(ctx, "sendMessage", sc.IdempotencyKey)
				if err != nil {
					slog.Warn("Idempotency guard unavailable, proceeding",
						slog.Any("error", err))
				}
				if !proceed {
					if prior == "" {
						return nil, pipeline.NewError(pipeline.CodeMutationFailed,
							"duplicate submission is still in progress")
					}
					// The duplicate already went through; nothing to insert.
					return nil, pipeline.NewError(pipeline.CodeMutationFailed,
						"duplicate submission already delivered")
				}
			}

			res, err := s.conversations.SendMessage(ctx, in.ConversationID, sc.UserID, in.Type, in.Body, in.Payload)
			if err != nil {
				if sc.IdempotencyKey != "" && s.idem != nil {
					s.idem.Release(ctx, "sendMessage", sc.IdempotencyKey)
				}
				return nil, mapRepoErr(err)
			}

			if sc.IdempotencyKey != "" && s.idem != nil {
				if err := s.idem.Complete(ctx, "sendMessage", sc.IdempotencyKey, fmt.Sprintf("%d", res.MessageID)); err != nil {
					slog.Warn("Failed to record idempotency result",
						slog.Any("error", err))
				}
			}

			return &SendMessageResult{
				MessageID:   res.MessageID,
				SenderID:    res.SenderID,
				RecipientID: res.RecipientID,
			}, nil
		},
		CheckResult: func(out *SendMessageResult) error {
			if out == nil || out.MessageID <= 0 || out.SenderID == "" || out.RecipientID == "" {
				return fmt.Errorf("missing message participants")
			}
			return nil
		},
		PostEffects: []pipeline.PostEffect[SendMessageInput, *SendMessageResult]{
			// System messages are the app talking to itself; no push.
			func(ctx context.Context, sc *pipeline.Scope, in SendMessageInput, out *SendMessageResult) error {
				if in.Type == models.MessageSystem {
					return nil
				}
				s.notify(ctx, out.RecipientID, notifications.Message(in.Type, out.SenderID, in.Body))
				return nil
			},
			func(ctx context.Context, sc *pipeline.Scope, in SendMessageInput, out *SendMessageResult) error {
				s.publish(events.NewEnvelope(events.EventMessageSent, producerName, sc.TraceID, "",
					events.MessageSentPayload{
						MessageID:      out.MessageID,
						ConversationID: in.ConversationID,
						SenderID:       out.SenderID,
						Type:           string(in.Type),
					}))
				return nil
			},
		},
	}
}
