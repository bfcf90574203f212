package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"firebase.google.com/go/messaging"
	"go.uber.org/zap"

	"tolkback/internal/booking/notify"
)

// TokenStore resolves registered device tokens per user.
type TokenStore interface {
	TokensByUserID(ctx context.Context, userID int64) ([]string, error)
}

// FCMSender delivers push notifications through Firebase Cloud Messaging.
// Provider-side tag targeting is unavailable on FCM, so recipients are
// resolved to their device tokens and messaged individually; the tag
// expression is carried in the data block for client-side filtering.
type FCMSender struct {
	client *messaging.Client
	tokens TokenStore
	logger *zap.Logger
}

// NewFCMSender constructs an FCMSender.
func NewFCMSender(client *messaging.Client, tokens TokenStore, logger *zap.Logger) *FCMSender {
	return &FCMSender{client: client, tokens: tokens, logger: logger}
}

// SendPush implements notify.PushSender. Per-token failures are logged and
// skipped; the call fails only when no token could be delivered at all.
func (s *FCMSender) SendPush(ctx context.Context, req notify.PushRequest) error {
	data, err := dataBlock(req)
	if err != nil {
		return fmt.Errorf("fcm push: %w", err)
	}

	delivered := 0
	attempted := 0
	for _, r := range req.Recipients {
		tokens, err := s.tokens.TokensByUserID(ctx, r.UserID)
		if err != nil {
			s.logger.Error("fcm token lookup failed",
				zap.Int64("user_id", r.UserID),
				zap.Error(err),
			)
			continue
		}
		for _, token := range tokens {
			attempted++
			msg := s.buildMessage(token, req, data)
			if _, err := s.client.Send(ctx, msg); err != nil {
				s.logger.Warn("fcm send failed",
					zap.Int64("user_id", r.UserID),
					zap.Error(err),
				)
				continue
			}
			delivered++
		}
	}

	if attempted > 0 && delivered == 0 {
		return fmt.Errorf("fcm push: all %d sends failed", attempted)
	}
	return nil
}

func (s *FCMSender) buildMessage(token string, req notify.PushRequest, data map[string]string) *messaging.Message {
	return &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: req.Title,
			Body:  req.Body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "booking_channel",
				Sound:     req.AndroidSound,
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority": "10",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: req.Title,
						Body:  req.Body,
					},
					Sound: req.IOSSound,
				},
			},
		},
	}
}

func dataBlock(req notify.PushRequest) (map[string]string, error) {
	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"attempt_id":        req.AttemptID,
		"notification_type": string(req.Payload.NotificationType),
		"job_id":            fmt.Sprintf("%d", req.Payload.JobID),
		"payload":           string(payload),
		"tags":              req.TagExpression,
		"sent_at":           time.Now().UTC().Format(time.RFC3339),
	}, nil
}
