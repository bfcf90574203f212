package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PushSender delivers one push notification. The tag expression selects
// recipients on the provider side; the recipient list is carried alongside
// for providers that resolve device tokens per user.
type PushSender interface {
	SendPush(ctx context.Context, req PushRequest) error
}

// SMSSender delivers one text message.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, text string) error
}

// EmailSender delivers one email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, toName, subject, body string) error
}

// PushRequest is the transport-level push envelope.
type PushRequest struct {
	AttemptID     string
	Title         string
	Body          string
	TagExpression string
	Recipients    []Recipient
	Payload       Payload
	AndroidSound  string
	IOSSound      string
}

// DeferredQueue stores push requests for later delivery.
type DeferredQueue interface {
	Enqueue(ctx context.Context, req PushRequest, deliverAt time.Time) error
}

// Dispatcher fans one notification out to its transports. Delivery failures
// are logged and never propagated to the caller: a booking operation that
// already committed must not fail because a provider was down.
type Dispatcher struct {
	push    PushSender
	sms     SMSSender
	email   EmailSender
	queue   DeferredQueue
	hours   BusinessHours
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewDispatcher constructs a Dispatcher. timeout bounds every transport call;
// zero selects a 10s default.
func NewDispatcher(push PushSender, sms SMSSender, email EmailSender, queue DeferredQueue, hours BusinessHours, logger *zap.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		push:    push,
		sms:     sms,
		email:   email,
		queue:   queue,
		hours:   hours,
		logger:  logger,
		timeout: timeout,
		now:     time.Now,
	}
}

// DispatchPush suppresses opted-out recipients, splits the rest on the
// off-hours policy, sends the immediate portion and defers the rest to the
// next business instant. An empty effective recipient set is a no-op.
func (d *Dispatcher) DispatchPush(ctx context.Context, title, body string, recipients []Recipient, payload Payload) {
	recipients = SuppressOptedOut(recipients)
	if len(recipients) == 0 {
		return
	}

	now := d.now()
	immediate, deferred := SplitByDelay(d.hours, now, recipients)

	if len(immediate) > 0 {
		d.sendNow(ctx, title, body, immediate, payload)
	}
	if len(deferred) > 0 {
		d.deferSend(ctx, title, body, deferred, payload, d.hours.NextBusinessInstant(now))
	}
}

// SchedulePush stores a push for delivery at a fixed future instant, such as
// a session-start reminder scored by the session's due time. Opted-out
// recipients are suppressed up front; the night-window split does not apply
// because the caller already chose the delivery time.
func (d *Dispatcher) SchedulePush(ctx context.Context, title, body string, recipients []Recipient, payload Payload, deliverAt time.Time) {
	recipients = SuppressOptedOut(recipients)
	if len(recipients) == 0 {
		return
	}
	d.deferSend(ctx, title, body, recipients, payload, deliverAt)
}

func (d *Dispatcher) sendNow(ctx context.Context, title, body string, recipients []Recipient, payload Payload) {
	req := d.buildRequest(title, body, recipients, payload)
	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.push.SendPush(cctx, req); err != nil {
		d.logger.Error("push delivery failed",
			zap.String("attempt_id", req.AttemptID),
			zap.Int64("job_id", payload.JobID),
			zap.String("type", string(payload.NotificationType)),
			zap.Error(err),
		)
		return
	}
	d.logger.Info("push delivered",
		zap.String("attempt_id", req.AttemptID),
		zap.Int64("job_id", payload.JobID),
		zap.String("type", string(payload.NotificationType)),
		zap.Int("recipients", len(recipients)),
	)
}

func (d *Dispatcher) deferSend(ctx context.Context, title, body string, recipients []Recipient, payload Payload, deliverAt time.Time) {
	req := d.buildRequest(title, body, recipients, payload)
	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.queue.Enqueue(cctx, req, deliverAt); err != nil {
		d.logger.Error("push deferral failed",
			zap.String("attempt_id", req.AttemptID),
			zap.Int64("job_id", payload.JobID),
			zap.Error(err),
		)
		return
	}
	d.logger.Info("push deferred",
		zap.String("attempt_id", req.AttemptID),
		zap.Int64("job_id", payload.JobID),
		zap.Time("deliver_at", deliverAt),
		zap.Int("recipients", len(recipients)),
	)
}

func (d *Dispatcher) buildRequest(title, body string, recipients []Recipient, payload Payload) PushRequest {
	android, ios := SoundsFor(payload)
	return PushRequest{
		AttemptID:     uuid.New().String(),
		Title:         title,
		Body:          body,
		TagExpression: TagExpression(recipients),
		Recipients:    recipients,
		Payload:       payload,
		AndroidSound:  android,
		IOSSound:      ios,
	}
}

// DispatchSMS sends one text per recipient phone. Failures are logged per
// recipient and do not abort the remaining sends. Returns the success count.
func (d *Dispatcher) DispatchSMS(ctx context.Context, recipients []Recipient, text string) int {
	sent := 0
	for _, r := range recipients {
		if r.Phone == "" {
			continue
		}
		cctx, cancel := context.WithTimeout(ctx, d.timeout)
		err := d.sms.SendSMS(cctx, r.Phone, text)
		cancel()
		if err != nil {
			d.logger.Error("sms delivery failed",
				zap.Int64("user_id", r.UserID),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	return sent
}

// DispatchEmail sends one email, logging failure instead of returning it.
func (d *Dispatcher) DispatchEmail(ctx context.Context, to, toName, subject, body string) {
	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.email.SendEmail(cctx, to, toName, subject, body); err != nil {
		d.logger.Error("email delivery failed",
			zap.String("to", to),
			zap.String("subject", subject),
			zap.Error(err),
		)
		return
	}
	d.logger.Info("email delivered", zap.String("to", to), zap.String("subject", subject))
}
