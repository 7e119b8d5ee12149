package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/manav-trails/backend/internal/mailer"
	"github.com/manav-trails/backend/pkg/queue"
)

// JobQueue is the part of queue.Queue the worker needs.
type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration, keys ...string) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) (bool, error)
	Requeue(ctx context.Context, job *queue.Job) error
}

// settleTimeout bounds the Redis and database writes that settle a failed job.
// They run detached from the worker context so a shutdown cannot drop them.
const settleTimeout = 5 * time.Second

// DeliveryLog records the final state of a queued email.
type DeliveryLog interface {
	MarkSent(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// EmailProcessor delivers queued emails over SMTP at a bounded rate.
type EmailProcessor struct {
	sender  mailer.Sender
	logs    DeliveryLog
	queue   JobQueue
	limiter *rate.Limiter
	backoff time.Duration
	logger  *zap.Logger
}

// NewEmailProcessor creates an email job processor sending at most sendsPerSec messages per second.
func NewEmailProcessor(sender mailer.Sender, logs DeliveryLog, q JobQueue, sendsPerSec float64, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sendsPerSec <= 0 {
		sendsPerSec = 1
	}
	return &EmailProcessor{
		sender:  sender,
		logs:    logs,
		queue:   q,
		limiter: rate.NewLimiter(rate.Limit(sendsPerSec), 1),
		backoff: queue.RetryBackoff,
		logger:  logger,
	}
}

// Process executes one email job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmail {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	err := p.sender.Send(ctx, mailer.Message{
		To:      payload.RecipientEmail,
		Subject: payload.Subject,
		Text:    payload.BodyText,
		HTML:    payload.BodyHTML,
	})
	if err != nil {
		return fmt.Errorf("send %s: %w", payload.EmailType, err)
	}
	if payload.EmailLogID != uuid.Nil {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
		defer cancel()
		if err := p.logs.MarkSent(sctx, payload.EmailLogID); err != nil {
			p.logger.Warn("email log update failed", zap.Error(err), zap.String("email_log_id", payload.EmailLogID.String()))
		}
	}
	p.logger.Info("email delivered",
		zap.String("job_id", job.ID),
		zap.String("email_type", payload.EmailType),
		zap.String("payment_id", payload.PaymentID),
	)
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx, 5*time.Second, queue.QueueEmails)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.fail(ctx, job, err)
			p.sleep(ctx)
		}
	}
}

func (p *EmailProcessor) fail(ctx context.Context, job *queue.Job, cause error) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	if ctx.Err() != nil {
		// Interrupted by shutdown: BLPOP already removed the job, put it back untouched.
		if err := p.queue.Requeue(sctx, job); err != nil {
			p.logger.Error("requeue on shutdown failed", zap.String("job_id", job.ID), zap.Error(err))
			p.markFailed(sctx, job, fmt.Sprintf("requeue on shutdown: %v", err))
			return
		}
		p.logger.Info("in-flight job returned to queue", zap.String("job_id", job.ID))
		return
	}

	p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(cause))
	dead, err := p.queue.Retry(sctx, job)
	if err != nil {
		p.logger.Error("retry enqueue failed", zap.String("job_id", job.ID), zap.Error(err))
		p.markFailed(sctx, job, fmt.Sprintf("%v; retry enqueue: %v", cause, err))
		return
	}
	if dead {
		p.markFailed(sctx, job, cause.Error())
	}
}

func (p *EmailProcessor) markFailed(ctx context.Context, job *queue.Job, reason string) {
	var payload queue.EmailPayload
	if json.Unmarshal(job.Payload, &payload) != nil || payload.EmailLogID == uuid.Nil {
		return
	}
	if err := p.logs.MarkFailed(ctx, payload.EmailLogID, reason); err != nil {
		p.logger.Warn("email log update failed", zap.Error(err), zap.String("email_log_id", payload.EmailLogID.String()))
	}
}

func (p *EmailProcessor) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.backoff):
	}
}
