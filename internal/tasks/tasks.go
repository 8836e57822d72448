package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

// TypeSettlementReconcile polls a pending vault settlement until it confirms
// or fails.
const TypeSettlementReconcile = "settlement:reconcile"

// SettlementReconcilePayload identifies the payment to reconcile.
type SettlementReconcilePayload struct {
	PaymentID string `json:"paymentId"`
}

// Enqueuer schedules background tasks on the asynq queue.
type Enqueuer struct {
	Client      *asynq.Client
	BaseDelay   time.Duration
	MaxAttempts int
}

// EnqueueSettlementReconcile schedules the first reconciliation poll for a
// pending settlement.
func (e *Enqueuer) EnqueueSettlementReconcile(ctx context.Context, paymentID string) error {
	if e == nil || e.Client == nil {
		return errors.New("tasks: enqueuer not configured")
	}
	payload, err := json.Marshal(SettlementReconcilePayload{PaymentID: paymentID})
	if err != nil {
		return err
	}
	delay := e.BaseDelay
	if delay <= 0 {
		delay = 30 * time.Second
	}
	maxRetry := e.MaxAttempts
	if maxRetry <= 0 {
		maxRetry = 8
	}
	task := asynq.NewTask(TypeSettlementReconcile, payload)
	_, err = e.Client.EnqueueContext(ctx, task,
		asynq.ProcessIn(delay),
		asynq.MaxRetry(maxRetry),
		asynq.Queue("settlements"),
	)
	return err
}
