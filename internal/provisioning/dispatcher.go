// Package provisioning runs side effects triggered by subscription state
// transitions, decoupled from the webhook request path.
package provisioning

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/vocaldesk/vocaldesk/internal/observability/metrics"
	"github.com/vocaldesk/vocaldesk/internal/providers/voice"
	"go.uber.org/zap"
)

const (
	queueSize     = 128
	effectTimeout = 10 * time.Second

	actionReleasePhoneNumber = "release_phone_number"
)

// Task asks the worker to release the account's provisioned resources.
type Task struct {
	AccountID      snowflake.ID
	SubscriptionID string
	Reason         string
}

// Dispatcher hands tasks to a single background worker. Enqueue never
// blocks the caller; when the queue is full the task is dropped with an
// error log rather than stalling webhook acknowledgment.
type Dispatcher struct {
	log     *zap.Logger
	voice   voice.Provider
	metrics *metrics.Metrics

	tasks chan Task
	stop  chan struct{}
	done  chan struct{}
}

func NewDispatcher(log *zap.Logger, provider voice.Provider, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		log:     log.Named("provisioning.dispatcher"),
		voice:   provider,
		metrics: m,
		tasks:   make(chan Task, queueSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Enqueue queues a task for the worker. The tasks channel is never closed,
// so a request that outlives shutdown drops its task instead of panicking.
func (d *Dispatcher) Enqueue(task Task) {
	select {
	case <-d.stop:
		d.log.Warn("dispatcher stopped, dropping task",
			zap.String("account_id", task.AccountID.String()),
			zap.String("subscription_id", task.SubscriptionID),
			zap.String("reason", task.Reason),
		)
		return
	default:
	}
	select {
	case d.tasks <- task:
	default:
		d.log.Error("side-effect queue full, dropping task",
			zap.String("account_id", task.AccountID.String()),
			zap.String("subscription_id", task.SubscriptionID),
			zap.String("reason", task.Reason),
		)
	}
}

// Start launches the worker goroutine.
func (d *Dispatcher) Start() {
	go d.run()
}

// Stop signals shutdown and waits for the worker to drain the queue.
func (d *Dispatcher) Stop(ctx context.Context) error {
	close(d.stop)
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case task := <-d.tasks:
			d.process(task)
		case <-d.stop:
			for {
				select {
				case task := <-d.tasks:
					d.process(task)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) process(task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), effectTimeout)
	defer cancel()

	err := d.voice.ReleasePhoneNumber(ctx, task.AccountID)
	if err != nil {
		d.metrics.RecordSideEffect(ctx, actionReleasePhoneNumber, "error")
		d.log.Error("failed to release phone number",
			zap.Error(err),
			zap.String("account_id", task.AccountID.String()),
			zap.String("subscription_id", task.SubscriptionID),
			zap.String("reason", task.Reason),
		)
		return
	}

	d.metrics.RecordSideEffect(ctx, actionReleasePhoneNumber, "ok")
	d.log.Info("released provisioned phone number",
		zap.String("account_id", task.AccountID.String()),
		zap.String("subscription_id", task.SubscriptionID),
		zap.String("reason", task.Reason),
	)
}
