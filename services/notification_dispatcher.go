package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nyraAPI/internal/notification"
)

type PushNotificationProvider interface {
	SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error
}

// DeliveryRecorder stores the outcome of a push attempt.
type DeliveryRecorder interface {
	MarkSent(ctx context.Context, notificationID uuid.UUID) error
	MarkFailed(ctx context.Context, notificationID uuid.UUID, reason error) error
}

// NotificationDispatcher pushes queued notifications on a fixed worker pool.
type NotificationDispatcher struct {
	recorder     DeliveryRecorder
	pushProvider PushNotificationProvider
	mu           sync.RWMutex
	workers      int
	jobQueue     chan *DispatchJob
	stopChan     chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
	logger       *zap.Logger
}

// DispatchJob is one batch for one user. Its notifications are pushed in
// slice order by a single worker.
type DispatchJob struct {
	Notifications []*notification.Notification
	Tokens        []notification.DeviceToken
}

func NewNotificationDispatcher(recorder DeliveryRecorder, workers, queueSize int, logger *zap.Logger) *NotificationDispatcher {
	if workers <= 0 {
		workers = 5
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	d := &NotificationDispatcher{
		recorder: recorder,
		workers:  workers,
		jobQueue: make(chan *DispatchJob, queueSize),
		stopChan: make(chan struct{}),
		logger:   logger.Named("dispatcher"),
	}
	d.startWorkers()
	return d
}

func (d *NotificationDispatcher) SetPushProvider(provider PushNotificationProvider) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pushProvider = provider
}

func (d *NotificationDispatcher) provider() PushNotificationProvider {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.pushProvider
}

func (d *NotificationDispatcher) startWorkers() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

func (d *NotificationDispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case job := <-d.jobQueue:
			d.processJob(job)
		case <-d.stopChan:
			// drain what is already queued
			for {
				select {
				case job := <-d.jobQueue:
					d.processJob(job)
				default:
					return
				}
			}
		}
	}
}

func (d *NotificationDispatcher) processJob(job *DispatchJob) {
	provider := d.provider()
	for _, notif := range job.Notifications {
		d.deliver(provider, notif, job.Tokens)
	}
}

func (d *NotificationDispatcher) deliver(provider PushNotificationProvider, notif *notification.Notification, tokens []notification.DeviceToken) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if provider != nil && len(tokens) > 0 {
		if err := provider.SendPush(ctx, tokens, notif.Title, notif.Body, notif.Data); err != nil {
			d.logger.Warn("push failed", zap.String("notification_id", notif.ID.String()), zap.Error(err))
			if err := d.recorder.MarkFailed(ctx, notif.ID, err); err != nil {
				d.logger.Error("failed to mark notification failed", zap.Error(err))
			}
			return
		}
	}

	if err := d.recorder.MarkSent(ctx, notif.ID); err != nil {
		d.logger.Error("failed to mark notification sent", zap.String("notification_id", notif.ID.String()), zap.Error(err))
	}
}

// Dispatch queues a job. It gives up after a short wait when the queue is full
// and drops jobs once the dispatcher is stopping.
func (d *NotificationDispatcher) Dispatch(job *DispatchJob) bool {
	select {
	case <-d.stopChan:
		return false
	default:
	}

	select {
	case d.jobQueue <- job:
		return true
	case <-d.stopChan:
		return false
	case <-time.After(2 * time.Second):
		d.logger.Warn("notification queue full, dropping", zap.Int("notifications", len(job.Notifications)))
		return false
	}
}

// Stop processes the jobs already queued and waits for the workers to exit.
func (d *NotificationDispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopChan)
	})
	d.wg.Wait()
}
