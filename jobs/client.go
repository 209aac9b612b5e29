package jobs

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
)

// Enqueuer submits background tasks from the request path. It satisfies
// auth.LoginRecorder.
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer constructs an Enqueuer over the given Redis connection options.
func NewEnqueuer(opts asynq.RedisClientOpt) *Enqueuer {
	return &Enqueuer{client: asynq.NewClient(opts)}
}

// EnqueueLoginRecorded queues a login audit entry.
func (e *Enqueuer) EnqueueLoginRecorded(ctx context.Context, userID int64, ip, userAgent string) error {
	task, err := NewRecordLoginTask(RecordLoginPayload{
		UserID:    userID,
		IP:        ip,
		UserAgent: userAgent,
		At:        time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	_, err = e.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}

// Close releases the underlying client.
func (e *Enqueuer) Close() error {
	return e.client.Close()
}
