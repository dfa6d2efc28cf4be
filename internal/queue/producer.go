package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"englearn/internal/ids"
	"englearn/internal/models"
)

// Producer appends tasks to the worker stream. It also serves as the auth
// service's notifier, turning mail requests into tasks.
type Producer struct {
	client *redis.Client
	stream string
	maxLen int64
	log    zerolog.Logger
	now    func() time.Time
}

func NewProducer(client *redis.Client, stream string, log zerolog.Logger) *Producer {
	return &Producer{
		client: client,
		stream: stream,
		maxLen: 100000,
		log:    log,
		now:    time.Now,
	}
}

func (p *Producer) Enqueue(ctx context.Context, task Task) (string, error) {
	if task.ID == "" {
		task.ID = ids.New()
	}
	task.EnqueuedAt = p.now().UTC()

	values, err := task.values()
	if err != nil {
		return "", err
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", p.stream, err)
	}

	p.log.Debug().Str("task", string(task.Type)).Str("task_id", task.ID).Str("message_id", id).Msg("task enqueued")
	return id, nil
}

func (p *Producer) SendVerificationEmail(ctx context.Context, user models.User, token string) error {
	_, err := p.Enqueue(ctx, mailTask(TaskVerificationEmail, user, token))
	return err
}

func (p *Producer) SendPasswordResetEmail(ctx context.Context, user models.User, token string) error {
	_, err := p.Enqueue(ctx, mailTask(TaskPasswordResetEmail, user, token))
	return err
}

func mailTask(typ TaskType, user models.User, token string) Task {
	return Task{
		Type:     typ,
		UserID:   user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		Token:    token,
	}
}
