package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"englearn/internal/mail"
	"englearn/internal/queue"
)

// TokenCleaner is the maintenance side of the identity store.
type TokenCleaner interface {
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

type Processor struct {
	mailer   mail.Mailer
	composer mail.Composer
	cleaner  TokenCleaner
	logger   zerolog.Logger
	now      func() time.Time
}

func NewProcessor(mailer mail.Mailer, composer mail.Composer, cleaner TokenCleaner, logger zerolog.Logger) *Processor {
	return &Processor{
		mailer:   mailer,
		composer: composer,
		cleaner:  cleaner,
		logger:   logger,
		now:      time.Now,
	}
}

func (p *Processor) Handle(ctx context.Context, task queue.Task) error {
	switch task.Type {
	case queue.TaskVerificationEmail:
		return p.sendMail(ctx, task, p.composer.Verification(task.Email, task.FullName, task.Token))
	case queue.TaskPasswordResetEmail:
		return p.sendMail(ctx, task, p.composer.PasswordReset(task.Email, task.FullName, task.Token))
	case queue.TaskCleanupResetTokens:
		return p.cleanupResetTokens(ctx)
	default:
		p.logger.Warn().Str("task", string(task.Type)).Str("task_id", task.ID).Msg("unknown task type")
		return nil
	}
}

func (p *Processor) sendMail(ctx context.Context, task queue.Task, msg mail.Message) error {
	if task.Email == "" || task.Token == "" {
		p.logger.Warn().Str("task", string(task.Type)).Str("task_id", task.ID).Msg("mail task without recipient or token")
		return nil
	}
	if err := p.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s: %w", task.Type, err)
	}
	p.logger.Info().Str("task", string(task.Type)).Str("user_id", task.UserID).Msg("mail sent")
	return nil
}

func (p *Processor) cleanupResetTokens(ctx context.Context) error {
	if p.cleaner == nil {
		return nil
	}
	cleared, err := p.cleaner.ClearExpiredResetTokens(ctx, p.now().UTC())
	if err != nil {
		return fmt.Errorf("clear expired reset tokens: %w", err)
	}
	p.logger.Info().Int64("cleared", cleared).Msg("expired reset tokens cleared")
	return nil
}
