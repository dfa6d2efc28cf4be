package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type TaskType string

const (
	TaskVerificationEmail  TaskType = "verification_email"
	TaskPasswordResetEmail TaskType = "password_reset_email"
	TaskCleanupResetTokens TaskType = "cleanup_reset_tokens"
)

// Task is one stream entry. Mail tasks carry the single-use token they deliver.
type Task struct {
	ID         string    `json:"id"`
	Type       TaskType  `json:"type"`
	UserID     string    `json:"user_id,omitempty"`
	Email      string    `json:"email,omitempty"`
	FullName   string    `json:"full_name,omitempty"`
	Token      string    `json:"token,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

var ErrMalformedTask = errors.New("malformed task")

func (t Task) values() (map[string]any, error) {
	payload, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode task: %w", err)
	}
	return map[string]any{
		"type":    string(t.Type),
		"payload": string(payload),
	}, nil
}

// DecodeTask reads a task back from a stream entry.
func DecodeTask(msg redis.XMessage) (Task, error) {
	raw, ok := msg.Values["payload"].(string)
	if !ok || raw == "" {
		return Task{}, fmt.Errorf("%w: %s has no payload", ErrMalformedTask, msg.ID)
	}
	var t Task
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return Task{}, fmt.Errorf("%w: %s: %v", ErrMalformedTask, msg.ID, err)
	}
	if t.Type == "" {
		return Task{}, fmt.Errorf("%w: %s has no type", ErrMalformedTask, msg.ID)
	}
	return t, nil
}
