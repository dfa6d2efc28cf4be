package mail

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Composer renders the account emails. Links point at the frontend, which
// posts the token back to the API.
type Composer struct {
	from        string
	frontendURL string
}

func NewComposer(from, frontendURL string) Composer {
	return Composer{from: from, frontendURL: strings.TrimSuffix(frontendURL, "/")}
}

func (c Composer) Verification(to, name, token string) Message {
	return Message{
		From:    c.from,
		To:      to,
		Subject: "Verify your EngLearn email address",
		Body: fmt.Sprintf("Hi %s,\n\nConfirm your email address by opening this link:\n\n%s\n",
			greeting(name), c.link("/verify-email", token)),
	}
}

func (c Composer) PasswordReset(to, name, token string) Message {
	return Message{
		From:    c.from,
		To:      to,
		Subject: "Reset your EngLearn password",
		Body: fmt.Sprintf("Hi %s,\n\nSomeone asked to reset your password. If it was you, open this link:\n\n%s\n\nOtherwise you can ignore this email.\n",
			greeting(name), c.link("/reset-password", token)),
	}
}

func (c Composer) link(path, token string) string {
	return c.frontendURL + path + "?token=" + url.QueryEscape(token)
}

func greeting(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return "there"
}

// LogMailer records that a message would have gone out. Bodies carry
// single-use links, so only the envelope is logged.
type LogMailer struct {
	log zerolog.Logger
}

func NewLogMailer(log zerolog.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("send %q: empty recipient", msg.Subject)
	}
	m.log.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Int("body_bytes", len(msg.Body)).
		Msg("mail delivered to log")
	return nil
}
