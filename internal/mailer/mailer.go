package mailer

import (
	"context"
	"log/slog"
)

// Mailer is the outbound mail collaborator. Template rendering and actual
// delivery live outside this service; implementations receive the raw
// action token and whatever link construction their channel needs.
type Mailer interface {
	SendVerificationMail(ctx context.Context, email, token string) error
	SendPasswordResetMail(ctx context.Context, email, token string) error
	SendCompromiseNotice(ctx context.Context, email string) error
}

// LogMailer is the development implementation: it records the intent and
// drops the mail.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendVerificationMail(ctx context.Context, email, token string) error {
	m.logger.InfoContext(ctx, "mail: verification link", "email", email)
	return nil
}

func (m *LogMailer) SendPasswordResetMail(ctx context.Context, email, token string) error {
	m.logger.InfoContext(ctx, "mail: password reset link", "email", email)
	return nil
}

func (m *LogMailer) SendCompromiseNotice(ctx context.Context, email string) error {
	m.logger.InfoContext(ctx, "mail: compromise notice", "email", email)
	return nil
}
