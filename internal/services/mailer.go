package services

import (
	"context"

	"go.uber.org/zap"
)

// MailerInterface - внешний канал e-mail. Доставка не гарантируется.
type MailerInterface interface {
	Send(ctx context.Context, to, subject, body string) error
}

// logMailer - заглушка, которая пишет письмо в лог вместо отправки.
type logMailer struct {
	from   string
	logger *zap.Logger
}

func NewLogMailer(from string, logger *zap.Logger) MailerInterface {
	return &logMailer{from: from, logger: logger}
}

func (m *logMailer) Send(ctx context.Context, to, subject, body string) error {
	// Здесь будет интеграция с SMTP-шлюзом.
	m.logger.Info("!!! ИМИТАЦИЯ ОТПРАВКИ EMAIL !!!",
		zap.String("от", m.from),
		zap.String("кому", to),
		zap.String("тема", subject),
		zap.String("текст", body),
	)
	return nil
}
