package listeners

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"maintenance-system/internal/events"
	"maintenance-system/internal/services"
	"maintenance-system/pkg/config"
	"maintenance-system/pkg/eventbus"
)

// NotificationListener дублирует переходы заявок письмами. Уведомления в БД уже записаны
// в транзакции перехода, поэтому ошибки отправки только логируются.
type NotificationListener struct {
	mailer services.MailerInterface
	cfg    config.MailConfig
	logger *zap.Logger
}

func NewNotificationListener(mailer services.MailerInterface, cfg config.MailConfig, logger *zap.Logger) *NotificationListener {
	return &NotificationListener{mailer: mailer, cfg: cfg, logger: logger}
}

func (l *NotificationListener) Register(bus *eventbus.Bus) {
	for _, name := range []string{
		events.RequestAssigned,
		events.RequestAccepted,
		events.RequestRejected,
		events.RequestCompleted,
		events.RequestCancelled,
		events.RequestRated,
	} {
		bus.Subscribe(name, l.handleRequestEvent)
	}
	bus.Subscribe(events.SupportRequested, l.handleSupportRequested)
	l.logger.Info("NotificationListener подписан на события заявок")
}

// letter - одно письмо одному адресату.
type letter struct {
	to      string
	subject string
	body    string
}

func (l *NotificationListener) handleRequestEvent(ctx context.Context, event eventbus.Event) error {
	e, ok := event.(events.RequestEvent)
	if !ok {
		return nil
	}
	return l.send(ctx, e.Kind, l.lettersFor(e))
}

func (l *NotificationListener) handleSupportRequested(ctx context.Context, event eventbus.Event) error {
	e, ok := event.(events.SupportRequestedEvent)
	if !ok {
		return nil
	}
	return l.send(ctx, e.Name(), []letter{{
		to:      l.cfg.AdminAddress,
		subject: "Обращение в поддержку: " + e.Subject,
		body:    fmt.Sprintf("Клиент #%d (%s) пишет:\n\n%s", e.ClientID, e.ClientEmail, e.Message),
	}})
}

// lettersFor решает, кому и что писать по событию.
func (l *NotificationListener) lettersFor(e events.RequestEvent) []letter {
	req := e.Request
	title := fmt.Sprintf("Заявка #%d «%s»", req.ID, req.Title)
	techName, techEmail := "", ""
	if e.Technician != nil {
		techName, techEmail = e.Technician.Name, e.Technician.Email
	}

	var out []letter
	add := func(to, subject, body string) {
		if strings.TrimSpace(to) == "" {
			return
		}
		out = append(out, letter{to: to, subject: subject, body: body})
	}

	switch e.Kind {
	case events.RequestAssigned:
		add(techEmail, "Новая заявка", fmt.Sprintf("%s назначена вам. Адрес: %s, срочность: %s.", title, req.Location, req.Urgency))
		if e.PreviousTechnician != nil {
			add(e.PreviousTechnician.Email, "Заявка передана", title+" передана другому технику.")
		}
		if e.ManuallyAssigned {
			add(l.cfg.AdminAddress, "Ручное назначение", fmt.Sprintf("%s назначена технику %s.", title, techName))
		}
	case events.RequestAccepted:
		add(req.ContactEmail, "Техник приступил к работе", fmt.Sprintf("%s: техник %s приступил к работе.", title, techName))
	case events.RequestRejected:
		body := fmt.Sprintf("Техник %s отказался от заявки. Требуется ручное назначение.", techName)
		if e.Reason != "" {
			body += " Причина: " + e.Reason
		}
		add(l.cfg.AdminAddress, title+": отказ техника", body)
	case events.RequestCompleted:
		add(req.ContactEmail, "Работы завершены", title+" выполнена. Пожалуйста, оцените работу техника.")
		add(l.cfg.AdminAddress, title+": завершена", fmt.Sprintf("Техник %s завершил заявку.", techName))
	case events.RequestCancelled:
		add(techEmail, "Заявка отменена", title+" отменена клиентом.")
		add(l.cfg.AdminAddress, title+": отменена", "Клиент отменил заявку.")
	case events.RequestRated:
		if e.Technician != nil {
			add(techEmail, "Новая оценка", fmt.Sprintf("%s оценена на %d. Ваш средний рейтинг: %.2f.",
				title, req.Rating.Int16, e.Technician.AverageRating()))
		}
	}
	return out
}

func (l *NotificationListener) send(ctx context.Context, eventName string, letters []letter) error {
	var failed int
	for _, m := range letters {
		if err := l.mailer.Send(ctx, m.to, m.subject, m.body); err != nil {
			failed++
			l.logger.Error("Не удалось отправить письмо",
				zap.String("event", eventName),
				zap.String("to", m.to),
				zap.Error(err),
			)
		}
	}
	if failed > 0 {
		return fmt.Errorf("не отправлено %d из %d писем по событию %s", failed, len(letters), eventName)
	}
	return nil
}
