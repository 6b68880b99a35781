package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"maintenance-system/internal/dto"
	"maintenance-system/internal/entities"
	"maintenance-system/internal/repositories"
	"maintenance-system/pkg/constants"
	apperrors "maintenance-system/pkg/errors"
	"maintenance-system/pkg/types"
	"maintenance-system/pkg/utils"
)

// NotificationServiceInterface пишет уведомления в ту же транзакцию, что и переход заявки.
// Адресат-техник задаётся ID техника, клиент - ID пользователя, админский канал - без ID.
type NotificationServiceInterface interface {
	NotifyAssigned(ctx context.Context, tx pgx.Tx, req *entities.Request, tech *entities.Technician, manual bool) error
	NotifyUnassigned(ctx context.Context, tx pgx.Tx, req *entities.Request, tech *entities.Technician) error
	NotifyAccepted(ctx context.Context, tx pgx.Tx, req *entities.Request, tech *entities.Technician) error
	NotifyRejected(ctx context.Context, tx pgx.Tx, req *entities.Request, tech *entities.Technician, reason string) error
	NotifyCompleted(ctx context.Context, tx pgx.Tx, req *entities.Request, tech *entities.Technician) error
	NotifyCancelled(ctx context.Context, tx pgx.Tx, req *entities.Request, tech *entities.Technician) error
	NotifySupport(ctx context.Context, tx pgx.Tx, clientID uint64, subject, message string) error

	GetMine(ctx context.Context, filter types.Filter) ([]dto.NotificationResponseDTO, uint64, error)
	MarkRead(ctx context.Context, id uint64) error
}

type notificationService struct {
	notificationRepo repositories.NotificationRepositoryInterface
	technicianRepo   repositories.TechnicianRepositoryInterface
	logger           *zap.Logger
}

func NewNotificationService(
	notificationRepo repositories.NotificationRepositoryInterface,
	technicianRepo repositories.TechnicianRepositoryInterface,
	logger *zap.Logger,
) NotificationServiceInterface {
	return &notificationService{
		notificationRepo: notificationRepo,
		technicianRepo:   technicianRepo,
		logger:           logger,
	}
}

type notice struct {
	role        constants.Role
	recipientID *uint64
	message     string
}

func toTechnician(tech *entities.Technician, message string) notice {
	id := tech.ID
	return notice{role: constants.RoleTechnician, recipientID: &id, message: message}
}

func toClient(req *entities.Request, message string) notice {
	id := req.ClientID
	return notice{role: constants.RoleClient, recipientID: &id, message: message}
}

func toAdmins(message string) notice {
	return notice{role: constants.RoleAdmin, message: message}
}

func (s *notificationService) write(ctx context.Context, tx pgx.Tx, notices ...notice) error {
	for _, n := range notices {
		entity := &entities.Notification{RecipientRole: n.role, RecipientID: n.recipientID, Message: n.message}
		if err := s.notificationRepo.Create(ctx, tx, entity); err != nil {
			return fmt.Errorf("не удалось записать уведомление (%s): %w", n.role, err)
		}
	}
	return nil
}

func (s *notificationService) NotifyAssigned(ctx context.Context, tx pgx.Tx, req *entities.Request, tech *entities.Technician, manual bool) error {
	how := "автоматически"
	if manual {
		how = "вручную"
	}
	return s.write(ctx, tx,
		toTechnician(tech, fmt.Sprintf("Вам назначена заявка #%d «%s» (%s, срочность: %s).", req.ID, req.Title, req.Location, req.Urgency)),
		toAdmins(fmt.Sprintf("Заявка #%d «%s» %s назначена технику %s.", req.ID, req.Title, how, tech.Name)),
	)
}

func (s *notificationService) NotifyUnassigned(ctx context.Context, tx pgx.Tx, req *entities.Request, tech *entities.Technician) error {
	return s.write(ctx, tx,
		toTechnician(tech, fmt.Sprintf("Заявка #%d «%s» передана другому технику.", req.ID, req.Title)),
	)
}

func (s *notificationService) NotifyAccepted(ctx context.Context, tx pgx.Tx, req *entities.Request, tech *entities.Technician) error {
	return s.write(ctx, tx,
		toTechnician(tech, fmt.Sprintf("Вы приняли заявку #%d. Не забудьте сдать отчёт после выполнения работ.", req.ID)),
		toClient(req, fmt.Sprintf("Техник %s приступил к работе по вашей заявке #%d «%s».", tech.Name, req.ID, req.Title)),
		toAdmins(fmt.Sprintf("Техник %s принял заявку #%d.", tech.Name, req.ID)),
	)
}

func (s *notificationService) NotifyRejected(ctx context.Context, tx pgx.Tx, req *entities.Request, tech *entities.Technician, reason string) error {
	adminMsg := fmt.Sprintf("Техник %s отказался от заявки #%d «%s». Требуется ручное назначение.", tech.Name, req.ID, req.Title)
	if reason != "" {
		adminMsg += " Причина: " + reason
	}
	return s.write(ctx, tx,
		toTechnician(tech, fmt.Sprintf("Вы отказались от заявки #%d. Она возвращена администратору.", req.ID)),
		toAdmins(adminMsg),
	)
}

func (s *notificationService) NotifyCompleted(ctx context.Context, tx pgx.Tx, req *entities.Request, tech *entities.Technician) error {
	return s.write(ctx, tx,
		toTechnician(tech, fmt.Sprintf("Отчёт по заявке #%d принят. Спасибо за работу!", req.ID)),
		toClient(req, fmt.Sprintf("Работы по заявке #%d «%s» завершены. Пожалуйста, оцените работу техника.", req.ID, req.Title)),
		toAdmins(fmt.Sprintf("Техник %s завершил заявку #%d.", tech.Name, req.ID)),
	)
}

func (s *notificationService) NotifyCancelled(ctx context.Context, tx pgx.Tx, req *entities.Request, tech *entities.Technician) error {
	notices := []notice{toAdmins(fmt.Sprintf("Клиент отменил заявку #%d «%s».", req.ID, req.Title))}
	if tech != nil {
		notices = append(notices, toTechnician(tech, fmt.Sprintf("Заявка #%d «%s» отменена клиентом.", req.ID, req.Title)))
	}
	return s.write(ctx, tx, notices...)
}

func (s *notificationService) NotifySupport(ctx context.Context, tx pgx.Tx, clientID uint64, subject, message string) error {
	return s.write(ctx, tx,
		toAdmins(fmt.Sprintf("Обращение в поддержку от клиента #%d. %s: %s", clientID, subject, message)),
	)
}

// recipientOf - под каким ID текущий пользователь получает уведомления.
func (s *notificationService) recipientOf(ctx context.Context) (constants.Role, uint64, error) {
	actor, err := utils.GetActorFromCtx(ctx)
	if err != nil {
		return "", 0, err
	}
	if actor.Role != constants.RoleTechnician {
		return actor.Role, actor.UserID, nil
	}
	tech, err := s.technicianRepo.FindByUserID(ctx, nil, actor.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", 0, apperrors.ErrForbidden
		}
		return "", 0, err
	}
	return actor.Role, tech.ID, nil
}

func (s *notificationService) GetMine(ctx context.Context, filter types.Filter) ([]dto.NotificationResponseDTO, uint64, error) {
	role, recipientID, err := s.recipientOf(ctx)
	if err != nil {
		return nil, 0, err
	}
	list, total, err := s.notificationRepo.ListForRecipient(ctx, role, recipientID, filter)
	if err != nil {
		return nil, 0, err
	}
	out := make([]dto.NotificationResponseDTO, 0, len(list))
	for i := range list {
		out = append(out, notificationToDTO(&list[i]))
	}
	return out, total, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id uint64) error {
	role, recipientID, err := s.recipientOf(ctx)
	if err != nil {
		return err
	}
	return s.notificationRepo.MarkRead(ctx, id, role, recipientID)
}
