package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"maintenance-system/internal/dto"
	"maintenance-system/internal/entities"
	"maintenance-system/internal/events"
	"maintenance-system/internal/repositories"
	"maintenance-system/internal/workflow"
	"maintenance-system/pkg/config"
	"maintenance-system/pkg/constants"
	apperrors "maintenance-system/pkg/errors"
	"maintenance-system/pkg/eventbus"
	"maintenance-system/pkg/types"
	"maintenance-system/pkg/utils"
)

type RequestServiceInterface interface {
	Create(ctx context.Context, payload dto.CreateRequestDTO) (*dto.RequestResponseDTO, error)
	GetAll(ctx context.Context, filter types.Filter) ([]dto.RequestResponseDTO, uint64, error)
	FindByID(ctx context.Context, id uint64) (*dto.RequestResponseDTO, error)
	Cancel(ctx context.Context, id uint64) (*dto.RequestResponseDTO, error)
	SupportRequest(ctx context.Context, payload dto.SupportRequestDTO) error
}

type requestService struct {
	txManager           repositories.TxManagerInterface
	requestRepo         repositories.RequestRepositoryInterface
	technicianRepo      repositories.TechnicianRepositoryInterface
	userRepo            repositories.UserRepositoryInterface
	taskReportRepo      repositories.TaskReportRepositoryInterface
	notificationService NotificationServiceInterface
	bus                 *eventbus.Bus
	cfg                 config.AssignmentConfig
	logger              *zap.Logger
}

func NewRequestService(
	txManager repositories.TxManagerInterface,
	requestRepo repositories.RequestRepositoryInterface,
	technicianRepo repositories.TechnicianRepositoryInterface,
	userRepo repositories.UserRepositoryInterface,
	taskReportRepo repositories.TaskReportRepositoryInterface,
	notificationService NotificationServiceInterface,
	bus *eventbus.Bus,
	cfg config.AssignmentConfig,
	logger *zap.Logger,
) RequestServiceInterface {
	return &requestService{
		txManager:           txManager,
		requestRepo:         requestRepo,
		technicianRepo:      technicianRepo,
		userRepo:            userRepo,
		taskReportRepo:      taskReportRepo,
		notificationService: notificationService,
		bus:                 bus,
		cfg:                 cfg,
		logger:              logger,
	}
}

func (s *requestService) Create(ctx context.Context, payload dto.CreateRequestDTO) (*dto.RequestResponseDTO, error) {
	actor, err := utils.GetActorFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	if !actor.Is(constants.RoleClient) {
		return nil, apperrors.ErrForbidden
	}

	req := &entities.Request{
		ClientID:     actor.UserID,
		Title:        strings.TrimSpace(payload.Title),
		Category:     strings.TrimSpace(payload.Category),
		Description:  payload.Description,
		Location:     strings.TrimSpace(payload.Location),
		Urgency:      constants.Urgency(strings.ToLower(payload.Urgency)),
		ContactName:  payload.ContactName,
		ContactEmail: payload.ContactEmail,
		ContactPhone: payload.ContactPhone,
	}
	if payload.PreferredDate.Valid {
		date, err := time.Parse("2006-01-02", payload.PreferredDate.String)
		if err != nil {
			return nil, apperrors.NewBadRequestError("Некорректная дата, ожидается формат ГГГГ-ММ-ДД")
		}
		req.PreferredDate = sql.NullTime{Time: date, Valid: true}
	}
	if payload.ImageRef.Valid && payload.ImageRef.String != "" {
		req.ImageRef = sql.NullString{String: payload.ImageRef.String, Valid: true}
	}

	if err := s.requestRepo.Create(ctx, nil, req); err != nil {
		return nil, err
	}
	s.logger.Info("Создана заявка", zap.Uint64("requestID", req.ID), zap.Uint64("clientID", actor.UserID))

	res := requestToDTO(req)
	return &res, nil
}

// GetAll: клиент видит только свои заявки, админ - все.
func (s *requestService) GetAll(ctx context.Context, filter types.Filter) ([]dto.RequestResponseDTO, uint64, error) {
	actor, err := utils.GetActorFromCtx(ctx)
	if err != nil {
		return nil, 0, err
	}
	switch actor.Role {
	case constants.RoleAdmin:
	case constants.RoleClient:
		if filter.Filter == nil {
			filter.Filter = map[string]interface{}{}
		}
		filter.Filter["client_id"] = actor.UserID
	default:
		return nil, 0, apperrors.ErrForbidden
	}

	list, total, err := s.requestRepo.GetAll(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return requestsToDTO(list), total, nil
}

// canView - чужая заявка для клиента и техника выглядит как несуществующая.
func (s *requestService) canView(ctx context.Context, actor utils.Actor, req *entities.Request) (bool, error) {
	switch actor.Role {
	case constants.RoleAdmin:
		return true, nil
	case constants.RoleClient:
		return req.ClientID == actor.UserID, nil
	case constants.RoleTechnician:
		tech, err := s.technicianRepo.FindByUserID(ctx, nil, actor.UserID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		return req.IsAssignedTo(tech.ID), nil
	}
	return false, nil
}

func (s *requestService) FindByID(ctx context.Context, id uint64) (*dto.RequestResponseDTO, error) {
	actor, err := utils.GetActorFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	req, err := s.requestRepo.FindByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.canView(ctx, actor, req)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	res := requestToDTO(req)

	if req.Status == constants.RequestStatusCompleted {
		report, err := s.taskReportRepo.FindByRequestID(ctx, nil, req.ID)
		switch {
		case err == nil:
			reportDTO := taskReportToDTO(report)
			res.Report = &reportDTO
		case !errors.Is(err, apperrors.ErrNotFound):
			return nil, err
		}
	}
	return &res, nil
}

// Cancel - клиент отменяет свою заявку, пока она не взята в работу.
// Если техник уже был назначен, назначение снимается и его загрузка уменьшается.
func (s *requestService) Cancel(ctx context.Context, id uint64) (*dto.RequestResponseDTO, error) {
	actor, err := utils.GetActorFromCtx(ctx)
	if err != nil {
		return nil, err
	}

	var (
		req  *entities.Request
		tech *entities.Technician
	)
	err = runWithCASRetry(ctx, s.txManager, s.cfg.CASRetries, s.logger, "cancel", func(tx pgx.Tx) error {
		tech = nil
		var err error
		req, err = s.requestRepo.FindForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if req.ClientID != actor.UserID {
			return apperrors.ErrNotFound
		}
		next, err := workflow.Guard(req, workflow.ActionCancel)
		if err != nil {
			return err
		}

		now := time.Now()
		guard := entities.RequestGuard{Status: constants.RequestStatusPending}
		patch := entities.RequestPatch{Status: statusPtr(next.Status()), CancelledAt: &now}
		prevTechID := req.AssignedTechnicianID
		if prevTechID != nil {
			guard.AssignedTechnician = prevTechID
			patch.Assignment = &entities.AssignmentChange{}
		} else {
			guard.Unassigned = true
		}
		if err := s.requestRepo.Update(ctx, tx, req.ID, guard, patch); err != nil {
			return err
		}

		if prevTechID != nil {
			tech, err = adjustTechnicianWorkload(ctx, tx, s.technicianRepo, *prevTechID, -1)
			if err != nil {
				return err
			}
			applyAssignment(req, patch.Assignment)
		}
		req.Status = next.Status()
		req.CancelledAt.Time, req.CancelledAt.Valid = now, true

		return s.notificationService.NotifyCancelled(ctx, tx, req, tech)
	})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, events.NewRequestEvent(events.RequestCancelled, *req, tech))
	res := requestToDTO(req)
	return &res, nil
}

// SupportRequest - обращение клиента к администраторам: уведомление в админский канал и письмо.
func (s *requestService) SupportRequest(ctx context.Context, payload dto.SupportRequestDTO) error {
	actor, err := utils.GetActorFromCtx(ctx)
	if err != nil {
		return err
	}
	client, err := s.userRepo.FindByID(ctx, nil, actor.UserID)
	if err != nil {
		return err
	}

	if err := s.notificationService.NotifySupport(ctx, nil, client.ID, payload.Subject, payload.Message); err != nil {
		return err
	}
	s.bus.Publish(ctx, events.SupportRequestedEvent{
		ID:          uuid.New(),
		ClientID:    client.ID,
		ClientEmail: client.Email,
		Subject:     payload.Subject,
		Message:     payload.Message,
	})
	return nil
}
