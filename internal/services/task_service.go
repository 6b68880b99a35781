package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

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
	"maintenance-system/pkg/utils"
)

type TaskServiceInterface interface {
	ListTasks(ctx context.Context) ([]dto.RequestResponseDTO, error)
	AssignManually(ctx context.Context, requestID uint64, payload dto.AssignRequestDTO) (*dto.RequestResponseDTO, error)
	Accept(ctx context.Context, requestID uint64) (*dto.RequestResponseDTO, error)
	Reject(ctx context.Context, requestID uint64, payload dto.RejectTaskDTO) (*dto.RequestResponseDTO, error)
	Complete(ctx context.Context, requestID uint64, payload dto.TaskReportDTO) (*dto.CompleteTaskResponseDTO, error)
	Rate(ctx context.Context, requestID uint64, payload dto.FeedbackDTO) (*dto.RequestResponseDTO, error)
}

type taskService struct {
	txManager           repositories.TxManagerInterface
	requestRepo         repositories.RequestRepositoryInterface
	technicianRepo      repositories.TechnicianRepositoryInterface
	taskReportRepo      repositories.TaskReportRepositoryInterface
	notificationService NotificationServiceInterface
	assignmentService   AssignmentServiceInterface
	bus                 *eventbus.Bus
	cfg                 config.AssignmentConfig
	logger              *zap.Logger
}

func NewTaskService(
	txManager repositories.TxManagerInterface,
	requestRepo repositories.RequestRepositoryInterface,
	technicianRepo repositories.TechnicianRepositoryInterface,
	taskReportRepo repositories.TaskReportRepositoryInterface,
	notificationService NotificationServiceInterface,
	assignmentService AssignmentServiceInterface,
	bus *eventbus.Bus,
	cfg config.AssignmentConfig,
	logger *zap.Logger,
) TaskServiceInterface {
	return &taskService{
		txManager:           txManager,
		requestRepo:         requestRepo,
		technicianRepo:      technicianRepo,
		taskReportRepo:      taskReportRepo,
		notificationService: notificationService,
		assignmentService:   assignmentService,
		bus:                 bus,
		cfg:                 cfg,
		logger:              logger,
	}
}

// currentTechnician - запись техника, привязанная к пользователю из токена.
func (s *taskService) currentTechnician(ctx context.Context) (*entities.Technician, error) {
	actor, err := utils.GetActorFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	if !actor.Is(constants.RoleTechnician) {
		return nil, apperrors.ErrForbidden
	}
	tech, err := s.technicianRepo.FindByUserID(ctx, nil, actor.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Warn("Пользователь с ролью техника не привязан к технику", zap.Uint64("userID", actor.UserID))
			return nil, apperrors.ErrForbidden
		}
		return nil, err
	}
	return tech, nil
}

// adjustWorkload перечитывает техника в транзакции и меняет загрузку по его текущей версии.
func (s *taskService) adjustWorkload(ctx context.Context, tx pgx.Tx, technicianID uint64, delta int) (*entities.Technician, error) {
	return adjustTechnicianWorkload(ctx, tx, s.technicianRepo, technicianID, delta)
}

func adjustTechnicianWorkload(ctx context.Context, tx pgx.Tx, repo repositories.TechnicianRepositoryInterface, technicianID uint64, delta int) (*entities.Technician, error) {
	fresh, err := repo.FindByID(ctx, tx, technicianID)
	if err != nil {
		return nil, err
	}
	return repo.AdjustWorkload(ctx, tx, technicianID, fresh.Version, delta)
}

func statusPtr(s constants.RequestStatus) *constants.RequestStatus { return &s }
func boolPtr(b bool) *bool                                         { return &b }

// ListTasks - задачи техника: назначенные и в работе. Перед выдачей может запускаться автоназначение.
func (s *taskService) ListTasks(ctx context.Context) ([]dto.RequestResponseDTO, error) {
	tech, err := s.currentTechnician(ctx)
	if err != nil {
		return nil, err
	}

	if s.cfg.SweepOnTaskLoad {
		if _, err := s.assignmentService.RunSweep(ctx); err != nil {
			if errors.Is(err, apperrors.ErrSweepInProgress) {
				s.logger.Debug("Автоназначение уже выполняется другим запросом")
			} else {
				s.logger.Error("Ошибка автоназначения при загрузке задач", zap.Error(err))
			}
		}
	}

	list, err := s.requestRepo.FindByTechnician(ctx, tech.ID,
		[]constants.RequestStatus{constants.RequestStatusPending, constants.RequestStatusInProgress})
	if err != nil {
		return nil, err
	}
	return requestsToDTO(list), nil
}

// AssignManually - ручное (пере)назначение админом. Снимает отметку об отказе.
func (s *taskService) AssignManually(ctx context.Context, requestID uint64, payload dto.AssignRequestDTO) (*dto.RequestResponseDTO, error) {
	actor, err := utils.GetActorFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	if !actor.Is(constants.RoleAdmin) {
		return nil, apperrors.ErrForbidden
	}

	var (
		req          *entities.Request
		newTech      *entities.Technician
		previousTech *entities.Technician
	)
	err = runWithCASRetry(ctx, s.txManager, s.cfg.CASRetries, s.logger, "assign", func(tx pgx.Tx) error {
		previousTech = nil
		var err error
		req, err = s.requestRepo.FindForUpdate(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if _, err := workflow.Guard(req, workflow.ActionAssign); err != nil {
			return err
		}
		if req.IsAssignedTo(payload.TechnicianID) {
			return apperrors.NewHttpError(http.StatusConflict, "Заявка уже назначена этому технику", nil, nil)
		}

		candidate, err := s.technicianRepo.FindByID(ctx, tx, payload.TechnicianID)
		if err != nil {
			return err
		}
		if !candidate.Availability {
			return apperrors.ErrTechnicianNotAvailable
		}

		guard := entities.RequestGuard{Status: constants.RequestStatusPending}
		if req.AssignedTechnicianID != nil {
			prevID := *req.AssignedTechnicianID
			guard.AssignedTechnician = &prevID
		} else {
			guard.Unassigned = true
		}
		patch := entities.RequestPatch{
			Assignment:       &entities.AssignmentChange{TechnicianID: &candidate.ID, TechnicianName: candidate.Name, At: time.Now()},
			ManuallyAssigned: boolPtr(true),
			Rejected:         boolPtr(false),
		}
		if err := s.requestRepo.Update(ctx, tx, req.ID, guard, patch); err != nil {
			return err
		}

		newTech, err = s.technicianRepo.AdjustWorkload(ctx, tx, candidate.ID, candidate.Version, +1)
		if err != nil {
			return err
		}
		if guard.AssignedTechnician != nil {
			previousTech, err = s.adjustWorkload(ctx, tx, *guard.AssignedTechnician, -1)
			if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
				return err
			}
		}

		applyAssignment(req, patch.Assignment)
		req.ManuallyAssigned = true
		req.Rejected = false

		if err := s.notificationService.NotifyAssigned(ctx, tx, req, newTech, true); err != nil {
			return err
		}
		if previousTech != nil {
			return s.notificationService.NotifyUnassigned(ctx, tx, req, previousTech)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	event := events.NewRequestEvent(events.RequestAssigned, *req, newTech)
	event.ManuallyAssigned = true
	event.PreviousTechnician = previousTech
	s.bus.Publish(ctx, event)

	s.logger.Info("Заявка назначена вручную",
		zap.Uint64("requestID", req.ID),
		zap.Uint64("technicianID", newTech.ID),
		zap.Uint64("adminID", actor.UserID),
	)
	res := requestToDTO(req)
	return &res, nil
}

// lockOwnTask блокирует заявку и проверяет переход и то, что она назначена этому технику.
func (s *taskService) lockOwnTask(ctx context.Context, tx pgx.Tx, requestID uint64, tech *entities.Technician, action workflow.Action) (*entities.Request, workflow.State, error) {
	req, err := s.requestRepo.FindForUpdate(ctx, tx, requestID)
	if err != nil {
		return nil, workflow.StateUnknown, err
	}
	next, err := workflow.Guard(req, action)
	if err != nil {
		return nil, workflow.StateUnknown, err
	}
	if !req.IsAssignedTo(tech.ID) {
		return nil, workflow.StateUnknown, apperrors.ErrNotAssignedTechnician
	}
	return req, next, nil
}

func (s *taskService) Accept(ctx context.Context, requestID uint64) (*dto.RequestResponseDTO, error) {
	tech, err := s.currentTechnician(ctx)
	if err != nil {
		return nil, err
	}

	var req *entities.Request
	err = runWithCASRetry(ctx, s.txManager, s.cfg.CASRetries, s.logger, "accept", func(tx pgx.Tx) error {
		var next workflow.State
		var err error
		req, next, err = s.lockOwnTask(ctx, tx, requestID, tech, workflow.ActionAccept)
		if err != nil {
			return err
		}

		now := time.Now()
		guard := entities.RequestGuard{Status: constants.RequestStatusPending, AssignedTechnician: &tech.ID}
		patch := entities.RequestPatch{Status: statusPtr(next.Status()), AcceptedAt: &now}
		if err := s.requestRepo.Update(ctx, tx, req.ID, guard, patch); err != nil {
			return err
		}
		req.Status = next.Status()
		req.AcceptedAt.Time, req.AcceptedAt.Valid = now, true

		return s.notificationService.NotifyAccepted(ctx, tx, req, tech)
	})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, events.NewRequestEvent(events.RequestAccepted, *req, tech))
	res := requestToDTO(req)
	return &res, nil
}

// Reject возвращает заявку в пул с отметкой об отказе; автоназначение её больше не берёт.
func (s *taskService) Reject(ctx context.Context, requestID uint64, payload dto.RejectTaskDTO) (*dto.RequestResponseDTO, error) {
	tech, err := s.currentTechnician(ctx)
	if err != nil {
		return nil, err
	}

	var (
		req         *entities.Request
		updatedTech *entities.Technician
	)
	err = runWithCASRetry(ctx, s.txManager, s.cfg.CASRetries, s.logger, "reject", func(tx pgx.Tx) error {
		var err error
		req, _, err = s.lockOwnTask(ctx, tx, requestID, tech, workflow.ActionReject)
		if err != nil {
			return err
		}

		guard := entities.RequestGuard{Status: constants.RequestStatusPending, AssignedTechnician: &tech.ID}
		patch := entities.RequestPatch{Assignment: &entities.AssignmentChange{}, Rejected: boolPtr(true)}
		if err := s.requestRepo.Update(ctx, tx, req.ID, guard, patch); err != nil {
			return err
		}
		updatedTech, err = s.adjustWorkload(ctx, tx, tech.ID, -1)
		if err != nil {
			return err
		}

		applyAssignment(req, patch.Assignment)
		req.Rejected = true
		return s.notificationService.NotifyRejected(ctx, tx, req, updatedTech, payload.Reason)
	})
	if err != nil {
		return nil, err
	}

	event := events.NewRequestEvent(events.RequestRejected, *req, updatedTech)
	event.Reason = payload.Reason
	s.bus.Publish(ctx, event)

	res := requestToDTO(req)
	return &res, nil
}

// Complete сохраняет отчёт и завершает заявку одной транзакцией.
func (s *taskService) Complete(ctx context.Context, requestID uint64, payload dto.TaskReportDTO) (*dto.CompleteTaskResponseDTO, error) {
	tech, err := s.currentTechnician(ctx)
	if err != nil {
		return nil, err
	}
	if payload.Success == nil {
		return nil, apperrors.NewBadRequestError("Не указан результат работ (success)")
	}

	var (
		req         *entities.Request
		report      *entities.TaskReport
		updatedTech *entities.Technician
	)
	err = runWithCASRetry(ctx, s.txManager, s.cfg.CASRetries, s.logger, "complete", func(tx pgx.Tx) error {
		var next workflow.State
		var err error
		req, next, err = s.lockOwnTask(ctx, tx, requestID, tech, workflow.ActionComplete)
		if err != nil {
			return err
		}

		now := time.Now()
		guard := entities.RequestGuard{Status: constants.RequestStatusInProgress, AssignedTechnician: &tech.ID}
		patch := entities.RequestPatch{Status: statusPtr(next.Status()), CompletedAt: &now}
		if err := s.requestRepo.Update(ctx, tx, req.ID, guard, patch); err != nil {
			return err
		}

		report = &entities.TaskReport{
			RequestID:        req.ID,
			TechnicianID:     tech.ID,
			ToolsUsed:        payload.ToolsUsed,
			PartsUsed:        payload.PartsUsed,
			TimeTakenMinutes: payload.TimeTakenMinutes,
			Success:          *payload.Success,
			Remarks:          payload.Remarks,
		}
		if err := s.taskReportRepo.Create(ctx, tx, report); err != nil {
			return err
		}

		updatedTech, err = s.adjustWorkload(ctx, tx, tech.ID, -1)
		if err != nil {
			return err
		}

		req.Status = next.Status()
		req.CompletedAt.Time, req.CompletedAt.Valid = now, true
		return s.notificationService.NotifyCompleted(ctx, tx, req, updatedTech)
	})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, events.NewRequestEvent(events.RequestCompleted, *req, updatedTech))
	return &dto.CompleteTaskResponseDTO{Request: requestToDTO(req), Report: taskReportToDTO(report)}, nil
}

// Rate - одна оценка на выполненную заявку, только от её владельца.
// У техника растут сумма оценок и их количество; среднее считается при чтении.
func (s *taskService) Rate(ctx context.Context, requestID uint64, payload dto.FeedbackDTO) (*dto.RequestResponseDTO, error) {
	actor, err := utils.GetActorFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	if payload.Rating < 1 || payload.Rating > 5 {
		return nil, apperrors.NewBadRequestError("Оценка должна быть от 1 до 5")
	}

	var (
		req  *entities.Request
		tech *entities.Technician
	)
	err = runWithCASRetry(ctx, s.txManager, s.cfg.CASRetries, s.logger, "rate", func(tx pgx.Tx) error {
		tech = nil
		var err error
		req, err = s.requestRepo.FindForUpdate(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if req.ClientID != actor.UserID {
			return apperrors.ErrForbidden
		}
		if err := workflow.CanRate(req); err != nil {
			return err
		}

		var feedback *string
		if payload.Feedback.Valid {
			feedback = &payload.Feedback.String
		}
		if err := s.requestRepo.SetRating(ctx, tx, req.ID, payload.Rating, feedback); err != nil {
			return err
		}

		if req.AssignedTechnicianID != nil {
			fresh, err := s.technicianRepo.FindByID(ctx, tx, *req.AssignedTechnicianID)
			if err != nil {
				return err
			}
			tech, err = s.technicianRepo.AddRating(ctx, tx, fresh.ID, fresh.Version, payload.Rating)
			if err != nil {
				return err
			}
		} else {
			s.logger.Warn("Оценка выполненной заявки без техника", zap.Uint64("requestID", req.ID))
		}

		req.Rating.Int16, req.Rating.Valid = int16(payload.Rating), true
		if feedback != nil {
			req.Feedback.String, req.Feedback.Valid = *feedback, true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, events.NewRequestEvent(events.RequestRated, *req, tech))
	if tech != nil {
		s.logger.Info("Оценка учтена",
			zap.Uint64("requestID", req.ID),
			zap.Uint64("technicianID", tech.ID),
			zap.String("average", fmt.Sprintf("%.2f", tech.AverageRating())),
		)
	}
	res := requestToDTO(req)
	return &res, nil
}
