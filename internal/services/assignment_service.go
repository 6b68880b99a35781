package services

import (
	"context"
	"errors"
	"fmt"
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
)

const (
	MsgNoPendingRequests      = "no pending requests"
	MsgNoAvailableTechnicians = "no available technicians"
)

var (
	// заявку забрал параллельный писатель или её удалили - пропускаем её
	errRequestTaken = errors.New("заявка уже назначена или изменена")
	// техник изменён, снят с доступности или удалён - пробуем следующего
	errTechnicianMoved = errors.New("техник изменён параллельно")
)

type AssignmentServiceInterface interface {
	RunSweep(ctx context.Context) (*dto.SweepResultDTO, error)
}

type assignmentService struct {
	txManager           repositories.TxManagerInterface
	requestRepo         repositories.RequestRepositoryInterface
	technicianRepo      repositories.TechnicianRepositoryInterface
	cacheRepo           repositories.CacheRepositoryInterface
	notificationService NotificationServiceInterface
	bus                 *eventbus.Bus
	cfg                 config.AssignmentConfig
	logger              *zap.Logger
}

func NewAssignmentService(
	txManager repositories.TxManagerInterface,
	requestRepo repositories.RequestRepositoryInterface,
	technicianRepo repositories.TechnicianRepositoryInterface,
	cacheRepo repositories.CacheRepositoryInterface,
	notificationService NotificationServiceInterface,
	bus *eventbus.Bus,
	cfg config.AssignmentConfig,
	logger *zap.Logger,
) AssignmentServiceInterface {
	return &assignmentService{
		txManager:           txManager,
		requestRepo:         requestRepo,
		technicianRepo:      technicianRepo,
		cacheRepo:           cacheRepo,
		notificationService: notificationService,
		bus:                 bus,
		cfg:                 cfg,
		logger:              logger,
	}
}

// RunSweep - один прогон автоназначения. Одновременно идёт не больше одного прогона на все инстансы.
func (s *assignmentService) RunSweep(ctx context.Context) (*dto.SweepResultDTO, error) {
	token := uuid.NewString()
	acquired, err := s.cacheRepo.SetNX(ctx, constants.CacheKeyAssignmentSweepLock, token, s.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("не удалось взять блокировку автоназначения: %w", err)
	}
	if !acquired {
		return nil, apperrors.ErrSweepInProgress
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if _, err := s.cacheRepo.DelIfEquals(releaseCtx, constants.CacheKeyAssignmentSweepLock, token); err != nil {
			s.logger.Error("Не удалось снять блокировку автоназначения", zap.Error(err))
		}
	}()

	requests, err := s.requestRepo.FindEligibleForAssignment(ctx, nil)
	if err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return &dto.SweepResultDTO{Success: true, Message: MsgNoPendingRequests, Assignments: []dto.AssignmentDTO{}}, nil
	}

	techs, err := s.technicianRepo.FindAvailable(ctx, nil)
	if err != nil {
		return nil, err
	}
	if len(techs) == 0 {
		return &dto.SweepResultDTO{
			Success:     false,
			Message:     MsgNoAvailableTechnicians,
			Remaining:   len(requests),
			Assignments: []dto.AssignmentDTO{},
		}, nil
	}

	result := &dto.SweepResultDTO{Success: true, Assignments: make([]dto.AssignmentDTO, 0, len(requests))}
	queue := workflow.NewQueue(techs)
	var runErr error

requestLoop:
	for i := range requests {
		req := requests[i]
		for {
			tech, ok := queue.Pop()
			if !ok {
				break requestLoop
			}

			assigned, updatedTech, err := s.assignPair(ctx, req, tech)
			switch {
			case err == nil:
				result.Assignments = append(result.Assignments, dto.AssignmentDTO{
					RequestID:      assigned.ID,
					TechnicianID:   updatedTech.ID,
					TechnicianName: updatedTech.Name,
				})
				s.bus.Publish(ctx, events.NewRequestEvent(events.RequestAssigned, *assigned, updatedTech))
				continue requestLoop
			case errors.Is(err, errRequestTaken):
				s.logger.Info("Заявка занята параллельным назначением, пропускаем", zap.Uint64("requestID", req.ID))
				queue.PushFront(tech)
				continue requestLoop
			case errors.Is(err, errTechnicianMoved):
				s.logger.Info("Техник изменён параллельно, берём следующего",
					zap.Uint64("requestID", req.ID), zap.Uint64("technicianID", tech.ID))
				continue
			default:
				runErr = err
				break requestLoop
			}
		}
	}

	result.Assigned = len(result.Assignments)
	result.Remaining = len(requests) - result.Assigned
	s.logger.Info("Прогон автоназначения завершён",
		zap.Int("eligible", len(requests)),
		zap.Int("technicians", len(techs)),
		zap.Int("assigned", result.Assigned),
		zap.Int("remaining", result.Remaining),
	)
	if runErr != nil {
		// уже закоммиченные назначения остаются
		return nil, fmt.Errorf("автоназначение прервано после %d назначений: %w", result.Assigned, runErr)
	}
	result.Message = fmt.Sprintf("assigned %d request(s), %d left pending", result.Assigned, result.Remaining)
	return result, nil
}

// assignPair - одна пара в своей транзакции: условное обновление заявки, CAS загрузки, два уведомления.
func (s *assignmentService) assignPair(ctx context.Context, req entities.Request, tech entities.Technician) (*entities.Request, *entities.Technician, error) {
	var updatedTech *entities.Technician
	now := time.Now()
	techID := tech.ID

	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := workflow.Guard(&req, workflow.ActionAssign); err != nil {
			return errRequestTaken
		}
		guard := entities.RequestGuard{Status: constants.RequestStatusPending, Unassigned: true, NotRejected: true}
		patch := entities.RequestPatch{
			Assignment: &entities.AssignmentChange{TechnicianID: &techID, TechnicianName: tech.Name, At: now},
		}
		if err := s.requestRepo.Update(ctx, tx, req.ID, guard, patch); err != nil {
			switch {
			case errors.Is(err, apperrors.ErrTechnicianNotFound):
				return errTechnicianMoved
			case errors.Is(err, apperrors.ErrConflict), errors.Is(err, apperrors.ErrNotFound):
				return errRequestTaken
			}
			return err
		}

		var err error
		updatedTech, err = s.technicianRepo.AdjustWorkload(ctx, tx, tech.ID, tech.Version, +1)
		if err != nil {
			if errors.Is(err, apperrors.ErrConflict) || errors.Is(err, apperrors.ErrNotFound) {
				return errTechnicianMoved
			}
			return err
		}

		applyAssignment(&req, patch.Assignment)
		return s.notificationService.NotifyAssigned(ctx, tx, &req, updatedTech, false)
	})
	if err != nil {
		return nil, nil, err
	}
	return &req, updatedTech, nil
}

// applyAssignment повторяет изменение назначения на снимке заявки в памяти.
func applyAssignment(req *entities.Request, change *entities.AssignmentChange) {
	if change.TechnicianID == nil {
		req.AssignedTechnicianID = nil
		req.AssignedTechnicianName.Valid = false
		req.AssignedTechnicianName.String = ""
		req.AssignedAt.Valid = false
		return
	}
	id := *change.TechnicianID
	req.AssignedTechnicianID = &id
	req.AssignedTechnicianName.String = change.TechnicianName
	req.AssignedTechnicianName.Valid = true
	req.AssignedAt.Time = change.At
	req.AssignedAt.Valid = true
}
