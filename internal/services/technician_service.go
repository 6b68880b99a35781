package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"maintenance-system/internal/dto"
	"maintenance-system/internal/entities"
	"maintenance-system/internal/repositories"
	"maintenance-system/pkg/constants"
	apperrors "maintenance-system/pkg/errors"
	"maintenance-system/pkg/types"
	"maintenance-system/pkg/utils"
)

type TechnicianServiceInterface interface {
	Create(ctx context.Context, payload dto.CreateTechnicianDTO) (*dto.TechnicianResponseDTO, error)
	GetAll(ctx context.Context, filter types.Filter) ([]dto.TechnicianResponseDTO, uint64, error)
	FindByID(ctx context.Context, id uint64) (*dto.TechnicianResponseDTO, error)
	FindByPublicID(ctx context.Context, publicID uuid.UUID) (*dto.TechnicianResponseDTO, error)
	Update(ctx context.Context, id uint64, payload dto.UpdateTechnicianDTO) (*dto.TechnicianResponseDTO, error)
	SetAvailability(ctx context.Context, id uint64, payload dto.AvailabilityDTO) (*dto.TechnicianResponseDTO, error)
}

type technicianService struct {
	technicianRepo repositories.TechnicianRepositoryInterface
	userRepo       repositories.UserRepositoryInterface
	logger         *zap.Logger
}

func NewTechnicianService(
	technicianRepo repositories.TechnicianRepositoryInterface,
	userRepo repositories.UserRepositoryInterface,
	logger *zap.Logger,
) TechnicianServiceInterface {
	return &technicianService{technicianRepo: technicianRepo, userRepo: userRepo, logger: logger}
}

func requireAdmin(ctx context.Context) (utils.Actor, error) {
	actor, err := utils.GetActorFromCtx(ctx)
	if err != nil {
		return utils.Actor{}, err
	}
	if !actor.Is(constants.RoleAdmin) {
		return utils.Actor{}, apperrors.ErrForbidden
	}
	return actor, nil
}

// Create - онбординг техника админом. Привязываемый пользователь должен иметь роль technician;
// без user_id техник привязывается к учётке technician с тем же e-mail, если она есть.
func (s *technicianService) Create(ctx context.Context, payload dto.CreateTechnicianDTO) (*dto.TechnicianResponseDTO, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	tech := &entities.Technician{
		Name:           strings.TrimSpace(payload.Name),
		Email:          payload.Email,
		Specialization: strings.TrimSpace(payload.Specialization),
		Location:       strings.TrimSpace(payload.Location),
		Availability:   payload.Availability == "" || strings.EqualFold(payload.Availability, constants.Yes),
	}
	if payload.UserID.Valid {
		user, err := s.userRepo.FindByID(ctx, nil, payload.UserID.Uint64)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.NewBadRequestError("Пользователь для привязки не найден")
			}
			return nil, err
		}
		if user.Role != constants.RoleTechnician {
			return nil, apperrors.NewBadRequestError("Пользователь должен иметь роль technician")
		}
		userID := user.ID
		tech.UserID = &userID
	} else if user, err := s.userRepo.FindByEmail(ctx, nil, tech.Email); err == nil && user.Role == constants.RoleTechnician {
		// без явной привязки ищем учётку техника с тем же e-mail
		userID := user.ID
		tech.UserID = &userID
	} else if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	if err := s.technicianRepo.Create(ctx, nil, tech); err != nil {
		return nil, err
	}
	s.logger.Info("Добавлен техник", zap.Uint64("technicianID", tech.ID), zap.String("publicID", tech.TechnicianID.String()))
	res := technicianToDTO(tech)
	return &res, nil
}

func (s *technicianService) GetAll(ctx context.Context, filter types.Filter) ([]dto.TechnicianResponseDTO, uint64, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, 0, err
	}
	list, total, err := s.technicianRepo.GetAll(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	out := make([]dto.TechnicianResponseDTO, 0, len(list))
	for i := range list {
		out = append(out, technicianToDTO(&list[i]))
	}
	return out, total, nil
}

func (s *technicianService) FindByID(ctx context.Context, id uint64) (*dto.TechnicianResponseDTO, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	tech, err := s.technicianRepo.FindByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	res := technicianToDTO(tech)
	return &res, nil
}

// FindByPublicID ищет техника по внешнему uuid, который видят клиенты API.
func (s *technicianService) FindByPublicID(ctx context.Context, publicID uuid.UUID) (*dto.TechnicianResponseDTO, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	tech, err := s.technicianRepo.FindByPublicID(ctx, nil, publicID)
	if err != nil {
		return nil, err
	}
	res := technicianToDTO(tech)
	return &res, nil
}

func (s *technicianService) Update(ctx context.Context, id uint64, payload dto.UpdateTechnicianDTO) (*dto.TechnicianResponseDTO, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	patch := entities.TechnicianPatch{
		Name:           payload.Name,
		Email:          payload.Email,
		Specialization: payload.Specialization,
		Location:       payload.Location,
	}
	if err := s.technicianRepo.UpdateProfile(ctx, nil, id, patch); err != nil {
		return nil, err
	}
	return s.FindByID(ctx, id)
}

// SetAvailability - админ или сам техник. Недоступный техник не попадает в автоназначение,
// уже назначенные ему заявки остаются за ним.
func (s *technicianService) SetAvailability(ctx context.Context, id uint64, payload dto.AvailabilityDTO) (*dto.TechnicianResponseDTO, error) {
	actor, err := utils.GetActorFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	tech, err := s.technicianRepo.FindByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}

	switch actor.Role {
	case constants.RoleAdmin:
	case constants.RoleTechnician:
		if tech.UserID == nil || *tech.UserID != actor.UserID {
			return nil, apperrors.ErrForbidden
		}
	default:
		return nil, apperrors.ErrForbidden
	}

	available := strings.EqualFold(payload.Availability, constants.Yes)
	if err := s.technicianRepo.SetAvailability(ctx, nil, id, available); err != nil {
		return nil, err
	}
	tech.Availability = available
	s.logger.Info("Изменена доступность техника", zap.Uint64("technicianID", id), zap.Bool("available", available))
	res := technicianToDTO(tech)
	return &res, nil
}
