package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"maintenance-system/internal/entities"
	apperrors "maintenance-system/pkg/errors"
	"maintenance-system/pkg/types"
)

const technicianTable = "technicians"

var technicianColumns = []string{
	"id", "technician_id", "user_id", "name", "email", "specialization", "location",
	"availability", "workload", "rating_sum", "number_of_ratings", "version", "created_at", "updated_at",
}

var allowedTechnicianFilters = map[string]string{
	"availability":   "availability",
	"specialization": "specialization",
	"location":       "location",
}

var allowedTechnicianSortFields = map[string]bool{
	"id":                true,
	"name":              true,
	"workload":          true,
	"number_of_ratings": true,
	"created_at":        true,
}

type TechnicianRepositoryInterface interface {
	FindByID(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Technician, error)
	FindByPublicID(ctx context.Context, tx pgx.Tx, publicID uuid.UUID) (*entities.Technician, error)
	FindByUserID(ctx context.Context, tx pgx.Tx, userID uint64) (*entities.Technician, error)
	FindAvailable(ctx context.Context, tx pgx.Tx) ([]entities.Technician, error)
	GetAll(ctx context.Context, filter types.Filter) ([]entities.Technician, uint64, error)
	Create(ctx context.Context, tx pgx.Tx, t *entities.Technician) error
	UpdateProfile(ctx context.Context, tx pgx.Tx, id uint64, patch entities.TechnicianPatch) error
	SetAvailability(ctx context.Context, tx pgx.Tx, id uint64, available bool) error

	// Счётчики меняются только при совпадении версии.
	AdjustWorkload(ctx context.Context, tx pgx.Tx, id uint64, expectedVersion int64, delta int) (*entities.Technician, error)
	AddRating(ctx context.Context, tx pgx.Tx, id uint64, expectedVersion int64, stars int) (*entities.Technician, error)
}

type technicianRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewTechnicianRepository(storage *pgxpool.Pool, logger *zap.Logger) TechnicianRepositoryInterface {
	return &technicianRepository{storage: storage, logger: logger}
}

func (r *technicianRepository) getQuerier(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.storage
}

func scanTechnician(row pgx.Row) (*entities.Technician, error) {
	var t entities.Technician
	err := row.Scan(
		&t.ID, &t.TechnicianID, &t.UserID, &t.Name, &t.Email, &t.Specialization, &t.Location,
		&t.Availability, &t.Workload, &t.RatingSum, &t.NumberOfRatings, &t.Version, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования technicians: %w", err)
	}
	return &t, nil
}

func collectTechnicians(rows pgx.Rows) ([]entities.Technician, error) {
	defer rows.Close()
	result := make([]entities.Technician, 0)
	for rows.Next() {
		t, err := scanTechnician(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	return result, rows.Err()
}

func (r *technicianRepository) findOne(ctx context.Context, querier Querier, where sq.Eq) (*entities.Technician, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Select(technicianColumns...).From(technicianTable).Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки SQL для findOne: %w", err)
	}
	return scanTechnician(querier.QueryRow(ctx, query, args...))
}

func (r *technicianRepository) FindByID(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Technician, error) {
	return r.findOne(ctx, r.getQuerier(tx), sq.Eq{"id": id})
}

func (r *technicianRepository) FindByPublicID(ctx context.Context, tx pgx.Tx, publicID uuid.UUID) (*entities.Technician, error) {
	return r.findOne(ctx, r.getQuerier(tx), sq.Eq{"technician_id": publicID})
}

func (r *technicianRepository) FindByUserID(ctx context.Context, tx pgx.Tx, userID uint64) (*entities.Technician, error) {
	return r.findOne(ctx, r.getQuerier(tx), sq.Eq{"user_id": userID})
}

func availableTechniciansQuery() sq.SelectBuilder {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Select(technicianColumns...).
		From(technicianTable).
		Where(sq.Eq{"availability": true}).
		OrderBy("workload ASC", "id ASC")
}

// FindAvailable - доступные техники по возрастанию загрузки.
func (r *technicianRepository) FindAvailable(ctx context.Context, tx pgx.Tx) ([]entities.Technician, error) {
	query, args, err := availableTechniciansQuery().ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки запроса FindAvailable: %w", err)
	}
	rows, err := r.getQuerier(tx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки доступных техников: %w", err)
	}
	return collectTechnicians(rows)
}

func applyTechnicianFilter(builder sq.SelectBuilder, filter types.Filter) sq.SelectBuilder {
	if filter.Search != "" {
		builder = builder.Where(sq.Or{
			sq.ILike{"name": "%" + filter.Search + "%"},
			sq.ILike{"email": "%" + filter.Search + "%"},
		})
	}
	for key, value := range filter.Filter {
		dbColumn, ok := allowedTechnicianFilters[key]
		if !ok {
			continue
		}
		if key == "availability" {
			s := strings.ToLower(fmt.Sprint(value))
			builder = builder.Where(sq.Eq{dbColumn: s == "yes" || s == "true"})
			continue
		}
		if items, ok := value.(string); ok && strings.Contains(items, ",") {
			builder = builder.Where(sq.Eq{dbColumn: strings.Split(items, ",")})
		} else {
			builder = builder.Where(sq.Eq{dbColumn: value})
		}
	}
	return builder
}

func (r *technicianRepository) GetAll(ctx context.Context, filter types.Filter) ([]entities.Technician, uint64, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	countQuery, countArgs, err := applyTechnicianFilter(psql.Select("COUNT(id)").From(technicianTable), filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка сборки SQL count: %w", err)
	}
	var total uint64
	if err := r.storage.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка выполнения count: %w", err)
	}
	if total == 0 {
		return []entities.Technician{}, 0, nil
	}

	selectBuilder := applyTechnicianFilter(psql.Select(technicianColumns...).From(technicianTable), filter)
	sorted := false
	for field, direction := range filter.Sort {
		if allowedTechnicianSortFields[field] {
			safeDirection := "ASC"
			if strings.ToUpper(direction) == "DESC" {
				safeDirection = "DESC"
			}
			selectBuilder = selectBuilder.OrderBy(field + " " + safeDirection)
			sorted = true
		}
	}
	if !sorted {
		selectBuilder = selectBuilder.OrderBy("id ASC")
	}
	if filter.WithPagination && filter.Limit > 0 {
		selectBuilder = selectBuilder.Limit(uint64(filter.Limit)).Offset(uint64(filter.Offset))
	}

	query, args, err := selectBuilder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка сборки SQL select: %w", err)
	}
	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка выполнения select: %w", err)
	}
	list, err := collectTechnicians(rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// Create заводит техника с новым публичным uuid. Загрузка и рейтинг начинаются с нуля.
func (r *technicianRepository) Create(ctx context.Context, tx pgx.Tx, t *entities.Technician) error {
	if t.TechnicianID == uuid.Nil {
		t.TechnicianID = uuid.New()
	}
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Insert(technicianTable).
		Columns("technician_id", "user_id", "name", "email", "specialization", "location", "availability").
		Values(t.TechnicianID, t.UserID, t.Name, t.Email, t.Specialization, t.Location, t.Availability).
		Suffix("RETURNING " + strings.Join(technicianColumns, ", ")).
		ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса Create: %w", err)
	}

	created, err := scanTechnician(r.getQuerier(tx).QueryRow(ctx, query, args...))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("техник уже привязан к этому пользователю: %w", apperrors.ErrConflict)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("пользователь техника не найден: %w", apperrors.ErrNotFound)
		}
		return fmt.Errorf("ошибка создания техника: %w", err)
	}
	*t = *created
	return nil
}

func (r *technicianRepository) UpdateProfile(ctx context.Context, tx pgx.Tx, id uint64, patch entities.TechnicianPatch) error {
	return r.execUpdate(ctx, tx, buildProfileUpdate(id, patch), "UpdateProfile")
}

// buildProfileUpdate двигает version: иначе CAS по загрузке не заметит правку, сделанную во время прогона.
func buildProfileUpdate(id uint64, patch entities.TechnicianPatch) sq.UpdateBuilder {
	builder := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Update(technicianTable).
		Set("version", sq.Expr("version + 1")).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id})
	if patch.Name != nil {
		builder = builder.Set("name", *patch.Name)
	}
	if patch.Email != nil {
		builder = builder.Set("email", *patch.Email)
	}
	if patch.Specialization != nil {
		builder = builder.Set("specialization", *patch.Specialization)
	}
	if patch.Location != nil {
		builder = builder.Set("location", *patch.Location)
	}
	return builder
}

func (r *technicianRepository) SetAvailability(ctx context.Context, tx pgx.Tx, id uint64, available bool) error {
	return r.execUpdate(ctx, tx, buildAvailabilityUpdate(id, available), "SetAvailability")
}

func buildAvailabilityUpdate(id uint64, available bool) sq.UpdateBuilder {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Update(technicianTable).
		Set("availability", available).
		Set("version", sq.Expr("version + 1")).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id})
}

func (r *technicianRepository) execUpdate(ctx context.Context, tx pgx.Tx, builder sq.UpdateBuilder, op string) error {
	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса %s: %w", op, err)
	}
	result, err := r.getQuerier(tx).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ошибка обновления technicians (%s): %w", op, err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// buildWorkloadUpdate - CAS по version; ниже нуля загрузка не опускается.
// Новую задачу получает только доступный техник, снять задачу можно всегда.
func buildWorkloadUpdate(id uint64, expectedVersion int64, delta int) sq.UpdateBuilder {
	builder := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Update(technicianTable).
		Set("workload", sq.Expr("GREATEST(workload + ?, 0)", delta)).
		Set("version", sq.Expr("version + 1")).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id, "version": expectedVersion})
	if delta > 0 {
		builder = builder.Where(sq.Eq{"availability": true})
	}
	return builder.Suffix("RETURNING " + strings.Join(technicianColumns, ", "))
}

func buildRatingUpdate(id uint64, expectedVersion int64, stars int) sq.UpdateBuilder {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Update(technicianTable).
		Set("rating_sum", sq.Expr("rating_sum + ?", stars)).
		Set("number_of_ratings", sq.Expr("number_of_ratings + 1")).
		Set("version", sq.Expr("version + 1")).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id, "version": expectedVersion}).
		Suffix("RETURNING " + strings.Join(technicianColumns, ", "))
}

func (r *technicianRepository) AdjustWorkload(ctx context.Context, tx pgx.Tx, id uint64, expectedVersion int64, delta int) (*entities.Technician, error) {
	return r.casUpdate(ctx, tx, id, buildWorkloadUpdate(id, expectedVersion, delta))
}

func (r *technicianRepository) AddRating(ctx context.Context, tx pgx.Tx, id uint64, expectedVersion int64, stars int) (*entities.Technician, error) {
	return r.casUpdate(ctx, tx, id, buildRatingUpdate(id, expectedVersion, stars))
}

// casUpdate: 0 строк означает либо удалённого техника (ErrNotFound), либо сдвинувшуюся версию или снятую доступность (ErrConflict).
func (r *technicianRepository) casUpdate(ctx context.Context, tx pgx.Tx, id uint64, builder sq.UpdateBuilder) (*entities.Technician, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки CAS-запроса: %w", err)
	}
	querier := r.getQuerier(tx)
	updated, err := scanTechnician(querier.QueryRow(ctx, query, args...))
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	var exists bool
	if err := querier.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM technicians WHERE id = $1)", id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("ошибка проверки техника %d: %w", id, err)
	}
	if !exists {
		return nil, fmt.Errorf("техник %d: %w", id, apperrors.ErrNotFound)
	}
	return nil, fmt.Errorf("версия техника %d изменилась: %w", id, apperrors.ErrConflict)
}
