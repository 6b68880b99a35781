package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"maintenance-system/internal/entities"
	"maintenance-system/pkg/constants"
	apperrors "maintenance-system/pkg/errors"
	"maintenance-system/pkg/types"
)

const requestTable = "requests"

var requestColumns = []string{
	"id", "client_id", "title", "category", "description", "location", "urgency",
	"preferred_date", "image_ref", "contact_name", "contact_email", "contact_phone",
	"status", "assigned_technician_id", "assigned_technician_name", "manually_assigned", "rejected",
	"rating", "feedback", "created_at", "updated_at", "assigned_at", "accepted_at", "completed_at", "cancelled_at",
}

// allowedRequestFilters - белый список фильтров
var allowedRequestFilters = map[string]string{
	"status":                 "status",
	"urgency":                "urgency",
	"category":               "category",
	"client_id":              "client_id",
	"assigned_technician_id": "assigned_technician_id",
	"manually_assigned":      "manually_assigned",
	"rejected":               "rejected",
}

var allowedRequestSortFields = map[string]bool{
	"id":             true,
	"created_at":     true,
	"updated_at":     true,
	"urgency":        true,
	"status":         true,
	"preferred_date": true,
}

type RequestRepositoryInterface interface {
	Create(ctx context.Context, tx pgx.Tx, r *entities.Request) error
	FindByID(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Request, error)
	FindForUpdate(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Request, error)
	FindEligibleForAssignment(ctx context.Context, tx pgx.Tx) ([]entities.Request, error)
	FindByTechnician(ctx context.Context, technicianID uint64, statuses []constants.RequestStatus) ([]entities.Request, error)
	GetAll(ctx context.Context, filter types.Filter) ([]entities.Request, uint64, error)
	Update(ctx context.Context, tx pgx.Tx, id uint64, guard entities.RequestGuard, patch entities.RequestPatch) error
	SetRating(ctx context.Context, tx pgx.Tx, id uint64, stars int, feedback *string) error
}

type requestRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewRequestRepository(storage *pgxpool.Pool, logger *zap.Logger) RequestRepositoryInterface {
	return &requestRepository{storage: storage, logger: logger}
}

func (r *requestRepository) getQuerier(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.storage
}

func scanRequest(row pgx.Row) (*entities.Request, error) {
	var req entities.Request
	err := row.Scan(
		&req.ID, &req.ClientID, &req.Title, &req.Category, &req.Description, &req.Location, &req.Urgency,
		&req.PreferredDate, &req.ImageRef, &req.ContactName, &req.ContactEmail, &req.ContactPhone,
		&req.Status, &req.AssignedTechnicianID, &req.AssignedTechnicianName, &req.ManuallyAssigned, &req.Rejected,
		&req.Rating, &req.Feedback, &req.CreatedAt, &req.UpdatedAt,
		&req.AssignedAt, &req.AcceptedAt, &req.CompletedAt, &req.CancelledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования requests: %w", err)
	}
	return &req, nil
}

func collectRequests(rows pgx.Rows) ([]entities.Request, error) {
	defer rows.Close()
	result := make([]entities.Request, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *req)
	}
	return result, rows.Err()
}

func (r *requestRepository) Create(ctx context.Context, tx pgx.Tx, req *entities.Request) error {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Insert(requestTable).
		Columns("client_id", "title", "category", "description", "location", "urgency",
			"preferred_date", "image_ref", "contact_name", "contact_email", "contact_phone", "status").
		Values(req.ClientID, req.Title, req.Category, req.Description, req.Location, req.Urgency,
			req.PreferredDate, req.ImageRef, req.ContactName, req.ContactEmail, req.ContactPhone,
			constants.RequestStatusPending).
		Suffix("RETURNING " + strings.Join(requestColumns, ", ")).
		ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса Create: %w", err)
	}

	created, err := scanRequest(r.getQuerier(tx).QueryRow(ctx, query, args...))
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("клиент заявки не найден: %w", apperrors.ErrNotFound)
		}
		return fmt.Errorf("ошибка создания заявки: %w", err)
	}
	*req = *created
	return nil
}

func (r *requestRepository) FindByID(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Request, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Select(requestColumns...).From(requestTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки запроса FindByID: %w", err)
	}
	return scanRequest(r.getQuerier(tx).QueryRow(ctx, query, args...))
}

// FindForUpdate блокирует строку заявки до конца транзакции.
func (r *requestRepository) FindForUpdate(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Request, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Select(requestColumns...).From(requestTable).
		Where(sq.Eq{"id": id}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки запроса FindForUpdate: %w", err)
	}
	return scanRequest(r.getQuerier(tx).QueryRow(ctx, query, args...))
}

func eligibleRequestsQuery() sq.SelectBuilder {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Select(requestColumns...).
		From(requestTable).
		Where(sq.Eq{
			"status":                 constants.RequestStatusPending,
			"assigned_technician_id": nil,
			"rejected":               false,
		}).
		OrderBy("id")
}

// FindEligibleForAssignment - пул автоназначения: Pending, без техника, не отклонённые.
// Строки не блокируются: каждую пару потом подтверждает условный UPDATE.
func (r *requestRepository) FindEligibleForAssignment(ctx context.Context, tx pgx.Tx) ([]entities.Request, error) {
	query, args, err := eligibleRequestsQuery().ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки запроса FindEligibleForAssignment: %w", err)
	}
	rows, err := r.getQuerier(tx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки заявок для назначения: %w", err)
	}
	return collectRequests(rows)
}

func (r *requestRepository) FindByTechnician(ctx context.Context, technicianID uint64, statuses []constants.RequestStatus) ([]entities.Request, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	builder := psql.Select(requestColumns...).From(requestTable).
		Where(sq.Eq{"assigned_technician_id": technicianID}).
		OrderBy("assigned_at DESC NULLS LAST", "id DESC")
	if len(statuses) > 0 {
		builder = builder.Where(sq.Eq{"status": statuses})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки запроса FindByTechnician: %w", err)
	}
	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки задач техника: %w", err)
	}
	return collectRequests(rows)
}

func applyRequestFilter(builder sq.SelectBuilder, filter types.Filter) sq.SelectBuilder {
	if filter.Search != "" {
		builder = builder.Where(sq.Or{
			sq.ILike{"title": "%" + filter.Search + "%"},
			sq.ILike{"description": "%" + filter.Search + "%"},
		})
	}
	for key, value := range filter.Filter {
		if key == "assigned" {
			switch strings.ToLower(fmt.Sprint(value)) {
			case "yes", "true":
				builder = builder.Where(sq.NotEq{"assigned_technician_id": nil})
			case "no", "false":
				builder = builder.Where(sq.Eq{"assigned_technician_id": nil})
			}
			continue
		}
		dbColumn, ok := allowedRequestFilters[key]
		if !ok {
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

func (r *requestRepository) GetAll(ctx context.Context, filter types.Filter) ([]entities.Request, uint64, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	countQuery, countArgs, err := applyRequestFilter(psql.Select("COUNT(id)").From(requestTable), filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка сборки SQL count: %w", err)
	}
	var total uint64
	if err := r.storage.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка выполнения count: %w", err)
	}
	if total == 0 {
		return []entities.Request{}, 0, nil
	}

	selectBuilder := applyRequestFilter(psql.Select(requestColumns...).From(requestTable), filter)
	sorted := false
	for field, direction := range filter.Sort {
		if allowedRequestSortFields[field] {
			safeDirection := "ASC"
			if strings.ToUpper(direction) == "DESC" {
				safeDirection = "DESC"
			}
			selectBuilder = selectBuilder.OrderBy(field + " " + safeDirection)
			sorted = true
		}
	}
	if !sorted {
		selectBuilder = selectBuilder.OrderBy("created_at DESC", "id DESC")
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
	list, err := collectRequests(rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// buildRequestUpdate собирает условный UPDATE: условия guard попадают в WHERE,
// поэтому изменение, сделанное параллельно, даёт 0 строк, а не перезапись.
func buildRequestUpdate(id uint64, guard entities.RequestGuard, patch entities.RequestPatch) sq.UpdateBuilder {
	builder := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Update(requestTable).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id})

	if patch.Status != nil {
		builder = builder.Set("status", *patch.Status)
	}
	if a := patch.Assignment; a != nil {
		if a.TechnicianID != nil {
			builder = builder.
				Set("assigned_technician_id", *a.TechnicianID).
				Set("assigned_technician_name", a.TechnicianName).
				Set("assigned_at", a.At)
		} else {
			builder = builder.
				Set("assigned_technician_id", nil).
				Set("assigned_technician_name", nil).
				Set("assigned_at", nil)
		}
	}
	if patch.ManuallyAssigned != nil {
		builder = builder.Set("manually_assigned", *patch.ManuallyAssigned)
	}
	if patch.Rejected != nil {
		builder = builder.Set("rejected", *patch.Rejected)
	}
	if patch.AcceptedAt != nil {
		builder = builder.Set("accepted_at", *patch.AcceptedAt)
	}
	if patch.CompletedAt != nil {
		builder = builder.Set("completed_at", *patch.CompletedAt)
	}
	if patch.CancelledAt != nil {
		builder = builder.Set("cancelled_at", *patch.CancelledAt)
	}

	if guard.Status != "" {
		builder = builder.Where(sq.Eq{"status": guard.Status})
	}
	if guard.AssignedTechnician != nil {
		builder = builder.Where(sq.Eq{"assigned_technician_id": *guard.AssignedTechnician})
	}
	if guard.Unassigned {
		builder = builder.Where(sq.Eq{"assigned_technician_id": nil})
	}
	if guard.NotRejected {
		builder = builder.Where(sq.Eq{"rejected": false})
	}
	return builder
}

// Update применяет patch, если строка всё ещё удовлетворяет guard. Иначе ErrConflict.
func (r *requestRepository) Update(ctx context.Context, tx pgx.Tx, id uint64, guard entities.RequestGuard, patch entities.RequestPatch) error {
	query, args, err := buildRequestUpdate(id, guard, patch).ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса Update: %w", err)
	}
	querier := r.getQuerier(tx)
	result, err := querier.Exec(ctx, query, args...)
	if err != nil {
		if isForeignKeyViolation(err) {
			// ErrNotFound оставлен для HTTP-ответа, ErrTechnicianNotFound отличает техника от самой заявки
			return fmt.Errorf("заявка %d: %w: %w", id, apperrors.ErrTechnicianNotFound, apperrors.ErrNotFound)
		}
		return fmt.Errorf("ошибка обновления заявки %d: %w", id, err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := querier.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM requests WHERE id = $1)", id).Scan(&exists); err != nil {
		return fmt.Errorf("ошибка проверки заявки %d: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("заявка %d: %w", id, apperrors.ErrNotFound)
	}
	return fmt.Errorf("заявка %d изменена параллельно: %w", id, apperrors.ErrConflict)
}

// SetRating ставит оценку один раз: только выполненной и ещё не оценённой заявке.
func (r *requestRepository) SetRating(ctx context.Context, tx pgx.Tx, id uint64, stars int, feedback *string) error {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Update(requestTable).
		Set("rating", stars).
		Set("feedback", feedback).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id, "status": constants.RequestStatusCompleted, "rating": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса SetRating: %w", err)
	}
	result, err := r.getQuerier(tx).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ошибка сохранения оценки: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("заявка %d уже оценена или не выполнена: %w", id, apperrors.ErrConflict)
	}
	return nil
}
