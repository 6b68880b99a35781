package repositories

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"maintenance-system/internal/entities"
	"maintenance-system/pkg/constants"
)

type ReportRepositoryInterface interface {
	TechnicianWorkload(ctx context.Context, filter entities.WorkloadReportFilter) ([]entities.WorkloadReportItem, uint64, error)
}

type reportRepository struct {
	db *pgxpool.Pool
}

func NewReportRepository(db *pgxpool.Pool) ReportRepositoryInterface {
	return &reportRepository{db: db}
}

func workloadReportBase(filter entities.WorkloadReportFilter) sq.SelectBuilder {
	base := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).Select().From("technicians t")
	if filter.OnlyAvailable {
		base = base.Where(sq.Eq{"t.availability": true})
	}
	if filter.Specialization != "" {
		base = base.Where(sq.Eq{"t.specialization": filter.Specialization})
	}
	return base
}

func (r *reportRepository) TechnicianWorkload(ctx context.Context, filter entities.WorkloadReportFilter) ([]entities.WorkloadReportItem, uint64, error) {
	countQuery, countArgs, err := workloadReportBase(filter).Columns("COUNT(t.id)").ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка сборки COUNT-запроса: %w", err)
	}
	var totalCount uint64
	if err = r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("ошибка выполнения COUNT-запроса: %w", err)
	}
	if totalCount == 0 {
		return []entities.WorkloadReportItem{}, 0, nil
	}

	mainBuilder := workloadReportBase(filter).
		Columns(
			"t.id", "t.technician_id", "t.user_id", "t.name", "t.email", "t.specialization", "t.location",
			"t.availability", "t.workload", "t.rating_sum", "t.number_of_ratings", "t.version", "t.created_at", "t.updated_at",
		).
		Column(sq.Expr("COUNT(r.id) FILTER (WHERE r.status = ?)", constants.RequestStatusPending)).
		Column(sq.Expr("COUNT(r.id) FILTER (WHERE r.status = ?)", constants.RequestStatusInProgress)).
		Column(sq.Expr("COUNT(r.id) FILTER (WHERE r.status = ?)", constants.RequestStatusCompleted)).
		LeftJoin("requests r ON r.assigned_technician_id = t.id").
		GroupBy("t.id").
		OrderBy("t.workload DESC", "t.id ASC")

	if filter.PerPage > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		mainBuilder = mainBuilder.Limit(uint64(filter.PerPage)).Offset(uint64((page - 1) * filter.PerPage))
	}

	query, args, err := mainBuilder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка сборки SELECT-запроса отчёта: %w", err)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка выполнения SELECT-запроса отчёта: %w", err)
	}
	defer rows.Close()

	items := make([]entities.WorkloadReportItem, 0)
	for rows.Next() {
		var item entities.WorkloadReportItem
		t := &item.Technician
		if err := rows.Scan(
			&t.ID, &t.TechnicianID, &t.UserID, &t.Name, &t.Email, &t.Specialization, &t.Location,
			&t.Availability, &t.Workload, &t.RatingSum, &t.NumberOfRatings, &t.Version, &t.CreatedAt, &t.UpdatedAt,
			&item.AssignedCount, &item.InProgressCount, &item.CompletedCount,
		); err != nil {
			return nil, 0, fmt.Errorf("ошибка сканирования строки отчёта: %w", err)
		}
		items = append(items, item)
	}
	return items, totalCount, rows.Err()
}
