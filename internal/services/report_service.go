package services

import (
	"context"

	"go.uber.org/zap"

	"maintenance-system/internal/dto"
	"maintenance-system/internal/entities"
	"maintenance-system/internal/repositories"
)

type ReportServiceInterface interface {
	GetWorkloadForExcel(ctx context.Context, filter entities.WorkloadReportFilter) ([]entities.WorkloadReportItem, uint64, error)
	TechnicianWorkload(ctx context.Context, filter entities.WorkloadReportFilter) ([]dto.WorkloadReportItemDTO, uint64, error)
}

type reportService struct {
	reportRepo repositories.ReportRepositoryInterface
	logger     *zap.Logger
}

func NewReportService(reportRepo repositories.ReportRepositoryInterface, logger *zap.Logger) ReportServiceInterface {
	return &reportService{reportRepo: reportRepo, logger: logger}
}

func (s *reportService) getWorkload(ctx context.Context, filter entities.WorkloadReportFilter) ([]entities.WorkloadReportItem, uint64, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, 0, err
	}
	return s.reportRepo.TechnicianWorkload(ctx, filter)
}

func (s *reportService) GetWorkloadForExcel(ctx context.Context, filter entities.WorkloadReportFilter) ([]entities.WorkloadReportItem, uint64, error) {
	// для выгрузки берём всё, без страниц
	filter.PerPage = 0
	return s.getWorkload(ctx, filter)
}

func (s *reportService) TechnicianWorkload(ctx context.Context, filter entities.WorkloadReportFilter) ([]dto.WorkloadReportItemDTO, uint64, error) {
	items, total, err := s.getWorkload(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	out := make([]dto.WorkloadReportItemDTO, 0, len(items))
	for i := range items {
		out = append(out, workloadItemToDTO(&items[i]))
	}
	return out, total, nil
}
