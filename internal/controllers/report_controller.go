package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"maintenance-system/internal/entities"
	"maintenance-system/internal/services"
	"maintenance-system/pkg/constants"
	"maintenance-system/pkg/utils"
)

type ReportController struct {
	reportService services.ReportServiceInterface
	logger        *zap.Logger
}

func NewReportController(reportService services.ReportServiceInterface, logger *zap.Logger) *ReportController {
	return &ReportController{reportService: reportService, logger: logger}
}

// GetTechnicianWorkload - отчёт по загрузке техников: JSON или xlsx (format=xlsx).
func (c *ReportController) GetTechnicianWorkload(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	filter, format := c.parseFilters(ctx)
	c.logger.Debug("Запрос на отчет с фильтрами", zap.Any("filters", filter), zap.String("format", format))

	if format == "xlsx" {
		data, _, err := c.reportService.GetWorkloadForExcel(reqCtx, filter)
		if err != nil {
			return utils.ErrorResponse(ctx, err, c.logger)
		}
		return c.respondWithXLSX(ctx, data)
	}

	data, total, err := c.reportService.TechnicianWorkload(reqCtx, filter)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, data, "Отчет успешно сформирован", http.StatusOK, total)
}

func (c *ReportController) parseFilters(ctx echo.Context) (entities.WorkloadReportFilter, string) {
	stdFilter := utils.ParseFilterFromQuery(ctx.Request().URL.Query())
	filter := entities.WorkloadReportFilter{
		Page:           stdFilter.Page,
		PerPage:        stdFilter.Limit,
		Specialization: strings.TrimSpace(ctx.QueryParam("specialization")),
	}
	if v := ctx.QueryParam("available"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			filter.OnlyAvailable = b
		} else {
			filter.OnlyAvailable = strings.EqualFold(v, constants.Yes)
		}
	}
	return filter, strings.ToLower(ctx.QueryParam("format"))
}

var workloadHeaders = []string{
	"№", "ID техника", "ФИО", "Специализация", "Локация", "Доступен", "Загрузка",
	"Назначено", "В работе", "Выполнено", "Сумма оценок", "Кол-во оценок", "Средняя оценка",
}

func workloadRowToSlice(n int, item entities.WorkloadReportItem) []interface{} {
	t := item.Technician
	return []interface{}{
		n, t.TechnicianID.String(), t.Name, t.Specialization, t.Location, constants.YesNo(t.Availability), t.Workload,
		item.AssignedCount, item.InProgressCount, item.CompletedCount,
		t.RatingSum, t.NumberOfRatings, fmt.Sprintf("%.2f", t.AverageRating()),
	}
}

func (c *ReportController) respondWithXLSX(ctx echo.Context, data []entities.WorkloadReportItem) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Загрузка техников"
	f.SetSheetName("Sheet1", sheet)
	f.SetSheetRow(sheet, "A1", &workloadHeaders)
	style, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	f.SetCellStyle(sheet, "A1", "M1", style)

	for i, item := range data {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := workloadRowToSlice(i+1, item)
		f.SetSheetRow(sheet, cell, &row)
	}
	f.SetColWidth(sheet, "B", "B", 38)
	f.SetColWidth(sheet, "C", "E", 25)

	fileName := fmt.Sprintf("technicians_workload_%s.xlsx", time.Now().Format("2006-01-02"))
	ctx.Response().Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	ctx.Response().Header().Set("Content-Disposition", "attachment; filename="+fileName)
	ctx.Response().WriteHeader(http.StatusOK)
	return f.Write(ctx.Response().Writer)
}
