package dto

type RejectTaskDTO struct {
	Reason string `json:"reason" validate:"omitempty,max=1000"`
}

// TaskReportDTO - отчёт техника, без него заявку завершить нельзя.
type TaskReportDTO struct {
	ToolsUsed        string `json:"tools_used" validate:"required,notblank"`
	PartsUsed        string `json:"parts_used" validate:"omitempty,max=2000"`
	TimeTakenMinutes int    `json:"time_taken_minutes" validate:"required,gt=0"`
	Success          *bool  `json:"success" validate:"required"`
	Remarks          string `json:"remarks" validate:"omitempty,max=4000"`
}

type TaskReportResponseDTO struct {
	ID               uint64 `json:"id"`
	RequestID        uint64 `json:"request_id"`
	TechnicianID     uint64 `json:"technician_id"`
	ToolsUsed        string `json:"tools_used"`
	PartsUsed        string `json:"parts_used"`
	TimeTakenMinutes int    `json:"time_taken_minutes"`
	Success          string `json:"success"`
	Remarks          string `json:"remarks"`
	CreatedAt        string `json:"created_at"`
}

// CompleteTaskResponseDTO - заявка после завершения вместе с сохранённым отчётом.
type CompleteTaskResponseDTO struct {
	Request RequestResponseDTO    `json:"request"`
	Report  TaskReportResponseDTO `json:"report"`
}
