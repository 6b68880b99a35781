package dto

// SweepResultDTO - итог одного прогона автоназначения.
type SweepResultDTO struct {
	Success     bool            `json:"success"`
	Message     string          `json:"message"`
	Assigned    int             `json:"assigned"`
	Remaining   int             `json:"remaining"`
	Assignments []AssignmentDTO `json:"assignments"`
}

type AssignmentDTO struct {
	RequestID      uint64 `json:"request_id"`
	TechnicianID   uint64 `json:"technician_id"`
	TechnicianName string `json:"technician_name"`
}
