package entities

import "time"

// TaskReport - отчёт техника о выполненной работе, сохраняется вместе с переходом в completed.
type TaskReport struct {
	ID               uint64    `db:"id"`
	RequestID        uint64    `db:"request_id"`
	TechnicianID     uint64    `db:"technician_id"`
	ToolsUsed        string    `db:"tools_used"`
	PartsUsed        string    `db:"parts_used"`
	TimeTakenMinutes int       `db:"time_taken_minutes"`
	Success          bool      `db:"success"`
	Remarks          string    `db:"remarks"`
	CreatedAt        time.Time `db:"created_at"`
}
