package entities

import (
	"database/sql"
	"time"

	"maintenance-system/pkg/constants"
)

// Request - заявка клиента о неисправности.
type Request struct {
	ID          uint64            `db:"id"`
	ClientID    uint64            `db:"client_id"`
	Title       string            `db:"title"`
	Category    string            `db:"category"`
	Description string            `db:"description"`
	Location    string            `db:"location"`
	Urgency     constants.Urgency `db:"urgency"`

	PreferredDate sql.NullTime   `db:"preferred_date"`
	ImageRef      sql.NullString `db:"image_ref"`

	ContactName  string `db:"contact_name"`
	ContactEmail string `db:"contact_email"`
	ContactPhone string `db:"contact_phone"`

	Status constants.RequestStatus `db:"status"`

	AssignedTechnicianID   *uint64        `db:"assigned_technician_id"`
	AssignedTechnicianName sql.NullString `db:"assigned_technician_name"`
	ManuallyAssigned       bool           `db:"manually_assigned"`
	Rejected               bool           `db:"rejected"`

	Rating   sql.NullInt16  `db:"rating"`
	Feedback sql.NullString `db:"feedback"`

	CreatedAt   time.Time    `db:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at"`
	AssignedAt  sql.NullTime `db:"assigned_at"`
	AcceptedAt  sql.NullTime `db:"accepted_at"`
	CompletedAt sql.NullTime `db:"completed_at"`
	CancelledAt sql.NullTime `db:"cancelled_at"`
}

// IsAssigned - на проводе это поле "assigned": Yes/No.
func (r Request) IsAssigned() bool {
	return r.AssignedTechnicianID != nil
}

// IsAssignedTo проверяет, что заявка назначена именно этому технику.
func (r Request) IsAssignedTo(technicianID uint64) bool {
	return r.AssignedTechnicianID != nil && *r.AssignedTechnicianID == technicianID
}

// RequestPatch - набор изменяемых полей заявки. nil означает "не трогать".
type RequestPatch struct {
	Status           *constants.RequestStatus
	Assignment       *AssignmentChange
	ManuallyAssigned *bool
	Rejected         *bool
	AcceptedAt       *time.Time
	CompletedAt      *time.Time
	CancelledAt      *time.Time
}

// AssignmentChange задаёт нового техника; TechnicianID == nil снимает назначение.
type AssignmentChange struct {
	TechnicianID   *uint64
	TechnicianName string
	At             time.Time
}

// RequestGuard - условия, при которых обновление допустимо (проверяется в WHERE).
type RequestGuard struct {
	Status             constants.RequestStatus
	AssignedTechnician *uint64
	Unassigned         bool
	NotRejected        bool
}
