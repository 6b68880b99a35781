package dto

import "github.com/aarondl/null/v8"

type CreateRequestDTO struct {
	Title         string      `json:"title" validate:"required,notblank,min=3,max=255"`
	Category      string      `json:"category" validate:"required,notblank,max=100"`
	Description   string      `json:"description" validate:"required,min=5"`
	Location      string      `json:"location" validate:"required,notblank,max=255"`
	Urgency       string      `json:"urgency" validate:"required,urgency"`
	PreferredDate null.String `json:"preferred_date" validate:"omitempty,datetime=2006-01-02"`
	ImageRef      null.String `json:"image_ref" validate:"omitempty,max=1024"`
	ContactName   string      `json:"contact_name" validate:"required,notblank,max=255"`
	ContactEmail  string      `json:"contact_email" validate:"required,email"`
	ContactPhone  string      `json:"contact_phone" validate:"required,phone_intl"`
}

// RequestResponseDTO - заявка в том виде, в котором её ждёт фронтенд:
// флаги assigned/manually_assigned/rejected - строки "Yes"/"No".
type RequestResponseDTO struct {
	ID            uint64      `json:"id"`
	ClientID      uint64      `json:"client_id"`
	Title         string      `json:"title"`
	Category      string      `json:"category"`
	Description   string      `json:"description"`
	Location      string      `json:"location"`
	Urgency       string      `json:"urgency"`
	PreferredDate null.String `json:"preferred_date"`
	ImageRef      null.String `json:"image_ref"`
	ContactName   string      `json:"contact_name"`
	ContactEmail  string      `json:"contact_email"`
	ContactPhone  string      `json:"contact_phone"`
	Status        string      `json:"status"`

	Assigned               string      `json:"assigned"`
	AssignedTechnicianID   null.Uint64 `json:"assigned_technician_id"`
	AssignedTechnicianName null.String `json:"assigned_technician_name"`
	ManuallyAssigned       string      `json:"manually_assigned"`
	Rejected               string      `json:"rejected"`

	Rating   null.Int16  `json:"rating"`
	Feedback null.String `json:"feedback"`

	CreatedAt   string      `json:"created_at"`
	AssignedAt  null.String `json:"assigned_at"`
	AcceptedAt  null.String `json:"accepted_at"`
	CompletedAt null.String `json:"completed_at"`
	CancelledAt null.String `json:"cancelled_at"`

	// только у завершённых заявок в карточке
	Report *TaskReportResponseDTO `json:"report,omitempty"`
}

type AssignRequestDTO struct {
	TechnicianID uint64 `json:"technician_id" validate:"required,gt=0"`
}

type FeedbackDTO struct {
	Rating   int         `json:"rating" validate:"required,min=1,max=5"`
	Feedback null.String `json:"feedback" validate:"omitempty,max=2000"`
}

type SupportRequestDTO struct {
	Subject string `json:"subject" validate:"required,notblank,max=255"`
	Message string `json:"message" validate:"required,min=5,max=4000"`
}
