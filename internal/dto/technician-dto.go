package dto

import "github.com/aarondl/null/v8"

type CreateTechnicianDTO struct {
	UserID         null.Uint64 `json:"user_id"`
	Name           string      `json:"name" validate:"required,notblank,max=255"`
	Email          string      `json:"email" validate:"required,email"`
	Specialization string      `json:"specialization" validate:"required,notblank,max=100"`
	Location       string      `json:"location" validate:"required,notblank,max=255"`
	Availability   string      `json:"availability" validate:"omitempty,yesno"`
}

type UpdateTechnicianDTO struct {
	Name           *string `json:"name,omitempty" validate:"omitempty,notblank,max=255"`
	Email          *string `json:"email,omitempty" validate:"omitempty,email"`
	Specialization *string `json:"specialization,omitempty" validate:"omitempty,notblank,max=100"`
	Location       *string `json:"location,omitempty" validate:"omitempty,notblank,max=255"`
}

type AvailabilityDTO struct {
	Availability string `json:"availability" validate:"required,yesno"`
}

// TechnicianResponseDTO. Rating - накопленная сумма оценок, среднее отдаётся отдельно.
type TechnicianResponseDTO struct {
	ID              uint64      `json:"id"`
	TechnicianID    string      `json:"technician_id"`
	UserID          null.Uint64 `json:"user_id"`
	Name            string      `json:"name"`
	Email           string      `json:"email"`
	Specialization  string      `json:"specialization"`
	Location        string      `json:"location"`
	Availability    string      `json:"availability"`
	Workload        int         `json:"workload"`
	Rating          float64     `json:"rating"`
	NumberOfRatings int         `json:"number_of_ratings"`
	AverageRating   float64     `json:"average_rating"`
	CreatedAt       string      `json:"created_at"`
	UpdatedAt       string      `json:"updated_at"`
}
