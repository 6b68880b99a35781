package entities

import (
	"time"

	"github.com/google/uuid"
)

// Technician - исполнитель. Workload и рейтинг обновляются только условными запросами по Version.
type Technician struct {
	ID              uint64    `db:"id"`
	TechnicianID    uuid.UUID `db:"technician_id"`
	UserID          *uint64   `db:"user_id"`
	Name            string    `db:"name"`
	Email           string    `db:"email"`
	Specialization  string    `db:"specialization"`
	Location        string    `db:"location"`
	Availability    bool      `db:"availability"`
	Workload        int       `db:"workload"`
	RatingSum       float64   `db:"rating_sum"`
	NumberOfRatings int       `db:"number_of_ratings"`
	Version         int64     `db:"version"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// AverageRating - среднее по сумме и количеству оценок. Хранится именно сумма.
func (t *Technician) AverageRating() float64 {
	if t.NumberOfRatings == 0 {
		return 0
	}
	return t.RatingSum / float64(t.NumberOfRatings)
}

type TechnicianPatch struct {
	Name           *string
	Email          *string
	Specialization *string
	Location       *string
}
