// Файл: internal/entities/user-entity.go
package entities

import (
	"time"

	"maintenance-system/pkg/constants"
)

type User struct {
	ID        uint64         `json:"id" db:"id"`
	FullName  string         `json:"full_name" db:"full_name"`
	Email     string         `json:"email" db:"email"`
	Phone     *string        `json:"phone,omitempty" db:"phone"`
	Role      constants.Role `json:"role" db:"role"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}
