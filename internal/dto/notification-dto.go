package dto

import "github.com/aarondl/null/v8"

type NotificationResponseDTO struct {
	ID            uint64      `json:"id"`
	RecipientRole string      `json:"recipient_role"`
	RecipientID   null.Uint64 `json:"recipient_id"`
	Message       string      `json:"message"`
	Status        string      `json:"status"`
	CreatedAt     string      `json:"created_at"`
}
