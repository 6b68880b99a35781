package entities

import (
	"time"

	"maintenance-system/pkg/constants"
)

// Notification - сообщение для роли и (необязательно) конкретного получателя.
// RecipientID == nil у сообщений на общий админский канал.
type Notification struct {
	ID            uint64                       `db:"id"`
	RecipientRole constants.Role               `db:"recipient_role"`
	RecipientID   *uint64                      `db:"recipient_id"`
	Message       string                       `db:"message"`
	Status        constants.NotificationStatus `db:"status"`
	CreatedAt     time.Time                    `db:"created_at"`
}
