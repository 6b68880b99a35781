package constants

// Role - роль пользователя. Для уведомлений это же значение служит адресатом.
type Role string

const (
	RoleClient     Role = "client"
	RoleTechnician Role = "technician"
	RoleAdmin      Role = "admin"
)

func (r Role) IsValid() bool {
	return r == RoleClient || r == RoleTechnician || r == RoleAdmin
}

// NotificationStatus - статус уведомления, единственное изменяемое поле.
type NotificationStatus string

const (
	NotificationUnread NotificationStatus = "unread"
	NotificationRead   NotificationStatus = "read"
)

//============== CACHE KEYS ==============

const (
	// Блокировка одного прогона автоназначения на все инстансы.
	// Значение - уникальный токен владельца блокировки.
	CacheKeyAssignmentSweepLock = "assignment:sweep:lock"
)
