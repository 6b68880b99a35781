package constants

// RequestStatus - значение колонки requests.status. Значения совпадают с тем,
// что уже хранится в БД и отдаётся фронтенду, поэтому регистр разный.
type RequestStatus string

const (
	RequestStatusPending    RequestStatus = "Pending"
	RequestStatusInProgress RequestStatus = "In Progress"
	RequestStatusCompleted  RequestStatus = "completed"
	RequestStatusCancelled  RequestStatus = "Cancelled"
)

func (s RequestStatus) String() string { return string(s) }

// IsValid проверяет, что статус входит в известный набор.
func (s RequestStatus) IsValid() bool {
	switch s {
	case RequestStatusPending, RequestStatusInProgress, RequestStatusCompleted, RequestStatusCancelled:
		return true
	}
	return false
}

// Финальные статусы
var FinalStatuses = []RequestStatus{
	RequestStatusCompleted,
	RequestStatusCancelled,
}

func IsFinalStatus(s RequestStatus) bool {
	for _, f := range FinalStatuses {
		if f == s {
			return true
		}
	}
	return false
}

// Urgency - срочность заявки.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

func (u Urgency) IsValid() bool {
	return u == UrgencyLow || u == UrgencyMedium || u == UrgencyHigh
}

// Значения флагов "да/нет" на границе API.
const (
	Yes = "Yes"
	No  = "No"
)

// YesNo переводит bool в строковый флаг API.
func YesNo(v bool) string {
	if v {
		return Yes
	}
	return No
}
