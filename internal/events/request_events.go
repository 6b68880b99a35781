package events

import (
	"time"

	"github.com/google/uuid"

	"maintenance-system/internal/entities"
)

const (
	RequestAssigned  = "request.assigned"
	RequestAccepted  = "request.accepted"
	RequestRejected  = "request.rejected"
	RequestCompleted = "request.completed"
	RequestCancelled = "request.cancelled"
	RequestRated     = "request.rated"
	SupportRequested = "support.requested"
)

// RequestEvent публикуется после коммита перехода. Request - состояние заявки после перехода,
// Technician - техник, которого переход затронул (может быть nil).
type RequestEvent struct {
	ID                 uuid.UUID
	Kind               string
	Request            entities.Request
	Technician         *entities.Technician
	PreviousTechnician *entities.Technician
	ManuallyAssigned   bool
	Reason             string
	OccurredAt         time.Time
}

func NewRequestEvent(kind string, req entities.Request, tech *entities.Technician) RequestEvent {
	return RequestEvent{
		ID:         uuid.New(),
		Kind:       kind,
		Request:    req,
		Technician: tech,
		OccurredAt: time.Now(),
	}
}

// Name - реализуем интерфейс eventbus.Event
func (e RequestEvent) Name() string {
	return e.Kind
}

type SupportRequestedEvent struct {
	ID          uuid.UUID
	ClientID    uint64
	ClientEmail string
	Subject     string
	Message     string
}

func (e SupportRequestedEvent) Name() string {
	return SupportRequested
}
