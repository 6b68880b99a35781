// Package workflow описывает жизненный цикл заявки как конечный автомат
// и алгоритм жадного подбора техников. Пакет не ходит в БД.
package workflow

import (
	"errors"
	"fmt"

	"maintenance-system/internal/entities"
	"maintenance-system/pkg/constants"
)

var ErrIllegalTransition = errors.New("недопустимый переход статуса заявки")

type State int

const (
	StateUnknown State = iota
	StatePendingUnassigned
	StatePendingAssigned
	StateInProgress
	StateCompleted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePendingUnassigned:
		return "Pending-Unassigned"
	case StatePendingAssigned:
		return "Pending-Assigned"
	case StateInProgress:
		return "In Progress"
	case StateCompleted:
		return "Completed"
	case StateCancelled:
		return "Cancelled"
	}
	return "Unknown"
}

// Status - значение колонки status для состояния.
func (s State) Status() constants.RequestStatus {
	switch s {
	case StateInProgress:
		return constants.RequestStatusInProgress
	case StateCompleted:
		return constants.RequestStatusCompleted
	case StateCancelled:
		return constants.RequestStatusCancelled
	}
	return constants.RequestStatusPending
}

type Action string

const (
	ActionAssign   Action = "assign"
	ActionAccept   Action = "accept"
	ActionReject   Action = "reject"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
	ActionRate     Action = "rate"
)

var transitions = map[State]map[Action]State{
	StatePendingUnassigned: {
		ActionAssign: StatePendingAssigned,
		ActionCancel: StateCancelled,
	},
	StatePendingAssigned: {
		ActionAssign: StatePendingAssigned, // ручное переназначение
		ActionAccept: StateInProgress,
		ActionReject: StatePendingUnassigned,
		ActionCancel: StateCancelled,
	},
	StateInProgress: {
		ActionComplete: StateCompleted,
	},
	StateCompleted: {
		ActionRate: StateCompleted,
	},
}

// StateOf выводит состояние автомата из полей заявки.
func StateOf(r *entities.Request) State {
	switch r.Status {
	case constants.RequestStatusPending:
		if r.IsAssigned() {
			return StatePendingAssigned
		}
		return StatePendingUnassigned
	case constants.RequestStatusInProgress:
		return StateInProgress
	case constants.RequestStatusCompleted:
		return StateCompleted
	case constants.RequestStatusCancelled:
		return StateCancelled
	}
	return StateUnknown
}

// Transition возвращает новое состояние или ErrIllegalTransition.
func Transition(from State, action Action) (State, error) {
	if next, ok := transitions[from][action]; ok {
		return next, nil
	}
	return StateUnknown, fmt.Errorf("%w: %s из состояния %s", ErrIllegalTransition, action, from)
}

// Guard проверяет переход для конкретной заявки.
func Guard(r *entities.Request, action Action) (State, error) {
	return Transition(StateOf(r), action)
}

// EligibleForSweep - заявка попадает в автоназначение: ждёт, не назначена и не была отклонена.
func EligibleForSweep(r *entities.Request) bool {
	return StateOf(r) == StatePendingUnassigned && !r.Rejected
}

// CanRate - оценку можно поставить один раз и только после завершения.
func CanRate(r *entities.Request) error {
	if _, err := Guard(r, ActionRate); err != nil {
		return fmt.Errorf("%w: оценка доступна только для выполненной заявки", ErrIllegalTransition)
	}
	if r.Rating.Valid {
		return fmt.Errorf("%w: заявка уже оценена", ErrIllegalTransition)
	}
	return nil
}

// ClampWorkload не даёт счётчику загрузки уйти ниже нуля.
func ClampWorkload(current, delta int) int {
	next := current + delta
	if next < 0 {
		return 0
	}
	return next
}
