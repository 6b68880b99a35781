package workflow

import (
	"database/sql"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maintenance-system/internal/entities"
	"maintenance-system/pkg/constants"
)

func ptr(v uint64) *uint64 { return &v }

func TestStateOf(t *testing.T) {
	cases := []struct {
		name string
		req  entities.Request
		want State
	}{
		{"новая", entities.Request{Status: constants.RequestStatusPending}, StatePendingUnassigned},
		{"назначенная", entities.Request{Status: constants.RequestStatusPending, AssignedTechnicianID: ptr(7)}, StatePendingAssigned},
		{"в работе", entities.Request{Status: constants.RequestStatusInProgress, AssignedTechnicianID: ptr(7)}, StateInProgress},
		{"выполнена", entities.Request{Status: constants.RequestStatusCompleted}, StateCompleted},
		{"отменена", entities.Request{Status: constants.RequestStatusCancelled}, StateCancelled},
		{"мусор", entities.Request{Status: "???"}, StateUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StateOf(&tc.req))
		})
	}
}

func TestTransition_Table(t *testing.T) {
	allowed := map[State]map[Action]State{
		StatePendingUnassigned: {ActionAssign: StatePendingAssigned, ActionCancel: StateCancelled},
		StatePendingAssigned: {
			ActionAssign: StatePendingAssigned, ActionAccept: StateInProgress,
			ActionReject: StatePendingUnassigned, ActionCancel: StateCancelled,
		},
		StateInProgress: {ActionComplete: StateCompleted},
		StateCompleted:  {ActionRate: StateCompleted},
	}
	states := []State{StateUnknown, StatePendingUnassigned, StatePendingAssigned, StateInProgress, StateCompleted, StateCancelled}
	actions := []Action{ActionAssign, ActionAccept, ActionReject, ActionComplete, ActionCancel, ActionRate}

	for _, from := range states {
		for _, action := range actions {
			next, err := Transition(from, action)
			want, ok := allowed[from][action]
			if ok {
				require.NoError(t, err, "%s -> %s", from, action)
				assert.Equal(t, want, next)
			} else {
				assert.ErrorIs(t, err, ErrIllegalTransition, "%s -> %s", from, action)
			}
		}
	}
}

func TestGuard_DoubleAcceptRejected(t *testing.T) {
	req := entities.Request{Status: constants.RequestStatusInProgress, AssignedTechnicianID: ptr(1)}
	_, err := Guard(&req, ActionAccept)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	req.Status = constants.RequestStatusCompleted
	_, err = Guard(&req, ActionComplete)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestEligibleForSweep(t *testing.T) {
	assert.True(t, EligibleForSweep(&entities.Request{Status: constants.RequestStatusPending}))
	assert.False(t, EligibleForSweep(&entities.Request{Status: constants.RequestStatusPending, Rejected: true}))
	assert.False(t, EligibleForSweep(&entities.Request{Status: constants.RequestStatusPending, AssignedTechnicianID: ptr(3)}))
	assert.False(t, EligibleForSweep(&entities.Request{Status: constants.RequestStatusCancelled}))
}

func TestCanRate(t *testing.T) {
	completed := entities.Request{Status: constants.RequestStatusCompleted}
	assert.NoError(t, CanRate(&completed))

	rated := entities.Request{Status: constants.RequestStatusCompleted, Rating: sql.NullInt16{Int16: 4, Valid: true}}
	assert.ErrorIs(t, CanRate(&rated), ErrIllegalTransition)

	inProgress := entities.Request{Status: constants.RequestStatusInProgress}
	assert.ErrorIs(t, CanRate(&inProgress), ErrIllegalTransition)
}

func TestClampWorkload(t *testing.T) {
	assert.Equal(t, 2, ClampWorkload(3, -1))
	assert.Equal(t, 0, ClampWorkload(0, -1))
	assert.Equal(t, 1, ClampWorkload(0, 1))
}

// Загрузка не уходит в минус при любой последовательности назначений/отказов/завершений.
func TestClampWorkload_NeverNegative(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("workload >= 0", prop.ForAll(
		func(start int, ops []bool) bool {
			w := start
			for _, assign := range ops {
				delta := -1
				if assign {
					delta = 1
				}
				w = ClampWorkload(w, delta)
				if w < 0 {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 5),
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}
