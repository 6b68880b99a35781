package repositories

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maintenance-system/internal/entities"
	"maintenance-system/pkg/constants"
	"maintenance-system/pkg/types"
)

func TestEligibleRequestsQuery(t *testing.T) {
	query, args, err := eligibleRequestsQuery().ToSql()
	require.NoError(t, err)
	assert.Contains(t, query, "assigned_technician_id IS NULL")
	assert.Contains(t, query, "rejected = $")
	assert.Contains(t, query, "status = $")
	assert.Contains(t, query, "ORDER BY id")
	assert.NotContains(t, query, "FOR UPDATE")
	assert.ElementsMatch(t, []interface{}{false, constants.RequestStatusPending}, args)
}

func TestAvailableTechniciansQuery(t *testing.T) {
	query, args, err := availableTechniciansQuery().ToSql()
	require.NoError(t, err)
	assert.Contains(t, query, "WHERE availability = $1")
	assert.Contains(t, query, "ORDER BY workload ASC, id ASC")
	assert.Equal(t, []interface{}{true}, args)
}

func TestBuildWorkloadUpdate_CASAndFloor(t *testing.T) {
	query, args, err := buildWorkloadUpdate(5, 3, -1).ToSql()
	require.NoError(t, err)
	assert.Contains(t, query, "workload = GREATEST(workload + $1, 0)")
	assert.Contains(t, query, "version = version + 1")
	assert.Contains(t, query, "id = $2")
	assert.Contains(t, query, "version = $3")
	assert.Contains(t, query, "RETURNING id, technician_id")
	assert.Equal(t, []interface{}{-1, uint64(5), int64(3)}, args)
}

func TestBuildWorkloadUpdate_IncrementRequiresAvailability(t *testing.T) {
	query, args, err := buildWorkloadUpdate(5, 3, +1).ToSql()
	require.NoError(t, err)
	assert.Contains(t, query, "id = $2 AND version = $3")
	assert.Contains(t, query, "AND availability = $4")
	assert.Equal(t, []interface{}{1, uint64(5), int64(3), true}, args)

	released, _, err := buildWorkloadUpdate(5, 3, -1).ToSql()
	require.NoError(t, err)
	assert.NotContains(t, released, "availability", "снять задачу можно и с недоступного техника")
}

func TestBuildAvailabilityUpdate_BumpsVersion(t *testing.T) {
	query, args, err := buildAvailabilityUpdate(8, false).ToSql()
	require.NoError(t, err)
	assert.Contains(t, query, "availability = $1")
	assert.Contains(t, query, "version = version + 1")
	assert.Contains(t, query, "WHERE id = $2")
	assert.Equal(t, []interface{}{false, uint64(8)}, args)
}

func TestBuildProfileUpdate_BumpsVersion(t *testing.T) {
	location := "Block D"
	query, args, err := buildProfileUpdate(8, entities.TechnicianPatch{Location: &location}).ToSql()
	require.NoError(t, err)
	assert.Contains(t, query, "version = version + 1")
	assert.Contains(t, query, "location = $1")
	assert.Contains(t, query, "WHERE id = $2")
	assert.Equal(t, []interface{}{"Block D", uint64(8)}, args)
}

func TestBuildRatingUpdate(t *testing.T) {
	query, args, err := buildRatingUpdate(2, 7, 5).ToSql()
	require.NoError(t, err)
	assert.Contains(t, query, "rating_sum = rating_sum + $1")
	assert.Contains(t, query, "number_of_ratings = number_of_ratings + 1")
	assert.Equal(t, []interface{}{5, uint64(2), int64(7)}, args)
}

func TestBuildRequestUpdate_AssignWithGuard(t *testing.T) {
	techID := uint64(4)
	manual := true
	notRejected := false
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	query, args, err := buildRequestUpdate(10,
		entities.RequestGuard{Status: constants.RequestStatusPending, Unassigned: true, NotRejected: true},
		entities.RequestPatch{
			Assignment:       &entities.AssignmentChange{TechnicianID: &techID, TechnicianName: "Иван", At: now},
			ManuallyAssigned: &manual,
			Rejected:         &notRejected,
		},
	).ToSql()
	require.NoError(t, err)

	assert.Contains(t, query, "assigned_technician_id = $1")
	assert.Contains(t, query, "assigned_technician_name = $2")
	assert.Contains(t, query, "WHERE id = $")
	assert.Contains(t, query, "AND status = $")
	assert.Contains(t, query, "AND assigned_technician_id IS NULL")
	assert.Contains(t, query, "AND rejected = $")
	assert.Contains(t, args, uint64(4))
	assert.Contains(t, args, "Иван")
}

func TestBuildRequestUpdate_ClearAssignment(t *testing.T) {
	prev := uint64(9)
	query, args, err := buildRequestUpdate(1,
		entities.RequestGuard{Status: constants.RequestStatusPending, AssignedTechnician: &prev},
		entities.RequestPatch{Assignment: &entities.AssignmentChange{}},
	).ToSql()
	require.NoError(t, err)

	assert.Contains(t, query, "assigned_at = $3")
	assert.Contains(t, query, "AND assigned_technician_id = $")
	assert.Equal(t, []interface{}{nil, nil, nil, uint64(1), constants.RequestStatusPending, uint64(9)}, args)
}

func TestApplyRequestFilter(t *testing.T) {
	psqlQuery, args, err := applyRequestFilter(eligibleRequestsQuery(), types.Filter{
		Search: "кран",
		Filter: map[string]interface{}{"urgency": "high,medium", "assigned": "No", "unknown": "x"},
	}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, psqlQuery, "title ILIKE")
	assert.Contains(t, psqlQuery, "urgency IN")
	assert.NotContains(t, psqlQuery, "unknown")
	assert.Contains(t, args, "%кран%")
}

func TestRecipientCondition(t *testing.T) {
	adminSQL, adminArgs, err := recipientCondition(constants.RoleAdmin, 3).ToSql()
	require.NoError(t, err)
	assert.Contains(t, adminSQL, "recipient_id IS NULL")
	assert.Equal(t, []interface{}{constants.RoleAdmin, uint64(3)}, adminArgs)

	clientSQL, _, err := recipientCondition(constants.RoleClient, 3).ToSql()
	require.NoError(t, err)
	assert.NotContains(t, clientSQL, "IS NULL")
}

func defaultListFilter() types.Filter {
	return types.Filter{Limit: 50, WithPagination: true}
}
