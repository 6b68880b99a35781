package services

import (
	"context"
	"sync"
	"testing"

	"github.com/aarondl/null/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maintenance-system/internal/dto"
	"maintenance-system/internal/entities"
	"maintenance-system/internal/events"
	"maintenance-system/internal/workflow"
	"maintenance-system/pkg/constants"
	apperrors "maintenance-system/pkg/errors"
	"maintenance-system/pkg/eventbus"
	"maintenance-system/pkg/types"
)

func newRequestPayload() dto.CreateRequestDTO {
	return dto.CreateRequestDTO{
		Title:         "  Не работает розетка ",
		Category:      "electrical",
		Description:   "Искрит розетка в коридоре",
		Location:      "Block B, 4",
		Urgency:       "HIGH",
		PreferredDate: null.StringFrom("2026-11-02"),
		ContactName:   "Мадина",
		ContactEmail:  "madina@example.com",
		ContactPhone:  "+992911111111",
	}
}

func TestCreateRequest(t *testing.T) {
	e := newEnv()
	client := e.store.addUser(constants.RoleClient, "client")

	res, err := e.requests.Create(as(constants.RoleClient, client.ID), newRequestPayload())
	require.NoError(t, err)

	assert.Equal(t, "Не работает розетка", res.Title)
	assert.Equal(t, "high", res.Urgency)
	assert.Equal(t, constants.RequestStatusPending.String(), res.Status)
	assert.Equal(t, constants.No, res.Assigned)
	assert.Equal(t, "2026-11-02", res.PreferredDate.String)
	assert.Equal(t, client.ID, res.ClientID)

	stored := e.store.request(res.ID)
	assert.True(t, workflow.EligibleForSweep(&stored))
}

func TestCreateRequest_Rules(t *testing.T) {
	e := newEnv()
	admin := e.store.addUser(constants.RoleAdmin, "admin")
	client := e.store.addUser(constants.RoleClient, "client")

	_, err := e.requests.Create(as(constants.RoleAdmin, admin.ID), newRequestPayload())
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	payload := newRequestPayload()
	payload.PreferredDate = null.StringFrom("02.11.2026")
	_, err = e.requests.Create(as(constants.RoleClient, client.ID), payload)
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = e.requests.Create(context.Background(), newRequestPayload())
	assert.ErrorIs(t, err, apperrors.ErrUserIDNotFoundInContext)
}

func TestGetAll_ClientSeesOnlyOwn(t *testing.T) {
	e := newEnv()
	alice := e.store.addUser(constants.RoleClient, "alice")
	bob := e.store.addUser(constants.RoleClient, "bob")
	admin := e.store.addUser(constants.RoleAdmin, "admin")
	techUser, _ := e.techUser("tech", 0)
	e.store.addRequest(alice.ID, nil)
	e.store.addRequest(alice.ID, nil)
	e.store.addRequest(bob.ID, nil)

	list, total, err := e.requests.GetAll(as(constants.RoleClient, alice.ID), types.Filter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	for _, r := range list {
		assert.Equal(t, alice.ID, r.ClientID)
	}

	// подмена client_id в фильтре не помогает
	_, total, err = e.requests.GetAll(as(constants.RoleClient, alice.ID), types.Filter{Filter: map[string]interface{}{"client_id": bob.ID}})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	_, total, err = e.requests.GetAll(as(constants.RoleAdmin, admin.ID), types.Filter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	_, _, err = e.requests.GetAll(as(constants.RoleTechnician, techUser.ID), types.Filter{})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestFindByID_Visibility(t *testing.T) {
	e := newEnv()
	owner := e.store.addUser(constants.RoleClient, "owner")
	stranger := e.store.addUser(constants.RoleClient, "stranger")
	techUser, tech := e.techUser("tech", 1)
	otherTechUser, _ := e.techUser("other", 0)
	req := e.assignedRequest(owner.ID, tech)

	_, err := e.requests.FindByID(as(constants.RoleClient, owner.ID), req.ID)
	assert.NoError(t, err)
	_, err = e.requests.FindByID(as(constants.RoleTechnician, techUser.ID), req.ID)
	assert.NoError(t, err)

	_, err = e.requests.FindByID(as(constants.RoleClient, stranger.ID), req.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = e.requests.FindByID(as(constants.RoleTechnician, otherTechUser.ID), req.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCancel_AssignedRequestReleasesTechnician(t *testing.T) {
	e := newEnv()
	client := e.store.addUser(constants.RoleClient, "client")
	tech := e.store.addTechnician("tech", 2, true, nil)
	req := e.assignedRequest(client.ID, tech)

	var (
		mu  sync.Mutex
		got []events.RequestEvent
	)
	e.bus.Subscribe(events.RequestCancelled, func(ctx context.Context, ev eventbus.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev.(events.RequestEvent))
		return nil
	})

	res, err := e.requests.Cancel(as(constants.RoleClient, client.ID), req.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.RequestStatusCancelled.String(), res.Status)
	assert.True(t, res.CancelledAt.Valid)
	assert.False(t, res.AssignedTechnicianID.Valid)

	assert.Equal(t, 1, e.store.technician(tech.ID).Workload)
	assert.Len(t, e.store.notificationsFor(constants.RoleTechnician), 1)
	assert.Len(t, e.store.notificationsFor(constants.RoleAdmin), 1)

	require.NoError(t, e.bus.Wait(context.Background()))
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Technician)
	assert.Equal(t, tech.ID, got[0].Technician.ID)
}

func TestCancel_Rules(t *testing.T) {
	e := newEnv()
	client := e.store.addUser(constants.RoleClient, "client")
	stranger := e.store.addUser(constants.RoleClient, "stranger")
	inProgress := e.store.addRequest(client.ID, func(r *entities.Request) { r.Status = constants.RequestStatusInProgress })
	pending := e.store.addRequest(client.ID, nil)

	_, err := e.requests.Cancel(as(constants.RoleClient, client.ID), inProgress.ID)
	assert.ErrorIs(t, err, workflow.ErrIllegalTransition)

	_, err = e.requests.Cancel(as(constants.RoleClient, stranger.ID), pending.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = e.requests.Cancel(as(constants.RoleClient, client.ID), pending.ID)
	require.NoError(t, err)
	_, err = e.requests.Cancel(as(constants.RoleClient, client.ID), pending.ID)
	assert.ErrorIs(t, err, workflow.ErrIllegalTransition)
}

func TestSupportRequest_GoesToAdminChannel(t *testing.T) {
	e := newEnv()
	client := e.store.addUser(constants.RoleClient, "client")
	admin := e.store.addUser(constants.RoleAdmin, "admin")

	err := e.requests.SupportRequest(as(constants.RoleClient, client.ID), dto.SupportRequestDTO{Subject: "Вопрос", Message: "Когда придёт техник?"})
	require.NoError(t, err)

	list, total, err := e.notifications.GetMine(as(constants.RoleAdmin, admin.ID), types.Filter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Contains(t, list[0].Message, "Когда придёт техник?")

	// клиент не видит админский канал
	_, total, err = e.notifications.GetMine(as(constants.RoleClient, client.ID), types.Filter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}
