package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"maintenance-system/internal/entities"
	"maintenance-system/pkg/config"
	"maintenance-system/pkg/constants"
	apperrors "maintenance-system/pkg/errors"
	"maintenance-system/pkg/eventbus"
	"maintenance-system/pkg/types"
	"maintenance-system/pkg/utils"
)

// memStore - хранилище в памяти за всеми фейковыми репозиториями.
// Транзакции сериализуются, при ошибке состояние откатывается к снимку.
type memStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	nextID        uint64
	requests      map[uint64]entities.Request
	techs         map[uint64]entities.Technician
	users         map[uint64]entities.User
	reports       map[uint64]entities.TaskReport
	notifications []entities.Notification

	// записи "параллельных" писателей переживают откат нашей транзакции
	external []func(*memStore)

	// вызываются под mu перед проверкой условий
	onRequestUpdate  func(s *memStore, id uint64)
	onAdjustWorkload func(s *memStore, id uint64)

	txCount int
}

func newMemStore() *memStore {
	return &memStore{
		nextID:   1,
		requests: map[uint64]entities.Request{},
		techs:    map[uint64]entities.Technician{},
		users:    map[uint64]entities.User{},
		reports:  map[uint64]entities.TaskReport{},
	}
}

// concurrently применяет изменение как уже закоммиченное другим писателем. Вызывать под mu.
func (s *memStore) concurrently(change func(*memStore)) {
	change(s)
	s.external = append(s.external, change)
}

type memSnapshot struct {
	nextID        uint64
	requests      map[uint64]entities.Request
	techs         map[uint64]entities.Technician
	reports       map[uint64]entities.TaskReport
	notifications []entities.Notification
	external      int
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		nextID:        s.nextID,
		requests:      make(map[uint64]entities.Request, len(s.requests)),
		techs:         make(map[uint64]entities.Technician, len(s.techs)),
		reports:       make(map[uint64]entities.TaskReport, len(s.reports)),
		notifications: append([]entities.Notification(nil), s.notifications...),
		external:      len(s.external),
	}
	for k, v := range s.requests {
		snap.requests[k] = v
	}
	for k, v := range s.techs {
		snap.techs[k] = v
	}
	for k, v := range s.reports {
		snap.reports[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID = snap.nextID
	s.requests = snap.requests
	s.techs = snap.techs
	s.reports = snap.reports
	s.notifications = snap.notifications
	for _, change := range s.external[snap.external:] {
		change(s)
	}
}

func (s *memStore) id() uint64 {
	id := s.nextID
	s.nextID++
	return id
}

// Хелперы для тестов

func (s *memStore) addUser(role constants.Role, name string) entities.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := entities.User{ID: s.id(), FullName: name, Email: fmt.Sprintf("user%d@example.com", s.nextID), Role: role}
	s.users[u.ID] = u
	return u
}

func (s *memStore) addTechnician(name string, workload int, available bool, userID *uint64) entities.Technician {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := entities.Technician{
		ID:             s.id(),
		TechnicianID:   uuid.New(),
		UserID:         userID,
		Name:           name,
		Email:          name + "@example.com",
		Specialization: "plumbing",
		Location:       "Block A",
		Availability:   available,
		Workload:       workload,
		Version:        1,
	}
	s.techs[t.ID] = t
	return t
}

func (s *memStore) addRequest(clientID uint64, mutate func(r *entities.Request)) entities.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := entities.Request{
		ID:           s.id(),
		ClientID:     clientID,
		Title:        "Течёт кран",
		Category:     "plumbing",
		Description:  "Кран на кухне",
		Location:     "Block A, 12",
		Urgency:      constants.UrgencyMedium,
		ContactName:  "Иван",
		ContactEmail: "ivan@example.com",
		ContactPhone: "+992900000000",
		Status:       constants.RequestStatusPending,
		CreatedAt:    time.Now(),
	}
	if mutate != nil {
		mutate(&r)
	}
	s.requests[r.ID] = r
	return r
}

func (s *memStore) request(id uint64) entities.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[id]
}

func (s *memStore) technician(id uint64) entities.Technician {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.techs[id]
}

func (s *memStore) notificationsFor(role constants.Role) []entities.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entities.Notification
	for _, n := range s.notifications {
		if n.RecipientRole == role {
			out = append(out, n)
		}
	}
	return out
}

// fakeTxManager

type fakeTxManager struct{ s *memStore }

func (m *fakeTxManager) RunInTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	m.s.txMu.Lock()
	defer m.s.txMu.Unlock()
	m.s.mu.Lock()
	m.s.txCount++
	m.s.mu.Unlock()

	snap := m.s.snapshot()
	if err := fn(nil); err != nil {
		m.s.restore(snap)
		return err
	}
	return nil
}

// fakeRequestRepo

type fakeRequestRepo struct{ s *memStore }

func (r *fakeRequestRepo) Create(ctx context.Context, tx pgx.Tx, req *entities.Request) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req.ID = r.s.id()
	req.Status = constants.RequestStatusPending
	req.CreatedAt = time.Now()
	req.UpdatedAt = req.CreatedAt
	r.s.requests[req.ID] = *req
	return nil
}

func (r *fakeRequestRepo) FindByID(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Request, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.requests[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &req, nil
}

func (r *fakeRequestRepo) FindForUpdate(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Request, error) {
	return r.FindByID(ctx, tx, id)
}

func (r *fakeRequestRepo) FindEligibleForAssignment(ctx context.Context, tx pgx.Tx) ([]entities.Request, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]entities.Request, 0)
	for _, req := range r.s.requests {
		if req.Status == constants.RequestStatusPending && req.AssignedTechnicianID == nil && !req.Rejected {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRequestRepo) FindByTechnician(ctx context.Context, technicianID uint64, statuses []constants.RequestStatus) ([]entities.Request, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]entities.Request, 0)
	for _, req := range r.s.requests {
		if !req.IsAssignedTo(technicianID) {
			continue
		}
		for _, st := range statuses {
			if req.Status == st {
				out = append(out, req)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRequestRepo) GetAll(ctx context.Context, filter types.Filter) ([]entities.Request, uint64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]entities.Request, 0)
	for _, req := range r.s.requests {
		if clientID, ok := filter.Filter["client_id"]; ok && clientID != req.ClientID {
			continue
		}
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, uint64(len(out)), nil
}

func (r *fakeRequestRepo) Update(ctx context.Context, tx pgx.Tx, id uint64, guard entities.RequestGuard, patch entities.RequestPatch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.onRequestUpdate != nil {
		r.s.onRequestUpdate(r.s, id)
	}

	req, ok := r.s.requests[id]
	if !ok {
		return fmt.Errorf("заявка %d: %w", id, apperrors.ErrNotFound)
	}
	if guard.Status != "" && req.Status != guard.Status {
		return fmt.Errorf("заявка %d: %w", id, apperrors.ErrConflict)
	}
	if guard.AssignedTechnician != nil && !req.IsAssignedTo(*guard.AssignedTechnician) {
		return fmt.Errorf("заявка %d: %w", id, apperrors.ErrConflict)
	}
	if guard.Unassigned && req.AssignedTechnicianID != nil {
		return fmt.Errorf("заявка %d: %w", id, apperrors.ErrConflict)
	}
	if guard.NotRejected && req.Rejected {
		return fmt.Errorf("заявка %d: %w", id, apperrors.ErrConflict)
	}

	if patch.Assignment != nil {
		if patch.Assignment.TechnicianID != nil {
			if _, ok := r.s.techs[*patch.Assignment.TechnicianID]; !ok {
				return fmt.Errorf("заявка %d: %w: %w", id, apperrors.ErrTechnicianNotFound, apperrors.ErrNotFound)
			}
		}
		applyAssignment(&req, patch.Assignment)
	}
	if patch.Status != nil {
		req.Status = *patch.Status
	}
	if patch.ManuallyAssigned != nil {
		req.ManuallyAssigned = *patch.ManuallyAssigned
	}
	if patch.Rejected != nil {
		req.Rejected = *patch.Rejected
	}
	if patch.AcceptedAt != nil {
		req.AcceptedAt.Time, req.AcceptedAt.Valid = *patch.AcceptedAt, true
	}
	if patch.CompletedAt != nil {
		req.CompletedAt.Time, req.CompletedAt.Valid = *patch.CompletedAt, true
	}
	if patch.CancelledAt != nil {
		req.CancelledAt.Time, req.CancelledAt.Valid = *patch.CancelledAt, true
	}
	req.UpdatedAt = time.Now()
	r.s.requests[id] = req
	return nil
}

func (r *fakeRequestRepo) SetRating(ctx context.Context, tx pgx.Tx, id uint64, stars int, feedback *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.requests[id]
	if !ok || req.Status != constants.RequestStatusCompleted || req.Rating.Valid {
		return fmt.Errorf("заявка %d: %w", id, apperrors.ErrConflict)
	}
	req.Rating.Int16, req.Rating.Valid = int16(stars), true
	if feedback != nil {
		req.Feedback.String, req.Feedback.Valid = *feedback, true
	}
	r.s.requests[id] = req
	return nil
}

// fakeTechnicianRepo

type fakeTechnicianRepo struct{ s *memStore }

func (r *fakeTechnicianRepo) FindByID(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Technician, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.techs[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &t, nil
}

func (r *fakeTechnicianRepo) FindByPublicID(ctx context.Context, tx pgx.Tx, publicID uuid.UUID) (*entities.Technician, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.techs {
		if t.TechnicianID == publicID {
			return &t, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeTechnicianRepo) FindByUserID(ctx context.Context, tx pgx.Tx, userID uint64) (*entities.Technician, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.techs {
		if t.UserID != nil && *t.UserID == userID {
			return &t, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeTechnicianRepo) FindAvailable(ctx context.Context, tx pgx.Tx) ([]entities.Technician, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]entities.Technician, 0)
	for _, t := range r.s.techs {
		if t.Availability {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Workload != out[j].Workload {
			return out[i].Workload < out[j].Workload
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *fakeTechnicianRepo) GetAll(ctx context.Context, filter types.Filter) ([]entities.Technician, uint64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]entities.Technician, 0, len(r.s.techs))
	for _, t := range r.s.techs {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, uint64(len(out)), nil
}

func (r *fakeTechnicianRepo) Create(ctx context.Context, tx pgx.Tx, t *entities.Technician) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.techs {
		if existing.Email == t.Email {
			return apperrors.ErrConflict
		}
	}
	t.ID = r.s.id()
	t.TechnicianID = uuid.New()
	t.Version = 1
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	r.s.techs[t.ID] = *t
	return nil
}

func (r *fakeTechnicianRepo) UpdateProfile(ctx context.Context, tx pgx.Tx, id uint64, patch entities.TechnicianPatch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.techs[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if patch.Name != nil {
		t.Name = *patch.Name
	}
	if patch.Email != nil {
		t.Email = *patch.Email
	}
	if patch.Specialization != nil {
		t.Specialization = *patch.Specialization
	}
	if patch.Location != nil {
		t.Location = *patch.Location
	}
	t.Version++
	r.s.techs[id] = t
	return nil
}

func (r *fakeTechnicianRepo) SetAvailability(ctx context.Context, tx pgx.Tx, id uint64, available bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.techs[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	t.Availability = available
	t.Version++
	r.s.techs[id] = t
	return nil
}

func (r *fakeTechnicianRepo) cas(id uint64, expectedVersion int64, change func(t *entities.Technician)) (*entities.Technician, error) {
	t, ok := r.s.techs[id]
	if !ok {
		return nil, fmt.Errorf("техник %d: %w", id, apperrors.ErrNotFound)
	}
	if t.Version != expectedVersion {
		return nil, fmt.Errorf("техник %d: %w", id, apperrors.ErrConflict)
	}
	change(&t)
	t.Version++
	r.s.techs[id] = t
	return &t, nil
}

func (r *fakeTechnicianRepo) AdjustWorkload(ctx context.Context, tx pgx.Tx, id uint64, expectedVersion int64, delta int) (*entities.Technician, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.onAdjustWorkload != nil {
		r.s.onAdjustWorkload(r.s, id)
	}
	if t, ok := r.s.techs[id]; ok && delta > 0 && !t.Availability {
		return nil, fmt.Errorf("техник %d недоступен: %w", id, apperrors.ErrConflict)
	}
	return r.cas(id, expectedVersion, func(t *entities.Technician) {
		t.Workload += delta
		if t.Workload < 0 {
			t.Workload = 0
		}
	})
}

func (r *fakeTechnicianRepo) AddRating(ctx context.Context, tx pgx.Tx, id uint64, expectedVersion int64, stars int) (*entities.Technician, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.cas(id, expectedVersion, func(t *entities.Technician) {
		t.RatingSum += float64(stars)
		t.NumberOfRatings++
	})
}

// fakeNotificationRepo

type fakeNotificationRepo struct{ s *memStore }

func (r *fakeNotificationRepo) Create(ctx context.Context, tx pgx.Tx, n *entities.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n.ID = r.s.id()
	n.Status = constants.NotificationUnread
	n.CreatedAt = time.Now()
	r.s.notifications = append(r.s.notifications, *n)
	return nil
}

func (r *fakeNotificationRepo) visible(n entities.Notification, role constants.Role, recipientID uint64) bool {
	if n.RecipientRole != role {
		return false
	}
	if n.RecipientID == nil {
		return role == constants.RoleAdmin
	}
	return *n.RecipientID == recipientID
}

func (r *fakeNotificationRepo) ListForRecipient(ctx context.Context, role constants.Role, recipientID uint64, filter types.Filter) ([]entities.Notification, uint64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]entities.Notification, 0)
	for _, n := range r.s.notifications {
		if r.visible(n, role, recipientID) {
			out = append(out, n)
		}
	}
	return out, uint64(len(out)), nil
}

func (r *fakeNotificationRepo) MarkRead(ctx context.Context, id uint64, role constants.Role, recipientID uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, n := range r.s.notifications {
		if n.ID == id && r.visible(n, role, recipientID) {
			r.s.notifications[i].Status = constants.NotificationRead
			return nil
		}
	}
	return apperrors.ErrNotFound
}

// fakeTaskReportRepo

type fakeTaskReportRepo struct{ s *memStore }

func (r *fakeTaskReportRepo) Create(ctx context.Context, tx pgx.Tx, report *entities.TaskReport) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.reports[report.RequestID]; ok {
		return apperrors.ErrConflict
	}
	report.ID = r.s.id()
	report.CreatedAt = time.Now()
	r.s.reports[report.RequestID] = *report
	return nil
}

func (r *fakeTaskReportRepo) FindByRequestID(ctx context.Context, tx pgx.Tx, requestID uint64) (*entities.TaskReport, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	report, ok := r.s.reports[requestID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &report, nil
}

// fakeUserRepo

type fakeUserRepo struct{ s *memStore }

func (r *fakeUserRepo) FindByID(ctx context.Context, tx pgx.Tx, id uint64) (*entities.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &u, nil
}

func (r *fakeUserRepo) FindByEmail(ctx context.Context, tx pgx.Tx, email string) (*entities.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeUserRepo) Create(ctx context.Context, tx pgx.Tx, u *entities.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u.ID = r.s.id()
	r.s.users[u.ID] = *u
	return nil
}

// fakeCache - SetNX/DelIfEquals как в Redis.

type fakeCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string]string{}} }

func (c *fakeCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return "", fmt.Errorf("нет ключа %s", key)
	}
	return v, nil
}

func (c *fakeCache) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[key]; ok {
		return false, nil
	}
	c.data[key] = fmt.Sprint(value)
	return true, nil
}

func (c *fakeCache) DelIfEquals(ctx context.Context, key, expected string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data[key] != expected {
		return false, nil
	}
	delete(c.data, key)
	return true, nil
}

func (c *fakeCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

// env собирает сервисы поверх memStore.

type env struct {
	store         *memStore
	cache         *fakeCache
	bus           *eventbus.Bus
	cfg           config.AssignmentConfig
	notifications NotificationServiceInterface
	assignment    AssignmentServiceInterface
	tasks         TaskServiceInterface
	requests      RequestServiceInterface
	technicians   TechnicianServiceInterface
}

func newEnv() *env {
	logger := zap.NewNop()
	s := newMemStore()
	e := &env{
		store: s,
		cache: newFakeCache(),
		bus:   eventbus.New(logger),
		cfg:   config.AssignmentConfig{LockTTL: time.Minute, SweepOnTaskLoad: false, CASRetries: 3},
	}
	tx := &fakeTxManager{s: s}
	reqRepo := &fakeRequestRepo{s: s}
	techRepo := &fakeTechnicianRepo{s: s}
	userRepo := &fakeUserRepo{s: s}
	reportRepo := &fakeTaskReportRepo{s: s}

	e.notifications = NewNotificationService(&fakeNotificationRepo{s: s}, techRepo, logger)
	e.assignment = NewAssignmentService(tx, reqRepo, techRepo, e.cache, e.notifications, e.bus, e.cfg, logger)
	e.tasks = NewTaskService(tx, reqRepo, techRepo, reportRepo, e.notifications, e.assignment, e.bus, e.cfg, logger)
	e.requests = NewRequestService(tx, reqRepo, techRepo, userRepo, reportRepo, e.notifications, e.bus, e.cfg, logger)
	e.technicians = NewTechnicianService(techRepo, userRepo, logger)
	return e
}

func as(role constants.Role, userID uint64) context.Context {
	return utils.WithActor(context.Background(), utils.Actor{UserID: userID, Role: role})
}

// techUser - пользователь с ролью technician и привязанная к нему запись техника.
func (e *env) techUser(name string, workload int) (entities.User, entities.Technician) {
	u := e.store.addUser(constants.RoleTechnician, name)
	id := u.ID
	return u, e.store.addTechnician(name, workload, true, &id)
}

// assignedRequest - заявка клиента, уже назначенная технику.
func (e *env) assignedRequest(clientID uint64, tech entities.Technician) entities.Request {
	techID := tech.ID
	return e.store.addRequest(clientID, func(r *entities.Request) {
		r.AssignedTechnicianID = &techID
		r.AssignedTechnicianName.String, r.AssignedTechnicianName.Valid = tech.Name, true
		r.AssignedAt.Time, r.AssignedAt.Valid = time.Now(), true
	})
}
