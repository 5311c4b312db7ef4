package services

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"venue_ops_backend/internal/models"
	"venue_ops_backend/internal/realtime"
	"venue_ops_backend/internal/repositories"
	"venue_ops_backend/pkg/utils"

	"golang.org/x/crypto/bcrypt"
)

// memStore backs every repository interface with maps. WithinTx snapshots the
// maps and restores them when the callback fails.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex
	seq  int64

	users         map[int64]models.User
	rolePerms     map[string][]string
	overrides     map[int64]map[string]models.UserPermission
	categories    map[int64]models.StockCategory
	items         map[int64]models.StockItem
	batches       map[int64]models.StockBatch
	txns          []models.StockTransaction
	deliveries    map[int64]models.StockDelivery
	deliveryItems map[int64]models.DeliveryItem
	alerts        map[int64]models.StockAlert
	audit         []models.AuditEntry
	notifications map[int64]models.Notification
	shifts        map[int64]models.ShiftSchedule
	tasks         map[int64]models.Task
	templates     map[int64]models.TaskTemplate

	now time.Time
}

func newMemStore(now time.Time) *memStore {
	s := &memStore{
		users:         map[int64]models.User{},
		rolePerms:     map[string][]string{},
		overrides:     map[int64]map[string]models.UserPermission{},
		categories:    map[int64]models.StockCategory{},
		items:         map[int64]models.StockItem{},
		batches:       map[int64]models.StockBatch{},
		deliveries:    map[int64]models.StockDelivery{},
		deliveryItems: map[int64]models.DeliveryItem{},
		alerts:        map[int64]models.StockAlert{},
		notifications: map[int64]models.Notification{},
		shifts:        map[int64]models.ShiftSchedule{},
		tasks:         map[int64]models.Task{},
		templates:     map[int64]models.TaskTemplate{},
		now:           now,
	}
	for role, perms := range models.RoleBaselines {
		s.rolePerms[role] = slices.Clone(perms)
	}
	return s
}

func (s *memStore) nextID() int64 {
	s.seq++
	return s.seq
}

type memSnapshot struct {
	seq           int64
	users         map[int64]models.User
	overrides     map[int64]map[string]models.UserPermission
	categories    map[int64]models.StockCategory
	items         map[int64]models.StockItem
	batches       map[int64]models.StockBatch
	txns          []models.StockTransaction
	deliveries    map[int64]models.StockDelivery
	deliveryItems map[int64]models.DeliveryItem
	alerts        map[int64]models.StockAlert
	audit         []models.AuditEntry
	notifications map[int64]models.Notification
	shifts        map[int64]models.ShiftSchedule
	tasks         map[int64]models.Task
	templates     map[int64]models.TaskTemplate
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	overrides := make(map[int64]map[string]models.UserPermission, len(s.overrides))
	for id, set := range s.overrides {
		overrides[id] = maps.Clone(set)
	}
	return memSnapshot{
		seq:           s.seq,
		users:         maps.Clone(s.users),
		overrides:     overrides,
		categories:    maps.Clone(s.categories),
		items:         maps.Clone(s.items),
		batches:       maps.Clone(s.batches),
		txns:          slices.Clone(s.txns),
		deliveries:    maps.Clone(s.deliveries),
		deliveryItems: maps.Clone(s.deliveryItems),
		alerts:        maps.Clone(s.alerts),
		audit:         slices.Clone(s.audit),
		notifications: maps.Clone(s.notifications),
		shifts:        maps.Clone(s.shifts),
		tasks:         maps.Clone(s.tasks),
		templates:     maps.Clone(s.templates),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = snap.seq
	s.users = snap.users
	s.overrides = snap.overrides
	s.categories = snap.categories
	s.items = snap.items
	s.batches = snap.batches
	s.txns = snap.txns
	s.deliveries = snap.deliveries
	s.deliveryItems = snap.deliveryItems
	s.alerts = snap.alerts
	s.audit = snap.audit
	s.notifications = snap.notifications
	s.shifts = snap.shifts
	s.tasks = snap.tasks
	s.templates = snap.templates
}

// --- Transactor ---

type memTx struct{ s *memStore }

func (t memTx) Executor() repositories.SQLExecutor { return nil }

func (t memTx) WithinTx(ctx context.Context, fn func(tx repositories.SQLExecutor) error) (err error) {
	t.s.txMu.Lock()
	defer t.s.txMu.Unlock()
	snap := t.s.snapshot()
	defer func() {
		if p := recover(); p != nil {
			t.s.restore(snap)
			panic(p)
		}
	}()
	if err = fn(nil); err != nil {
		t.s.restore(snap)
	}
	return err
}

// --- Users ---

type memUsers struct{ s *memStore }

func (r memUsers) CreateUser(ctx context.Context, _ repositories.SQLExecutor, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Username == user.Username {
			return fmt.Errorf("%w: users.username", repositories.ErrDuplicateKey)
		}
	}
	user.ID = r.s.nextID()
	user.CreatedAt, user.UpdatedAt = r.s.now, r.s.now
	r.s.users[user.ID] = *user
	return nil
}

func (r memUsers) FindUserByID(ctx context.Context, _ repositories.SQLExecutor, userID int64) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &u, nil
}

func (r memUsers) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r memUsers) ListUsers(ctx context.Context, activeOnly bool) ([]models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.User{}
	for _, u := range r.s.users {
		if activeOnly && !u.Active {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memUsers) UpdateUser(ctx context.Context, _ repositories.SQLExecutor, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[user.ID]; !ok {
		return repositories.ErrNotFound
	}
	r.s.users[user.ID] = *user
	return nil
}

func (r memUsers) UpdatePassword(ctx context.Context, _ repositories.SQLExecutor, userID int64, passwordHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	u.PasswordHash = passwordHash
	r.s.users[userID] = u
	return nil
}

func (r memUsers) TouchLastLogin(ctx context.Context, userID int64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	u.LastLogin = &at
	r.s.users[userID] = u
	return nil
}

// --- Permissions ---

type memPermissions struct{ s *memStore }

func (r memPermissions) RolePermissions(ctx context.Context, _ repositories.SQLExecutor, role string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := slices.Clone(r.s.rolePerms[role])
	sort.Strings(out)
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func (r memPermissions) UserOverrides(ctx context.Context, _ repositories.SQLExecutor, userID int64) ([]models.UserPermission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.UserPermission{}
	for _, p := range r.s.overrides[userID] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Permission < out[j].Permission })
	return out, nil
}

func (r memPermissions) GrantUserPermission(ctx context.Context, _ repositories.SQLExecutor, userID int64, permission string, grantedBy int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	set := r.s.overrides[userID]
	if set == nil {
		set = map[string]models.UserPermission{}
		r.s.overrides[userID] = set
	}
	if _, ok := set[permission]; ok {
		return false, nil
	}
	set[permission] = models.UserPermission{
		ID: r.s.nextID(), UserID: userID, Permission: permission, GrantedBy: &grantedBy, GrantedAt: r.s.now,
	}
	return true, nil
}

func (r memPermissions) RevokeUserPermission(ctx context.Context, _ repositories.SQLExecutor, userID int64, permission string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	set := r.s.overrides[userID]
	if _, ok := set[permission]; !ok {
		return false, nil
	}
	delete(set, permission)
	return true, nil
}

// --- Stock catalog ---

type memStock struct{ s *memStore }

func (r memStock) ListCategories(ctx context.Context) ([]models.StockCategory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.StockCategory{}
	for _, c := range r.s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memStock) CreateCategory(ctx context.Context, _ repositories.SQLExecutor, category *models.StockCategory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.categories {
		if c.Name == category.Name {
			return fmt.Errorf("%w: stock_categories.name", repositories.ErrDuplicateKey)
		}
	}
	category.ID = r.s.nextID()
	category.CreatedAt = r.s.now
	r.s.categories[category.ID] = *category
	return nil
}

func (r memStock) CategoryExists(ctx context.Context, _ repositories.SQLExecutor, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.categories[id]
	return ok, nil
}

// view fills the joined and derived fields. Callers hold mu.
func (r memStock) view(item models.StockItem) models.StockItem {
	if c, ok := r.s.categories[item.CategoryID]; ok {
		name := c.Name
		item.CategoryName = &name
	}
	item.WithStatus()
	return item
}

func (r memStock) ListItems(ctx context.Context, _ repositories.SQLExecutor, filter models.StockItemFilter) ([]models.StockItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.StockItem{}
	for _, item := range r.s.items {
		if filter.CategoryID != nil && item.CategoryID != *filter.CategoryID {
			continue
		}
		if filter.Active != nil && item.Active != *filter.Active {
			continue
		}
		if filter.LowStock && item.CurrentQuantity > item.MinimumQuantity {
			continue
		}
		out = append(out, r.view(item))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memStock) GetItem(ctx context.Context, _ repositories.SQLExecutor, id int64) (*models.StockItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item, ok := r.s.items[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	v := r.view(item)
	return &v, nil
}

func (r memStock) LockItem(ctx context.Context, exec repositories.SQLExecutor, id int64) (*models.StockItem, error) {
	return r.GetItem(ctx, exec, id)
}

func (r memStock) CreateItem(ctx context.Context, _ repositories.SQLExecutor, item *models.StockItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item.ID = r.s.nextID()
	item.CreatedAt, item.UpdatedAt = r.s.now, r.s.now
	r.s.items[item.ID] = *item
	return nil
}

func (r memStock) UpdateItem(ctx context.Context, _ repositories.SQLExecutor, id int64, patch models.StockItemPatch) (*models.StockItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item, ok := r.s.items[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	if patch.Name != nil {
		item.Name = *patch.Name
	}
	if patch.CategoryID != nil {
		item.CategoryID = *patch.CategoryID
	}
	if patch.Unit != nil {
		item.Unit = *patch.Unit
	}
	if patch.SKU != nil {
		item.SKU = patch.SKU
	}
	if patch.Supplier != nil {
		item.Supplier = patch.Supplier
	}
	if patch.MinimumQuantity != nil {
		item.MinimumQuantity = *patch.MinimumQuantity
	}
	if patch.MaximumQuantity != nil {
		item.MaximumQuantity = *patch.MaximumQuantity
	}
	if patch.UnitCost != nil {
		item.UnitCost = *patch.UnitCost
	}
	if patch.Notes != nil {
		item.Notes = patch.Notes
	}
	if patch.Active != nil {
		item.Active = *patch.Active
	}
	item.UpdatedAt = r.s.now
	r.s.items[id] = item
	v := r.view(item)
	return &v, nil
}

func (r memStock) DeleteItem(ctx context.Context, _ repositories.SQLExecutor, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.items[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.s.items, id)
	return nil
}

func (r memStock) HasHistory(ctx context.Context, _ repositories.SQLExecutor, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.batches {
		if b.StockItemID == id {
			return true, nil
		}
	}
	for _, t := range r.s.txns {
		if t.StockItemID == id {
			return true, nil
		}
	}
	return false, nil
}

func (r memStock) AddQuantity(ctx context.Context, _ repositories.SQLExecutor, id int64, delta float64) (float64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item, ok := r.s.items[id]
	if !ok {
		return 0, repositories.ErrNotFound
	}
	next := utils.RoundQuantity(item.CurrentQuantity + delta)
	if next < 0 {
		return 0, fmt.Errorf("%w: stock item %d would go negative", repositories.ErrConditionFailed, id)
	}
	item.CurrentQuantity = next
	r.s.items[id] = item
	return next, nil
}

// --- Batches ---

type memBatches struct{ s *memStore }

func (r memBatches) CreateBatch(ctx context.Context, _ repositories.SQLExecutor, batch *models.StockBatch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	batch.ID = r.s.nextID()
	batch.CreatedAt = r.s.now
	r.s.batches[batch.ID] = *batch
	return nil
}

func (r memBatches) GetBatch(ctx context.Context, _ repositories.SQLExecutor, id int64) (*models.StockBatch, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.batches[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &b, nil
}

// fefoLess orders dated batches first by expiry, then by receipt.
func fefoLess(a, b models.StockBatch) bool {
	switch {
	case a.ExpiryDate != nil && b.ExpiryDate == nil:
		return true
	case a.ExpiryDate == nil && b.ExpiryDate != nil:
		return false
	case a.ExpiryDate != nil && !a.ExpiryDate.Equal(*b.ExpiryDate):
		return a.ExpiryDate.Before(*b.ExpiryDate)
	case !a.ReceivedDate.Equal(b.ReceivedDate):
		return a.ReceivedDate.Before(b.ReceivedDate)
	default:
		return a.ID < b.ID
	}
}

func (r memBatches) ListActiveBatches(ctx context.Context, _ repositories.SQLExecutor, itemID int64) ([]models.StockBatch, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.StockBatch{}
	for _, b := range r.s.batches {
		if b.StockItemID == itemID && b.Status == models.BatchStatusActive && b.RemainingQuantity > 0 {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return fefoLess(out[i], out[j]) })
	return out, nil
}

func (r memBatches) ListExpiring(ctx context.Context, _ repositories.SQLExecutor, from, to time.Time) ([]models.ExpiringBatch, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.ExpiringBatch{}
	for _, b := range r.s.batches {
		if b.Status != models.BatchStatusActive || b.RemainingQuantity <= 0 || b.ExpiryDate == nil {
			continue
		}
		if b.ExpiryDate.Before(from) || b.ExpiryDate.After(to) {
			continue
		}
		item := r.s.items[b.StockItemID]
		out = append(out, models.ExpiringBatch{StockBatch: b, ItemName: item.Name, Unit: item.Unit})
	}
	sort.Slice(out, func(i, j int) bool { return fefoLess(out[i].StockBatch, out[j].StockBatch) })
	return out, nil
}

func (r memBatches) AdjustRemaining(ctx context.Context, _ repositories.SQLExecutor, id int64, delta float64) (*models.StockBatch, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.batches[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	next := utils.RoundQuantity(b.RemainingQuantity + delta)
	if next < 0 {
		return nil, fmt.Errorf("%w: batch %d would go negative", repositories.ErrConditionFailed, id)
	}
	b.RemainingQuantity = next
	b.Status = models.BatchStatusActive
	if next == 0 {
		b.Status = models.BatchStatusInactive
	}
	r.s.batches[id] = b
	return &b, nil
}

// --- Ledger ---

type memTransactions struct{ s *memStore }

func (r memTransactions) CreateTransaction(ctx context.Context, _ repositories.SQLExecutor, txn *models.StockTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	txn.ID = r.s.nextID()
	if txn.PerformedAt.IsZero() {
		txn.PerformedAt = r.s.now
	}
	r.s.txns = append(r.s.txns, *txn)
	return nil
}

func (r memTransactions) ListByItem(ctx context.Context, itemID int64, limit int) ([]models.StockTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.StockTransaction{}
	for i := len(r.s.txns) - 1; i >= 0 && len(out) < limit; i-- {
		if r.s.txns[i].StockItemID == itemID {
			out = append(out, r.s.txns[i])
		}
	}
	return out, nil
}

// --- Deliveries ---

type memDeliveries struct{ s *memStore }

func (r memDeliveries) CreateDelivery(ctx context.Context, _ repositories.SQLExecutor, delivery *models.StockDelivery) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delivery.ID = r.s.nextID()
	delivery.CreatedAt = r.s.now
	stored := *delivery
	stored.Items = nil
	r.s.deliveries[delivery.ID] = stored
	return nil
}

func (r memDeliveries) CreateDeliveryItem(ctx context.Context, _ repositories.SQLExecutor, item *models.DeliveryItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.items[item.StockItemID]; !ok {
		return fmt.Errorf("%w: delivery_items.stock_item_id", repositories.ErrForeignKey)
	}
	if _, ok := r.s.deliveries[item.DeliveryID]; !ok {
		return fmt.Errorf("%w: delivery_items.delivery_id", repositories.ErrForeignKey)
	}
	item.ID = r.s.nextID()
	r.s.deliveryItems[item.ID] = *item
	return nil
}

func (r memDeliveries) GetDelivery(ctx context.Context, _ repositories.SQLExecutor, id int64) (*models.StockDelivery, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.deliveries[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	d.ItemCount = r.countItems(id)
	return &d, nil
}

func (r memDeliveries) countItems(deliveryID int64) int {
	n := 0
	for _, it := range r.s.deliveryItems {
		if it.DeliveryID == deliveryID {
			n++
		}
	}
	return n
}

func (r memDeliveries) ListDeliveryItems(ctx context.Context, _ repositories.SQLExecutor, deliveryID int64) ([]models.DeliveryItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.DeliveryItem{}
	for _, it := range r.s.deliveryItems {
		if it.DeliveryID != deliveryID {
			continue
		}
		if item, ok := r.s.items[it.StockItemID]; ok {
			name, unit := item.Name, item.Unit
			it.ItemName, it.Unit = &name, &unit
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memDeliveries) ListDeliveries(ctx context.Context, filter models.DeliveryFilter) ([]models.StockDelivery, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.StockDelivery{}
	for _, d := range r.s.deliveries {
		if filter.Status != nil && *filter.Status != "" && d.Status != *filter.Status {
			continue
		}
		if filter.FromDate != nil && d.DeliveryDate.Before(*filter.FromDate) {
			continue
		}
		if filter.ToDate != nil && d.DeliveryDate.After(*filter.ToDate) {
			continue
		}
		d.ItemCount = r.countItems(d.ID)
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r memDeliveries) TransitionFromPending(ctx context.Context, _ repositories.SQLExecutor, id int64, status string, receivedBy int64, at time.Time, notes *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.deliveries[id]
	if !ok || d.Status != models.DeliveryPending {
		return fmt.Errorf("%w: delivery %d is not pending", repositories.ErrConditionFailed, id)
	}
	d.Status = status
	d.ReceivedBy = &receivedBy
	d.ReceivedAt = &at
	if notes != nil {
		d.Notes = notes
	}
	r.s.deliveries[id] = d
	return nil
}

func (r memDeliveries) RecordReceipt(ctx context.Context, _ repositories.SQLExecutor, deliveryItemID int64, received, damaged float64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.deliveryItems[deliveryItemID]
	if !ok {
		return repositories.ErrNotFound
	}
	it.ReceivedQuantity = &received
	it.DamagedQuantity = damaged
	r.s.deliveryItems[deliveryItemID] = it
	return nil
}

// --- Alerts ---

type memAlerts struct{ s *memStore }

// openMatch is the uniqueness rule for open alerts. Callers hold mu.
func (r memAlerts) openMatch(alertType string, itemID int64, batchID *int64) bool {
	for _, a := range r.s.alerts {
		if a.Acknowledged || a.AlertType != alertType {
			continue
		}
		if batchID != nil {
			if a.BatchID != nil && *a.BatchID == *batchID {
				return true
			}
			continue
		}
		if a.StockItemID == itemID && a.BatchID == nil {
			return true
		}
	}
	return false
}

func (r memAlerts) HasOpenAlert(ctx context.Context, _ repositories.SQLExecutor, alertType string, itemID int64, batchID *int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.openMatch(alertType, itemID, batchID), nil
}

func (r memAlerts) CreateAlert(ctx context.Context, _ repositories.SQLExecutor, alert *models.StockAlert) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.openMatch(alert.AlertType, alert.StockItemID, alert.BatchID) {
		return false, nil
	}
	alert.ID = r.s.nextID()
	alert.CreatedAt = r.s.now
	r.s.alerts[alert.ID] = *alert
	return true, nil
}

func (r memAlerts) GetAlert(ctx context.Context, _ repositories.SQLExecutor, id int64) (*models.StockAlert, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.alerts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &a, nil
}

func (r memAlerts) ListAlerts(ctx context.Context, acknowledged *bool) ([]models.StockAlert, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.StockAlert{}
	for _, a := range r.s.alerts {
		if acknowledged != nil && a.Acknowledged != *acknowledged {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memAlerts) AcknowledgeAlert(ctx context.Context, _ repositories.SQLExecutor, id, userID int64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.alerts[id]
	if !ok || a.Acknowledged {
		return repositories.ErrConditionFailed
	}
	a.Acknowledged = true
	a.AcknowledgedBy = &userID
	a.AcknowledgedAt = &at
	r.s.alerts[id] = a
	return nil
}

// --- Audit ---

type memAudit struct{ s *memStore }

func (r memAudit) CreateEntry(ctx context.Context, _ repositories.SQLExecutor, entry *models.AuditEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entry.ID = r.s.nextID()
	entry.CreatedAt = r.s.now
	r.s.audit = append(r.s.audit, *entry)
	return nil
}

func (r memAudit) ListEntries(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.AuditEntry{}
	for i := len(r.s.audit) - 1; i >= 0; i-- {
		e := r.s.audit[i]
		if filter.UserID != nil && (e.UserID == nil || *e.UserID != *filter.UserID) {
			continue
		}
		if filter.EntityType != nil && e.EntityType != *filter.EntityType {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// --- Notifications ---

type memNotifications struct{ s *memStore }

func (r memNotifications) CreateNotification(ctx context.Context, _ repositories.SQLExecutor, n *models.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n.ID = r.s.nextID()
	n.CreatedAt = r.s.now
	r.s.notifications[n.ID] = *n
	return nil
}

func (r memNotifications) ListForUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]models.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.Notification{}
	for _, n := range r.s.notifications {
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memNotifications) MarkRead(ctx context.Context, id, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifications[id]
	if !ok || n.UserID != userID {
		return repositories.ErrNotFound
	}
	n.Read = true
	r.s.notifications[id] = n
	return nil
}

func (r memNotifications) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for id, n := range r.s.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			r.s.notifications[id] = n
			count++
		}
	}
	return count, nil
}

// --- Schedules ---

type memSchedules struct{ s *memStore }

func (r memSchedules) CreateShift(ctx context.Context, _ repositories.SQLExecutor, shift *models.ShiftSchedule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[shift.UserID]; !ok {
		return repositories.ErrNotFound
	}
	shift.ID = r.s.nextID()
	shift.CreatedAt = r.s.now
	r.s.shifts[shift.ID] = *shift
	return nil
}

func (r memSchedules) GetShift(ctx context.Context, id int64) (*models.ShiftSchedule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sh, ok := r.s.shifts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &sh, nil
}

func (r memSchedules) list(keep func(models.ShiftSchedule) bool) []models.ShiftSchedule {
	out := []models.ShiftSchedule{}
	for _, sh := range r.s.shifts {
		if keep(sh) {
			out = append(out, sh)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ShiftDate.Equal(out[j].ShiftDate) {
			return out[i].ShiftDate.Before(out[j].ShiftDate)
		}
		return out[i].ShiftStart < out[j].ShiftStart
	})
	return out
}

func (r memSchedules) ListByDate(ctx context.Context, date time.Time) ([]models.ShiftSchedule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d := day(date)
	return r.list(func(sh models.ShiftSchedule) bool { return day(sh.ShiftDate).Equal(d) }), nil
}

func (r memSchedules) ListByUser(ctx context.Context, userID int64, from, to time.Time) ([]models.ShiftSchedule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.list(func(sh models.ShiftSchedule) bool {
		return sh.UserID == userID && !sh.ShiftDate.Before(from) && !sh.ShiftDate.After(to)
	}), nil
}

func (r memSchedules) DeleteShift(ctx context.Context, _ repositories.SQLExecutor, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.shifts[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.s.shifts, id)
	return nil
}

// --- Tasks ---

type memTasks struct{ s *memStore }

func (r memTasks) CreateTask(ctx context.Context, _ repositories.SQLExecutor, task *models.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	task.ID = r.s.nextID()
	task.CreatedAt = r.s.now
	r.s.tasks[task.ID] = *task
	return nil
}

func (r memTasks) GetTask(ctx context.Context, _ repositories.SQLExecutor, id int64) (*models.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tasks[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &t, nil
}

func sameDay(a *time.Time, b time.Time) bool {
	return a != nil && day(*a).Equal(day(b))
}

func (r memTasks) ListTasks(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.Task{}
	for _, t := range r.s.tasks {
		if filter.Date != nil && !sameDay(t.AssignedDate, *filter.Date) && !sameDay(t.DueDate, *filter.Date) {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.AssignedTo != nil {
			visible := t.AssignedTo != nil && *t.AssignedTo == *filter.AssignedTo
			if !visible && t.AssignmentType == models.AssignShiftBased {
				for _, d := range filter.ShiftDates {
					if sameDay(t.AssignedDate, d) {
						visible = true
						break
					}
				}
			}
			if !visible {
				continue
			}
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memTasks) UpdateTask(ctx context.Context, _ repositories.SQLExecutor, task *models.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tasks[task.ID]; !ok {
		return repositories.ErrNotFound
	}
	r.s.tasks[task.ID] = *task
	return nil
}

func (r memTasks) UpdateStatus(ctx context.Context, _ repositories.SQLExecutor, id int64, status string, completedBy *int64, completedAt *time.Time, notes *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tasks[id]
	if !ok {
		return repositories.ErrNotFound
	}
	t.Status = status
	t.CompletedBy, t.CompletedAt = completedBy, completedAt
	if notes != nil {
		t.CompletionNotes = notes
	}
	r.s.tasks[id] = t
	return nil
}

func (r memTasks) DeleteTask(ctx context.Context, _ repositories.SQLExecutor, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tasks[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.s.tasks, id)
	return nil
}

// --- Templates ---

type memTemplates struct{ s *memStore }

func (r memTemplates) ListTemplates(ctx context.Context) ([]models.TaskTemplate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := slices.Collect(maps.Values(r.s.templates))
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r memTemplates) GetTemplate(ctx context.Context, _ repositories.SQLExecutor, id int64) (*models.TaskTemplate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.templates[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &t, nil
}

func (r memTemplates) CreateTemplate(ctx context.Context, _ repositories.SQLExecutor, tmpl *models.TaskTemplate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tmpl.ID = r.s.nextID()
	tmpl.CreatedAt = r.s.now
	r.s.templates[tmpl.ID] = *tmpl
	return nil
}

func (r memTemplates) DeleteTemplate(ctx context.Context, _ repositories.SQLExecutor, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.templates[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.s.templates, id)
	return nil
}

// --- Reports ---

type memReports struct{ s *memStore }

func (r memReports) StockSummary(ctx context.Context, expiringFrom, expiringTo time.Time) (*models.StockSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sum := &models.StockSummary{}
	for _, item := range r.s.items {
		if !item.Active {
			continue
		}
		sum.TotalItems++
		switch models.StockStatusOf(item.CurrentQuantity, item.MinimumQuantity) {
		case models.StockStatusOut:
			sum.OutOfStockItems++
		case models.StockStatusLow:
			sum.LowStockItems++
		}
		sum.TotalValue = sum.TotalValue.Add(item.Value())
	}
	for _, d := range r.s.deliveries {
		if d.Status == models.DeliveryPending {
			sum.PendingDeliveries++
		}
	}
	for _, b := range r.s.batches {
		if b.Status == models.BatchStatusActive && b.ExpiryDate != nil &&
			!b.ExpiryDate.Before(expiringFrom) && !b.ExpiryDate.After(expiringTo) {
			sum.ExpiringBatches++
		}
	}
	for _, a := range r.s.alerts {
		if !a.Acknowledged {
			sum.OpenAlerts++
		}
	}
	return sum, nil
}

func (r memReports) StockValuation(ctx context.Context) ([]models.ValuationRow, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.ValuationRow{}
	for _, item := range r.s.items {
		if !item.Active {
			continue
		}
		row := models.ValuationRow{
			ItemID: item.ID, Name: item.Name, Unit: item.Unit,
			CurrentQuantity: item.CurrentQuantity, UnitCost: item.UnitCost, TotalValue: item.Value(),
		}
		if c, ok := r.s.categories[item.CategoryID]; ok {
			name := c.Name
			row.CategoryName = &name
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- Broadcaster ---

// recordingBroadcaster keeps every published event.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []models.Event
	fail   error
}

func (b *recordingBroadcaster) Publish(ctx context.Context, event models.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return b.fail
	}
	b.events = append(b.events, event)
	return nil
}

func (b *recordingBroadcaster) Subscribe(ctx context.Context, userID int64) (<-chan models.Event, func(), error) {
	ch := make(chan models.Event)
	return ch, func() {}, nil
}

func (b *recordingBroadcaster) Close() error { return nil }

func (b *recordingBroadcaster) ofType(eventType string) []models.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.Event
	for _, e := range b.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

var _ realtime.Broadcaster = (*recordingBroadcaster)(nil)

// --- Fixture ---

// fixture wires every service over one memStore with a pinned clock.
type fixture struct {
	store *memStore
	bus   *recordingBroadcaster
	today time.Time

	perms         PermissionService
	auth          AuthService
	users         UserService
	stock         StockService
	batches       BatchService
	deliveries    DeliveryService
	alerts        AlertService
	reports       ReportService
	schedules     ScheduleService
	tasks         TaskService
	templates     TemplateService
	notifications NotificationService
	audit         AuditService
}

var fixtureNow = time.Date(2024, time.June, 15, 10, 30, 0, 0, time.UTC)

func newFixture() *fixture {
	store := newMemStore(fixtureNow)
	bus := &recordingBroadcaster{}
	clock := func() time.Time { return fixtureNow }
	tx := memTx{s: store}

	stockDeps := StockDeps{
		Stock:        memStock{s: store},
		Batches:      memBatches{s: store},
		Transactions: memTransactions{s: store},
		Deliveries:   memDeliveries{s: store},
		Alerts:       memAlerts{s: store},
		Audit:        memAudit{s: store},
		Tx:           tx,
		Broadcaster:  bus,
		Clock:        clock,
	}
	alerts := NewAlertService(stockDeps, DefaultAlertSettings())
	perms := NewPermissionService(memPermissions{s: store}, memUsers{s: store}, memAudit{s: store}, tx)
	workDeps := WorkDeps{
		Users:         memUsers{s: store},
		Schedules:     memSchedules{s: store},
		Tasks:         memTasks{s: store},
		Templates:     memTemplates{s: store},
		Notifications: memNotifications{s: store},
		Audit:         memAudit{s: store},
		Tx:            tx,
		Permissions:   perms,
		Broadcaster:   bus,
		Clock:         clock,
	}

	return &fixture{
		store:         store,
		bus:           bus,
		today:         day(fixtureNow),
		perms:         perms,
		auth:          NewAuthService(memUsers{s: store}, memAudit{s: store}, tx),
		users:         NewUserService(memUsers{s: store}, memAudit{s: store}, tx),
		stock:         NewStockService(stockDeps, alerts),
		batches:       NewBatchService(stockDeps, alerts, 30),
		deliveries:    NewDeliveryService(stockDeps, alerts),
		alerts:        alerts,
		reports:       NewReportService(memReports{s: store}, workDeps, 7),
		schedules:     NewScheduleService(workDeps),
		tasks:         NewTaskService(workDeps),
		templates:     NewTemplateService(workDeps),
		notifications: NewNotificationService(memNotifications{s: store}),
		audit:         NewAuditService(memAudit{s: store}, perms),
	}
}

// addUser stores an active user with password "secret1".
func (f *fixture) addUser(username, role string) models.Principal {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	u := &models.User{Username: username, PasswordHash: string(hash), Role: role, FullName: username + " full", Active: true}
	if err := (memUsers{s: f.store}).CreateUser(context.Background(), nil, u); err != nil {
		panic(err)
	}
	return models.Principal{UserID: u.ID, Username: u.Username, Role: u.Role}
}

func (f *fixture) addCategory(name string) int64 {
	c := &models.StockCategory{Name: name}
	if err := (memStock{s: f.store}).CreateCategory(context.Background(), nil, c); err != nil {
		panic(err)
	}
	return c.ID
}

func (f *fixture) item(id int64) models.StockItem {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return f.store.items[id]
}

func (f *fixture) batchesOf(itemID int64) []models.StockBatch {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var out []models.StockBatch
	for _, b := range f.store.batches {
		if b.StockItemID == itemID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fixture) txnsOf(itemID int64, txnType string) []models.StockTransaction {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var out []models.StockTransaction
	for _, t := range f.store.txns {
		if t.StockItemID == itemID && (txnType == "" || t.TransactionType == txnType) {
			out = append(out, t)
		}
	}
	return out
}

func (f *fixture) alertsOf(itemID int64) []models.StockAlert {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var out []models.StockAlert
	for _, a := range f.store.alerts {
		if a.StockItemID == itemID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fixture) auditActions() []string {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	out := make([]string, 0, len(f.store.audit))
	for _, e := range f.store.audit {
		out = append(out, e.Action)
	}
	return out
}

func (f *fixture) notificationsFor(userID int64) []models.Notification {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var out []models.Notification
	for _, n := range f.store.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
