package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"freight-erp/internal/model"
	"freight-erp/internal/permission"
	"freight-erp/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// In-memory repositories. Every read hands out a copy so services only see their
// writes after calling Update, the same as with a real database.

type passThroughTx struct{}

func (passThroughTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

var fixedNow = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func testLogger() zerolog.Logger { return zerolog.Nop() }

func profileFor(role permission.Role) *permission.Profile {
	return &permission.Profile{
		UserID:          uuid.NewString(),
		Role:            role,
		CustomDashboard: permission.DashboardDefault,
		IsActive:        true,
		Permissions:     permission.GetDefaultPermissions(string(role)),
	}
}

// --- users ---

type fakeUserRepo struct {
	mu     sync.Mutex
	roster sync.Mutex
	users  map[uuid.UUID]model.User
	// rosterLocks counts LockAdminRoster calls
	rosterLocks int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[uuid.UUID]model.User{}}
}

func (r *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = fixedNow
	user.UpdatedAt = fixedNow
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (r *fakeUserRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeUserRepo) find(match func(u model.User) bool) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.Email == email })
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.Username == username })
}

func (r *fakeUserRepo) List(_ context.Context, filter repository.UserListFilter) ([]model.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.User
	for _, u := range r.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.IsActive != nil && u.IsActive != *filter.IsActive {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, int64(len(out)), nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) CountActiveAdmins(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.users {
		if holdsAdmin(&u) {
			n++
		}
	}
	return n, nil
}

// LockAdminRoster holds the roster until the surrounding lockingTx returns. Outside a
// lockingTx it only counts the call.
func (r *fakeUserRepo) LockAdminRoster(ctx context.Context) error {
	if held, ok := ctx.Value(heldLocksKey{}).(*heldLocks); ok {
		r.roster.Lock()
		held.unlocks = append(held.unlocks, r.roster.Unlock)
	}
	r.mu.Lock()
	r.rosterLocks++
	r.mu.Unlock()
	return nil
}

type fakeTokenRepo struct {
	tokens map[uuid.UUID]model.RefreshToken
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: map[uuid.UUID]model.RefreshToken{}}
}

func (r *fakeTokenRepo) Create(_ context.Context, token *model.RefreshToken) error {
	token.ID = uuid.New()
	r.tokens[token.ID] = *token
	return nil
}

func (r *fakeTokenRepo) FindByToken(_ context.Context, token string) (*model.RefreshToken, error) {
	for _, t := range r.tokens {
		if t.Token == token {
			found := t
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeTokenRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.tokens, id)
	return nil
}

func (r *fakeTokenRepo) DeleteByUser(_ context.Context, userID uuid.UUID) error {
	for id, t := range r.tokens {
		if t.UserID == userID {
			delete(r.tokens, id)
		}
	}
	return nil
}

// --- audit ---

type fakeAuditRepo struct {
	entries []model.AuditLog
}

func (r *fakeAuditRepo) Log(_ context.Context, entry *model.AuditLog) error {
	entry.ID = uuid.New()
	entry.CreatedAt = fixedNow
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeAuditRepo) List(_ context.Context, filter repository.AuditListFilter) ([]model.AuditLog, int64, error) {
	var out []model.AuditLog
	for _, e := range r.entries {
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.EntityType != "" && e.EntityType != filter.EntityType {
			continue
		}
		out = append(out, e)
	}
	return out, int64(len(out)), nil
}

func (r *fakeAuditRepo) actions() []string {
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

// --- invoices & payments ---

type fakePaymentRepo struct {
	payments []model.Payment
}

func (r *fakePaymentRepo) Create(_ context.Context, payment *model.Payment) error {
	payment.ID = uuid.New()
	payment.CreatedAt = fixedNow
	r.payments = append(r.payments, *payment)
	return nil
}

func (r *fakePaymentRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Payment, error) {
	for _, p := range r.payments {
		if p.ID == id {
			found := p
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakePaymentRepo) ListByInvoice(_ context.Context, invoiceID uuid.UUID) ([]model.Payment, error) {
	var out []model.Payment
	for _, p := range r.payments {
		if p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) Delete(_ context.Context, id uuid.UUID) error {
	for i, p := range r.payments {
		if p.ID == id {
			r.payments = append(r.payments[:i], r.payments[i+1:]...)
			return nil
		}
	}
	return nil
}

type fakeInvoiceRepo struct {
	invoices map[uuid.UUID]model.Invoice
	payments *fakePaymentRepo
}

func newFakeInvoiceRepo(payments *fakePaymentRepo) *fakeInvoiceRepo {
	return &fakeInvoiceRepo{invoices: map[uuid.UUID]model.Invoice{}, payments: payments}
}

func (r *fakeInvoiceRepo) Create(_ context.Context, invoice *model.Invoice) error {
	if invoice.ID == uuid.Nil {
		invoice.ID = uuid.New()
	}
	invoice.CreatedAt = fixedNow
	r.invoices[invoice.ID] = *invoice
	return nil
}

func (r *fakeInvoiceRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &inv, nil
}

func (r *fakeInvoiceRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeInvoiceRepo) FindByIDWithPayments(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	inv, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	inv.Payments, _ = r.payments.ListByInvoice(ctx, id)
	return inv, nil
}

func (r *fakeInvoiceRepo) List(_ context.Context, filter repository.InvoiceListFilter) ([]model.Invoice, int64, error) {
	var out []model.Invoice
	for _, inv := range r.invoices {
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		if filter.InvoiceNo != "" && !strings.Contains(inv.InvoiceNo, filter.InvoiceNo) {
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvoiceNo < out[j].InvoiceNo })
	return out, int64(len(out)), nil
}

func (r *fakeInvoiceRepo) ListOverdueCandidates(_ context.Context, now time.Time) ([]model.Invoice, error) {
	var out []model.Invoice
	for _, inv := range r.invoices {
		switch inv.Status {
		case "sent", "received", "partial":
			if inv.DueDate != nil && inv.DueDate.Before(now) {
				out = append(out, inv)
			}
		}
	}
	return out, nil
}

func (r *fakeInvoiceRepo) Update(_ context.Context, invoice *model.Invoice) error {
	stored := *invoice
	stored.Payments = nil
	r.invoices[invoice.ID] = stored
	return nil
}

func (r *fakeInvoiceRepo) CountByPrefix(_ context.Context, prefix string) (int64, error) {
	var n int64
	for _, inv := range r.invoices {
		if strings.HasPrefix(inv.InvoiceNo, prefix) {
			n++
		}
	}
	return n, nil
}

// --- PJOs & job orders ---

type fakePJORepo struct {
	pjos  map[uuid.UUID]model.PJO
	items []model.PJOCostItem
}

func newFakePJORepo() *fakePJORepo {
	return &fakePJORepo{pjos: map[uuid.UUID]model.PJO{}}
}

func (r *fakePJORepo) Create(_ context.Context, pjo *model.PJO) error {
	pjo.ID = uuid.New()
	pjo.CreatedAt = fixedNow
	for i := range pjo.CostItems {
		pjo.CostItems[i].ID = uuid.New()
		pjo.CostItems[i].PJOID = pjo.ID
		r.items = append(r.items, pjo.CostItems[i])
	}
	stored := *pjo
	stored.CostItems = nil
	r.pjos[pjo.ID] = stored
	return nil
}

func (r *fakePJORepo) FindByID(ctx context.Context, id uuid.UUID) (*model.PJO, error) {
	pjo, err := r.FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	pjo.CostItems, _ = r.ListCostItems(ctx, id)
	return pjo, nil
}

func (r *fakePJORepo) FindByIDForUpdate(_ context.Context, id uuid.UUID) (*model.PJO, error) {
	pjo, ok := r.pjos[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &pjo, nil
}

func (r *fakePJORepo) List(ctx context.Context, status string, _, _ int) ([]model.PJO, int64, error) {
	var out []model.PJO
	for id, pjo := range r.pjos {
		if status != "" && pjo.Status != status {
			continue
		}
		pjo.CostItems, _ = r.ListCostItems(ctx, id)
		out = append(out, pjo)
	}
	return out, int64(len(out)), nil
}

func (r *fakePJORepo) Update(_ context.Context, pjo *model.PJO) error {
	stored := *pjo
	stored.CostItems = nil
	r.pjos[pjo.ID] = stored
	return nil
}

func (r *fakePJORepo) CountByPrefix(_ context.Context, prefix string) (int64, error) {
	var n int64
	for _, pjo := range r.pjos {
		if strings.HasPrefix(pjo.PJONumber, prefix) {
			n++
		}
	}
	return n, nil
}

func (r *fakePJORepo) FindCostItem(_ context.Context, pjoID, itemID uuid.UUID) (*model.PJOCostItem, error) {
	for _, item := range r.items {
		if item.ID == itemID && item.PJOID == pjoID {
			found := item
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakePJORepo) ListCostItems(_ context.Context, pjoID uuid.UUID) ([]model.PJOCostItem, error) {
	var out []model.PJOCostItem
	for _, item := range r.items {
		if item.PJOID == pjoID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *fakePJORepo) UpdateCostItem(_ context.Context, item *model.PJOCostItem) error {
	for i := range r.items {
		if r.items[i].ID == item.ID {
			r.items[i] = *item
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type fakeJobOrderRepo struct {
	orders map[uuid.UUID]model.JobOrder
}

func newFakeJobOrderRepo() *fakeJobOrderRepo {
	return &fakeJobOrderRepo{orders: map[uuid.UUID]model.JobOrder{}}
}

func (r *fakeJobOrderRepo) Create(_ context.Context, jo *model.JobOrder) error {
	for _, existing := range r.orders {
		if existing.PJOID == jo.PJOID {
			return gorm.ErrDuplicatedKey
		}
	}
	jo.ID = uuid.New()
	jo.CreatedAt = fixedNow
	r.orders[jo.ID] = *jo
	return nil
}

func (r *fakeJobOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*model.JobOrder, error) {
	jo, ok := r.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &jo, nil
}

func (r *fakeJobOrderRepo) FindByPJOID(_ context.Context, pjoID uuid.UUID) (*model.JobOrder, error) {
	for _, jo := range r.orders {
		if jo.PJOID == pjoID {
			found := jo
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeJobOrderRepo) CountByPrefix(_ context.Context, prefix string) (int64, error) {
	var n int64
	for _, jo := range r.orders {
		if strings.HasPrefix(jo.JONumber, prefix) {
			n++
		}
	}
	return n, nil
}

// --- events ---

type publishedEvent struct {
	Name string
	Data map[string]interface{}
}

type recordingPublisher struct {
	events []publishedEvent
}

func (p *recordingPublisher) Publish(event string, data map[string]interface{}) {
	p.events = append(p.events, publishedEvent{Name: event, Data: data})
}

func (p *recordingPublisher) names() []string {
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Name)
	}
	return out
}
