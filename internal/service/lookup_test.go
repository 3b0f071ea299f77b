package service

import (
	"context"
	"errors"
	"testing"

	"freight-erp/internal/model"
	"freight-erp/internal/permission"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errConnReset = errors.New("connection reset by peer")

type brokenUserRepo struct{ *fakeUserRepo }

func (brokenUserRepo) GetByID(context.Context, uuid.UUID) (*model.User, error) {
	return nil, errConnReset
}

type brokenPaymentRepo struct{ *fakePaymentRepo }

func (brokenPaymentRepo) FindByID(context.Context, uuid.UUID) (*model.Payment, error) {
	return nil, errConnReset
}

func TestLookupErrorKeepsStorageFailures(t *testing.T) {
	assert.ErrorIs(t, lookupError(errConnReset, "user"), errConnReset)
	assert.NotErrorIs(t, lookupError(errConnReset, "user"), ErrNotFound)
}

func TestGetUserByIDDistinguishesMissingFromBroken(t *testing.T) {
	ctx := context.Background()
	admin := profileFor(permission.RoleAdmin)
	missing := uuid.NewString()

	f := newUserFixture()
	_, err := f.svc.GetUserByID(ctx, admin, missing)
	assert.ErrorIs(t, err, ErrNotFound)

	broken := NewUserService(brokenUserRepo{newFakeUserRepo()}, newFakeTokenRepo(), &fakeAuditRepo{}, passThroughTx{}, TokenConfig{
		Secret: testSecret,
	}, testLogger())
	_, err = broken.GetUserByID(ctx, admin, missing)
	require.Error(t, err)
	assert.ErrorIs(t, err, errConnReset)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = broken.GetMe(ctx, missing)
	assert.ErrorIs(t, err, errConnReset)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestDeletePaymentStorageFailureIsNotNotFound(t *testing.T) {
	ctx := context.Background()
	payments := &fakePaymentRepo{}
	invoices := newFakeInvoiceRepo(payments)
	inv := &model.Invoice{InvoiceNo: "INV-20250310-00001", Status: "sent"}
	require.NoError(t, invoices.Create(ctx, inv))

	svc := NewPaymentService(invoices, brokenPaymentRepo{payments}, &fakeAuditRepo{}, passThroughTx{}, nil, testLogger())
	_, err := svc.DeletePayment(ctx, profileFor(permission.RoleFinance), inv.ID.String(), uuid.NewString())
	require.Error(t, err)
	assert.ErrorIs(t, err, errConnReset)
	assert.NotErrorIs(t, err, ErrNotFound)

	svc = NewPaymentService(invoices, payments, &fakeAuditRepo{}, passThroughTx{}, nil, testLogger())
	_, err = svc.DeletePayment(ctx, profileFor(permission.RoleFinance), inv.ID.String(), uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}
