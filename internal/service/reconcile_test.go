package service

import (
	"context"
	"testing"

	"github.com/zeineb-manai/depot-vente/internal/models"
	"github.com/zeineb-manai/depot-vente/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileCleanAfterSale(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	buyer := env.addUser(t, "Bob")
	lamp := env.addItem(t, "Lamp", "North", 20.0, "")

	_, err := env.service.RecordSale(ctx, &RecordSaleRequest{
		ActorID: buyer.ID,
		Role:    models.RoleBuyer,
		ItemIDs: []string{lamp.ID},
	})
	require.NoError(t, err)

	report, err := env.service.Reconcile(ctx)
	require.NoError(t, err)
	assert.True(t, report.Consistent())
	assert.Empty(t, report.SoldWithoutReceipt)
	assert.Empty(t, report.ReceiptedStillAvailable)
}

func TestReconcileReportsSoldWithoutReceipt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	lamp := env.addItem(t, "Lamp", "North", 20.0, "")

	// Out-of-band status edit with no sale behind it.
	require.NoError(t, env.catalogue.MarkSold(ctx, []string{lamp.ID}))

	report, err := env.service.Reconcile(ctx)
	require.NoError(t, err)
	assert.False(t, report.Consistent())
	assert.Equal(t, []string{lamp.ID}, report.SoldWithoutReceipt)
	assert.Empty(t, report.ReceiptedStillAvailable)
}

func TestReconcileReportsReceiptedStillAvailable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	buyer := env.addUser(t, "Bob")
	lamp := env.addItem(t, "Lamp", "North", 20.0, "")

	// A receipt written directly, as if the sale died before the status
	// update.
	receipt, err := env.ledger.AppendReceipt(ctx, buyer.ID, models.RoleBuyer,
		[]store.Line{{ItemID: lamp.ID, Article: "Lamp", Depot: "North", Price: 20}})
	require.NoError(t, err)

	report, err := env.service.Reconcile(ctx)
	require.NoError(t, err)
	assert.False(t, report.Consistent())
	assert.Empty(t, report.SoldWithoutReceipt)
	assert.Equal(t, []ReceiptedItem{{ItemID: lamp.ID, ReceiptID: receipt.ID}},
		report.ReceiptedStillAvailable)
}

func TestRepairMarksReceiptedItemsSold(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	buyer := env.addUser(t, "Bob")
	lamp := env.addItem(t, "Lamp", "North", 20.0, "")

	_, err := env.ledger.AppendReceipt(ctx, buyer.ID, models.RoleBuyer,
		[]store.Line{{ItemID: lamp.ID, Article: "Lamp", Depot: "North", Price: 20}})
	require.NoError(t, err)

	report, err := env.service.Repair(ctx)
	require.NoError(t, err)
	assert.True(t, report.Consistent())

	got, err := env.catalogue.Get(ctx, lamp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSold, got.Status)
}

func TestRepairNoopWhenConsistent(t *testing.T) {
	env := newTestEnv(t)

	report, err := env.service.Repair(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Consistent())
}
