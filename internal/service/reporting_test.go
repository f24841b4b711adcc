package service

import (
	"context"
	"testing"

	"github.com/zeineb-manai/depot-vente/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportTalliesSellerItems(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.addUser(t, "Alice")
	buyer := env.addUser(t, "Bob")

	sold := env.addItem(t, "Lamp", "North", 100.0, alice.ID)
	env.addItem(t, "Chair", "South", 5.0, alice.ID)
	env.addItem(t, "Rug", "West", 7.0, buyer.ID) // someone else's item

	_, err := env.service.RecordSale(ctx, &RecordSaleRequest{
		ActorID: buyer.ID,
		Role:    models.RoleBuyer,
		ItemIDs: []string{sold.ID},
	})
	require.NoError(t, err)

	report, err := env.service.Report(ctx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, report.User)
	assert.Equal(t, "Alice", report.User.Name)
	assert.Equal(t, 2, report.TotalItems)
	assert.Equal(t, 1, report.SoldCount)
	assert.Equal(t, 1, report.AvailableCount)
	assert.Equal(t, 100.0, report.GrossSold)
	assert.Equal(t, 75.0, report.SellerIncome)
	require.Len(t, report.SoldItems, 1)
	assert.Equal(t, sold.ID, report.SoldItems[0].ID)
	assert.Empty(t, report.ReceiptIDs) // Alice was not the actor of the sale
}

func TestReportIncludesActorReceipts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	buyer := env.addUser(t, "Bob")
	lamp := env.addItem(t, "Lamp", "North", 20.0, "")

	resp, err := env.service.RecordSale(ctx, &RecordSaleRequest{
		ActorID: buyer.ID,
		Role:    models.RoleBuyer,
		ItemIDs: []string{lamp.ID},
	})
	require.NoError(t, err)

	report, err := env.service.Report(ctx, buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{resp.ReceiptID}, report.ReceiptIDs)
}

func TestReportDanglingUserID(t *testing.T) {
	env := newTestEnv(t)

	report, err := env.service.Report(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, report.User)
	assert.Equal(t, "ghost", report.UserID)
	assert.Zero(t, report.TotalItems)
}

func TestRenderReceipts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	buyer := env.addUser(t, "Bob")
	a := env.addItem(t, "Lamp", "North", 20.0, "")
	b := env.addItem(t, "Chair", "South", 5.0, "")

	first, err := env.service.RecordSale(ctx, &RecordSaleRequest{
		ActorID: buyer.ID, Role: models.RoleBuyer, ItemIDs: []string{a.ID},
	})
	require.NoError(t, err)
	second, err := env.service.RecordSale(ctx, &RecordSaleRequest{
		ActorID: buyer.ID, Role: models.RoleBuyer, ItemIDs: []string{b.ID},
	})
	require.NoError(t, err)

	texts, err := env.service.RenderReceipts(ctx, []string{first.ReceiptID, second.ReceiptID})
	require.NoError(t, err)
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "Receipt ID: "+first.ReceiptID+"\n")
	assert.Contains(t, texts[1], "Receipt ID: "+second.ReceiptID+"\n")
}
