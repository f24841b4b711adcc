package service

import (
	"context"
	"errors"

	"github.com/zeineb-manai/depot-vente/internal/catalogue"
	"github.com/zeineb-manai/depot-vente/internal/models"
	"github.com/zeineb-manai/depot-vente/internal/util"

	"go.uber.org/zap"
)

// UserReport is the per-user summary over catalogue and ledger: the items
// a user consigned, what sold, and every receipt attributed to them as
// actor.
type UserReport struct {
	// User is nil when the id no longer resolves. A dangling reference is
	// advisory, never an error: the report still covers the user's items
	// and receipts.
	User *models.User `json:"user,omitempty"`
	// UserID repeats the requested id so dangling references stay legible.
	UserID string `json:"user_id"`

	TotalItems     int     `json:"total_items"`
	SoldCount      int     `json:"sold_count"`
	AvailableCount int     `json:"available_count"`
	GrossSold      float64 `json:"gross_sold"`
	// SellerIncome is GrossSold after the depot's commission.
	SellerIncome float64 `json:"seller_income"`

	SoldItems      []models.Item `json:"sold_items"`
	AvailableItems []models.Item `json:"available_items"`
	// ReceiptIDs lists the user's receipts as actor, newest first.
	ReceiptIDs []string `json:"receipt_ids"`
}

// Report builds the summary for one user. Items are read live from the
// catalogue (filtered by seller id), receipts from the ledger.
func (s *SaleService) Report(ctx context.Context, userID string) (*UserReport, error) {
	ctx, span := util.StartSpan(ctx, "SaleService.Report")
	defer span.End()

	report := &UserReport{UserID: userID}

	user, err := s.ledger.GetUser(ctx, userID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if user == nil {
		// Seller references may go stale; render as unknown rather than
		// fail the read.
		s.logger.Warn("Report for unresolvable user id", zap.String("user_id", userID))
	}
	report.User = user

	items, err := s.catalogue.List(ctx, catalogue.Filter{SellerID: userID})
	if err != nil {
		return nil, err
	}

	for _, it := range items {
		report.TotalItems++
		if it.Status == models.StatusSold {
			report.SoldCount++
			report.GrossSold += it.Price
			report.SoldItems = append(report.SoldItems, it)
		} else {
			report.AvailableCount++
			report.AvailableItems = append(report.AvailableItems, it)
		}
	}
	_, report.SellerIncome = CommissionSplit(report.GrossSold, s.commissionRate)

	receiptIDs, err := s.ledger.ListReceiptsByActor(ctx, userID)
	if err != nil {
		return nil, err
	}
	report.ReceiptIDs = receiptIDs

	return report, nil
}

// RenderReceipts renders the given receipts in their canonical textual
// form, in order.
func (s *SaleService) RenderReceipts(ctx context.Context, receiptIDs []string) ([]string, error) {
	texts := make([]string, 0, len(receiptIDs))
	for _, id := range receiptIDs {
		text, err := s.ledger.RenderReceiptText(ctx, id)
		if err != nil {
			return nil, err
		}
		texts = append(texts, text)
	}
	return texts, nil
}
