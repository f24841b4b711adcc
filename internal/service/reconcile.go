package service

import (
	"context"

	"github.com/zeineb-manai/depot-vente/internal/catalogue"
	"github.com/zeineb-manai/depot-vente/internal/models"
	"github.com/zeineb-manai/depot-vente/internal/util"

	"go.uber.org/zap"
)

// ReceiptedItem is an item that was sold on a durable receipt but still
// shows Available in the catalogue: the accepted partial-failure window of
// a sale, waiting for an operator to re-run the status update.
type ReceiptedItem struct {
	ItemID    string `json:"item_id"`
	ReceiptID string `json:"receipt_id"`
}

// ReconcileReport is the audit over both stores. Both lists are advisory
// inconsistency warnings, not errors: the scan never fails on them.
type ReconcileReport struct {
	// SoldWithoutReceipt lists items marked Sold with no receipt line
	// referencing them. This state is never produced by the sale flow and
	// indicates an out-of-band status edit.
	SoldWithoutReceipt []string `json:"sold_without_receipt"`
	// ReceiptedStillAvailable lists receipt lines whose item still shows
	// Available.
	ReceiptedStillAvailable []ReceiptedItem `json:"receipted_still_available"`
}

// Consistent reports whether the scan found nothing to repair.
func (r *ReconcileReport) Consistent() bool {
	return len(r.SoldWithoutReceipt) == 0 && len(r.ReceiptedStillAvailable) == 0
}

// Reconcile scans the catalogue against the ledger. The two stores share
// no transaction, so this read is the system's recovery mechanism: it makes
// both legitimate inconsistency states operator-visible.
func (s *SaleService) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	ctx, span := util.StartSpan(ctx, "SaleService.Reconcile")
	defer span.End()

	items, err := s.catalogue.List(ctx, catalogue.Filter{})
	if err != nil {
		return nil, err
	}
	refs, err := s.ledger.ListReceiptItemRefs(ctx)
	if err != nil {
		return nil, err
	}

	report := &ReconcileReport{}
	for _, it := range items {
		receiptID, receipted := refs[it.ID]
		switch {
		case it.Status == models.StatusSold && !receipted:
			report.SoldWithoutReceipt = append(report.SoldWithoutReceipt, it.ID)
		case it.Status == models.StatusAvailable && receipted:
			report.ReceiptedStillAvailable = append(report.ReceiptedStillAvailable, ReceiptedItem{
				ItemID:    it.ID,
				ReceiptID: receiptID,
			})
		}
	}

	util.LedgerInconsistencies.WithLabelValues("sold_without_receipt").
		Set(float64(len(report.SoldWithoutReceipt)))
	util.LedgerInconsistencies.WithLabelValues("receipted_still_available").
		Set(float64(len(report.ReceiptedStillAvailable)))

	if !report.Consistent() {
		s.logger.Warn("Catalogue/ledger inconsistency detected",
			zap.Strings("sold_without_receipt", report.SoldWithoutReceipt),
			zap.Int("receipted_still_available", len(report.ReceiptedStillAvailable)))
	}

	return report, nil
}

// Repair re-runs the catalogue status update for every receipted item still
// Available: the documented operator recovery for a sale interrupted after
// its ledger write.
func (s *SaleService) Repair(ctx context.Context) (*ReconcileReport, error) {
	report, err := s.Reconcile(ctx)
	if err != nil {
		return nil, err
	}
	if len(report.ReceiptedStillAvailable) == 0 {
		return report, nil
	}

	ids := make([]string, 0, len(report.ReceiptedStillAvailable))
	for _, ri := range report.ReceiptedStillAvailable {
		ids = append(ids, ri.ItemID)
	}
	if err := s.catalogue.MarkSold(ctx, ids); err != nil {
		return nil, err
	}
	s.logger.Info("Repaired receipted items left Available", zap.Strings("item_ids", ids))

	return s.Reconcile(ctx)
}
