package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zeineb-manai/depot-vente/internal/broker"
	"github.com/zeineb-manai/depot-vente/internal/catalogue"
	"github.com/zeineb-manai/depot-vente/internal/models"
	"github.com/zeineb-manai/depot-vente/internal/redisclient"
	"github.com/zeineb-manai/depot-vente/internal/store"
	"github.com/zeineb-manai/depot-vente/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultCommissionRate is the depot's cut of a completed sale.
const DefaultCommissionRate = 0.25

// SaleService coordinates the two-store write a sale requires: a receipt
// appended to the ledger and a status flip in the catalogue. The two stores
// share no transaction, so ordering is the correctness mechanism: the
// receipt must be durable before the catalogue is touched. If the status
// update then fails, the system holds a receipt referencing items still
// Available, which an operator can repair; the reverse (Sold items with no
// receipt) loses revenue attribution and is never produced by this path.
type SaleService struct {
	catalogue      *catalogue.Store
	ledger         *store.Store
	cache          *redisclient.Client
	eventPublisher *broker.EventPublisher
	commissionRate float64
	logger         *zap.Logger
}

// NewSaleService creates a new sale service. cache and eventPublisher may
// be nil; both are best-effort collaborators.
func NewSaleService(
	cat *catalogue.Store,
	ledger *store.Store,
	cache *redisclient.Client,
	eventPublisher *broker.EventPublisher,
	commissionRate float64,
) *SaleService {
	if commissionRate <= 0 || commissionRate >= 1 {
		commissionRate = DefaultCommissionRate
	}
	return &SaleService{
		catalogue:      cat,
		ledger:         ledger,
		cache:          cache,
		eventPublisher: eventPublisher,
		commissionRate: commissionRate,
		logger:         util.GetLogger(),
	}
}

// RecordSaleRequest represents a request to record a sale
type RecordSaleRequest struct {
	// ActorID is the user the receipt is attributed to: the buyer, whether
	// they acted directly or the owner acted on their behalf.
	ActorID string `json:"actor_id" binding:"required"`
	// Role records who physically executed the sale: "buyer" or "owner".
	Role string `json:"role" binding:"required"`
	// ItemIDs selects the catalogue items being sold.
	ItemIDs []string `json:"item_ids" binding:"required,min=1"`

	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// RecordSaleResponse represents the outcome of a recorded sale
type RecordSaleResponse struct {
	ReceiptID string  `json:"receipt_id"`
	Total     float64 `json:"total"`
	// ReceiptText is the canonical textual rendering of the new receipt.
	ReceiptText string `json:"receipt_text"`
	// CatalogueUpdated is false when the receipt committed but the status
	// flip failed; the reconciliation scan reports such sales until an
	// operator re-runs the update.
	CatalogueUpdated bool `json:"catalogue_updated"`
}

// RecordSale records a sale: validate actor, snapshot the selected items,
// append the receipt, then mark the items Sold. Ledger first, catalogue
// second, always.
func (s *SaleService) RecordSale(ctx context.Context, req *RecordSaleRequest) (*RecordSaleResponse, error) {
	ctx, span := util.StartSpan(ctx, "SaleService.RecordSale")
	defer span.End()

	if !models.ValidRole(req.Role) {
		util.SalesFailedTotal.WithLabelValues("invalid_role").Inc()
		return nil, fmt.Errorf("role %q must be %q or %q: %w",
			req.Role, models.RoleBuyer, models.RoleOwner, models.ErrValidation)
	}

	if req.IdempotencyKey != "" && s.cache != nil {
		receiptID, found, err := s.cache.GetIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			s.logger.Warn("Idempotency lookup failed, proceeding",
				zap.String("key", req.IdempotencyKey), zap.Error(err))
		} else if found {
			s.logger.Info("Duplicate sale request detected",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.String("receipt_id", receiptID))
			return s.replay(ctx, receiptID)
		}
	}

	// A sale must always be attributable to a known user.
	exists, err := s.ledger.ValidateUserID(ctx, req.ActorID)
	if err != nil {
		util.SalesFailedTotal.WithLabelValues("storage_error").Inc()
		return nil, err
	}
	if !exists {
		util.SalesFailedTotal.WithLabelValues("unknown_actor").Inc()
		return nil, fmt.Errorf("actor %s: %w", req.ActorID, models.ErrNotFound)
	}

	// Snapshot, not live reference: later catalogue edits must never alter
	// this receipt.
	lines := make([]store.Line, 0, len(req.ItemIDs))
	for _, id := range req.ItemIDs {
		item, err := s.catalogue.Get(ctx, id)
		if err != nil {
			util.SalesFailedTotal.WithLabelValues("unknown_item").Inc()
			return nil, err
		}
		lines = append(lines, store.Line{
			ItemID:  item.ID,
			Article: item.Article,
			Depot:   item.Depot,
			Price:   item.Price,
		})
	}

	start := time.Now()
	receipt, err := s.ledger.AppendReceipt(ctx, req.ActorID, req.Role, lines)
	util.ReceiptAppendLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		util.SalesFailedTotal.WithLabelValues("ledger_error").Inc()
		return nil, fmt.Errorf("failed to append receipt: %w", err)
	}

	util.ReceiptsAppendedTotal.Inc()
	util.SalesRecordedTotal.Inc()
	s.logger.Info("Receipt appended",
		zap.String("receipt_id", receipt.ID),
		zap.Float64("total", receipt.Total))

	catalogueUpdated := true
	if err := s.catalogue.MarkSold(ctx, req.ItemIDs); err != nil {
		// The receipt is durable; do not undo it. The sale stands and the
		// catalogue is repaired through the reconciliation scan.
		catalogueUpdated = false
		util.CatalogueSyncFailedTotal.Inc()
		s.logger.Error("Catalogue status update failed after receipt commit",
			zap.String("receipt_id", receipt.ID),
			zap.Strings("item_ids", req.ItemIDs),
			zap.Error(err))
	}

	s.afterSale(ctx, req, receipt, lines, catalogueUpdated)

	text, err := s.ledger.RenderReceiptText(ctx, receipt.ID)
	if err != nil {
		s.logger.Warn("Failed to render receipt", zap.String("receipt_id", receipt.ID), zap.Error(err))
	}

	return &RecordSaleResponse{
		ReceiptID:        receipt.ID,
		Total:            receipt.Total,
		ReceiptText:      text,
		CatalogueUpdated: catalogueUpdated,
	}, nil
}

// afterSale runs the best-effort tail of a sale: cache maintenance,
// idempotency record, event publish. Nothing here can fail the sale.
func (s *SaleService) afterSale(
	ctx context.Context,
	req *RecordSaleRequest,
	receipt *models.Receipt,
	lines []store.Line,
	catalogueUpdated bool,
) {
	if s.cache != nil {
		if err := s.cache.InvalidateListing(ctx); err != nil {
			s.logger.Warn("Failed to invalidate listing cache", zap.Error(err))
		}
		if req.IdempotencyKey != "" {
			if err := s.cache.SetIdempotencyKey(ctx, req.IdempotencyKey, receipt.ID); err != nil {
				s.logger.Warn("Failed to record idempotency key", zap.Error(err))
			}
		}
	}

	if s.eventPublisher != nil {
		items := make([]models.SaleItemData, 0, len(lines))
		for _, l := range lines {
			items = append(items, models.SaleItemData{
				ItemID:  l.ItemID,
				Article: l.Article,
				Depot:   l.Depot,
				Price:   l.Price,
			})
		}
		event := &models.SaleRecordedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeSaleRecorded,
				Timestamp: time.Now(),
			},
			ReceiptID:        receipt.ID,
			ActorID:          receipt.UserID,
			Role:             receipt.Role,
			Total:            receipt.Total,
			Items:            items,
			CatalogueUpdated: catalogueUpdated,
		}
		if err := s.eventPublisher.PublishSaleRecorded(ctx, event); err != nil {
			s.logger.Error("Failed to publish SaleRecorded event", zap.Error(err))
		}
	}
}

// replay rebuilds the response for a sale already recorded under the same
// idempotency key. CatalogueUpdated is re-checked against the items'
// current status: the first attempt may have committed its receipt and
// still failed the status flip.
func (s *SaleService) replay(ctx context.Context, receiptID string) (*RecordSaleResponse, error) {
	receipt, items, err := s.ledger.GetReceipt(ctx, receiptID)
	if err != nil {
		return nil, err
	}

	catalogueUpdated := true
	for _, it := range items {
		current, err := s.catalogue.Get(ctx, it.ItemID)
		if errors.Is(err, models.ErrNotFound) {
			// Deleted since the sale; nothing left to flip.
			continue
		}
		if err != nil {
			return nil, err
		}
		if current.Status == models.StatusAvailable {
			catalogueUpdated = false
			break
		}
	}

	text, err := s.ledger.RenderReceiptText(ctx, receiptID)
	if err != nil {
		return nil, err
	}
	return &RecordSaleResponse{
		ReceiptID:        receipt.ID,
		Total:            receipt.Total,
		ReceiptText:      text,
		CatalogueUpdated: catalogueUpdated,
	}, nil
}

// CommissionSplit splits a sale total into the depot's share and the
// seller's net share. Pure function: depotShare = total*rate, netShare is
// the remainder.
func CommissionSplit(total, rate float64) (depotShare, netShare float64) {
	depotShare = total * rate
	netShare = total - depotShare
	return depotShare, netShare
}

// CommissionQuote prices a selection of items without recording anything:
// the owner's commission preview over the current catalogue state.
type CommissionQuote struct {
	Total      float64 `json:"total"`
	DepotShare float64 `json:"depot_share"`
	NetShare   float64 `json:"net_share"`
}

// QuoteCommission computes the commission split over the given items.
func (s *SaleService) QuoteCommission(ctx context.Context, itemIDs []string) (*CommissionQuote, error) {
	var total float64
	for _, id := range itemIDs {
		item, err := s.catalogue.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		total += item.Price
	}
	depot, net := CommissionSplit(total, s.commissionRate)
	return &CommissionQuote{Total: total, DepotShare: depot, NetShare: net}, nil
}
