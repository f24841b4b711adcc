package worker

import (
	"context"
	"log"

	"github.com/zeineb-manai/depot-vente/internal/broker"
	"github.com/zeineb-manai/depot-vente/internal/models"
	"github.com/zeineb-manai/depot-vente/internal/service"
)

// AuditWorker consumes sale events and re-runs the catalogue/ledger
// reconciliation scan after each one. A sale whose catalogue update failed
// surfaces here within one event of happening instead of waiting for an
// operator to ask.
type AuditWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	sales        *service.SaleService
}

// NewAuditWorker creates a new audit worker
func NewAuditWorker(consumer *broker.Consumer, sales *service.SaleService) *AuditWorker {
	eventHandler := broker.NewEventHandler()

	w := &AuditWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		sales:        sales,
	}
	eventHandler.OnSaleRecorded(w.handleSaleRecorded)
	return w
}

// Start starts the worker
func (w *AuditWorker) Start(ctx context.Context) error {
	log.Println("Starting audit worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *AuditWorker) Stop() error {
	log.Println("Stopping audit worker...")
	return w.consumer.Close()
}

func (w *AuditWorker) handleSaleRecorded(ctx context.Context, event *models.SaleRecordedEvent) error {
	if !event.CatalogueUpdated {
		log.Printf("Sale %s committed without catalogue update, scanning", event.ReceiptID)
	}

	report, err := w.sales.Reconcile(ctx)
	if err != nil {
		return err
	}
	if !report.Consistent() {
		log.Printf("Reconciliation after sale %s: %d sold-without-receipt, %d receipted-still-available",
			event.ReceiptID, len(report.SoldWithoutReceipt), len(report.ReceiptedStillAvailable))
	}
	return nil
}
