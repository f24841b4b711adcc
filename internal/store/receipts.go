package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/zeineb-manai/depot-vente/internal/models"

	"github.com/google/uuid"
)

// Line is the input to AppendReceipt: a snapshot of an item's descriptive
// fields and price taken at sale time.
type Line struct {
	ItemID  string
	Article string
	Depot   string
	Price   float64
}

// AppendReceipt persists a receipt header and all of its line items in one
// database transaction. Total is the exact sum of the line prices (0 for an
// empty sequence) and is never recomputed afterwards. A header without
// lines, or lines without a header, is a corruption state readers must
// never see, which is why both tables commit together.
func (s *Store) AppendReceipt(ctx context.Context, actorID, role string, lines []Line) (*models.Receipt, error) {
	if !models.ValidRole(role) {
		return nil, fmt.Errorf("role %q must be %q or %q: %w",
			role, models.RoleBuyer, models.RoleOwner, models.ErrValidation)
	}

	receipt := &models.Receipt{
		ID:        uuid.New().String(),
		UserID:    actorID,
		Role:      role,
		CreatedAt: s.nowISO(),
	}
	for _, l := range lines {
		receipt.Total += l.Price
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning receipt transaction: %v: %w", err, models.ErrStorage)
	}
	defer tx.Rollback()

	insertHeader := tx.Rebind(
		`INSERT INTO receipts (id, user_id, role, total, created_at) VALUES (?, ?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, insertHeader,
		receipt.ID, receipt.UserID, receipt.Role, receipt.Total, receipt.CreatedAt); err != nil {
		return nil, fmt.Errorf("inserting receipt: %v: %w", err, models.ErrStorage)
	}

	insertLine := tx.Rebind(
		`INSERT INTO receipt_items (receipt_id, line_no, item_id, article, depot, price) VALUES (?, ?, ?, ?, ?, ?)`)
	for i, l := range lines {
		if _, err := tx.ExecContext(ctx, insertLine,
			receipt.ID, i, l.ItemID, l.Article, l.Depot, l.Price); err != nil {
			return nil, fmt.Errorf("inserting receipt item: %v: %w", err, models.ErrStorage)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing receipt: %v: %w", err, models.ErrStorage)
	}
	return receipt, nil
}

// GetReceipt returns a receipt header with its line items.
func (s *Store) GetReceipt(ctx context.Context, id string) (*models.Receipt, []models.ReceiptItem, error) {
	var receipt models.Receipt
	query := s.db.Rebind(`SELECT id, user_id, role, total, created_at FROM receipts WHERE id = ?`)
	err := s.db.GetContext(ctx, &receipt, query, id)
	if err == sql.ErrNoRows {
		return nil, nil, fmt.Errorf("receipt %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("getting receipt: %v: %w", err, models.ErrStorage)
	}

	var items []models.ReceiptItem
	query = s.db.Rebind(
		`SELECT receipt_id, item_id, article, depot, price FROM receipt_items WHERE receipt_id = ? ORDER BY line_no`)
	if err := s.db.SelectContext(ctx, &items, query, id); err != nil {
		return nil, nil, fmt.Errorf("getting receipt items: %v: %w", err, models.ErrStorage)
	}
	return &receipt, items, nil
}

// ListReceiptsByActor returns the ids of all receipts attributed to the
// given actor, newest first.
func (s *Store) ListReceiptsByActor(ctx context.Context, actorID string) ([]string, error) {
	var ids []string
	query := s.db.Rebind(
		`SELECT id FROM receipts WHERE user_id = ? ORDER BY created_at DESC, id`)
	if err := s.db.SelectContext(ctx, &ids, query, actorID); err != nil {
		return nil, fmt.Errorf("listing receipts: %v: %w", err, models.ErrStorage)
	}
	return ids, nil
}

// ListReceiptItemRefs returns every item id ever sold, mapped to the
// receipt that sold it. The reconciliation scan joins this against the
// catalogue to find items still marked Available after a durable sale.
func (s *Store) ListReceiptItemRefs(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryxContext(ctx, `SELECT item_id, receipt_id FROM receipt_items`)
	if err != nil {
		return nil, fmt.Errorf("listing receipt item refs: %v: %w", err, models.ErrStorage)
	}
	defer rows.Close()

	refs := make(map[string]string)
	for rows.Next() {
		var itemID, receiptID string
		if err := rows.Scan(&itemID, &receiptID); err != nil {
			return nil, fmt.Errorf("scanning receipt item ref: %v: %w", err, models.ErrStorage)
		}
		refs[itemID] = receiptID
	}
	return refs, rows.Err()
}

// RenderReceiptText renders a receipt in its canonical textual form. The
// exact layout is an external contract used for display and export:
//
//	Receipt ID: <id>
//	User ID: <actor or N/A>
//	Role: <role>
//	Date: <created_at>
//
//	Items:
//	- <article> (from <depot>)  [<item id>]  -  $<price>
//
//	Total: $<total>
//
// with prices always at two decimal places.
func (s *Store) RenderReceiptText(ctx context.Context, id string) (string, error) {
	receipt, items, err := s.GetReceipt(ctx, id)
	if err != nil {
		return "", err
	}

	actor := receipt.UserID
	if actor == "" {
		actor = "N/A"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Receipt ID: %s\n", receipt.ID)
	fmt.Fprintf(&b, "User ID: %s\n", actor)
	fmt.Fprintf(&b, "Role: %s\n", receipt.Role)
	fmt.Fprintf(&b, "Date: %s\n\n", receipt.CreatedAt)
	b.WriteString("Items:\n")
	for _, it := range items {
		fmt.Fprintf(&b, "- %s (from %s)  [%s]  -  $%.2f\n", it.Article, it.Depot, it.ItemID, it.Price)
	}
	fmt.Fprintf(&b, "\nTotal: $%.2f\n", receipt.Total)
	return b.String(), nil
}
