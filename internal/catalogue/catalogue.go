package catalogue

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/zeineb-manai/depot-vente/internal/models"

	"github.com/google/uuid"
)

// schema is the full column set of the catalogue file, in order. Columns
// missing from an existing file are added with empty defaults at Open;
// existing data is never rewritten destructively.
var schema = []string{"ID", "Depot", "Telephone", "Article", "Price", "Status", "Image", "UserID"}

// SellerValidator checks that a seller id resolves to an existing user.
// Validation happens at write time only; later deletion of the user does
// not retroactively invalidate items.
type SellerValidator func(ctx context.Context, userID string) (bool, error)

// Store is the flat-file catalogue of consignment items. Rows keep
// insertion order. All operations take an exclusive lock: the file is a
// single shared resource with single-writer semantics.
type Store struct {
	mu             sync.Mutex
	path           string
	validateSeller SellerValidator
}

// Filter narrows a List call.
type Filter struct {
	// Query is a case-insensitive substring matched against Depot OR Article.
	Query string
	// AvailableOnly restricts to Status == Available (buyer-facing paths).
	AvailableOnly bool
	// SellerID restricts to items consigned by the given user.
	SellerID string
}

// Open opens (creating if needed) the catalogue file at path and runs the
// additive schema migration: any column missing from the header is appended
// with empty values for existing rows.
func Open(path string, validateSeller SellerValidator) (*Store, error) {
	s := &Store{path: path, validateSeller: validateSeller}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.save(nil, nil); err != nil {
			return nil, err
		}
		return s, nil
	}

	header, rows, err := s.readRaw()
	if err != nil {
		return nil, err
	}

	missing := missingColumns(header)
	if len(missing) == 0 {
		return s, nil
	}

	header = append(header, missing...)
	for i := range rows {
		for range missing {
			rows[i] = append(rows[i], "")
		}
	}

	if err := s.writeRaw(header, rows); err != nil {
		return nil, err
	}
	return s, nil
}

// record pairs an item with the values of any columns the file carries
// beyond the known schema. Unrecognized columns ride along untouched so a
// rewrite never loses data this code does not understand.
type record struct {
	item   models.Item
	extras map[string]string
}

// Create assigns a fresh id, forces Status to Available regardless of the
// caller's input, validates price and seller reference, and appends the row.
func (s *Store) Create(ctx context.Context, item models.Item) (models.Item, error) {
	if err := validPrice(item.Price); err != nil {
		return models.Item{}, err
	}
	if err := s.checkSeller(ctx, item.SellerID); err != nil {
		return models.Item{}, err
	}

	item.ID = uuid.New().String()
	item.Status = models.StatusAvailable

	s.mu.Lock()
	defer s.mu.Unlock()

	records, extraCols, err := s.load()
	if err != nil {
		return models.Item{}, err
	}
	records = append(records, record{item: item})
	if err := s.save(records, extraCols); err != nil {
		return models.Item{}, err
	}
	return item, nil
}

// Get returns the item with the given id.
func (s *Store) Get(ctx context.Context, id string) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, _, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].item.ID == id {
			return &records[i].item, nil
		}
	}
	return nil, fmt.Errorf("item %s: %w", id, models.ErrNotFound)
}

// Update replaces all mutable fields of the item with the given id. Status
// must be exactly Available or Sold; price and seller reference are
// re-validated.
func (s *Store) Update(ctx context.Context, id string, item models.Item) error {
	if err := validPrice(item.Price); err != nil {
		return err
	}
	if !models.ValidStatus(item.Status) {
		return fmt.Errorf("status %q must be %q or %q: %w",
			item.Status, models.StatusAvailable, models.StatusSold, models.ErrValidation)
	}
	if err := s.checkSeller(ctx, item.SellerID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, extraCols, err := s.load()
	if err != nil {
		return err
	}
	for i := range records {
		if records[i].item.ID == id {
			item.ID = id
			records[i].item = item
			return s.save(records, extraCols)
		}
	}
	return fmt.Errorf("item %s: %w", id, models.ErrNotFound)
}

// Delete removes the given ids unconditionally, regardless of status.
// Missing ids are ignored, so deleting twice is a no-op the second time.
// Receipts referencing the items are untouched: history survives.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	drop := toSet(ids)

	s.mu.Lock()
	defer s.mu.Unlock()

	records, extraCols, err := s.load()
	if err != nil {
		return err
	}
	kept := records[:0]
	changed := false
	for _, r := range records {
		if drop[r.item.ID] {
			changed = true
			continue
		}
		kept = append(kept, r)
	}
	if !changed {
		return nil
	}
	return s.save(kept, extraCols)
}

// List returns items in insertion order, optionally narrowed by filter.
func (s *Store) List(ctx context.Context, f Filter) ([]models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, _, err := s.load()
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]models.Item, 0, len(records))
	for _, r := range records {
		it := r.item
		if f.AvailableOnly && it.Status != models.StatusAvailable {
			continue
		}
		if f.SellerID != "" && it.SellerID != f.SellerID {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(it.Depot), query) &&
			!strings.Contains(strings.ToLower(it.Article), query) {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

// MarkSold sets Status to Sold for exactly the given ids. Callers other
// than the sale flow leave the catalogue without a matching receipt, which
// the reconciliation scan reports.
func (s *Store) MarkSold(ctx context.Context, ids []string) error {
	want := toSet(ids)

	s.mu.Lock()
	defer s.mu.Unlock()

	records, extraCols, err := s.load()
	if err != nil {
		return err
	}
	for i := range records {
		if want[records[i].item.ID] {
			records[i].item.Status = models.StatusSold
		}
	}
	return s.save(records, extraCols)
}

func (s *Store) checkSeller(ctx context.Context, sellerID string) error {
	if sellerID == "" || s.validateSeller == nil {
		return nil
	}
	ok, err := s.validateSeller(ctx, sellerID)
	if err != nil {
		return fmt.Errorf("validating seller %s: %w", sellerID, err)
	}
	if !ok {
		return fmt.Errorf("seller %s does not exist: %w", sellerID, models.ErrValidation)
	}
	return nil
}

func validPrice(p float64) error {
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
		return fmt.Errorf("price must be a non-negative number: %w", models.ErrValidation)
	}
	return nil
}

// load reads and decodes all rows, returning the records and the names of
// any non-schema columns in the file (in header order). Prices that fail to
// parse coerce to 0.0 and lowercase status values are normalized, matching
// how legacy files are tolerated on read.
func (s *Store) load() ([]record, []string, error) {
	header, rows, err := s.readRaw()
	if err != nil {
		return nil, nil, err
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	known := toSet(schema)
	var extraCols []string
	for _, name := range header {
		if !known[name] {
			extraCols = append(extraCols, name)
		}
	}

	records := make([]record, 0, len(rows))
	for _, row := range rows {
		price, err := strconv.ParseFloat(strings.TrimSpace(field(row, "Price")), 64)
		if err != nil {
			price = 0.0
		}
		var extras map[string]string
		if len(extraCols) > 0 {
			extras = make(map[string]string, len(extraCols))
			for _, name := range extraCols {
				extras[name] = field(row, name)
			}
		}
		records = append(records, record{
			item: models.Item{
				ID:        field(row, "ID"),
				Depot:     field(row, "Depot"),
				Telephone: field(row, "Telephone"),
				Article:   field(row, "Article"),
				Price:     price,
				Status:    normalizeStatus(field(row, "Status")),
				Image:     field(row, "Image"),
				SellerID:  field(row, "UserID"),
			},
			extras: extras,
		})
	}
	return records, extraCols, nil
}

// save rewrites the file: schema columns first, then any non-schema
// columns the file carried, with their values untouched.
func (s *Store) save(records []record, extraCols []string) error {
	header := append(append([]string(nil), schema...), extraCols...)

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		it := r.item
		row := []string{
			it.ID,
			it.Depot,
			it.Telephone,
			it.Article,
			strconv.FormatFloat(it.Price, 'f', -1, 64),
			it.Status,
			it.Image,
			it.SellerID,
		}
		for _, name := range extraCols {
			row = append(row, r.extras[name])
		}
		rows = append(rows, row)
	}
	return s.writeRaw(header, rows)
}

func (s *Store) readRaw() (header []string, rows [][]string, err error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening catalogue %s: %w", s.path, models.ErrStorage)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading catalogue %s: %v: %w", s.path, err, models.ErrStorage)
	}
	if len(records) == 0 {
		return append([]string(nil), schema...), nil, nil
	}
	return records[0], records[1:], nil
}

// writeRaw writes to a temp file in the same directory and renames it over
// the catalogue, so readers never observe a torn file.
func (s *Store) writeRaw(header []string, rows [][]string) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".catalogue-*.csv")
	if err != nil {
		return fmt.Errorf("creating temp catalogue: %v: %w", err, models.ErrStorage)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("writing catalogue header: %v: %w", err, models.ErrStorage)
	}
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		return fmt.Errorf("writing catalogue rows: %v: %w", err, models.ErrStorage)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flushing catalogue: %v: %w", err, models.ErrStorage)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp catalogue: %v: %w", err, models.ErrStorage)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing catalogue: %v: %w", err, models.ErrStorage)
	}
	return nil
}

func missingColumns(header []string) []string {
	have := toSet(header)
	var missing []string
	for _, col := range schema {
		if !have[col] {
			missing = append(missing, col)
		}
	}
	return missing
}

func normalizeStatus(status string) string {
	switch status {
	case "sold":
		return models.StatusSold
	case "available":
		return models.StatusAvailable
	}
	return status
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
