package models

// Item represents a consignment item in the catalogue. It is the only
// mutable entity: Status moves Available -> Sold and never back.
type Item struct {
	ID        string  `json:"id"`
	Depot     string  `json:"depot"`
	Telephone string  `json:"telephone"`
	Article   string  `json:"article"`
	Price     float64 `json:"price"`
	Status    string  `json:"status"`
	Image     string  `json:"image,omitempty"`
	SellerID  string  `json:"seller_id,omitempty"`
}

// Item statuses
const (
	StatusAvailable = "Available"
	StatusSold      = "Sold"
)

// ValidStatus reports whether s is exactly one of the two item statuses.
func ValidStatus(s string) bool {
	return s == StatusAvailable || s == StatusSold
}

// User is a registered identity (seller or buyer). Immutable once created.
type User struct {
	ID        string `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	Phone     string `db:"phone" json:"phone"`
	CreatedAt string `db:"created_at" json:"created_at"`
}

// Receipt is an append-only transaction header. Total is denormalized at
// creation time and never recomputed.
type Receipt struct {
	ID        string  `db:"id" json:"id"`
	UserID    string  `db:"user_id" json:"user_id"`
	Role      string  `db:"role" json:"role"`
	Total     float64 `db:"total" json:"total"`
	CreatedAt string  `db:"created_at" json:"created_at"`
}

// Receipt roles: who physically executed the sale, not the beneficiary.
const (
	RoleBuyer = "buyer"
	RoleOwner = "owner"
)

// ValidRole reports whether r is a known receipt role.
func ValidRole(r string) bool {
	return r == RoleBuyer || r == RoleOwner
}

// ReceiptItem is a frozen snapshot of an item's descriptive fields and
// price at sale time. ItemID is a reference, not ownership: the catalogue
// item may be edited or deleted later without touching this row.
type ReceiptItem struct {
	ReceiptID string  `db:"receipt_id" json:"receipt_id"`
	ItemID    string  `db:"item_id" json:"item_id"`
	Article   string  `db:"article" json:"article"`
	Depot     string  `db:"depot" json:"depot"`
	Price     float64 `db:"price" json:"price"`
}
