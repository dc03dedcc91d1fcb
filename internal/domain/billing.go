package domain

import "time"

// DefaultBillingDescription is shown for records stored without a description.
const DefaultBillingDescription = "API Usage"

// BillingHistoryLimit caps the billing history listing.
const BillingHistoryLimit = 12

// BillingRecord is an invoice line written by the billing system.
type BillingRecord struct {
	ID          int64     `db:"id"`
	CustomerID  string    `db:"customer_id"`
	InvoiceID   string    `db:"invoice_id"`
	Amount      float64   `db:"amount"`
	Status      string    `db:"status"`
	Description *string   `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

// BillingHistoryItem is one entry of the billing history response.
type BillingHistoryItem struct {
	InvoiceID   string    `json:"invoice_id"`
	Date        time.Time `json:"date"`
	Amount      float64   `json:"amount"`
	Status      string    `json:"status"`
	Description string    `json:"description"`
}
