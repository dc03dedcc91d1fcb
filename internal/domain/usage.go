package domain

import "time"

// DailyRequestQuota is the per-day request ceiling shown to customers.
// It is informational only and never enforced.
const DailyRequestQuota = 1000

// UsageEvent is a single accounted API request.
type UsageEvent struct {
	ID         int64     `json:"id" db:"id"`
	CustomerID string    `json:"customer_id" db:"customer_id"`
	APIKeyHash string    `json:"-" db:"api_key_hash"`
	Timestamp  time.Time `json:"timestamp" db:"timestamp"`
	Endpoint   string    `json:"endpoint" db:"endpoint"`
	Success    bool      `json:"success" db:"success"`
}

// UsageStats is the usage summary for a customer.
type UsageStats struct {
	Today            int        `json:"today"`
	ThisMonth        int        `json:"this_month"`
	AllTime          int        `json:"all_time"`
	CurrentRateLimit int        `json:"current_rate_limit"`
	RateLimitReset   *time.Time `json:"rate_limit_reset"`
}
