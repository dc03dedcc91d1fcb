// Package validation checks request bodies before they reach the services.
package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bcnelson/support-portal/internal/domain"
)

// Field length limits.
const (
	MaxCustomerIDLength = 128
	MaxKeyNameLength    = 100
	MaxSubjectLength    = 200
	MaxMessageLength    = 10000
	MaxCategoryLength   = 50
)

// truncate keeps echoed values short in error responses.
func truncate(s string) string {
	const max = 64
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}

func checkLength(errs *ValidationErrors, field, value string, max int) {
	if utf8.RuneCountInString(value) > max {
		errs.Add(field, truncate(value), fmt.Sprintf("must be at most %d characters", max))
	}
}

// ValidateCustomerID validates a customer identifier.
func ValidateCustomerID(customerID string) ValidationErrors {
	var errs ValidationErrors
	if strings.TrimSpace(customerID) == "" {
		errs.Add("customer_id", customerID, "customer_id is required")
		return errs
	}
	checkLength(&errs, "customer_id", customerID, MaxCustomerIDLength)
	return errs
}

// ValidateCreateAPIKey validates a key creation request.
func ValidateCreateAPIKey(req *domain.CreateAPIKeyRequest) ValidationErrors {
	errs := ValidateCustomerID(req.CustomerID)
	if req.Name != nil {
		checkLength(&errs, "name", *req.Name, MaxKeyNameLength)
	}
	return errs
}

// ValidateRotateAPIKey validates a key rotation request.
func ValidateRotateAPIKey(req *domain.RotateAPIKeyRequest) ValidationErrors {
	var errs ValidationErrors
	if req.OldKey == "" {
		errs.Add("old_key", "", "old_key is required")
	}
	return errs
}

// ValidateCreateTicket validates a ticket submission.
func ValidateCreateTicket(req *domain.CreateTicketRequest) ValidationErrors {
	var errs ValidationErrors
	if strings.TrimSpace(req.Subject) == "" {
		errs.Add("subject", req.Subject, "subject is required")
	} else {
		checkLength(&errs, "subject", req.Subject, MaxSubjectLength)
	}
	if strings.TrimSpace(req.Message) == "" {
		errs.Add("message", req.Message, "message is required")
	} else {
		checkLength(&errs, "message", req.Message, MaxMessageLength)
	}
	checkLength(&errs, "category", req.Category, MaxCategoryLength)
	return errs
}
