package main

import (
	"fmt"
	"time"

	"github.com/bcnelson/support-portal/internal/domain"
	"github.com/bcnelson/support-portal/internal/service"
	"github.com/spf13/cobra"
)

var billingCmd = &cobra.Command{
	Use:   "billing",
	Short: "Manage billing records",
}

var billingAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an invoice to a customer's billing history",
	RunE:  runBillingAdd,
}

var billingAddFlags struct {
	customer    string
	invoice     string
	amount      float64
	status      string
	description string
	date        string
}

func init() {
	f := billingAddCmd.Flags()
	f.StringVar(&billingAddFlags.customer, "customer", "", "customer identifier (required)")
	f.StringVar(&billingAddFlags.invoice, "invoice", "", "invoice id (generated when empty)")
	f.Float64Var(&billingAddFlags.amount, "amount", 0, "invoice amount")
	f.StringVar(&billingAddFlags.status, "status", service.DefaultBillingStatus, "invoice status")
	f.StringVar(&billingAddFlags.description, "description", "", "invoice description")
	f.StringVar(&billingAddFlags.date, "date", "", "invoice date, RFC 3339 (defaults to now)")
	_ = billingAddCmd.MarkFlagRequired("customer")

	billingCmd.AddCommand(billingAddCmd)
}

func runBillingAdd(cmd *cobra.Command, args []string) error {
	record := &domain.BillingRecord{
		CustomerID: billingAddFlags.customer,
		InvoiceID:  billingAddFlags.invoice,
		Amount:     billingAddFlags.amount,
		Status:     billingAddFlags.status,
	}
	if billingAddFlags.description != "" {
		record.Description = &billingAddFlags.description
	}
	if billingAddFlags.date != "" {
		date, err := time.Parse(time.RFC3339, billingAddFlags.date)
		if err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
		record.CreatedAt = date
	}

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := service.NewBillingService(store, log).Add(cmd.Context(), record); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "added invoice %s for %s\n", record.InvoiceID, record.CustomerID)
	return nil
}
