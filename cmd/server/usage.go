package main

import (
	"fmt"
	"time"

	"github.com/bcnelson/support-portal/internal/service"
	"github.com/spf13/cobra"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Manage usage events",
}

var usageRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record one API request against a key",
	RunE:  runUsageRecord,
}

var usageRecordFlags struct {
	key      string
	endpoint string
	success  bool
}

func init() {
	f := usageRecordCmd.Flags()
	f.StringVar(&usageRecordFlags.key, "key", "", "plaintext API key (required)")
	f.StringVar(&usageRecordFlags.endpoint, "endpoint", "", "endpoint that was called")
	f.BoolVar(&usageRecordFlags.success, "success", true, "whether the request succeeded")
	_ = usageRecordCmd.MarkFlagRequired("key")

	usageCmd.AddCommand(usageRecordCmd)
}

func runUsageRecord(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	loc, err := cfg.Portal.Location()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	event, err := service.NewUsageService(store, log, loc).Record(
		cmd.Context(), usageRecordFlags.key, usageRecordFlags.endpoint, usageRecordFlags.success)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "recorded usage for %s at %s\n",
		event.CustomerID, event.Timestamp.Format(time.RFC3339))
	return nil
}
