package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/workflow"
)

func main() {
	dateStr := flag.String("date", "", "Optional: charge date (YYYY-MM-DD). Defaults to today (UTC).")
	flag.Parse()

	chargeDate := time.Now().UTC()
	if strings.TrimSpace(*dateStr) != "" {
		d, err := time.Parse("2006-01-02", strings.TrimSpace(*dateStr))
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid date: %v\n", err)
			os.Exit(1)
		}
		chargeDate = d
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	defer config.CloseDatabase()

	summary, err := workflow.CalculateDailyStorageCharges(context.Background(), chargeDate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "storage charges failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("date=%s tenants=%d created=%d skipped=%d amount=%s\n",
		summary.ChargeDate.Format("2006-01-02"), summary.TenantsProcessed,
		summary.ChargesCreated, summary.ChargesSkipped, summary.TotalAmount.StringFixed(2))
}
