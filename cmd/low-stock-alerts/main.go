package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"github.com/mmdatafocus/fulfillment_backend/workflow"
)

func main() {
	tenantID := flag.String("tenant-id", "", "Optional: only check this tenant (uuid)")
	dryRun := flag.Bool("dry-run", false, "Print low-stock products without publishing")
	flag.Parse()

	tenant := strings.TrimSpace(*tenantID)
	if tenant != "" {
		if _, err := uuid.Parse(tenant); err != nil {
			fmt.Fprintln(os.Stderr, "--tenant-id must be a uuid")
			os.Exit(1)
		}
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	defer config.CloseDatabase()
	if os.Getenv("REDIS_ADDRESS") != "" {
		config.ConnectRedisWithRetry()
	}
	defer config.ClosePubSub()

	ctx := utils.SetCorrelationIdInContext(context.Background(), uuid.NewString())

	if *dryRun {
		alerts, err := workflow.FindLowStockProducts(ctx, tenant)
		if err != nil {
			fmt.Fprintf(os.Stderr, "low stock check failed: %v\n", err)
			os.Exit(1)
		}
		for _, a := range alerts {
			fmt.Printf("tenant=%s product=%d sku=%s available=%d min=%d\n", a.TenantId, a.ProductId, a.Sku, a.Available, a.MinStockLevel)
		}
		return
	}

	summary, err := workflow.RunLowStockAlerts(ctx, tenant, config.PublishLowStockAlert)
	if err != nil {
		fmt.Fprintf(os.Stderr, "low stock alerts failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("found=%d published=%d suppressed=%d failed=%d\n", summary.Found, summary.Published, summary.Suppressed, summary.Failed)
	if summary.Failed > 0 {
		os.Exit(2)
	}
}
