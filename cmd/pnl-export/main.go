package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/models/reports"
	"github.com/mmdatafocus/fulfillment_backend/utils"
)

func main() {
	tenantID := flag.String("tenant-id", "", "Required: tenant id (uuid)")
	startStr := flag.String("start", "", "Required: period start (YYYY-MM-DD)")
	endStr := flag.String("end", "", "Required: period end, inclusive (YYYY-MM-DD)")
	out := flag.String("out", "", "Optional: local xlsx path. Without it the workbook is uploaded to GCS_BUCKET.")
	flag.Parse()

	tenant := strings.TrimSpace(*tenantID)
	if _, err := uuid.Parse(tenant); err != nil {
		fmt.Fprintln(os.Stderr, "--tenant-id is required and must be a uuid")
		os.Exit(1)
	}
	start, err := time.Parse("2006-01-02", strings.TrimSpace(*startStr))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid start date: %v\n", err)
		os.Exit(1)
	}
	end, err := time.Parse("2006-01-02", strings.TrimSpace(*endStr))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid end date: %v\n", err)
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	defer config.CloseDatabase()

	ctx := utils.SetTenantIdInContext(context.Background(), tenant)
	report, err := reports.GetPeriodPnLReport(ctx, start, end)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pnl report failed: %v\n", err)
		os.Exit(1)
	}

	if strings.TrimSpace(*out) != "" {
		if err := reports.ExportPeriodPnLReportFile(report, *out); err != nil {
			fmt.Fprintf(os.Stderr, "write xlsx failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("orders=%d margin=%s written=%s\n", report.OrderCount, report.Margin.StringFixed(2), *out)
		return
	}

	var buf bytes.Buffer
	if err := reports.ExportPeriodPnLReport(report, &buf); err != nil {
		fmt.Fprintf(os.Stderr, "build xlsx failed: %v\n", err)
		os.Exit(1)
	}
	objectName := fmt.Sprintf("reports/%s/pnl_%s_%s.xlsx", tenant, start.Format("20060102"), end.Format("20060102"))
	uri, err := utils.UploadToGCS(ctx, objectName, utils.XlsxContentType, &buf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "upload failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("orders=%d margin=%s uploaded=%s\n", report.OrderCount, report.Margin.StringFixed(2), uri)
}
