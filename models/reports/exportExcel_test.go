package reports_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/mmdatafocus/fulfillment_backend/models"
	"github.com/mmdatafocus/fulfillment_backend/models/reports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func samplePeriodReport() *reports.PeriodPnLReport {
	return &reports.PeriodPnLReport{
		StartDate:  day("2026-03-01"),
		EndDate:    day("2026-03-31"),
		OrderCount: 1,
		Revenue:    dec("100"),
		Margin:     dec("39"),
		NetMargin:  dec("35"),
		Orders: []*reports.OrderPnL{{
			OrderId:       1,
			OrderNumber:   "ORD-1",
			Status:        models.OrderStatusShipped,
			CreatedAt:     day("2026-03-10"),
			Revenue:       dec("100"),
			TotalExpenses: dec("61"),
			Margin:        dec("39"),
			MarginPercent: dec("39"),
		}},
	}
}

func TestExportPeriodPnLReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, reports.ExportPeriodPnLReport(samplePeriodReport(), &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	title, err := f.GetCellValue("PnL", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Profit and loss 2026-03-01 to 2026-03-31", title)

	header, err := f.GetCellValue("PnL", "A3")
	require.NoError(t, err)
	assert.Equal(t, "Order Number", header)

	number, err := f.GetCellValue("PnL", "A4")
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", number)
	status, err := f.GetCellValue("PnL", "B4")
	require.NoError(t, err)
	assert.Equal(t, "shipped", status)
	revenue, err := f.GetCellValue("PnL", "D4")
	require.NoError(t, err)
	assert.Equal(t, "100", revenue)

	label, err := f.GetCellValue("PnL", "A6")
	require.NoError(t, err)
	assert.Equal(t, "Orders", label)
	count, err := f.GetCellValue("PnL", "B6")
	require.NoError(t, err)
	assert.Equal(t, "1", count)

	netLabel, err := f.GetCellValue("PnL", "A12")
	require.NoError(t, err)
	assert.Equal(t, "Net Margin", netLabel)
	net, err := f.GetCellValue("PnL", "B12")
	require.NoError(t, err)
	assert.Equal(t, "35", net)
}

func TestExportPeriodPnLReportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pnl.xlsx")
	require.NoError(t, reports.ExportPeriodPnLReportFile(samplePeriodReport(), path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"PnL"}, f.GetSheetList())
}
