package reports

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const pnlSheet = "PnL"

var pnlHeaders = []interface{}{
	"Order Number", "Status", "Created At", "Revenue", "Cost Of Goods", "Processing", "Packaging",
	"Storage", "Marketplace Fee", "Shipping", "Other", "Total Expenses", "Margin", "Margin %",
}

func (p OrderPnL) cellValues() []interface{} {
	return []interface{}{
		p.OrderNumber, string(p.Status), p.CreatedAt.Format("2006-01-02 15:04"),
		p.Revenue.InexactFloat64(), p.CostOfGoods.InexactFloat64(), p.ProcessingCost.InexactFloat64(),
		p.PackagingCost.InexactFloat64(), p.StorageCost.InexactFloat64(), p.MarketplaceFee.InexactFloat64(),
		p.ShippingCost.InexactFloat64(), p.OtherCosts.InexactFloat64(), p.TotalExpenses.InexactFloat64(),
		p.Margin.InexactFloat64(), p.MarginPercent.InexactFloat64(),
	}
}

func buildPeriodPnLWorkbook(report *PeriodPnLReport) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", pnlSheet); err != nil {
		return nil, err
	}

	title := fmt.Sprintf("Profit and loss %s to %s", report.StartDate.Format("2006-01-02"), report.EndDate.Format("2006-01-02"))
	if err := f.SetCellValue(pnlSheet, "A1", title); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(pnlSheet, "A3", &pnlHeaders); err != nil {
		return nil, err
	}

	row := 4
	for _, o := range report.Orders {
		values := o.cellValues()
		if err := f.SetSheetRow(pnlSheet, fmt.Sprintf("A%d", row), &values); err != nil {
			return nil, err
		}
		row++
	}

	row++
	summary := [][]interface{}{
		{"Orders", report.OrderCount},
		{"Revenue", report.Revenue.InexactFloat64()},
		{"Total Expenses", report.TotalExpenses.InexactFloat64()},
		{"Margin", report.Margin.InexactFloat64()},
		{"Margin %", report.MarginPercent.InexactFloat64()},
		{"Unattributed Storage", report.UnattributedStorageCost.InexactFloat64()},
		{"Net Margin", report.NetMargin.InexactFloat64()},
		{"Net Margin %", report.NetMarginPercent.InexactFloat64()},
	}
	for _, s := range summary {
		if err := f.SetSheetRow(pnlSheet, fmt.Sprintf("A%d", row), &s); err != nil {
			return nil, err
		}
		row++
	}
	return f, nil
}

// ExportPeriodPnLReport writes the report as an xlsx workbook.
func ExportPeriodPnLReport(report *PeriodPnLReport, w io.Writer) error {
	f, err := buildPeriodPnLWorkbook(report)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func ExportPeriodPnLReportFile(report *PeriodPnLReport, filename string) error {
	f, err := buildPeriodPnLWorkbook(report)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(filename)
}
