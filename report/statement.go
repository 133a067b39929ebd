// Package report renders settlement records for people: the xlsx
// statement handed to a distributor after a settlement.
package report

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/stickflow/backoffice/ledger"
)

// Statement is everything one settlement document shows.
type Statement struct {
	Settlement  ledger.Settlement
	Distributor ledger.Distributor
	Sales       []ledger.Sale
	Advances    []ledger.Expense
}

// LoadStatement gathers a settlement and the records it settled.
func LoadStatement(ctx context.Context, s ledger.Store, id ledger.SettlementID) (*Statement, error) {
	settlements, err := s.Settlements(ctx)
	if err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	out := &Statement{}
	found := false
	for _, st := range settlements {
		if st.ID == id {
			out.Settlement, found = st, true
			break
		}
	}
	if !found {
		return nil, ledger.ErrSettlementNotFound
	}

	customers, err := s.Customers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	if out.Distributor, err = ledger.LookupDistributor(customers, out.Settlement.DistributorID); err != nil {
		return nil, err
	}

	sales, err := s.Sales(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	for _, saleID := range out.Settlement.SaleIDs {
		if i, ok := ledger.FindSale(sales, saleID); ok {
			out.Sales = append(out.Sales, sales[i])
		}
	}

	expenses, err := s.Expenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	for _, expenseID := range out.Settlement.ExpenseIDs {
		if i, ok := ledger.FindExpense(expenses, expenseID); ok {
			out.Advances = append(out.Advances, expenses[i])
		}
	}
	return out, nil
}

const (
	summarySheet  = "Settlement"
	salesSheet    = "Sales"
	advancesSheet = "Advances"
)

var salesHeaders = []string{
	"Invoice", "Date", "Customer", "Invoice Total", "Collected", "Distributor Value", "Margin",
}

// Workbook renders the statement. The returned name is a suggested file
// name for downloads. Callers must Close the file.
func (st *Statement) Workbook() (_ *excelize.File, _ string, err error) {
	f := excelize.NewFile()
	defer func() {
		if err != nil {
			f.Close()
		}
	}()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, "", err
	}

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	moneyStyle, _ := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00

	// Summary
	s := st.Settlement
	rows := [][2]interface{}{
		{"Settlement", s.Number},
		{"Distributor", st.Distributor.Name},
		{"Period", s.Period().String()},
		{"Settled On", s.SettledOn.String()},
		{"Total Sales Value", money(s.TotalSalesValue)},
		{"Total Distributor Value", money(s.TotalDistributorValue)},
		{"Final Margin", money(s.FinalMargin)},
		{"Advances Adjusted", money(s.Adjustments)},
		{"Outstanding Applied", money(s.AppliedOutstandingBalance)},
		{"Settlement Amount", money(s.SettlementAmount)},
		{"Direction", string(s.Direction())},
	}
	for i, r := range rows {
		row := i + 1
		f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), r[0])
		f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), r[1])
		if _, ok := r[1].(float64); ok {
			f.SetCellStyle(summarySheet, fmt.Sprintf("B%d", row), fmt.Sprintf("B%d", row), moneyStyle)
		}
	}
	f.SetCellStyle(summarySheet, "A1", fmt.Sprintf("A%d", len(rows)), boldStyle)
	f.SetColWidth(summarySheet, "A", "A", 24)
	f.SetColWidth(summarySheet, "B", "B", 22)

	// Sales
	if _, err := f.NewSheet(salesSheet); err != nil {
		return nil, "", err
	}
	for i, h := range salesHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(salesSheet, cell, h)
		f.SetCellStyle(salesSheet, cell, cell, boldStyle)
	}
	for i, sale := range st.Sales {
		row := i + 2
		value := decimal.Zero
		for _, it := range sale.Items {
			value = value.Add(it.DistributorValue())
		}
		f.SetCellValue(salesSheet, fmt.Sprintf("A%d", row), sale.InvoiceNumber)
		f.SetCellValue(salesSheet, fmt.Sprintf("B%d", row), sale.Date.String())
		f.SetCellValue(salesSheet, fmt.Sprintf("C%d", row), string(sale.CustomerID))
		f.SetCellValue(salesSheet, fmt.Sprintf("D%d", row), money(sale.TotalAmount))
		f.SetCellValue(salesSheet, fmt.Sprintf("E%d", row), money(sale.Collected()))
		f.SetCellValue(salesSheet, fmt.Sprintf("F%d", row), money(value))
		f.SetCellValue(salesSheet, fmt.Sprintf("G%d", row), money(sale.Collected().Sub(value)))
	}
	totalRow := len(st.Sales) + 2
	f.SetCellValue(salesSheet, fmt.Sprintf("A%d", totalRow), "Total")
	f.SetCellValue(salesSheet, fmt.Sprintf("E%d", totalRow), money(s.TotalSalesValue))
	f.SetCellValue(salesSheet, fmt.Sprintf("F%d", totalRow), money(s.TotalDistributorValue))
	f.SetCellValue(salesSheet, fmt.Sprintf("G%d", totalRow), money(s.FinalMargin))
	f.SetCellStyle(salesSheet, "D2", fmt.Sprintf("G%d", totalRow), moneyStyle)

	colWidths := []float64{12, 12, 20, 14, 14, 16, 14}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(salesSheet, col, col, w)
	}

	// Advances
	if len(st.Advances) > 0 {
		if _, err := f.NewSheet(advancesSheet); err != nil {
			return nil, "", err
		}
		for i, h := range []string{"Date", "Offset", "Description"} {
			col, _ := excelize.ColumnNumberToName(i + 1)
			f.SetCellValue(advancesSheet, col+"1", h)
			f.SetCellStyle(advancesSheet, col+"1", col+"1", boldStyle)
		}
		for i, e := range st.Advances {
			row := i + 2
			f.SetCellValue(advancesSheet, fmt.Sprintf("A%d", row), e.Date.String())
			f.SetCellValue(advancesSheet, fmt.Sprintf("B%d", row), money(e.AdvanceAmount()))
			f.SetCellValue(advancesSheet, fmt.Sprintf("C%d", row), e.Description)
		}
		f.SetColWidth(advancesSheet, "C", "C", 30)
	}

	filename := fmt.Sprintf("%s_%s.xlsx", s.Number, st.Distributor.Name)
	return f, filename, nil
}

// money converts to float64 for spreadsheet cells only; figures are
// computed in decimal before this point.
func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
