package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// Cell is one (column name, value) pair of a report payload row. The workbook
// writer and the email table both consume the same ordered schema.
type Cell struct {
	Column string
	Value  string
}

// summaryTemplateColumns is the fixed leaf-header order of the ZBM summary
// template, matching the emailed table column for column.
var summaryTemplateColumns = []string{
	"Area Name",
	"ABM Name",
	"# Unique TBMs",
	"# Unique HCPs",
	"# Requests Raised (A+B+C)",
	"Request Cancelled / Out of Stock (A)",
	"Action pending / In Process At HO (B)",
	"Sent to HUB (C) (D+E+F)",
	"Pending for Invoicing (D)",
	"Pending for Dispatch (E)",
	"# Requests Dispatched (F) (G+H+I)",
	"Delivered (G)",
	"Dispatched & In Transit (H)",
	"RTO (I)",
	"Incomplete Address",
	"Doctor Non Contactable",
	"Doctor Refused to Accept",
	"Hold Delivery",
}

// summaryCells renders one territory row into the template schema.
func summaryCells(row TerritorySummaryRow) []Cell {
	values := []string{
		row.AreaLabel,
		row.ABMName,
		strconv.Itoa(row.UniqueTBMs),
		strconv.Itoa(row.UniqueHCPs),
		strconv.Itoa(row.Funnel.Raised()),
		strconv.Itoa(row.Funnel.Cancelled),
		strconv.Itoa(row.Funnel.PendingHO),
		strconv.Itoa(row.Funnel.SentToHub()),
		strconv.Itoa(row.Funnel.PendingInvoicing),
		strconv.Itoa(row.Funnel.PendingDispatch),
		strconv.Itoa(row.Funnel.Dispatched()),
		strconv.Itoa(row.Funnel.Delivered),
		strconv.Itoa(row.Funnel.InTransit),
		strconv.Itoa(row.Funnel.RTO),
		strconv.Itoa(row.RTOReasons.IncompleteAddress),
		strconv.Itoa(row.RTOReasons.NonContactable),
		strconv.Itoa(row.RTOReasons.RefusedToAccept),
		strconv.Itoa(row.RTOReasons.HoldDelivery),
	}
	cells := make([]Cell, len(values))
	for idx, value := range values {
		cells[idx] = Cell{Column: summaryTemplateColumns[idx], Value: value}
	}
	return cells
}

const summarySheet = "ZBM Summary"

// writeSummaryWorkbook writes one ZBM's report in the fixed template layout:
// two grouped header rows, one data row per ABM, a trailing TOTAL row.
// Returns the file path.
func writeSummaryWorkbook(report ZoneReport, cfg RunConfig) (string, error) {
	dir := cfg.reportsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return "", err
	}

	// Group header row; leaf headers sit underneath in row 2. Column A is the
	// template's spacer column.
	groupHeaders := map[string]string{
		"B1": "Area Name", "C1": "ABM Name", "D1": "# Unique TBMs", "E1": "# Unique HCPs",
		"F1": "# Requests Raised\n(A+B+C)",
		"G1": "HO", "J1": "HUB", "M1": "Delivery Status", "P1": "RTO Reasons",
	}
	for cell, value := range groupHeaders {
		if err := f.SetCellValue(summarySheet, cell, value); err != nil {
			return "", err
		}
	}
	leafHeaders := []string{
		"Request Cancelled / Out of Stock (A)",
		"Action pending / In Process At HO (B)",
		"Sent to HUB ('C)\n(D+E+F)",
		"Pending for Invoicing (D)",
		"Pending for Dispatch (E)",
		"# Requests Dispatched (F)\n(G+H+I)",
		"Delivered (G)",
		"Dispatched & In Transit (H)",
		"RTO (I)",
		"Incomplete Address",
		"Doctor Non Contactable",
		"Doctor Refused to Accept",
		"Hold Delivery",
	}
	for idx, header := range leafHeaders {
		cell, err := excelize.CoordinatesToCellName(7+idx, 2)
		if err != nil {
			return "", err
		}
		if err := f.SetCellValue(summarySheet, cell, header); err != nil {
			return "", err
		}
	}

	writeRow := func(rowNum int, row TerritorySummaryRow) error {
		for idx, cell := range summaryCells(row) {
			name, err := excelize.CoordinatesToCellName(2+idx, rowNum)
			if err != nil {
				return err
			}
			value := any(cell.Value)
			if idx >= 2 {
				if number, convErr := strconv.Atoi(cell.Value); convErr == nil {
					value = number
				}
			}
			if err := f.SetCellValue(summarySheet, name, value); err != nil {
				return err
			}
		}
		return nil
	}

	rowNum := 3
	for _, row := range report.Rows {
		if err := writeRow(rowNum, row); err != nil {
			return "", err
		}
		rowNum++
	}
	total := report.Total
	total.ABMName = ""
	if err := writeRow(rowNum, total); err != nil {
		return "", err
	}

	if err := styleSummarySheet(f, rowNum); err != nil {
		return "", err
	}

	filename := fmt.Sprintf("ZBM_Summary_%s_%s_%s.xlsx", report.ZBMCode, safeName(report.ZBMName), cfg.Timestamp)
	path := filepath.Join(dir, filename)
	if err := f.SaveAs(path); err != nil {
		return "", err
	}
	return path, nil
}

func styleSummarySheet(f *excelize.File, lastRow int) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center", Vertical: "center", WrapText: true,
		},
	})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(summarySheet, "B1", "S2", headerStyle); err != nil {
		return err
	}

	dataStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}
	lastCell, err := excelize.CoordinatesToCellName(19, lastRow)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(summarySheet, "B3", lastCell, dataStyle); err != nil {
		return err
	}

	totalStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center", Vertical: "center",
		},
	})
	if err != nil {
		return err
	}
	totalStart, err := excelize.CoordinatesToCellName(2, lastRow)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(summarySheet, totalStart, lastCell, totalStyle); err != nil {
		return err
	}

	if err := f.SetColWidth(summarySheet, "A", "A", 3); err != nil {
		return err
	}
	if err := f.SetColWidth(summarySheet, "B", "C", 28); err != nil {
		return err
	}
	return f.SetColWidth(summarySheet, "D", "S", 14)
}

// consolidatedColumnOrder is the fixed column set of the per-ZBM detail file.
var consolidatedColumnOrder = []string{
	"Assigned Request Ids",
	"Doctor: SAP Customer Code(New)",
	"Doctor: Customer Code",
	"Doctor: Account Name",
	"Item Code",
	"SKU",
	"Requested Quantity",
	"TBM Division",
	"AFFILIATE",
	"DIV_NAME",
	"Date",
	"Month",
	"Invoice #",
	"Invoice Date",
	"Dispatch Date",
	"Delivery Date",
	"Docket Number",
	"Transporter Name",
	"Request Status",
	"Final Status",
	"Rto Reason",
	"Input Sample Request: Created By",
	"TBM HQ",
	"ABM Name",
	"ABM Terr Code",
}

func consolidatedValue(row TrackerRow, res Resolution, column string) string {
	switch column {
	case "Assigned Request Ids":
		return row.RequestID
	case "Doctor: Customer Code":
		return row.HCPCode
	case "Request Status":
		return row.RawStatus
	case "Final Status":
		if resolution, ok := res.ByRequest[row.RequestID]; ok {
			return resolution.FinalStatus
		}
		return ""
	case "Rto Reason":
		return row.RTOReason
	case "TBM HQ":
		return row.TBMHQ
	case "ABM Name":
		return row.ABMName
	case "ABM Terr Code":
		return row.ABMCode
	default:
		return row.Detail[column]
	}
}

// writeConsolidatedWorkbook writes every tracker row of one ZBM, annotated
// with the resolved Final Status, sorted by ABM code then request id.
func writeConsolidatedWorkbook(zbmCode, zbmName string, rows []TrackerRow, res Resolution, cfg RunConfig) (string, error) {
	dir := cfg.consolidatedDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	sorted := make([]TrackerRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ABMCode != sorted[j].ABMCode {
			return sorted[i].ABMCode < sorted[j].ABMCode
		}
		return sorted[i].RequestID < sorted[j].RequestID
	})

	const sheet = "Consolidated Data"
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return "", err
	}

	for idx, column := range consolidatedColumnOrder {
		cell, err := excelize.CoordinatesToCellName(idx+1, 1)
		if err != nil {
			return "", err
		}
		if err := f.SetCellValue(sheet, cell, column); err != nil {
			return "", err
		}
	}
	for rowIdx, row := range sorted {
		for colIdx, column := range consolidatedColumnOrder {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return "", err
			}
			if err := f.SetCellValue(sheet, cell, consolidatedValue(row, res, column)); err != nil {
				return "", err
			}
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 10},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"D3D3D3"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return "", err
	}
	lastHeader, err := excelize.CoordinatesToCellName(len(consolidatedColumnOrder), 1)
	if err != nil {
		return "", err
	}
	if err := f.SetCellStyle(sheet, "A1", lastHeader, headerStyle); err != nil {
		return "", err
	}
	lastCol, err := excelize.ColumnNumberToName(len(consolidatedColumnOrder))
	if err != nil {
		return "", err
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 18); err != nil {
		return "", err
	}

	filename := fmt.Sprintf("ZBM_Consolidated_%s_%s_%s.xlsx", zbmCode, safeName(zbmName), cfg.Timestamp)
	path := filepath.Join(dir, filename)
	if err := f.SaveAs(path); err != nil {
		return "", err
	}
	return path, nil
}

var hierarchyColumns = []string{
	"Level", "ZBM_Code", "ZBM_Name", "ZBM_Email",
	"ABM_Code", "ABM_Name", "ABM_Email", "TBM_HQ", "TBM_Email",
	"Unique_TBMs", "Unique_HCPs", "Unique_Requests",
	"Requests_Raised", "Request_Cancelled_Out_of_Stock", "Action_Pending_at_HO",
	"Sent_to_HUB", "Pending_for_Invoicing", "Pending_for_Dispatch",
	"Requests_Dispatched", "Delivered", "Dispatched_In_Transit", "RTO",
}

func hierarchyValues(row HierarchyRow) []string {
	return []string{
		row.Level, row.ZBMCode, row.ZBMName, row.ZBMEmail,
		row.ABMCode, row.ABMName, row.ABMEmail, row.TBMHQ, row.TBMEmail,
		strconv.Itoa(row.UniqueTBMs), strconv.Itoa(row.UniqueHCPs), strconv.Itoa(row.UniqueRequests),
		strconv.Itoa(row.Funnel.Raised()), strconv.Itoa(row.Funnel.Cancelled), strconv.Itoa(row.Funnel.PendingHO),
		strconv.Itoa(row.Funnel.SentToHub()), strconv.Itoa(row.Funnel.PendingInvoicing), strconv.Itoa(row.Funnel.PendingDispatch),
		strconv.Itoa(row.Funnel.Dispatched()), strconv.Itoa(row.Funnel.Delivered), strconv.Itoa(row.Funnel.InTransit),
		strconv.Itoa(row.Funnel.RTO),
	}
}

// writeHierarchyExports writes the full drill-down as CSV plus a workbook with
// one combined sheet and one sheet per level. Returns both paths.
func writeHierarchyExports(rows []HierarchyRow, cfg RunConfig) (string, string, error) {
	csvPath := cfg.hierarchyBase() + ".csv"
	if err := os.MkdirAll(filepath.Dir(csvPath), 0o755); err != nil {
		return "", "", err
	}
	file, err := os.Create(csvPath)
	if err != nil {
		return "", "", err
	}
	writer := csv.NewWriter(file)
	if err := writer.Write(hierarchyColumns); err != nil {
		file.Close()
		return "", "", err
	}
	for _, row := range rows {
		if err := writer.Write(hierarchyValues(row)); err != nil {
			file.Close()
			return "", "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		file.Close()
		return "", "", err
	}
	if err := file.Close(); err != nil {
		return "", "", err
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", "Hierarchical_Summary"); err != nil {
		return "", "", err
	}
	sheets := map[string]func(HierarchyRow) bool{
		"Hierarchical_Summary": func(HierarchyRow) bool { return true },
		"ZBM_Level":            func(r HierarchyRow) bool { return r.Level == "ZBM" },
		"ABM_Level":            func(r HierarchyRow) bool { return r.Level == "ABM" },
		"TBM_Level":            func(r HierarchyRow) bool { return r.Level == "TBM" },
	}
	for _, sheet := range []string{"Hierarchical_Summary", "ZBM_Level", "ABM_Level", "TBM_Level"} {
		if sheet != "Hierarchical_Summary" {
			if _, err := f.NewSheet(sheet); err != nil {
				return "", "", err
			}
		}
		if err := writeHierarchySheet(f, sheet, rows, sheets[sheet]); err != nil {
			return "", "", err
		}
	}

	xlsxPath := cfg.hierarchyBase() + ".xlsx"
	if err := f.SaveAs(xlsxPath); err != nil {
		return "", "", err
	}
	return csvPath, xlsxPath, nil
}

func writeHierarchySheet(f *excelize.File, sheet string, rows []HierarchyRow, include func(HierarchyRow) bool) error {
	for idx, column := range hierarchyColumns {
		cell, err := excelize.CoordinatesToCellName(idx+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, column); err != nil {
			return err
		}
	}
	rowNum := 2
	for _, row := range rows {
		if !include(row) {
			continue
		}
		for colIdx, value := range hierarchyValues(row) {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowNum)
			if err != nil {
				return err
			}
			if colIdx >= 9 {
				number, _ := strconv.Atoi(value)
				if err := f.SetCellValue(sheet, cell, number); err != nil {
					return err
				}
				continue
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return err
			}
		}
		rowNum++
	}
	return nil
}
