package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// TrackerRow is one sample-dispatch event from the master tracker. A request
// spans multiple rows, one per status transition or line item; rows are read
// once per run and never mutated.
type TrackerRow struct {
	RequestID string

	ZBMCode  string
	ZBMName  string
	ZBMEmail string
	ABMCode  string
	ABMName  string
	ABMEmail string
	ABMHQ    string
	TBMHQ    string
	TBMEmail string

	HCPCode   string
	RawStatus string
	RTOReason string

	// Detail holds the optional pass-through columns used by the consolidated
	// per-ZBM files, keyed by canonical display name. Absent columns are simply
	// missing from the map.
	Detail map[string]string
}

type trackerColumn struct {
	name     string
	aliases  []string
	required bool
}

var requiredColumns = []trackerColumn{
	{name: "ZBM Terr Code", aliases: []string{"zbm terr code", "zbm territory code"}, required: true},
	{name: "ZBM Name", aliases: []string{"zbm name"}, required: true},
	{name: "ZBM EMAIL_ID", aliases: []string{"zbm email_id", "zbm email"}, required: true},
	{name: "ABM Terr Code", aliases: []string{"abm terr code", "abm territory code"}, required: true},
	{name: "ABM Name", aliases: []string{"abm name"}, required: true},
	{name: "ABM EMAIL_ID", aliases: []string{"abm email_id", "abm email"}, required: true},
	{name: "TBM HQ", aliases: []string{"tbm hq"}, required: true},
	{name: "TBM EMAIL_ID", aliases: []string{"tbm email_id", "tbm email"}, required: true},
	{name: "Doctor: Customer Code", aliases: []string{"doctor: customer code", "doctor customer code"}, required: true},
	{name: "Assigned Request Ids", aliases: []string{"assigned request ids", "request id", "request ids"}, required: true},
	{name: "Request Status", aliases: []string{"request status"}, required: true},
}

var optionalColumns = []trackerColumn{
	{name: "Rto Reason", aliases: []string{"rto reason"}},
	{name: "ABM HQ", aliases: []string{"abm hq"}},
}

// detailColumns are carried through to the consolidated files when present.
var detailColumns = []string{
	"Doctor: SAP Customer Code(New)",
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
	"Input Sample Request: Created By",
}

// TrackerLoad is the cleaned row set plus the counts the operator report needs.
type TrackerLoad struct {
	Rows         []TrackerRow
	TotalRows    int
	DroppedRows  int
	FilteredRows int
}

// loadTracker reads the tracker source (.csv or .xlsx by extension), validates
// the schema once up front, drops rows whose territory keys are blank, and
// filters to ZBM codes matching the configured prefix. A missing file or any
// missing required column aborts the run with a diagnostic naming all of them.
func loadTracker(path string, zbmPrefix string) (TrackerLoad, error) {
	grid, err := readGrid(path)
	if err != nil {
		return TrackerLoad{}, err
	}
	if len(grid) == 0 {
		return TrackerLoad{}, fmt.Errorf("tracker %s is empty", filepath.Base(path))
	}

	colMap := normalizeHeaders(grid[0])
	indexes := map[string]int{}
	missing := []string{}
	for _, column := range requiredColumns {
		idx, ok := findColumn(colMap, append([]string{column.name}, column.aliases...))
		if !ok {
			missing = append(missing, column.name)
			continue
		}
		indexes[column.name] = idx
	}
	if len(missing) > 0 {
		return TrackerLoad{}, fmt.Errorf("tracker %s is missing required columns: %s",
			filepath.Base(path), strings.Join(missing, ", "))
	}
	for _, column := range optionalColumns {
		if idx, ok := findColumn(colMap, append([]string{column.name}, column.aliases...)); ok {
			indexes[column.name] = idx
		}
	}
	detailIdx := map[string]int{}
	for _, name := range detailColumns {
		if idx, ok := findColumn(colMap, []string{name}); ok {
			detailIdx[name] = idx
		}
	}

	load := TrackerLoad{TotalRows: len(grid) - 1}
	for _, record := range grid[1:] {
		if len(record) == 0 {
			continue
		}
		row := TrackerRow{
			RequestID: getValue(record, indexes["Assigned Request Ids"]),
			ZBMCode:   getValue(record, indexes["ZBM Terr Code"]),
			ZBMName:   getValue(record, indexes["ZBM Name"]),
			ZBMEmail:  getValue(record, indexes["ZBM EMAIL_ID"]),
			ABMCode:   getValue(record, indexes["ABM Terr Code"]),
			ABMName:   getValue(record, indexes["ABM Name"]),
			ABMEmail:  getValue(record, indexes["ABM EMAIL_ID"]),
			TBMHQ:     getValue(record, indexes["TBM HQ"]),
			TBMEmail:  getValue(record, indexes["TBM EMAIL_ID"]),
			HCPCode:   getValue(record, indexes["Doctor: Customer Code"]),
			RawStatus: getValue(record, indexes["Request Status"]),
		}
		if idx, ok := indexes["Rto Reason"]; ok {
			row.RTOReason = getValue(record, idx)
		}
		if idx, ok := indexes["ABM HQ"]; ok {
			row.ABMHQ = getValue(record, idx)
		}

		if row.RequestID == "" || row.ZBMCode == "" || row.ZBMName == "" ||
			row.ABMCode == "" || row.ABMName == "" {
			load.DroppedRows++
			continue
		}
		if zbmPrefix != "" && !strings.HasPrefix(row.ZBMCode, zbmPrefix) {
			load.FilteredRows++
			continue
		}

		if len(detailIdx) > 0 {
			row.Detail = make(map[string]string, len(detailIdx))
			for name, idx := range detailIdx {
				row.Detail[name] = getValue(record, idx)
			}
		}
		load.Rows = append(load.Rows, row)
	}
	return load, nil
}

func readGrid(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readWorkbookGrid(path)
	default:
		return readCSVGrid(path)
	}
}

func readCSVGrid(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	var grid [][]string
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("unable to read CSV: %w", err)
		}
		grid = append(grid, record)
	}
	return grid, nil
}

func readWorkbookGrid(path string) ([][]string, error) {
	workbook, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer workbook.Close()

	sheets := workbook.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", filepath.Base(path))
	}
	rows, err := workbook.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func normalizeHeaders(headers []string) map[string]int {
	result := make(map[string]int, len(headers))
	for idx, header := range headers {
		normalized := normalizeHeader(header)
		if _, exists := result[normalized]; !exists {
			result[normalized] = idx
		}
	}
	return result
}

func normalizeHeader(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, drop := range []string{" ", "_", "-", ":", "#", "(", ")"} {
		value = strings.ReplaceAll(value, drop, "")
	}
	return value
}

func findColumn(headers map[string]int, names []string) (int, bool) {
	for _, name := range names {
		if idx, ok := headers[normalizeHeader(name)]; ok {
			return idx, true
		}
	}
	return -1, false
}

func getValue(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
