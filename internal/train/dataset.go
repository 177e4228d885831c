// Package train fits the classification bundles the service loads at
// startup. Training runs offline through cmd/crisislens-train; the
// service itself never retrains.
package train

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Dataset is a labeled text corpus. Texts[i] belongs to Labels[i].
type Dataset struct {
	Texts  []string
	Labels []string
}

// LoadOptions selects the relevant columns of a tabular export. Column
// names are matched case-insensitively against the header row. When
// FilterColumn is set, only rows whose filter cell equals FilterValue are
// kept; subtype stages use this to train on one main type's rows.
type LoadOptions struct {
	TextColumn   string
	LabelColumn  string
	FilterColumn string
	FilterValue  string
}

// LoadDataset reads a .csv or .xlsx export into a Dataset. Rows with an
// empty text or label cell are skipped.
func LoadDataset(path string, opts LoadOptions) (*Dataset, error) {
	if opts.TextColumn == "" || opts.LabelColumn == "" {
		return nil, fmt.Errorf("text and label columns are required")
	}
	var rows [][]string
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readCSV(path)
	case ".xlsx":
		rows, err = readXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported dataset format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("dataset %s is empty", path)
	}

	textIdx, err := columnIndex(rows[0], opts.TextColumn)
	if err != nil {
		return nil, err
	}
	labelIdx, err := columnIndex(rows[0], opts.LabelColumn)
	if err != nil {
		return nil, err
	}
	filterIdx := -1
	if opts.FilterColumn != "" {
		filterIdx, err = columnIndex(rows[0], opts.FilterColumn)
		if err != nil {
			return nil, err
		}
	}

	ds := &Dataset{}
	for _, row := range rows[1:] {
		text := cell(row, textIdx)
		label := cell(row, labelIdx)
		if text == "" || label == "" {
			continue
		}
		if filterIdx >= 0 && !strings.EqualFold(cell(row, filterIdx), opts.FilterValue) {
			continue
		}
		ds.Texts = append(ds.Texts, text)
		ds.Labels = append(ds.Labels, label)
	}
	if len(ds.Texts) == 0 {
		return nil, fmt.Errorf("dataset %s has no usable rows", path)
	}
	return ds, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

func columnIndex(header []string, name string) (int, error) {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("column %q not found in header %v", name, header)
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
