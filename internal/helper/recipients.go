package helper

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var ErrUnsupportedSheet = errors.New("unsupported recipient file, use .xlsx or .csv")

// RecipientRow is one line of an imported recipient sheet. Values holds the
// remaining columns keyed by their lower-cased header.
type RecipientRow struct {
	Phone  string
	Values map[string]string
}

var phoneHeaders = map[string]bool{
	"phone": true, "phone number": true, "phonenumber": true,
	"number": true, "mobile": true, "whatsapp": true,
}

// ReadRecipients parses an .xlsx (first sheet) or .csv file. When the first
// row has a phone header its columns name the values; otherwise the first
// column is taken as the phone and no values are kept. Blank rows are skipped.
func ReadRecipients(r io.Reader, filename string) ([]RecipientRow, error) {
	var rows [][]string
	var err error

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		rows, err = readSheet(r)
	case ".csv":
		rows, err = readCSV(r)
	default:
		return nil, ErrUnsupportedSheet
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	phoneCol := -1
	var headers []string
	for i, cell := range rows[0] {
		h := strings.ToLower(strings.TrimSpace(cell))
		headers = append(headers, h)
		if phoneCol < 0 && phoneHeaders[h] {
			phoneCol = i
		}
	}
	if phoneCol < 0 {
		phoneCol, headers = 0, nil
	} else {
		rows = rows[1:]
	}

	out := make([]RecipientRow, 0, len(rows))
	for _, row := range rows {
		if phoneCol >= len(row) || strings.TrimSpace(row[phoneCol]) == "" {
			continue
		}
		rec := RecipientRow{Phone: strings.TrimSpace(row[phoneCol])}
		for i, h := range headers {
			if i == phoneCol || h == "" || i >= len(row) {
				continue
			}
			if rec.Values == nil {
				rec.Values = make(map[string]string)
			}
			rec.Values[h] = strings.TrimSpace(row[i])
		}
		out = append(out, rec)
	}
	return out, nil
}

func readSheet(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}
