// Package marketdata loads daily index series from CSV files and remote
// sources, and fingerprints datasets for report provenance.
//
// CSV input is deliberately forgiving about layout: headers are optional,
// dates may use any of the common exchange formats, and missing-value
// tokens become NaN so the dataset layer can drop them. Malformed numbers
// are reported with their line number rather than skipped.
package marketdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"volcast/internal/volatility"
)

// missingTokens are cell values treated as absent observations.
var missingTokens = map[string]bool{
	"":     true,
	".":    true,
	"na":   true,
	"n/a":  true,
	"nan":  true,
	"null": true,
}

// LoadSeriesCSV reads a date/value series from a CSV file. valueColumn
// names the column to read when the file has a header; empty selects the
// first of adj close, close, value, price, or the second column.
func LoadSeriesCSV(path, valueColumn string) (volatility.Series, error) {
	file, err := os.Open(path)
	if err != nil {
		return volatility.Series{}, fmt.Errorf("open CSV file: %w", err)
	}
	defer file.Close()

	series, err := ReadSeries(file, valueColumn)
	if err != nil {
		return volatility.Series{}, fmt.Errorf("read %s: %w", path, err)
	}
	return series, nil
}

// ReadSeries parses a date/value series from CSV content.
func ReadSeries(r io.Reader, valueColumn string) (volatility.Series, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return volatility.Series{}, fmt.Errorf("read CSV records: %w", err)
	}
	if len(records) == 0 {
		return volatility.Series{}, fmt.Errorf("empty CSV input")
	}

	dateCol, valueCol := 0, 1
	dataStart := 0
	if isHeaderRow(records[0]) {
		dataStart = 1
		dateCol, valueCol, err = resolveColumns(records[0], valueColumn)
		if err != nil {
			return volatility.Series{}, err
		}
	}
	if len(records) <= dataStart {
		return volatility.Series{}, fmt.Errorf("CSV input contains only a header")
	}

	var dates []time.Time
	var values []float64
	for i := dataStart; i < len(records); i++ {
		record := records[i]
		if isBlankRecord(record) {
			continue
		}
		lineNum := i + 1
		if len(record) <= dateCol || len(record) <= valueCol {
			return volatility.Series{}, fmt.Errorf("line %d has %d columns, need %d", lineNum, len(record), valueCol+1)
		}

		date, err := parseDate(strings.TrimSpace(record[dateCol]))
		if err != nil {
			return volatility.Series{}, fmt.Errorf("line %d: %w", lineNum, err)
		}

		cell := strings.TrimSpace(record[valueCol])
		if missingTokens[strings.ToLower(cell)] {
			dates = append(dates, date)
			values = append(values, math.NaN())
			continue
		}
		value, err := parseFloat(cell, "value", lineNum)
		if err != nil {
			return volatility.Series{}, err
		}
		dates = append(dates, date)
		values = append(values, value)
	}
	if len(dates) == 0 {
		return volatility.Series{}, fmt.Errorf("CSV input contains no data rows")
	}

	sortByDate(dates, values)
	return volatility.NewSeries(dates, values)
}

// WriteSeriesCSV writes a series as date,value rows with a header.
func WriteSeriesCSV(path string, series volatility.Series, valueHeader string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"Date", valueHeader}); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}
	for i, date := range series.Dates {
		row := []string{
			date.Format("2006-01-02"),
			strconv.FormatFloat(series.Values[i], 'f', -1, 64),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write CSV row %d: %w", i+1, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush CSV: %w", err)
	}
	return nil
}

// resolveColumns maps header names onto date and value column indices.
func resolveColumns(header []string, valueColumn string) (int, int, error) {
	dateCol, valueCol := -1, -1
	want := strings.ToLower(strings.TrimSpace(valueColumn))

	normalized := make([]string, len(header))
	for i, cell := range header {
		normalized[i] = strings.ToLower(strings.TrimSpace(cell))
	}

	for i, cell := range normalized {
		if dateCol < 0 && strings.Contains(cell, "date") {
			dateCol = i
		}
	}
	if dateCol < 0 {
		dateCol = 0
	}

	if want != "" {
		for i, cell := range normalized {
			if cell == want {
				valueCol = i
				break
			}
		}
		if valueCol < 0 {
			return 0, 0, fmt.Errorf("value column %q not found in header", valueColumn)
		}
		return dateCol, valueCol, nil
	}

	for _, candidate := range []string{"adj close", "adjclose", "close", "value", "price"} {
		for i, cell := range normalized {
			if cell == candidate {
				return dateCol, i, nil
			}
		}
	}
	if len(header) < 2 {
		return 0, 0, fmt.Errorf("header has no value column")
	}
	if dateCol == 1 {
		return dateCol, 0, nil
	}
	return dateCol, 1, nil
}

// parseDate tries the common exchange date layouts in order.
func parseDate(dateStr string) (time.Time, error) {
	dateFormats := []string{
		"2006-01-02",
		"01/02/2006",
		"02/01/2006",
		"2006/01/02",
		"2006-01-02 15:04:05",
		"01-02-2006",
		"20060102",
	}

	for _, format := range dateFormats {
		if date, err := time.Parse(format, dateStr); err == nil {
			return date, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}

// parseFloat safely parses a float64 value from a string.
func parseFloat(str, fieldName string, lineNum int) (float64, error) {
	str = strings.TrimSpace(str)
	if str == "" {
		return 0, fmt.Errorf("empty %s (line %d)", fieldName, lineNum)
	}

	value, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s (line %d): %w", fieldName, lineNum, err)
	}
	return value, nil
}

// isHeaderRow checks if the first row contains headers rather than data.
func isHeaderRow(record []string) bool {
	if len(record) == 0 {
		return false
	}

	headers := []string{"date", "open", "high", "low", "close", "value", "price", "vix"}
	firstCell := strings.ToLower(strings.TrimSpace(record[0]))
	for _, header := range headers {
		if strings.Contains(firstCell, header) {
			return true
		}
	}

	// A first cell that fails to parse as a date is likely a header.
	_, err := parseDate(strings.TrimSpace(record[0]))
	return err != nil
}

func isBlankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// sortByDate orders both slices by ascending date, preserving pairing.
func sortByDate(dates []time.Time, values []float64) {
	idx := make([]int, len(dates))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return dates[idx[a]].Before(dates[idx[b]])
	})

	outDates := make([]time.Time, len(dates))
	outValues := make([]float64, len(values))
	for i, j := range idx {
		outDates[i] = dates[j]
		outValues[i] = values[j]
	}
	copy(dates, outDates)
	copy(values, outValues)
}
