package marketdata

import (
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"

	"volcast/internal/volatility"
)

// Fingerprint returns a stable hex digest of a dataset's contents. Reports
// embed it so a result document can be matched back to the exact input
// rows that produced it. Equal datasets always hash equal; any change to a
// date, value, or exogenous column changes the digest.
func Fingerprint(ds volatility.Dataset) string {
	var sb strings.Builder
	sb.WriteString("exog:")
	sb.WriteString(strings.Join(ds.ExogNames(), ","))
	sb.WriteByte('\n')
	for _, obs := range ds.Observations() {
		sb.WriteString(obs.Date.Format("2006-01-02"))
		sb.WriteByte('\t')
		sb.WriteString(formatValue(obs.Predictor))
		sb.WriteByte('\t')
		sb.WriteString(formatValue(obs.Response))
		for _, v := range obs.Exog {
			sb.WriteByte('\t')
			sb.WriteString(formatValue(v))
		}
		sb.WriteByte('\n')
	}
	return digest(sb.String())
}

// SeriesFingerprint returns a stable hex digest of a raw series, before
// any join or feature construction.
func SeriesFingerprint(series volatility.Series) string {
	var sb strings.Builder
	for i, date := range series.Dates {
		sb.WriteString(date.Format("2006-01-02"))
		sb.WriteByte('\t')
		sb.WriteString(formatValue(series.Values[i]))
		sb.WriteByte('\n')
	}
	return digest(sb.String())
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func digest(canonical string) string {
	hash := blake2b.Sum256([]byte(canonical))
	return hex.EncodeToString(hash[:])
}
