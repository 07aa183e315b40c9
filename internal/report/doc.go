// Package report persists the output of an analysis run.
//
// A Report collects the cross-validation and holdout results of every
// model family evaluated against one dataset, together with run metadata
// (run ID, dataset fingerprint, generation time). The package writes it in
// several formats:
//
// CSV: comparison table, per-fold scores, and holdout predictions as
// separate files for further analysis.
//
// XLSX: one workbook with Comparison, Folds and Predictions sheets.
//
// JSON: the full report document, pretty-printed.
//
// Text: a human-readable summary report with family ranking and residual
// diagnostics.
//
// Prometheus textfile: batch counters and durations in text exposition
// format for a node-exporter textfile collector.
package report
