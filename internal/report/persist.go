package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// SaveComparisonCSV saves the per-family comparison table to a CSV file.
// One row per family: cross-validation scores first, holdout metrics after.
func SaveComparisonCSV(r *Report, outputPath string) error {
	if len(r.Families) == 0 {
		return fmt.Errorf("no results to save")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Family",
		"Mean_CV_RMSE",
		"Best_Fold",
		"Best_Fold_RMSE",
		"Holdout_N",
		"Holdout_RMSE",
		"Holdout_MAE",
		"Holdout_R2",
		"Holdout_Mean_Bias",
		"Durbin_Watson",
		"Jarque_Bera",
		"Jarque_Bera_P",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}

	for _, fo := range r.Ranking() {
		record := []string{
			fo.Family,
			formatFloat(fo.MeanRMSE, 6),
			strconv.Itoa(fo.BestFold),
			formatFloat(fo.BestRMSE, 6),
			strconv.Itoa(fo.Holdout.N),
			formatFloat(fo.Holdout.RMSE, 6),
			formatFloat(fo.Holdout.MAE, 6),
			formatFloat(fo.Holdout.R2, 4),
			formatFloat(fo.Holdout.MeanBias, 6),
			formatFloat(fo.Holdout.DurbinWatson, 4),
			formatFloat(fo.Holdout.JarqueBera, 4),
			formatFloat(fo.Holdout.JarqueBeraP, 4),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write CSV record for %s: %w", fo.Family, err)
		}
	}
	return nil
}

// SaveFoldsCSV saves per-fold held-out scores, one row per family and fold.
func SaveFoldsCSV(r *Report, outputPath string) error {
	if len(r.Families) == 0 {
		return fmt.Errorf("no results to save")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"Family", "Fold", "Train_Size", "Test_Size", "RMSE"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}

	for _, fo := range r.Families {
		for _, fold := range fo.Folds {
			record := []string{
				fo.Family,
				strconv.Itoa(fold.Fold),
				strconv.Itoa(fold.TrainSize),
				strconv.Itoa(fold.TestSize),
				formatFloat(fold.RMSE, 6),
			}
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("write CSV record for %s fold %d: %w", fo.Family, fold.Fold, err)
			}
		}
	}
	return nil
}

// SavePredictionsCSV saves holdout predictions, one row per family and date.
func SavePredictionsCSV(r *Report, outputPath string) error {
	if len(r.Families) == 0 {
		return fmt.Errorf("no results to save")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"Date", "Family", "Actual", "Predicted", "Residual"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}

	for _, fo := range r.Families {
		for _, p := range fo.Predictions {
			record := []string{
				p.Date.Format("2006-01-02"),
				fo.Family,
				formatFloat(p.Actual, 6),
				formatFloat(p.Predicted, 6),
				formatFloat(p.Actual-p.Predicted, 6),
			}
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("write CSV record for %s: %w", fo.Family, err)
			}
		}
	}
	return nil
}

// SaveToJSON saves the full report document with pretty printing.
func SaveToJSON(r *Report, outputPath string) error {
	if len(r.Families) == 0 {
		return fmt.Errorf("no results to save")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(r); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

// SaveSummaryReport creates a human-readable summary of the analysis run.
func SaveSummaryReport(r *Report, outputPath string) error {
	if len(r.Families) == 0 {
		return fmt.Errorf("no results to save")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create summary file: %w", err)
	}
	defer file.Close()

	fmt.Fprintf(file, "Implied vs Realized Volatility - Model Comparison Report\n")
	fmt.Fprintf(file, "========================================================\n\n")
	fmt.Fprintf(file, "Run ID: %s\n", r.RunID)
	fmt.Fprintf(file, "Generated: %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(file, "Dataset Fingerprint: %s\n\n", r.DatasetFingerprint)

	fmt.Fprintf(file, "DATASET OVERVIEW\n")
	fmt.Fprintf(file, "----------------\n")
	fmt.Fprintf(file, "Observations: %d\n", r.Observations)
	fmt.Fprintf(file, "Date Range: %s to %s\n", r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02"))
	if len(r.ExogNames) > 0 {
		fmt.Fprintf(file, "Exogenous Columns: %v\n", r.ExogNames)
	}
	fmt.Fprintf(file, "Cross-Validation: %d folds, %s mode, seed %d\n\n", r.K, r.Mode, r.Seed)

	fmt.Fprintf(file, "MODEL RANKING (by holdout RMSE)\n")
	fmt.Fprintf(file, "-------------------------------\n")
	for i, fo := range r.Ranking() {
		fmt.Fprintf(file, "%2d. %-8s holdout RMSE %.6f  (CV mean %.6f, best fold %d at %.6f)\n",
			i+1, fo.Family, fo.Holdout.RMSE, fo.MeanRMSE, fo.BestFold, fo.BestRMSE)
	}
	fmt.Fprintf(file, "\n")

	if best, ok := r.BestFamily(); ok {
		fmt.Fprintf(file, "BEST FAMILY\n")
		fmt.Fprintf(file, "-----------\n")
		fmt.Fprintf(file, "Family: %s\n", best.Family)
		fmt.Fprintf(file, "Holdout RMSE: %.6f\n", best.Holdout.RMSE)
		fmt.Fprintf(file, "Holdout MAE: %.6f\n", best.Holdout.MAE)
		fmt.Fprintf(file, "Holdout R2: %.4f\n", best.Holdout.R2)
		fmt.Fprintf(file, "Mean Bias: %.6f\n\n", best.Holdout.MeanBias)
	}

	fmt.Fprintf(file, "RESIDUAL DIAGNOSTICS\n")
	fmt.Fprintf(file, "--------------------\n")
	for _, fo := range r.Families {
		fmt.Fprintf(file, "%-8s Durbin-Watson %.4f, Jarque-Bera %.4f (p=%.4f)\n",
			fo.Family, fo.Holdout.DurbinWatson, fo.Holdout.JarqueBera, fo.Holdout.JarqueBeraP)
	}
	return nil
}

// SaveAll writes the complete report set into dir with standard file names
// and returns the paths written, in write order.
func SaveAll(r *Report, dir string) ([]string, error) {
	writers := []struct {
		name string
		save func(*Report, string) error
	}{
		{"comparison.csv", SaveComparisonCSV},
		{"folds.csv", SaveFoldsCSV},
		{"predictions.csv", SavePredictionsCSV},
		{"result.json", SaveToJSON},
		{"summary.txt", SaveSummaryReport},
		{"result.xlsx", SaveWorkbook},
	}

	paths := make([]string, 0, len(writers))
	for _, w := range writers {
		path := filepath.Join(dir, w.name)
		if err := w.save(r, path); err != nil {
			return nil, fmt.Errorf("save %s: %w", w.name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// formatFloat formats a float64 value for CSV output with the given precision.
func formatFloat(value float64, precision int) string {
	return strconv.FormatFloat(value, 'f', precision, 64)
}
