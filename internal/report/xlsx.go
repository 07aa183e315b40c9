package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// SaveWorkbook saves the report as one XLSX workbook with Comparison,
// Folds and Predictions sheets.
func SaveWorkbook(r *Report, outputPath string) error {
	if len(r.Families) == 0 {
		return fmt.Errorf("no results to save")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName(f.GetSheetName(0), "Comparison")
	if err := writeComparisonSheet(f, r); err != nil {
		return fmt.Errorf("write Comparison sheet: %w", err)
	}

	if _, err := f.NewSheet("Folds"); err != nil {
		return fmt.Errorf("create Folds sheet: %w", err)
	}
	if err := writeFoldsSheet(f, r); err != nil {
		return fmt.Errorf("write Folds sheet: %w", err)
	}

	if _, err := f.NewSheet("Predictions"); err != nil {
		return fmt.Errorf("create Predictions sheet: %w", err)
	}
	if err := writePredictionsSheet(f, r); err != nil {
		return fmt.Errorf("write Predictions sheet: %w", err)
	}

	if err := f.SaveAs(outputPath); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeComparisonSheet(f *excelize.File, r *Report) error {
	header := []interface{}{
		"Family", "Mean CV RMSE", "Best Fold", "Best Fold RMSE",
		"Holdout N", "Holdout RMSE", "Holdout MAE", "Holdout R2",
		"Mean Bias", "Durbin-Watson", "Jarque-Bera", "Jarque-Bera P",
	}
	if err := setRow(f, "Comparison", 1, header); err != nil {
		return err
	}

	for i, fo := range r.Ranking() {
		row := []interface{}{
			fo.Family, fo.MeanRMSE, fo.BestFold, fo.BestRMSE,
			fo.Holdout.N, fo.Holdout.RMSE, fo.Holdout.MAE, fo.Holdout.R2,
			fo.Holdout.MeanBias, fo.Holdout.DurbinWatson,
			fo.Holdout.JarqueBera, fo.Holdout.JarqueBeraP,
		}
		if err := setRow(f, "Comparison", i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeFoldsSheet(f *excelize.File, r *Report) error {
	header := []interface{}{"Family", "Fold", "Train Size", "Test Size", "RMSE"}
	if err := setRow(f, "Folds", 1, header); err != nil {
		return err
	}

	rowNum := 2
	for _, fo := range r.Families {
		for _, fold := range fo.Folds {
			row := []interface{}{fo.Family, fold.Fold, fold.TrainSize, fold.TestSize, fold.RMSE}
			if err := setRow(f, "Folds", rowNum, row); err != nil {
				return err
			}
			rowNum++
		}
	}
	return nil
}

func writePredictionsSheet(f *excelize.File, r *Report) error {
	header := []interface{}{"Date", "Family", "Actual", "Predicted", "Residual"}
	if err := setRow(f, "Predictions", 1, header); err != nil {
		return err
	}

	rowNum := 2
	for _, fo := range r.Families {
		for _, p := range fo.Predictions {
			row := []interface{}{
				p.Date.Format("2006-01-02"), fo.Family,
				p.Actual, p.Predicted, p.Actual - p.Predicted,
			}
			if err := setRow(f, "Predictions", rowNum, row); err != nil {
				return err
			}
			rowNum++
		}
	}
	return nil
}

// setRow writes values into consecutive cells of one row.
func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	for i, value := range values {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("column %d: %w", i+1, err)
		}
		if err := f.SetCellValue(sheet, col+strconv.Itoa(row), value); err != nil {
			return fmt.Errorf("set cell %s%d: %w", col, row, err)
		}
	}
	return nil
}
