package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// WriteMetricsTextfile writes gathered batch metrics in Prometheus text
// exposition format, for pickup by a node-exporter textfile collector.
func WriteMetricsTextfile(gatherer prometheus.Gatherer, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(outputPath, gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
