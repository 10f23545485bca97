package batch

import (
	"github.com/dhjs0000/QERC/internal/export"
)

// exportRecords converts outcomes to export records in batch order.
func exportRecords(images []ImageOutcome) []export.ImageResult {
	records := make([]export.ImageResult, 0, len(images))
	for _, img := range images {
		if img.Err != nil {
			records = append(records, export.FromError(img.Path, img.Err))
			continue
		}
		records = append(records, export.FromReport(img.Path, img.Report))
	}
	return records
}

// formatBatchResults formats the batch processing results in the specified format.
func formatBatchResults(images []ImageOutcome, format export.Format) (string, error) {
	f, err := export.ParseFormat(string(format))
	if err != nil {
		return "", err
	}
	return export.String(f, exportRecords(images))
}
