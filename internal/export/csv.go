package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

var csvHeader = []string{"image", "type", "content", "timestamp", "x", "y", "width", "height"}

// WriteCSV writes one row per barcode. Images without barcodes produce no rows.
func WriteCSV(w io.Writer, results []ImageResult) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, res := range results {
		for _, bc := range res.Barcodes {
			row := []string{
				res.Image,
				bc.Type,
				bc.Content,
				bc.Timestamp.Format(time.RFC3339Nano),
				formatCoord(bc.Location.X),
				formatCoord(bc.Location.Y),
				formatCoord(bc.Location.Width),
				formatCoord(bc.Location.Height),
			}
			if err := writer.Write(row); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
