package export

import (
	"encoding/xml"
	"io"
	"time"
)

type xmlDocument struct {
	XMLName  xml.Name     `xml:"barcodes"`
	Barcodes []xmlBarcode `xml:"barcode"`
}

type xmlBarcode struct {
	Image     string   `xml:"image,attr,omitempty"`
	Type      string   `xml:"type"`
	Content   string   `xml:"content"`
	Timestamp string   `xml:"timestamp"`
	Location  Location `xml:"location"`
}

// WriteXML writes a flat <barcodes> document with one <barcode> per hit.
// The image attribute is set when more than one image is exported.
func WriteXML(w io.Writer, results []ImageResult) error {
	doc := xmlDocument{}
	multi := len(results) > 1
	for _, res := range results {
		for _, bc := range res.Barcodes {
			item := xmlBarcode{
				Type:      bc.Type,
				Content:   bc.Content,
				Timestamp: bc.Timestamp.Format(time.RFC3339Nano),
				Location:  bc.Location,
			}
			if multi {
				item.Image = res.Image
			}
			doc.Barcodes = append(doc.Barcodes, item)
		}
	}

	if _, err := io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+"\n"); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
