package export

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// WriteText writes a human readable report, one section per image.
func WriteText(w io.Writer, results []ImageResult) error {
	var b strings.Builder
	for i, res := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "# %s\n", res.Image)
		switch {
		case res.Error != "":
			fmt.Fprintf(&b, "Error: %s\n", res.Error)
			continue
		case res.Message != "":
			fmt.Fprintf(&b, "%s\n", titleCaser.String(res.Message))
		}
		for j, bc := range res.Barcodes {
			fmt.Fprintf(&b, "%d. [%s] %s (x=%.0f y=%.0f w=%.0f h=%.0f)\n",
				j+1, bc.Type, bc.Content,
				bc.Location.X, bc.Location.Y, bc.Location.Width, bc.Location.Height)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
