package export

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"
)

// WriteJSON writes a single object for one image and an array otherwise.
func WriteJSON(w io.Writer, results []ImageResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if len(results) == 1 {
		return enc.Encode(results[0])
	}
	if results == nil {
		results = []ImageResult{}
	}
	return enc.Encode(results)
}

// WriteYAML mirrors WriteJSON's shape.
func WriteYAML(w io.Writer, results []ImageResult) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer func() { _ = enc.Close() }()
	if len(results) == 1 {
		return enc.Encode(results[0])
	}
	if results == nil {
		results = []ImageResult{}
	}
	return enc.Encode(results)
}
