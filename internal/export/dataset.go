package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/veridata/invoiceminer/internal/extract"
	"github.com/veridata/invoiceminer/internal/jsonpath"
	"github.com/veridata/invoiceminer/internal/validation"
)

var unsafePrefixRe = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// DatasetFromBatch flattens a batch into the validation dataset: one record
// per document, columns prefixed with the sanitized source filename so
// wildcard rules can span documents.
func DatasetFromBatch(batch *extract.Batch) *validation.Dataset {
	payload := BuildJSON(batch)
	data := &validation.Dataset{}
	for filename, doc := range payload {
		// Round-trip through JSON to get the loosely typed view the
		// flattener works on.
		raw, err := json.Marshal(doc)
		if err != nil {
			continue
		}
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			continue
		}
		flat := jsonpath.Flatten(value, FilenamePrefix(filename))
		data.Records = append(data.Records, stringify(flat))
	}
	return data
}

// LoadDataset reads a previously exported results JSON file and flattens
// each document entry into one record.
func LoadDataset(path string) (*validation.Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results file: %w", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("parse results file: %w", err)
	}
	data := &validation.Dataset{}
	for filename, doc := range payload {
		flat := jsonpath.Flatten(doc, FilenamePrefix(filename))
		data.Records = append(data.Records, stringify(flat))
	}
	return data, nil
}

// FilenamePrefix derives the column prefix for one source file: extension
// dropped, runs of non-alphanumerics collapsed to underscores.
func FilenamePrefix(filename string) string {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	return strings.Trim(unsafePrefixRe.ReplaceAllString(base, "_"), "_")
}

func stringify(flat map[string]any) map[string]string {
	out := make(map[string]string, len(flat))
	for k, v := range flat {
		switch s := v.(type) {
		case string:
			out[k] = s
		case nil:
			out[k] = ""
		case float64:
			out[k] = fmt.Sprintf("%g", s)
		case bool:
			if s {
				out[k] = "true"
			} else {
				out[k] = "false"
			}
		default:
			out[k] = fmt.Sprintf("%v", v)
		}
	}
	return out
}
