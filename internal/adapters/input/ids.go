// Package input reads the contract-ID input file for the detail stage
package input

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"

	perr "dpwharvest/internal/platform/errors"
)

// column holding contract IDs in CSV inputs
const idColumn = "contract_id"

// ReadIDs loads contract IDs from path (.csv with a contract_id column, or a
// .json array of strings), deduplicated with blanks dropped. A missing file
// is a fatal startup condition for the detail stage
func ReadIDs(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeNotFound, "contract id input %s", path)
	}

	var raw []string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeJSON, "contract id input %s", path)
		}
	case ".csv":
		raw, err = readCSV(strings.NewReader(string(b)))
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "contract id input %s", path)
		}
	default:
		return nil, perr.InvalidArgf("contract id input %s: unsupported extension", path)
	}

	seen := map[string]bool{}
	out := make([]string, 0, len(raw))
	for _, id := range raw {
		id = strings.TrimSpace(id)
		if id == "" || strings.EqualFold(id, "null") || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}

// readCSV extracts the contract_id column
func readCSV(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, err
	}
	col := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), idColumn) {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, perr.InvalidArgf("no %s column", idColumn)
	}

	var out []string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if col < len(rec) {
			out = append(out, rec[col])
		}
	}
	return out, nil
}
