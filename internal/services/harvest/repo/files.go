package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	perr "dpwharvest/internal/platform/errors"
)

// Subdirectories of the output dir for the optional file outputs
const (
	recordsDir = "records"
	pagesDir   = "pages"
	rawDir     = "raw"
)

// Files writes the optional per-record and per-page outputs and the raw
// failure dumps. Each write replaces one whole file named by its unit in
// place (no temp file or rename); no locking is done
type Files struct {
	outDir    string
	pageLimit int
}

// NewFiles constructs the file writer rooted at outDir. pageLimit is baked
// into page dump names so sweeps with different limits do not collide
func NewFiles(outDir string, pageLimit int) *Files {
	return &Files{outDir: outDir, pageLimit: pageLimit}
}

// WriteRecord stores one record payload under records/{id}.json
func (f *Files) WriteRecord(id string, payload []byte) error {
	dir := filepath.Join(f.outDir, recordsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "record file dir")
	}
	return os.WriteFile(filepath.Join(dir, sanitize(id)+".json"), payload, 0o644)
}

// WritePageDump stores one page payload under pages/dump-page-{p}-{l}.json
func (f *Files) WritePageDump(page string, payload []byte) error {
	dir := filepath.Join(f.outDir, pagesDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "page dump dir")
	}
	name := fmt.Sprintf("dump-page-%s-%d.json", page, f.pageLimit)
	return os.WriteFile(filepath.Join(dir, name), payload, 0o644)
}

// ExistingPages lists page units that already have a dump for this limit
func (f *Files) ExistingPages() (map[string]struct{}, error) {
	out := map[string]struct{}{}
	entries, err := os.ReadDir(filepath.Join(f.outDir, pagesDir))
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "scan page dumps")
	}
	suffix := fmt.Sprintf("-%d.json", f.pageLimit)
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "dump-page-") || !strings.HasSuffix(name, suffix) {
			continue
		}
		page := strings.TrimSuffix(strings.TrimPrefix(name, "dump-page-"), suffix)
		if page != "" {
			out[page] = struct{}{}
		}
	}
	return out, nil
}

// WriteRaw dumps an offending body or exception text under raw/{id}_raw.txt
func (f *Files) WriteRaw(id, text string) error {
	dir := filepath.Join(f.outDir, rawDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "raw dump dir")
	}
	return os.WriteFile(filepath.Join(dir, sanitize(id)+"_raw.txt"), []byte(text), 0o644)
}

// sanitize keeps unit ids filesystem-safe
func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, id)
}
