package repo

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"

	json "github.com/goccy/go-json"

	perr "dpwharvest/internal/platform/errors"
	"dpwharvest/internal/services/harvest/domain"
)

// ledgersDir holds the outcome list files inside the output directory
const ledgersDir = "lists"

// Ledgers maintains, per outcome category, an append-only text file (the
// authoritative crash-recovery artifact) and a periodically rewritten JSON
// array variant. Appends are single-writer-safe behind one short-held mutex
type Ledgers struct {
	mu   sync.Mutex
	dir  string
	rows map[string][]string
	fh   map[string]*os.File
}

// NewLedgers opens (creating when needed) the ledger directory and its
// append handles
func NewLedgers(outDir string) (*Ledgers, error) {
	dir := filepath.Join(outDir, ledgersDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "create ledger dir")
	}
	return &Ledgers{
		dir:  dir,
		rows: map[string][]string{},
		fh:   map[string]*os.File{},
	}, nil
}

// Append records the unit under the named list
func (l *Ledgers) Append(name, unit string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, ok := l.fh[name]
	if !ok {
		var err error
		f, err = os.OpenFile(
			filepath.Join(l.dir, name+".txt"),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644,
		)
		if err != nil {
			return perr.Wrapf(err, perr.ErrorCodeUnknown, "open ledger %s", name)
		}
		l.fh[name] = f
	}
	if _, err := f.WriteString(unit + "\n"); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "append ledger %s", name)
	}
	l.rows[name] = append(l.rows[name], unit)
	return nil
}

// Flush rewrites the JSON variant of every ledger touched so far
func (l *Ledgers) Flush() error {
	l.mu.Lock()
	snap := make(map[string][]string, len(l.rows))
	for name, rows := range l.rows {
		snap[name] = append([]string(nil), rows...)
	}
	l.mu.Unlock()

	for name, rows := range snap {
		b, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return err
		}
		tmp := filepath.Join(l.dir, name+".json.tmp")
		if err := os.WriteFile(tmp, b, 0o644); err != nil {
			return perr.Wrapf(err, perr.ErrorCodeUnknown, "flush ledger %s", name)
		}
		if err := os.Rename(tmp, filepath.Join(l.dir, name+".json")); err != nil {
			return perr.Wrapf(err, perr.ErrorCodeUnknown, "flush ledger %s", name)
		}
	}
	return nil
}

// Load reads the text variant of a ledger into a set; missing file is empty
func (l *Ledgers) Load(name string) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	f, err := os.Open(filepath.Join(l.dir, name+".txt"))
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "load ledger %s", name)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		unit := strings.TrimSpace(sc.Text())
		if unit != "" {
			out[unit] = struct{}{}
		}
	}
	return out, sc.Err()
}

// Counts returns the current row count per touched ledger
func (l *Ledgers) Counts() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]int, len(l.rows))
	for name, rows := range l.rows {
		out[name] = len(rows)
	}
	return out
}

// Paths returns the text file paths for the given categories, existing or not
func (l *Ledgers) Paths(cats ...domain.Category) []string {
	out := make([]string, 0, len(cats))
	for _, c := range cats {
		out = append(out, filepath.Join(l.dir, string(c)+".txt"))
	}
	return out
}

// Close releases the append handles
func (l *Ledgers) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var first error
	for _, f := range l.fh {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	l.fh = map[string]*os.File{}
	return first
}
