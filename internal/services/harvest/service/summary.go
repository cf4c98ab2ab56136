package service

import (
	"fmt"
	"io"

	"dpwharvest/internal/services/harvest/domain"
)

// WriteSummary prints the end-of-run counts per category and the paths of
// every non-success ledger so the operator can triage without digging
func WriteSummary(w io.Writer, t domain.Totals, ledgerPaths func(...domain.Category) []string) {
	fmt.Fprintf(w, "processed %d units (%d skipped as already harvested)\n", t.Total, t.Skipped)
	fmt.Fprintf(w, "  successful: %d\n", t.Successful)
	fmt.Fprintf(w, "  failed:     %d\n", t.Failed)
	fmt.Fprintf(w, "  exception:  %d\n", t.Exception)
	fmt.Fprintf(w, "  blocked:    %d\n", t.Blocked)
	fmt.Fprintf(w, "  dropped:    %d\n", t.Dropped)

	if t.Failed+t.Exception+t.Blocked == 0 {
		return
	}
	fmt.Fprintln(w, "non-success ledgers:")
	paths := ledgerPaths(
		domain.CategoryFailed, domain.CategoryException,
		domain.CategoryBlocked, domain.CategoryDropped,
	)
	for _, p := range paths {
		fmt.Fprintf(w, "  %s\n", p)
	}
}
