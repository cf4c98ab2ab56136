package service

import "strconv"

// PageUnits materializes the list-stage unit range [start, end] as strings
func PageUnits(start, end int) []string {
	if end < start {
		return nil
	}
	out := make([]string, 0, end-start+1)
	for p := start; p <= end; p++ {
		out = append(out, strconv.Itoa(p))
	}
	return out
}

// Pending subtracts the completed sets from the requested units, preserving
// natural order and dropping duplicates. Order matters only for
// predictability; workers complete units in whatever order the origin allows
func Pending(requested []string, completed ...map[string]struct{}) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(requested))
next:
	for _, u := range requested {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		for _, set := range completed {
			if _, ok := set[u]; ok {
				continue next
			}
		}
		out = append(out, u)
	}
	return out
}
