// Package proxylist reads the proxy endpoint files an external process
// maintains in the working directory
package proxylist

import (
	"net/url"
	"os"

	json "github.com/goccy/go-json"

	"dpwharvest/internal/platform/logger"
)

// Default file names relative to the working directory
const (
	FreeFile    = "free_proxies.json"
	PremiumFile = "premium_proxies.json"
)

// Load reads a JSON array of proxy URLs from each path in order, skipping
// missing files, malformed entries and duplicates. An empty result is legal:
// the harvester then runs proxyless
func Load(paths ...string) []string {
	log := logger.Named("proxylist")
	seen := map[string]bool{}
	var out []string

	for _, path := range paths {
		b, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				log.Warn().Str("file", path).Err(err).Msg("cannot read proxy file")
			}
			continue
		}
		var raw []string
		if err := json.Unmarshal(b, &raw); err != nil {
			log.Warn().Str("file", path).Err(err).Msg("proxy file is not a JSON array")
			continue
		}
		kept := 0
		for _, s := range raw {
			u, err := url.Parse(s)
			if err != nil || u.Scheme == "" || u.Host == "" {
				log.Debug().Str("file", path).Str("entry", s).Msg("skipping malformed proxy entry")
				continue
			}
			if seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
			kept++
		}
		log.Info().Str("file", path).Int("kept", kept).Int("listed", len(raw)).Msg("loaded proxies")
	}
	return out
}
