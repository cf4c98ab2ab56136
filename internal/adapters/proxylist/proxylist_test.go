package proxylist

import (
	"path/filepath"
	"testing"

	"dpwharvest/internal/platform/testkit"
)

func TestLoadSkipsMalformedAndDuplicates(t *testing.T) {
	dir := t.TempDir()
	free := filepath.Join(dir, FreeFile)
	testkit.WriteFile(t, free,
		`["http://1.2.3.4:8080", "not a url", "", "http://1.2.3.4:8080", "socks5://5.6.7.8:1080"]`)

	got := Load(free)
	want := []string{"http://1.2.3.4:8080", "socks5://5.6.7.8:1080"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestLoadAppendsPremiumAfterFree(t *testing.T) {
	dir := t.TempDir()
	free := filepath.Join(dir, FreeFile)
	prem := filepath.Join(dir, PremiumFile)
	testkit.WriteFile(t, free, `["http://free:80"]`)
	testkit.WriteFile(t, prem, `["http://prem:80", "http://free:80"]`)

	got := Load(free, prem)
	if len(got) != 2 || got[0] != "http://free:80" || got[1] != "http://prem:80" {
		t.Fatalf("got %v", got)
	}
}

func TestLoadToleratesMissingAndBrokenFiles(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, FreeFile)
	testkit.WriteFile(t, broken, `{"not":"an array"}`)

	if got := Load(filepath.Join(dir, "absent.json"), broken); len(got) != 0 {
		t.Fatalf("expected empty pool, got %v", got)
	}
}
