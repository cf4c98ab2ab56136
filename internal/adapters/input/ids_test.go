package input

import (
	"path/filepath"
	"testing"

	perr "dpwharvest/internal/platform/errors"
	"dpwharvest/internal/platform/testkit"
)

func TestReadIDsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.csv")
	testkit.WriteFile(t, path,
		"region,contract_id,cost\n"+
			"III,22Z00087,1000\n"+
			"III,22Z00087,1000\n"+ // duplicate
			"IVA,,500\n"+ // blank
			"IVA,null,500\n"+ // null literal
			"NCR,21B00123,900\n")

	ids, err := ReadIDs(path)
	if err != nil {
		t.Fatalf("ReadIDs: %v", err)
	}
	want := []string{"22Z00087", "21B00123"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
}

func TestReadIDsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.json")
	testkit.WriteFile(t, path, `["a", "b", "a", "", "c"]`)

	ids, err := ReadIDs(path)
	if err != nil {
		t.Fatalf("ReadIDs: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("ids = %v", ids)
	}
}

func TestReadIDsMissingFileIsNotFound(t *testing.T) {
	_, err := ReadIDs(filepath.Join(t.TempDir(), "absent.csv"))
	if !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestReadIDsCSVWithoutColumnFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.csv")
	testkit.WriteFile(t, path, "region,cost\nIII,1000\n")

	if _, err := ReadIDs(path); err == nil {
		t.Fatalf("expected error for missing contract_id column")
	}
}
