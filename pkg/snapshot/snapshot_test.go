package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/newtron-network/bulkcfg/pkg/util"
)

var today = time.Date(2026, 10, 19, 6, 0, 0, 0, time.Local)

const (
	cfgYesterday = "hostname R1\ninterface Gi0/1\n description old\n!\n"
	cfgToday     = "hostname R1\ninterface Gi0/1\n description new\n!\nntp server 1.1.1.1\n"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "cfgfiles"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestStore_PathNaming(t *testing.T) {
	s := &Store{Dir: "cfgfiles"}
	if got := s.Path(today, "10.0.0.1"); got != filepath.Join("cfgfiles", "2026-10-19_10.0.0.1.cfg") {
		t.Errorf("Path = %s", got)
	}
	if got := s.DiffPath(today, "10.0.0.1"); got != filepath.Join("cfgfiles", "2026-10-19_10.0.0.1_diff.cfg") {
		t.Errorf("DiffPath = %s", got)
	}
}

func TestStore_SaveLoad(t *testing.T) {
	s := newStore(t)

	path, err := s.Save(today, "10.0.0.1", "hostname R1")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if path != s.Path(today, "10.0.0.1") {
		t.Errorf("Save returned %s", path)
	}
	got, err := s.Load(today, "10.0.0.1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != "hostname R1\n" {
		t.Errorf("Load = %q", got)
	}
}

func TestStore_SaveImmutable(t *testing.T) {
	s := newStore(t)
	if _, err := s.Save(today, "10.0.0.1", "v1"); err != nil {
		t.Fatal(err)
	}

	_, err := s.Save(today, "10.0.0.1", "v2")
	if !errors.Is(err, util.ErrSnapshotExists) {
		t.Fatalf("second Save = %v, want ErrSnapshotExists", err)
	}
	if got, _ := s.Load(today, "10.0.0.1"); string(got) != "v1\n" {
		t.Errorf("snapshot changed to %q", got)
	}

	s.Overwrite = true
	if _, err := s.Save(today, "10.0.0.1", "v2"); err != nil {
		t.Fatalf("Save with Overwrite: %v", err)
	}
	if got, _ := s.Load(today, "10.0.0.1"); string(got) != "v2\n" {
		t.Errorf("overwritten snapshot = %q", got)
	}

	leftovers, _ := filepath.Glob(filepath.Join(s.Dir, ".snapshot-*"))
	if len(leftovers) != 0 {
		t.Errorf("temporary files left behind: %v", leftovers)
	}
}

func writeSnapshot(t *testing.T, s *Store, date time.Time, addr, content string) {
	t.Helper()
	if err := os.WriteFile(s.Path(date, addr), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDiffer_WritesZeroContextDiff(t *testing.T) {
	s := newStore(t)
	writeSnapshot(t, s, today.AddDate(0, 0, -1), "10.0.0.1", cfgYesterday)
	writeSnapshot(t, s, today, "10.0.0.1", cfgToday)

	d := &Differ{Store: s, Today: today}
	rec, err := d.Diff("10.0.0.1")
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if rec == nil {
		t.Fatal("expected a diff record")
	}
	if rec.Path != s.DiffPath(today, "10.0.0.1") {
		t.Errorf("Path = %s", rec.Path)
	}
	if rec.Added != 2 || rec.Removed != 1 {
		t.Errorf("Added/Removed = %d/%d, want 2/1", rec.Added, rec.Removed)
	}

	data, err := os.ReadFile(rec.Path)
	if err != nil {
		t.Fatal(err)
	}
	want := "--- 2026-10-18_10.0.0.1.cfg\n" +
		"+++ 2026-10-19_10.0.0.1.cfg\n" +
		"@@ -3 +3 @@\n" +
		"- description old\n" +
		"+ description new\n" +
		"@@ -4,0 +5 @@\n" +
		"+ntp server 1.1.1.1\n"
	if string(data) != want {
		t.Errorf("diff file =\n%s\nwant\n%s", data, want)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, " ") {
			t.Errorf("context line in zero-context diff: %q", line)
		}
	}
}

func TestDiffer_IdenticalWritesNothing(t *testing.T) {
	s := newStore(t)
	writeSnapshot(t, s, today.AddDate(0, 0, -1), "10.0.0.1", cfgToday)
	writeSnapshot(t, s, today, "10.0.0.1", cfgToday)

	rec, err := (&Differ{Store: s, Today: today}).Diff("10.0.0.1")
	if err != nil || rec != nil {
		t.Fatalf("Diff = %v, %v; want nil, nil", rec, err)
	}
	if _, err := os.Stat(s.DiffPath(today, "10.0.0.1")); !os.IsNotExist(err) {
		t.Error("no diff file should be written for identical snapshots")
	}
}

func TestDiffer_LineEndingOnlyChangeWritesNothing(t *testing.T) {
	s := newStore(t)
	writeSnapshot(t, s, today.AddDate(0, 0, -1), "10.0.0.1", strings.ReplaceAll(cfgToday, "\n", "\r\n"))
	writeSnapshot(t, s, today, "10.0.0.1", cfgToday)

	rec, err := (&Differ{Store: s, Today: today}).Diff("10.0.0.1")
	if err != nil || rec != nil {
		t.Fatalf("Diff = %v, %v; want nil, nil", rec, err)
	}
}

func TestDiffer_MissingYesterdaySkips(t *testing.T) {
	s := newStore(t)
	writeSnapshot(t, s, today, "10.0.0.1", cfgToday)

	rec, err := (&Differ{Store: s, Today: today}).Diff("10.0.0.1")
	if err != nil || rec != nil {
		t.Fatalf("Diff = %v, %v; want nil, nil", rec, err)
	}
}

func TestDiffer_DiffAllContinuesPastSkips(t *testing.T) {
	s := newStore(t)
	yesterday := today.AddDate(0, 0, -1)

	// .1 first run, .2 unchanged, .3 changed
	writeSnapshot(t, s, today, "10.0.0.1", cfgToday)
	writeSnapshot(t, s, yesterday, "10.0.0.2", cfgToday)
	writeSnapshot(t, s, today, "10.0.0.2", cfgToday)
	writeSnapshot(t, s, yesterday, "10.0.0.3", cfgYesterday)
	writeSnapshot(t, s, today, "10.0.0.3", cfgToday)

	records, err := (&Differ{Store: s, Today: today}).DiffAll([]string{"10.0.0.1", "10.0.0.2", "10.0.0.3"})
	if err != nil {
		t.Fatalf("DiffAll: %v", err)
	}
	if len(records) != 1 || records[0].Address != "10.0.0.3" {
		t.Fatalf("records = %+v, want only 10.0.0.3", records)
	}

	diffs, _ := filepath.Glob(filepath.Join(s.Dir, "*_diff.cfg"))
	if len(diffs) != 1 {
		t.Errorf("diff files = %v, want exactly one", diffs)
	}
}

func TestDiffer_DiffAllJoinsErrors(t *testing.T) {
	s := newStore(t)
	yesterday := today.AddDate(0, 0, -1)
	writeSnapshot(t, s, yesterday, "10.0.0.1", cfgYesterday)
	writeSnapshot(t, s, today, "10.0.0.1", cfgToday)
	writeSnapshot(t, s, yesterday, "10.0.0.2", cfgYesterday)
	writeSnapshot(t, s, today, "10.0.0.2", cfgToday)

	// A directory where the diff file should go makes the write fail.
	if err := os.Mkdir(s.DiffPath(today, "10.0.0.1"), 0755); err != nil {
		t.Fatal(err)
	}

	records, err := (&Differ{Store: s, Today: today}).DiffAll([]string{"10.0.0.1", "10.0.0.2"})
	if err == nil {
		t.Error("expected an error for 10.0.0.1")
	}
	if len(records) != 1 || records[0].Address != "10.0.0.2" {
		t.Errorf("records = %+v, want 10.0.0.2 still diffed", records)
	}
}

func TestUnifiedDiff_Empty(t *testing.T) {
	text, added, removed, err := UnifiedDiff("a\nb\n", "a\nb", "x", "y")
	if err != nil || text != "" || added != 0 || removed != 0 {
		t.Errorf("UnifiedDiff = %q, %d, %d, %v", text, added, removed, err)
	}
}
