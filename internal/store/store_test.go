package store

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "metadata.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testItem(id int64, score float64) Item {
	return Item{
		ID:            id,
		Attrs:         Attrs{Name: "Track", Tags: []string{"rock"}, OwnerID: 1},
		PriorityScore: score,
		LastUpdated:   1000,
		LastChecked:   1000,
	}
}

func TestSetGet_RoundTrip(t *testing.T) {
	s := openTestStore(t)

	it := testItem(42, 5)
	it.Attrs.Extra = map[string]string{"license": "cc-by"}
	s.Set(it)

	// Visible before flush.
	got, err := s.Get(42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Attrs.Name != "Track" {
		t.Fatalf("buffered read failed: %+v", got)
	}

	if err := s.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	got, err = s.Get(42)
	if err != nil {
		t.Fatalf("get after flush: %v", err)
	}
	if got == nil {
		t.Fatal("item missing after flush")
	}
	if got.Attrs.Extra["license"] != "cc-by" {
		t.Errorf("extra fields lost: %+v", got.Attrs.Extra)
	}
	if len(got.Attrs.Tags) != 1 || got.Attrs.Tags[0] != "rock" {
		t.Errorf("tags lost: %+v", got.Attrs.Tags)
	}
}

func TestGet_Missing(t *testing.T) {
	s := openTestStore(t)
	got, err := s.Get(7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing item, got %+v", got)
	}
}

func TestBestSeed_PriorityAndDormancy(t *testing.T) {
	s := openTestStore(t)

	a := testItem(1, 10)
	b := testItem(2, 50)
	c := testItem(3, 30)
	c.IsDormant = true
	since := int64(500)
	c.DormantSince = &since
	s.Set(a)
	s.Set(b)
	s.Set(c)

	id, ok, err := s.BestSeed()
	if err != nil {
		t.Fatalf("best seed: %v", err)
	}
	if !ok || id != 2 {
		t.Fatalf("expected seed 2 (score 50), got %d ok=%v", id, ok)
	}

	if err := s.MarkDormant(2, 2000); err != nil {
		t.Fatalf("mark dormant: %v", err)
	}
	id, ok, err = s.BestSeed()
	if err != nil {
		t.Fatalf("best seed after dormant: %v", err)
	}
	if !ok || id != 1 {
		t.Fatalf("expected next-highest non-dormant seed 1, got %d ok=%v", id, ok)
	}
}

func TestBestSeed_Empty(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.BestSeed()
	if err != nil {
		t.Fatalf("best seed: %v", err)
	}
	if ok {
		t.Error("expected no seed in empty store")
	}
}

func TestMarkDormant_ExcludesWithoutDeleting(t *testing.T) {
	s := openTestStore(t)
	s.Set(testItem(1, 10))
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkDormant(1, 999); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(1)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("dormant item must not be deleted")
	}
	if !got.IsDormant || got.DormantSince == nil || *got.DormantSince != 999 {
		t.Errorf("dormant flags wrong: %+v", got)
	}
}

func TestReload_PreservesCountsAndSeed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metadata.db")

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	s.Set(testItem(1, 10))
	s.Set(testItem(2, 50))
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	n, err := s2.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2 items after reload, got %d", n)
	}
	id, ok, err := s2.BestSeed()
	if err != nil {
		t.Fatal(err)
	}
	if !ok || id != 2 {
		t.Errorf("best seed changed across reload: %d ok=%v", id, ok)
	}
}

func TestDelete_RemovesRow(t *testing.T) {
	s := openTestStore(t)
	s.Set(testItem(9, 1))
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(9); err != nil {
		t.Fatal(err)
	}
	exists, err := s.Exists(9)
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Error("item should be gone after delete")
	}
}

func TestStalestIDs_OrdersByLastChecked(t *testing.T) {
	s := openTestStore(t)
	for i, checked := range []int64{300, 100, 200} {
		it := testItem(int64(i+1), 1)
		it.LastChecked = checked
		s.Set(it)
	}

	ids, err := s.StalestIDs(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != 2 || ids[1] != 3 {
		t.Errorf("expected [2 3] (oldest checks first), got %v", ids)
	}
}

func TestAllIDs_SortedAndComplete(t *testing.T) {
	s := openTestStore(t)
	s.Set(testItem(30, 1))
	s.Set(testItem(10, 1))
	s.Set(testItem(20, 1))

	ids, err := s.AllIDs()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 || ids[0] != 10 || ids[1] != 20 || ids[2] != 30 {
		t.Errorf("expected sorted [10 20 30], got %v", ids)
	}
}
