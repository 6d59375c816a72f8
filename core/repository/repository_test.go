package repository

import "testing"

func TestPageRequestNormalize(t *testing.T) {
	p := PageRequest{Page: -2, Size: 0, SortDir: "weird"}.Normalize("id")
	if p.Page != 0 || p.Size != 10 || p.SortField != "id" || p.SortDir != Desc {
		t.Fatalf("unexpected normalisation %#v", p)
	}
	p = PageRequest{Page: 3, Size: 5, SortField: "request_time", SortDir: Asc}.Normalize("id")
	if p.Offset() != 15 || p.SortField != "request_time" || p.SortDir != Asc {
		t.Fatalf("unexpected %#v", p)
	}
}

func TestParseSortDir(t *testing.T) {
	if ParseSortDir("ASC") != Asc {
		t.Fatalf("expected asc")
	}
	if ParseSortDir("") != Desc {
		t.Fatalf("expected desc default")
	}
}
