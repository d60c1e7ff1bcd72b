package source

import "testing"

func TestSpanEmpty(t *testing.T) {
	s := Span{File: 0, Start: 5, End: 5}
	if !s.Empty() {
		t.Error("Expected span with Start == End to be empty")
	}

	s = Span{File: 0, Start: 5, End: 9}
	if s.Empty() {
		t.Error("Expected span with Start < End to be non-empty")
	}
}

func TestSpanLen(t *testing.T) {
	s := Span{File: 0, Start: 3, End: 11}
	if got := s.Len(); got != 8 {
		t.Errorf("Expected Len 8, got %d", got)
	}
}

func TestSpanString(t *testing.T) {
	s := Span{File: 2, Start: 4, End: 17}
	if got := s.String(); got != "2:4-17" {
		t.Errorf("Expected string '2:4-17', got %q", got)
	}
}

func TestSpanCover(t *testing.T) {
	a := Span{File: 0, Start: 10, End: 20}
	b := Span{File: 0, Start: 5, End: 15}

	got := a.Cover(b)
	want := Span{File: 0, Start: 5, End: 20}
	if got != want {
		t.Errorf("Expected cover %+v, got %+v", want, got)
	}

	// Disjoint spans widen too; the result brackets both.
	c := Span{File: 0, Start: 30, End: 40}
	got = a.Cover(c)
	want = Span{File: 0, Start: 10, End: 40}
	if got != want {
		t.Errorf("Expected cover %+v, got %+v", want, got)
	}
}

func TestSpanCoverDifferentFiles(t *testing.T) {
	a := Span{File: 0, Start: 10, End: 20}
	b := Span{File: 1, Start: 0, End: 100}

	got := a.Cover(b)
	if got != a {
		t.Errorf("Expected cover across files to return receiver %+v, got %+v", a, got)
	}
}
