package source

import "testing"

func TestFileSetAddAndLookup(t *testing.T) {
	fs := NewFileSet()
	id := fs.Add("main.swl", []byte("let a = 1;\nlet b = 2;\n"))
	got, ok := fs.Lookup("main.swl")
	if !ok || got != id {
		t.Fatalf("lookup returned %v/%v, want %v", got, ok, id)
	}
	if fs.Len() != 1 {
		t.Fatalf("expected one file, got %d", fs.Len())
	}
}

func TestPositionResolvesLines(t *testing.T) {
	fs := NewFileSet()
	id := fs.Add("x.swl", []byte("abc\ndef\nghi"))
	f := fs.Get(id)
	cases := []struct {
		offset uint32
		line   uint32
		col    uint32
	}{
		{0, 1, 1},
		{3, 1, 4},
		{4, 2, 1},
		{9, 3, 2},
	}
	for _, c := range cases {
		pos := f.Position(c.offset)
		if pos.Line != c.line || pos.Col != c.col {
			t.Fatalf("offset %d: got %d:%d, want %d:%d", c.offset, pos.Line, pos.Col, c.line, c.col)
		}
	}
	if f.Line(2) != "def" {
		t.Fatalf("line 2 = %q", f.Line(2))
	}
}

func TestSpanCover(t *testing.T) {
	a := Span{File: 0, Start: 4, End: 8}
	b := Span{File: 0, Start: 2, End: 6}
	c := a.Cover(b)
	if c.Start != 2 || c.End != 8 {
		t.Fatalf("cover = %v", c)
	}
	other := Span{File: 1, Start: 0, End: 100}
	if got := a.Cover(other); got != a {
		t.Fatalf("cross-file cover must not extend: %v", got)
	}
}
