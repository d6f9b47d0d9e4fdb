package assets

import (
	"reflect"
	"testing"
)

func TestExtractKeywords(t *testing.T) {
	page := []byte(`<html><head><style>body { color: red }</style>
<script>var secret = "hidden";</script></head>
<body><h1>Ghost Mesh</h1><p>The mesh is for everyone and THIS is ok, ve bir 42 test-page.</p></body></html>`)

	got := ExtractKeywords(page, 20)
	want := []string{"ghost", "mesh", "everyone", "test", "page"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExtractKeywordsLimit(t *testing.T) {
	got := ExtractKeywords([]byte("alpha bravo charlie delta echo foxtrot"), 3)
	if len(got) != 3 || got[2] != "charlie" {
		t.Errorf("got %v", got)
	}
}

func TestExtractKeywordsUnicode(t *testing.T) {
	got := ExtractKeywords([]byte("<p>Güzel şehir için çok</p>"), 20)
	want := []string{"güzel", "şehir", "çok"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
