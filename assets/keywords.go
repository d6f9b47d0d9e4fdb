package assets

import (
	"bytes"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
)

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "this": {}, "or": {}, "by": {},
	"ve": {}, "ile": {}, "bir": {}, "için": {},
}

// visibleText drops markup, script and style bodies and keeps the text nodes.
func visibleText(content []byte) string {
	var sb strings.Builder

	z := html.NewTokenizer(bytes.NewReader(content))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return sb.String()
		case html.StartTagToken:
			if name, _ := z.TagName(); isHidden(name) {
				skip++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); isHidden(name) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Text())
				sb.WriteByte(' ')
			}
		}
	}
}

func isHidden(tag []byte) bool {
	return bytes.EqualFold(tag, []byte("script")) || bytes.EqualFold(tag, []byte("style"))
}

// ExtractKeywords builds the search index of a textual asset: lower cased
// words of letters only, longer than two characters, no stop words, in order
// of first appearance and at most limit of them.
func ExtractKeywords(content []byte, limit int) []string {
	words := strings.FieldsFunc(visibleText(content), func(r rune) bool {
		return !unicode.IsLetter(r)
	})

	if limit < 0 {
		limit = 0
	}

	seen := make(map[string]struct{})
	keywords := make([]string, 0, limit)
	for _, w := range words {
		if limit > 0 && len(keywords) >= limit {
			break
		}

		w = strings.ToLower(w)
		if utf8.RuneCountInString(w) <= 2 {
			continue
		}
		if _, ok := stopWords[w]; ok {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}

		seen[w] = struct{}{}
		keywords = append(keywords, w)
	}

	return keywords
}
