package domain

import "strings"

// Filter returns the bookmarks whose title contains query, ignoring case.
// An empty query returns the collection itself. Order is preserved.
func Filter(collection []*Bookmark, query string) []*Bookmark {
	if query == "" {
		return collection
	}

	needle := strings.ToLower(query)
	out := make([]*Bookmark, 0, len(collection))
	for _, b := range collection {
		if strings.Contains(strings.ToLower(b.Title), needle) {
			out = append(out, b)
		}
	}
	return out
}

// Blank reports whether s is empty or only whitespace.
func Blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
