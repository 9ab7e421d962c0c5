// Package importer loads bookmarks from a Homepage-style bookmarks.yaml
// into a user's collection.
package importer

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Item is a bookmark read from a file, in file order.
type Item struct {
	Category string
	Title    string
	URL      string
}

var templateVar = regexp.MustCompile(`\{\{[^}]+\}\}`)

// LoadFile reads and parses a bookmarks.yaml file.
func LoadFile(path string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bookmarks file: %w", err)
	}
	return Parse(data)
}

// Parse decodes bookmarks.yaml content. Homepage template variables
// ({{HOMEPAGE_VAR_...}}) are blanked, so entries that depend on them are
// dropped. Entries without href are skipped; the title is the bookmark
// name, or its abbr when the name is blank.
func Parse(data []byte) ([]Item, error) {
	data = templateVar.ReplaceAll(data, []byte(`""`))

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse bookmarks yaml: %w", err)
	}

	var items []Item
	for _, cat := range f {
		for catName, bookmarks := range cat {
			for _, named := range bookmarks {
				for name, entries := range named {
					if len(entries) == 0 {
						continue
					}
					e := entries[0]
					url := strings.TrimSpace(e.Href)
					if url == "" {
						continue
					}
					title := strings.TrimSpace(name)
					if title == "" {
						title = strings.TrimSpace(e.Abbr)
					}
					items = append(items, Item{Category: catName, Title: title, URL: url})
				}
			}
		}
	}
	return items, nil
}
