package importer

// entry is one bookmark of a Homepage bookmarks.yaml.
type entry struct {
	Abbr        string `yaml:"abbr"`
	Href        string `yaml:"href"`
	Description string `yaml:"description"`
}

// category maps bookmark names to their entry list. The YAML structure is:
//
//	- Category:
//	    - Bookmark Name:
//	        - abbr: BN
//	          href: https://example.com
type category map[string][]map[string][]entry

// file is the root of bookmarks.yaml.
type file []category
