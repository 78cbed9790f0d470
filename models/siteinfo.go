package models

// SiteInfo is the subset of MediaWiki site metadata the conversion uses.
type SiteInfo struct {
	SiteName    string
	SiteLang    string
	RTL         bool
	LicenseName string
	LicenseURL  string
	ArticlePath string
	Server      string
	Interwiki   []InterwikiEntry
	Namespaces  map[int]Namespace
}

// InterwikiEntry maps an interwiki prefix to a URL template containing $1.
type InterwikiEntry struct {
	Prefix string `json:"prefix"`
	URL    string `json:"url"`
}

// Namespace is a MediaWiki namespace as reported by the siteinfo API.
type Namespace struct {
	ID        int    `json:"id"`
	Name      string `json:"*"`
	Canonical string `json:"canonical,omitempty"`
}
