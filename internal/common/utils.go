package common

import (
	"bufio"
	"crypto/sha256"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/dtnitsch/mw2dict/models"
)

var markdownLinkPattern = regexp.MustCompile(`^\[.*?\]\((https?://[^\)]+)\)$`)

// ContentHash returns the hex SHA-256 of data.
func ContentHash(data []byte) string {
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// SanitizeURL performs basic cleanup on URLs to handle common copy-paste issues.
// Removes whitespace, trailing punctuation and markdown artifacts.
func SanitizeURL(rawURL string) string {
	cleaned := strings.TrimSpace(rawURL)

	// "[click here](https://example.com)" -> "https://example.com"
	if matches := markdownLinkPattern.FindStringSubmatch(cleaned); len(matches) > 1 {
		cleaned = matches[1]
	}

	for _, char := range []string{",", ".", ")", "}", "]", "\"", "'", ">", ";"} {
		cleaned = strings.TrimSuffix(cleaned, char)
	}
	for _, char := range []string{"(", "[", "<", "\"", "'"} {
		cleaned = strings.TrimPrefix(cleaned, char)
	}

	return strings.TrimSpace(cleaned)
}

// ValidateSiteURL sanitizes rawURL and checks it is an absolute http(s) URL.
func ValidateSiteURL(rawURL string) (string, error) {
	cleaned := SanitizeURL(rawURL)
	parsed, err := url.Parse(cleaned)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("invalid URL %q: scheme must be http or https", rawURL)
	}
	if parsed.Host == "" || strings.ContainsAny(parsed.Host, "{}[]<>\"' ") {
		return "", fmt.Errorf("invalid URL %q: bad host", rawURL)
	}
	return cleaned, nil
}

// LoadFilters collects filter selectors from filter files, resolved against
// filterDir, followed by the selectors given inline. Blank lines are ignored.
func LoadFilters(filterDir string, files, inline []string) ([]string, error) {
	var filters []string
	for _, name := range files {
		full := ExpandHome(name)
		if !filepath.IsAbs(full) {
			full = filepath.Join(ExpandHome(filterDir), name)
		}
		f, err := os.Open(full)
		if err != nil {
			return nil, fmt.Errorf("failed to open filter file: %w", err)
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if selector := strings.TrimSpace(scanner.Text()); selector != "" {
				filters = append(filters, selector)
			}
		}
		err = scanner.Err()
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read filter file %s: %w", full, err)
		}
	}
	for _, selector := range inline {
		if selector = strings.TrimSpace(selector); selector != "" {
			filters = append(filters, selector)
		}
	}
	return filters, nil
}

// OverridableTags are the tags operators may set on the command line.
var OverridableTags = []string{"license.name", "license.url", "created.by", "uri"}

// Tag is a container metadata entry.
type Tag struct {
	Name  string
	Value string
}

// BuildTags returns the container tags of a run in the order they are
// written. Defaults come first so later entries replace them.
func BuildTags(site models.SiteInfo, langlinks []string, overrides map[string]string) []Tag {
	tags := []Tag{
		{"license.name", ""},
		{"license.url", ""},
		{"created.by", ""},
		{"copyright", ""},
		{"license.name", site.LicenseName},
		{"license.url", site.LicenseURL},
		{"source", site.Server},
		{"uri", site.Server},
		{"label", fmt.Sprintf("%s (%s)", site.SiteName, site.SiteLang)},
	}
	if len(langlinks) > 0 {
		sorted := append([]string(nil), langlinks...)
		sort.Strings(sorted)
		tags = append(tags, Tag{"langlinks", strings.Join(sorted, " ")})
	}
	for _, name := range OverridableTags {
		if v := overrides[name]; v != "" {
			tags = append(tags, Tag{name, v})
		}
	}
	return tags
}
