// Package siteinfo reads MediaWiki site metadata: name, language, license,
// article path and the namespace and interwiki tables.
package siteinfo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/dtnitsch/mw2dict/models"
	"github.com/dtnitsch/mw2dict/pkg/fetcher"
)

// DefaultAPIPath is the path of api.php on Wikimedia sites.
const DefaultAPIPath = "/w/api.php"

// ErrInvalidNamespaces is returned when a local namespace does not exist.
var ErrInvalidNamespaces = errors.New("invalid namespaces")

// Fetch queries the siteinfo API of site and returns the "query" object.
func Fetch(ctx context.Context, f *fetcher.Fetcher, site, apiPath string) (json.RawMessage, error) {
	if apiPath == "" {
		apiPath = DefaultAPIPath
	}
	params := url.Values{
		"action": {"query"},
		"meta":   {"siteinfo"},
		"siprop": {"general|namespaces|interwikimap|rightsinfo"},
		"format": {"json"},
	}
	endpoint := strings.TrimRight(site, "/") + "/" + strings.TrimLeft(apiPath, "/") + "?" + params.Encode()

	var response struct {
		Query json.RawMessage `json:"query"`
	}
	if err := f.GetJSON(ctx, endpoint, &response); err != nil {
		return nil, fmt.Errorf("failed to fetch siteinfo: %w", err)
	}
	if len(response.Query) == 0 {
		return nil, fmt.Errorf("siteinfo response from %s has no query object", site)
	}
	return response.Query, nil
}

type rawSiteinfo struct {
	General    map[string]json.RawMessage  `json:"general"`
	Namespaces map[string]models.Namespace `json:"namespaces"`
	Interwiki  []models.InterwikiEntry     `json:"interwikimap"`
	Rights     struct {
		Text string `json:"text"`
		URL  string `json:"url"`
	} `json:"rightsinfo"`
}

// Parse decodes a siteinfo object. Namespaces listed in localNamespaces, by
// name, canonical name or id, are removed from the namespace table so links
// into them stay inside the container.
func Parse(raw []byte, localNamespaces []string) (models.SiteInfo, error) {
	var si rawSiteinfo
	if err := json.Unmarshal(raw, &si); err != nil {
		return models.SiteInfo{}, fmt.Errorf("failed to parse siteinfo: %w", err)
	}
	if si.General == nil {
		return models.SiteInfo{}, errors.New("siteinfo has no general section")
	}

	pending := make(map[string]struct{}, len(localNamespaces))
	for _, name := range localNamespaces {
		pending[name] = struct{}{}
	}
	local := make(map[int]struct{})
	for _, ns := range si.Namespaces {
		for _, item := range []string{ns.Name, ns.Canonical, strconv.Itoa(ns.ID)} {
			if _, ok := pending[item]; ok {
				delete(pending, item)
				local[ns.ID] = struct{}{}
				break
			}
		}
	}
	if len(pending) > 0 {
		invalid := make([]string, 0, len(pending))
		for name := range pending {
			invalid = append(invalid, name)
		}
		sort.Strings(invalid)
		return models.SiteInfo{}, fmt.Errorf("%w: %s", ErrInvalidNamespaces, strings.Join(invalid, ", "))
	}

	namespaces := make(map[int]models.Namespace, len(si.Namespaces))
	for _, ns := range si.Namespaces {
		if _, ok := local[ns.ID]; ok {
			continue
		}
		namespaces[ns.ID] = ns
	}

	articlePath := stringField(si.General, "articlepath")
	if before, _, found := strings.Cut(articlePath, "$1"); found {
		articlePath = before
	}

	return models.SiteInfo{
		SiteName:    stringField(si.General, "sitename"),
		SiteLang:    stringField(si.General, "lang"),
		RTL:         isRTL(si.General),
		LicenseName: si.Rights.Text,
		LicenseURL:  AddHTTP(si.Rights.URL),
		ArticlePath: articlePath,
		Server:      AddHTTP(stringField(si.General, "server")),
		Interwiki:   si.Interwiki,
		Namespaces:  namespaces,
	}, nil
}

// AddHTTP prefixes protocol relative URLs with "http:".
func AddHTTP(u string) string {
	if strings.HasPrefix(u, "//") {
		return "http:" + u
	}
	return u
}

func stringField(general map[string]json.RawMessage, key string) string {
	var s string
	if raw, ok := general[key]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}

// isRTL reports whether the rtl flag is present. Older API versions send an
// empty string, newer ones a boolean.
func isRTL(general map[string]json.RawMessage) bool {
	raw, ok := general["rtl"]
	if !ok {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	return true
}
