package opendata

import (
	"net/url"
	"strconv"
	"strings"
)

// DatasetUUID identifies the Taichung micro air-quality dataset on the
// municipal open-data portal.
const DatasetUUID = "33093aab-c094-4caf-9653-389ee511a618"

// DefaultBaseURL is the open-data portal the fallback candidates target.
const DefaultBaseURL = "https://datacenter.taichung.gov.tw"

// PageLimit is the fixed page size requested from the API.
const PageLimit = 1000

// Candidates builds the ordered, de-duplicated list of endpoint URLs to
// try: the hint first when present, then the known path variants for the
// dataset on the portal base.
func Candidates(hint, base string) []string {
	var raw []string
	if h := strings.TrimSpace(hint); h != "" {
		raw = append(raw, h)
	}

	base = strings.TrimRight(base, "/")
	raw = append(raw,
		base+"/OpenData/"+DatasetUUID,
		base+"/swagger/OpenData/"+DatasetUUID,
		base+"/api/OpenData/"+DatasetUUID,
		base+"/openapi/OpenData/"+DatasetUUID,
	)

	seen := make(map[string]struct{}, len(raw))
	uniq := make([]string, 0, len(raw))
	for _, u := range raw {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		uniq = append(uniq, u)
	}
	return uniq
}

// withPagination appends the fixed limit/offset parameters, keeping any
// values the URL already carries. Unparseable URLs pass through as-is so
// the fetch loop can report them as failed attempts.
func withPagination(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Get("limit") == "" {
		q.Set("limit", strconv.Itoa(PageLimit))
	}
	if q.Get("offset") == "" {
		q.Set("offset", "0")
	}
	u.RawQuery = q.Encode()
	return u.String()
}
