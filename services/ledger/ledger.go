// Package ledger persists the set of detail URLs that were already notified.
package ledger

import (
	"context"
	"sort"
)

// Ledger loads and saves the set of already-notified detail URLs.
// Load treats an absent, empty or malformed ledger as empty and returns an
// error only when the store cannot be read at all. Save errors are the
// caller's to log.
type Ledger interface {
	Load(ctx context.Context) (URLSet, error)
	Save(ctx context.Context, set URLSet) error
}

// URLSet is an order-irrelevant set of URLs
type URLSet map[string]struct{}

// NewURLSet builds a set from urls, ignoring empty strings
func NewURLSet(urls ...string) URLSet {
	set := make(URLSet, len(urls))
	for _, u := range urls {
		set.Add(u)
	}
	return set
}

// Has reports whether url is in the set
func (s URLSet) Has(url string) bool {
	_, ok := s[url]
	return ok
}

// Add inserts url unless it is empty
func (s URLSet) Add(url string) {
	if url == "" {
		return
	}
	s[url] = struct{}{}
}

// Len returns the number of URLs
func (s URLSet) Len() int {
	return len(s)
}

// Union returns a new set holding the URLs of s and other
func (s URLSet) Union(other URLSet) URLSet {
	out := make(URLSet, len(s)+len(other))
	for u := range s {
		out[u] = struct{}{}
	}
	for u := range other {
		out[u] = struct{}{}
	}
	return out
}

// Sorted returns the URLs in lexical order for stable serialization
func (s URLSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for u := range s {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
