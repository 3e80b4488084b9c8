package store

import "time"

// PageOptions controls how a log history is split into pages.
type PageOptions struct {
	// PageGap starts a new page when an entry is at least this long after
	// the first entry of the current page.
	PageGap time.Duration
	// MinInterval drops entries closer than this to the previous kept entry.
	MinInterval time.Duration
}

// DefaultPageOptions returns five-minute pages thinned to one entry per 2.5s.
func DefaultPageOptions() PageOptions {
	return PageOptions{
		PageGap:     5 * time.Minute,
		MinInterval: 2500 * time.Millisecond,
	}
}

// Page is one page of a paginated log.
type Page struct {
	Number  int
	Entries []*LogEntry
	HasNext bool
}

// Paginate splits entries, which must be sorted oldest first, into pages.
func Paginate(entries []*LogEntry, opts PageOptions) [][]*LogEntry {
	var pages [][]*LogEntry
	var current []*LogEntry
	var pageStart, lastKept time.Time

	for _, e := range entries {
		switch {
		case current == nil:
			current = []*LogEntry{e}
			pageStart, lastKept = e.CreatedAt, e.CreatedAt
		case e.CreatedAt.Sub(pageStart) >= opts.PageGap:
			pages = append(pages, current)
			current = []*LogEntry{e}
			pageStart, lastKept = e.CreatedAt, e.CreatedAt
		case e.CreatedAt.Sub(lastKept) >= opts.MinInterval:
			current = append(current, e)
			lastKept = e.CreatedAt
		}
	}

	if current != nil {
		pages = append(pages, current)
	}
	return pages
}

// PageOf returns 1-based page number n of the paginated entries.
// Out of range pages are empty and have no next page.
func PageOf(entries []*LogEntry, n int, opts PageOptions) Page {
	pages := Paginate(entries, opts)

	page := Page{Number: n, Entries: []*LogEntry{}}
	if n >= 1 && n <= len(pages) {
		page.Entries = pages[n-1]
		page.HasNext = n < len(pages)
	}
	return page
}
