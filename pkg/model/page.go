package model

import "math"

// Page is one slice of a sorted result set.
type Page[P any] struct {
	Data       []P   `json:"data"`
	Total      int64 `json:"total"`
	Page       int64 `json:"page"`
	PageSize   int64 `json:"page_size"`
	TotalPages int64 `json:"total_pages"`
}

// pageBounds returns skip and limit for a 1-based page. ok is false when
// the skip does not fit in an int64; no collection holds that many
// documents, so such a page is past the end.
func pageBounds(page, pageSize int64) (skip, limit int64, ok bool) {
	if page-1 > math.MaxInt64/pageSize {
		return 0, 0, false
	}
	return (page - 1) * pageSize, pageSize, true
}

func totalPages(total, pageSize int64) int64 {
	if total <= 0 {
		return 0
	}
	n := total / pageSize
	if total%pageSize != 0 {
		n++
	}
	return n
}
