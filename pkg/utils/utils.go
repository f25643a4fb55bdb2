package utils

import (
	"fmt"
	"strconv"
)

const DefaultPageSize = 20

func PageConfigFromStrings(page, size string) (pageNumber int, pageSize int, err error) {
	pageSize = DefaultPageSize
	if size != "" {
		pageSize, err = strconv.Atoi(size)
		if err != nil || pageSize < 1 {
			return 0, 0, fmt.Errorf("pageSize is not a valid positive integer")
		}
	}
	pageNumber = 1
	if page != "" {
		pageNumber, err = strconv.Atoi(page)
		if err != nil || pageNumber < 1 {
			return 0, 0, fmt.Errorf("pageNumber is not a valid positive integer")
		}
	}
	return pageNumber, pageSize, nil
}

// Paginate returns the 1-based page of items.
func Paginate[T any](items []T, pageNumber, pageSize int) []T {
	start := (pageNumber - 1) * pageSize
	if start >= len(items) {
		return []T{}
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
