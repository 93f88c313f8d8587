package utils

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Page is a 1-based page window read from ?page= and ?limit=.
type Page struct {
	Number int
	Size   int
}

// PageFromQuery clamps the page to >= 1 and the size to 1..100, falling back
// to the defaults on anything unparsable.
func PageFromQuery(c *fiber.Ctx) Page {
	p := Page{
		Number: queryInt(c, "page", 1),
		Size:   queryInt(c, "limit", defaultPageSize),
	}
	if p.Number < 1 {
		p.Number = 1
	}
	switch {
	case p.Size < 1:
		p.Size = defaultPageSize
	case p.Size > maxPageSize:
		p.Size = maxPageSize
	}
	return p
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// Meta is the "pagination" object of list responses.
func (p Page) Meta(total int64) fiber.Map {
	return fiber.Map{
		"current_page":   p.Number,
		"items_per_page": p.Size,
		"total_items":    total,
	}
}

func queryInt(c *fiber.Ctx, key string, fallback int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return fallback
	}
	return n
}
