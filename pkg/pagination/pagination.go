package pagination

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 100
	MaxLimit     = 500

	// TotalCountHeader carries the unpaged row count of a list response.
	TotalCountHeader = "X-Total-Count"
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// FromContext extracts pagination parameters from the echo context.
// Missing or malformed values fall back to the defaults.
func FromContext(c echo.Context) Params {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}

	return Params{Limit: limit, Offset: offset}
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// HasPrevious returns true if there are results before the current page.
func (p Params) HasPrevious() bool {
	return p.Offset > 0
}

// NextOffset returns the offset for the next page.
func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}

// PreviousOffset returns the offset for the previous page.
// Returns 0 if the result would be negative.
func (p Params) PreviousOffset() int {
	prev := p.Offset - p.Limit
	if prev < 0 {
		return 0
	}
	return prev
}

// Link builds an RFC 8288 Link header value with next and prev relations
// for basePath. It is empty when the result fits in one page.
func (p Params) Link(basePath string, total int) string {
	var links []string
	if p.HasNext(total) {
		links = append(links, fmt.Sprintf(`<%s>; rel="next"`, pageURL(basePath, p.NextOffset(), p.Limit)))
	}
	if p.HasPrevious() {
		links = append(links, fmt.Sprintf(`<%s>; rel="prev"`, pageURL(basePath, p.PreviousOffset(), p.Limit)))
	}
	return strings.Join(links, ", ")
}

func pageURL(basePath string, offset, limit int) string {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	return basePath + "?" + q.Encode()
}

// SetHeaders exposes total and the page links on the response so list
// bodies can stay plain JSON arrays.
func SetHeaders(c echo.Context, p Params, total int) {
	h := c.Response().Header()
	h.Set(TotalCountHeader, strconv.Itoa(total))
	if link := p.Link(c.Request().URL.Path, total); link != "" {
		h.Set("Link", link)
	}
}
