package server

import (
	"net/http"
	"strconv"
	"strings"

	"osapi/internal/api"
	"osapi/internal/models"
)

func buildSentencePage(items []models.Sentence, total, perPage, page int, path string) api.SentencePage {
	if items == nil {
		items = []models.Sentence{}
	}
	lastPage := 1
	if total > 0 && perPage > 0 {
		lastPage = (total + perPage - 1) / perPage
	}

	out := api.SentencePage{
		CurrentPage:  page,
		Data:         items,
		FirstPageURL: pageURL(path, 1),
		LastPage:     lastPage,
		LastPageURL:  pageURL(path, lastPage),
		Path:         path,
		PerPage:      perPage,
		Total:        total,
	}
	if len(items) > 0 {
		from := (page-1)*perPage + 1
		to := from + len(items) - 1
		out.From = &from
		out.To = &to
	}
	if page < lastPage {
		next := pageURL(path, page+1)
		out.NextPageURL = &next
	}
	if page > 1 {
		prev := pageURL(path, page-1)
		out.PrevPageURL = &prev
	}
	return out
}

func pageURL(path string, page int) string {
	return path + "?page=" + strconv.Itoa(page)
}

// requestURLPath is the absolute URL of r without its query string.
func requestURLPath(r *http.Request) string {
	return requestScheme(r) + "://" + r.Host + r.URL.Path
}

func requestScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if proto := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto"))); proto == "https" || proto == "http" {
		return proto
	}
	return "http"
}
