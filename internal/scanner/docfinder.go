package scanner

import (
	"net/url"
	"path"
	"strings"

	"github.com/nao1215/sitescout/internal/model"
)

// documentExtensions are the file extensions treated as downloadable
// documents worth surfacing in reports.
var documentExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".xls":  true,
	".xlsx": true,
	".ppt":  true,
	".pptx": true,
	".odt":  true,
	".rtf":  true,
	".csv":  true,
}

// DocumentFinder scans page links for downloadable documents.
type DocumentFinder struct{}

// NewDocumentFinder creates a DocumentFinder.
func NewDocumentFinder() *DocumentFinder {
	return &DocumentFinder{}
}

// Find returns the document links found across the given pages,
// deduplicated by URL. The source page of the first sighting wins.
func (d *DocumentFinder) Find(pages []model.PageInfo) []model.Document {
	seen := make(map[string]bool)
	docs := make([]model.Document, 0)

	for _, page := range pages {
		for _, link := range page.Links {
			ext := linkExtension(link)
			if !documentExtensions[ext] || seen[link] {
				continue
			}
			seen[link] = true
			docs = append(docs, model.Document{
				URL:        link,
				Extension:  ext,
				SourcePage: page.URL,
			})
		}
	}

	return docs
}

// linkExtension returns the lower-cased extension of a URL's path,
// ignoring query and fragment.
func linkExtension(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return strings.ToLower(path.Ext(u.Path))
}
