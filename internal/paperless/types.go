// Package paperless provides an HTTP client for paperless-ngx style
// document repository APIs.
package paperless

import "time"

// Document is a document as reported by the remote repository. It is
// transient per scan; the scanner mirrors it into a local record.
type Document struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	Tags          []int64    `json:"tags"`
	Correspondent *int64     `json:"correspondent"`
	Created       *time.Time `json:"created"`
	Modified      *time.Time `json:"modified"`
}

// DocumentPage is one page of the repository's paginated document listing.
type DocumentPage struct {
	Count   int        `json:"count"`
	Results []Document `json:"results"`
	HasNext bool       `json:"-"`
}

// documentListResponse is the wire shape of the listing endpoint. Next is a
// URL cursor; only its presence matters.
type documentListResponse struct {
	Count    int        `json:"count"`
	Next     *string    `json:"next"`
	Previous *string    `json:"previous"`
	Results  []Document `json:"results"`
}

// MetadataUpdate is a partial update written back to a remote document.
// Nil/empty fields are omitted from the request body.
type MetadataUpdate struct {
	Title         *string  `json:"title,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Correspondent *string  `json:"correspondent,omitempty"`
	DocumentType  *string  `json:"document_type,omitempty"`
	CreatedDate   *string  `json:"created_date,omitempty"`
}

// IsEmpty reports whether the update would change nothing.
func (u *MetadataUpdate) IsEmpty() bool {
	return u.Title == nil &&
		len(u.Tags) == 0 &&
		u.Correspondent == nil &&
		u.DocumentType == nil &&
		u.CreatedDate == nil
}
