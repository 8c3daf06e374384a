// Package artifact persists generated filings (XBRL instances and Markdown
// reports) on the local filesystem or in S3.
package artifact

import (
	"context"
	"fmt"
	"path"

	id "amsf/pkg/domain"
)

const (
	ContentTypeXML      = "application/xml"
	ContentTypeMarkdown = "text/markdown; charset=utf-8"
)

// Store writes and reads artifacts by key. Get returns sentinel.ErrNotFound
// for unknown keys.
type Store interface {
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// Key places an artifact under its organization and year.
func Key(orgID id.OrganizationID, year int, filename string) string {
	return path.Join(orgID.String(), fmt.Sprint(year), path.Base(filename))
}
