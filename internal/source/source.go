// Package source manages the set of textbook documents attached to a
// generation attempt.
package source

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/anhtn/giaoan/pkg/models"
)

// Collection holds documents in upload order, capped at
// models.MaxSourceDocuments by default. Additions beyond the cap are
// dropped, never rejected; Add reports whether the document was kept so
// callers can warn.
type Collection struct {
	cap  int
	docs []models.SourceDocument
}

func NewCollection() *Collection {
	return &Collection{cap: models.MaxSourceDocuments}
}

// SetCap overrides the document cap. Values below one are ignored.
func (c *Collection) SetCap(n int) {
	if n > 0 {
		c.cap = n
	}
}

func (c *Collection) Add(name string, data []byte) (models.SourceDocument, bool) {
	if len(c.docs) >= c.cap {
		return models.SourceDocument{}, false
	}

	doc := models.SourceDocument{
		ID:       uuid.New().String(),
		Name:     name,
		MIMEType: DetectMIME(name, data),
		Data:     data,
	}
	c.docs = append(c.docs, doc)
	return doc, true
}

func (c *Collection) AddFile(path string) (models.SourceDocument, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.SourceDocument{}, false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	doc, kept := c.Add(filepath.Base(path), data)
	return doc, kept, nil
}

func (c *Collection) Remove(id string) bool {
	for i, doc := range c.docs {
		if doc.ID == id || strings.HasPrefix(doc.ID, id) {
			c.docs = append(c.docs[:i], c.docs[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Collection) Reset() {
	c.docs = nil
}

// Documents returns a copy of the collection in upload order.
func (c *Collection) Documents() []models.SourceDocument {
	out := make([]models.SourceDocument, len(c.docs))
	copy(out, c.docs)
	return out
}

func (c *Collection) Len() int {
	return len(c.docs)
}

// DetectMIME resolves a document's MIME type from its extension, sniffing
// the payload when the extension is unknown. Parameters such as charset are
// stripped.
func DetectMIME(name string, data []byte) string {
	if mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); mimeType != "" {
		if base, _, ok := strings.Cut(mimeType, ";"); ok {
			return strings.TrimSpace(base)
		}
		return mimeType
	}
	return http.DetectContentType(data)
}
