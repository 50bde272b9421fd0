// Package extract converts uploaded documents into model-consumable content
// parts and reads user-supplied lesson plan templates.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/anhtn/giaoan/pkg/models"
)

const mimePDF = "application/pdf"
const mimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// pdfPreambleFormat wraps text extracted from a PDF so the model uses it
// alongside the attached binary file.
const pdfPreambleFormat = "Nội dung văn bản được trích xuất từ tệp PDF đính kèm: \n\n---\n\n%s\n\n---\n\nHãy sử dụng nội dung này cùng với việc phân tích tệp PDF gốc để có kết quả tốt nhất."

type Extractor struct {
	pdfText  func(data []byte) (string, error)
	docxText func(data []byte) (string, error)
	warnf    func(format string, args ...any)
}

func New() *Extractor {
	return &Extractor{
		pdfText:  pdfPageText,
		docxText: docxRawText,
		warnf:    func(string, ...any) {},
	}
}

// SetWarnLogger routes extraction fallback warnings (which are never
// surfaced as errors) to the given printf-style function.
func (e *Extractor) SetWarnLogger(warnf func(format string, args ...any)) {
	if warnf != nil {
		e.warnf = warnf
	}
}

// PartsForModel converts one source document into content parts. Every
// document yields an inline binary part; PDFs additionally yield a text part
// with the extracted page text when extraction succeeds. Extraction failure
// degrades silently to the binary-only part.
func (e *Extractor) PartsForModel(doc models.SourceDocument) []models.ContentPart {
	parts := []models.ContentPart{models.BinaryPart(doc.Data, doc.MIMEType)}

	if doc.MIMEType != mimePDF {
		return parts
	}

	text, err := e.pdfText(doc.Data)
	if err != nil {
		e.warnf("Không thể trích xuất văn bản từ PDF %s: %v", doc.Name, err)
		return parts
	}
	if strings.TrimSpace(text) == "" {
		return parts
	}

	return append(parts, models.TextPart(fmt.Sprintf(pdfPreambleFormat, text)))
}

// TemplateText reads the text of a user-supplied lesson plan template,
// dispatching on file extension with the MIME type as fallback. Unlike
// PartsForModel, failures here always surface to the caller.
func (e *Extractor) TemplateText(name, mimeType string, data []byte) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))

	switch {
	case ext == "txt" || ext == "md" || mimeType == "text/plain":
		return string(data), nil
	case ext == "pdf" || mimeType == mimePDF:
		text, err := e.pdfText(data)
		if err != nil {
			return "", fmt.Errorf("không thể đọc tệp PDF: %w", err)
		}
		return text, nil
	case ext == "docx" || mimeType == mimeDocx:
		text, err := e.docxText(data)
		if err != nil {
			return "", fmt.Errorf("không thể đọc tệp Word: %w", err)
		}
		return text, nil
	default:
		return "", fmt.Errorf("%w: định dạng tệp không được hỗ trợ (.%s)", models.ErrUnsupportedFormat, ext)
	}
}
