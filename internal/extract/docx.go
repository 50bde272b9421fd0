package extract

import (
	"bytes"
	"strings"

	"github.com/fumiama/go-docx"
)

// docxRawText extracts the raw text of a Word document, one line per
// paragraph. Formatting and embedded media are dropped.
func docxRawText(data []byte) (string, error) {
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var full strings.Builder
	for _, item := range doc.Document.Body.Items {
		switch block := item.(type) {
		case *docx.Paragraph:
			full.WriteString(block.String())
			full.WriteString("\n")
		case *docx.Table:
			full.WriteString(block.String())
			full.WriteString("\n")
		}
	}

	return full.String(), nil
}
