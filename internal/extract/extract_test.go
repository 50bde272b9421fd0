package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/anhtn/giaoan/pkg/models"
)

func fakeExtractor(pdfText string, pdfErr error) *Extractor {
	e := New()
	e.pdfText = func([]byte) (string, error) { return pdfText, pdfErr }
	e.docxText = func([]byte) (string, error) { return "docx body", nil }
	return e
}

func TestPartsForModelImage(t *testing.T) {
	e := New()
	doc := models.SourceDocument{Name: "page1.png", MIMEType: "image/png", Data: []byte{0x89, 0x50}}

	parts := e.PartsForModel(doc)

	if len(parts) != 1 {
		t.Fatalf("PartsForModel() returned %d parts, want 1", len(parts))
	}
	if parts[0].IsText() {
		t.Error("image document should produce a binary part")
	}
	if parts[0].MIMEType != "image/png" {
		t.Errorf("MIMEType = %q, want image/png", parts[0].MIMEType)
	}
}

func TestPartsForModelPDFWithText(t *testing.T) {
	e := fakeExtractor("trang một\n\ntrang hai\n\n", nil)
	doc := models.SourceDocument{Name: "bai.pdf", MIMEType: "application/pdf", Data: []byte("%PDF")}

	parts := e.PartsForModel(doc)

	if len(parts) != 2 {
		t.Fatalf("PartsForModel() returned %d parts, want 2", len(parts))
	}
	if !parts[1].IsText() {
		t.Fatal("second part should be text")
	}
	if !strings.Contains(parts[1].Text, "trang một") {
		t.Error("text part missing extracted PDF text")
	}
	if !strings.Contains(parts[1].Text, "Nội dung văn bản được trích xuất") {
		t.Error("text part missing explanatory preamble")
	}
}

func TestPartsForModelPDFExtractionFailureFallsBack(t *testing.T) {
	var warned bool
	e := fakeExtractor("", errors.New("corrupt xref"))
	e.SetWarnLogger(func(string, ...any) { warned = true })
	doc := models.SourceDocument{Name: "bai.pdf", MIMEType: "application/pdf", Data: []byte("%PDF")}

	parts := e.PartsForModel(doc)

	if len(parts) != 1 {
		t.Fatalf("failed extraction should fall back to binary-only, got %d parts", len(parts))
	}
	if !warned {
		t.Error("extraction failure should be logged")
	}
}

func TestPartsForModelPDFEmptyTextFallsBack(t *testing.T) {
	e := fakeExtractor("  \n\n ", nil)
	doc := models.SourceDocument{Name: "bai.pdf", MIMEType: "application/pdf", Data: []byte("%PDF")}

	if parts := e.PartsForModel(doc); len(parts) != 1 {
		t.Fatalf("blank extracted text should fall back to binary-only, got %d parts", len(parts))
	}
}

func TestTemplateTextDispatch(t *testing.T) {
	e := fakeExtractor("pdf body\n\n", nil)

	tests := []struct {
		name     string
		mimeType string
		want     string
	}{
		{"mau.txt", "text/plain", "nội dung mẫu"},
		{"mau.md", "", "nội dung mẫu"},
		{"noext", "text/plain", "nội dung mẫu"},
		{"mau.pdf", "application/pdf", "pdf body\n\n"},
		{"mau.docx", "", "docx body"},
	}

	for _, tt := range tests {
		got, err := e.TemplateText(tt.name, tt.mimeType, []byte("nội dung mẫu"))
		if err != nil {
			t.Errorf("TemplateText(%q) error = %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("TemplateText(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestTemplateTextUnsupportedFormat(t *testing.T) {
	e := New()

	_, err := e.TemplateText("mau.xyz", "application/octet-stream", []byte("data"))
	if !errors.Is(err, models.ErrUnsupportedFormat) {
		t.Fatalf("TemplateText(.xyz) error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestTemplateTextPDFFailureSurfaces(t *testing.T) {
	e := fakeExtractor("", errors.New("corrupt xref"))

	_, err := e.TemplateText("mau.pdf", "application/pdf", []byte("%PDF"))
	if err == nil {
		t.Fatal("template PDF failure must surface, not fall back")
	}
}
