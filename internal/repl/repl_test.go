package repl

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/anhtn/giaoan/internal/extract"
	"github.com/anhtn/giaoan/internal/gemini"
	"github.com/anhtn/giaoan/internal/generator"
	"github.com/anhtn/giaoan/internal/history"
	"github.com/anhtn/giaoan/pkg/models"
)

type fakeSession struct {
	chunks []gemini.Chunk
	turns  int
}

func (s *fakeSession) SendMessageStream(ctx context.Context, parts []models.ContentPart) <-chan gemini.Chunk {
	s.turns++
	ch := make(chan gemini.Chunk, len(s.chunks))
	for _, chunk := range s.chunks {
		ch <- chunk
	}
	close(ch)
	return ch
}

type fakeProvider struct {
	session *fakeSession
}

func (p *fakeProvider) NewSession(ctx context.Context, systemPrompt string) (generator.Session, error) {
	return p.session, nil
}

func newTestREPL(t *testing.T) (*REPL, *fakeSession, *bytes.Buffer) {
	t.Helper()

	session := &fakeSession{chunks: []gemini.Chunk{{Text: "# Giáo án thử\nnội dung"}}}
	log := history.NewLog(history.NewFileStore(filepath.Join(t.TempDir(), "history.json")), nil)
	extractor := extract.New()
	gen := generator.New(generator.Config{
		Provider:  &fakeProvider{session: session},
		Extractor: extractor,
		History:   log,
	})

	var out bytes.Buffer
	r := New(&Config{
		In:        strings.NewReader(""),
		Out:       &out,
		Err:       &out,
		Gen:       gen,
		History:   log,
		Extractor: extractor,
		Model:     "gemini-2.5-flash",
	})
	return r, session, &out
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"docs add a.png", []string{"docs", "add", "a.png"}},
		{`docs add "trang 12.png"`, []string{"docs", "add", "trang 12.png"}},
		{"form set title 'Phép cộng'", []string{"form", "set", "title", "Phép cộng"}},
		{"   ", nil},
	}

	for _, tt := range tests {
		if got := parseCommand(tt.line); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseCommand(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestDocsAddListRemove(t *testing.T) {
	r, _, out := newTestREPL(t)

	path := filepath.Join(t.TempDir(), "trang.png")
	if err := os.WriteFile(path, []byte{0x89, 0x50}, 0644); err != nil {
		t.Fatal(err)
	}

	if err := r.execute(context.Background(), "docs add "+path); err != nil {
		t.Fatalf("docs add error = %v", err)
	}
	if r.gen.Sources().Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.gen.Sources().Len())
	}

	out.Reset()
	if err := r.execute(context.Background(), "docs"); err != nil {
		t.Fatalf("docs error = %v", err)
	}
	if !strings.Contains(out.String(), "trang.png") {
		t.Errorf("docs listing missing the file: %q", out.String())
	}

	id := r.gen.Sources().Documents()[0].ID
	if err := r.execute(context.Background(), "docs remove "+id[:8]); err != nil {
		t.Fatalf("docs remove error = %v", err)
	}
	if r.gen.Sources().Len() != 0 {
		t.Error("document not removed")
	}
}

func TestFormSetAndShow(t *testing.T) {
	r, _, out := newTestREPL(t)

	if err := r.execute(context.Background(), "form set title Phép cộng trong phạm vi 10"); err != nil {
		t.Fatalf("form set error = %v", err)
	}
	if got := r.gen.Form().LessonTitle; got != "Phép cộng trong phạm vi 10" {
		t.Errorf("LessonTitle = %q", got)
	}

	if err := r.execute(context.Background(), "form set class Lớp 3"); err != nil {
		t.Fatal(err)
	}
	if err := r.execute(context.Background(), "form set duration 2"); err != nil {
		t.Fatal(err)
	}
	if got := r.gen.Form().Duration; got != "2 tiết (70 phút)" {
		t.Errorf("Duration = %q, want period arithmetic for Lớp 3", got)
	}

	if err := r.execute(context.Background(), "form set circulars 9999"); err == nil {
		t.Error("unknown circular should be rejected")
	}

	out.Reset()
	if err := r.execute(context.Background(), "form"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Phép cộng trong phạm vi 10") {
		t.Errorf("form display missing the title: %q", out.String())
	}
}

func TestFormSetTemplatePathWithSpaces(t *testing.T) {
	r, _, _ := newTestREPL(t)

	path := filepath.Join(t.TempDir(), "mau giao an.txt")
	if err := os.WriteFile(path, []byte("I. Mục tiêu"), 0644); err != nil {
		t.Fatal(err)
	}

	// Unquoted: the path arrives as several tokens and must be rejoined.
	if err := r.execute(context.Background(), "form set template "+path); err != nil {
		t.Fatalf("form set template error = %v", err)
	}

	form := r.gen.Form()
	if !form.UseCustomTemplate || form.CustomTemplate != "I. Mục tiêu" {
		t.Errorf("template not loaded from a path with spaces: %+v", form)
	}

	if err := r.execute(context.Background(), "form set template off"); err != nil {
		t.Fatal(err)
	}
	if form := r.gen.Form(); form.UseCustomTemplate || form.CustomTemplate != "" {
		t.Errorf("template off left %+v", form)
	}
}

func TestNewUsesInjectedExtractor(t *testing.T) {
	extractor := extract.New()
	r := New(&Config{Extractor: extractor})
	if r.extractor != extractor {
		t.Error("New() should keep the injected extractor for template reads")
	}

	if r := New(&Config{}); r.extractor == nil {
		t.Error("New() without an extractor should build its own")
	}
}

func TestBareInputRefinesActiveSession(t *testing.T) {
	r, session, _ := newTestREPL(t)
	r.gen.Sources().Add("a.png", []byte{1})

	if err := r.execute(context.Background(), "generate"); err != nil {
		t.Fatalf("generate error = %v", err)
	}
	if session.turns != 1 {
		t.Fatalf("turns = %d, want 1", session.turns)
	}

	session.chunks = []gemini.Chunk{{Text: "bản ngắn hơn"}}
	if err := r.execute(context.Background(), "làm ngắn gọn hơn"); err != nil {
		t.Fatalf("refinement error = %v", err)
	}
	if session.turns != 2 {
		t.Errorf("turns = %d, want the bare line sent as a refinement", session.turns)
	}
	if got := r.gen.State().Plan; got != "bản ngắn hơn" {
		t.Errorf("Plan = %q", got)
	}
}

func TestBareInputWithoutSessionPrintsHint(t *testing.T) {
	r, session, out := newTestREPL(t)

	if err := r.execute(context.Background(), "làm ngắn gọn hơn"); err != nil {
		t.Fatalf("execute error = %v", err)
	}
	if session.turns != 0 {
		t.Error("refinement without a session must not reach the provider")
	}
	if !strings.Contains(out.String(), "No active session") {
		t.Errorf("missing hint: %q", out.String())
	}
}

func TestHistoryRestoreDiscardsSession(t *testing.T) {
	r, _, _ := newTestREPL(t)
	r.gen.Sources().Add("a.png", []byte{1})

	if err := r.execute(context.Background(), "generate"); err != nil {
		t.Fatal(err)
	}

	entry := r.history.Entries()[0]
	if err := r.execute(context.Background(), "history restore "+entry.ID[:8]); err != nil {
		t.Fatalf("history restore error = %v", err)
	}
	if r.gen.CanRefine() {
		t.Error("restore must discard the refinement session")
	}
	if got := r.gen.State().Plan; got != entry.LessonPlan {
		t.Errorf("Plan = %q, want the restored plan", got)
	}
}

func TestSaveWritesMarkdown(t *testing.T) {
	r, _, out := newTestREPL(t)
	t.Chdir(t.TempDir())

	if err := r.execute(context.Background(), "save out"); err == nil {
		t.Error("save with no plan should fail")
	}

	if err := r.gen.ApplyManualEdit("# Giáo án\nnội dung"); err != nil {
		t.Fatal(err)
	}
	out.Reset()
	if err := r.execute(context.Background(), "save out"); err != nil {
		t.Fatalf("save error = %v", err)
	}

	data, err := os.ReadFile("out.md")
	if err != nil {
		t.Fatalf("saved file missing: %v", err)
	}
	if string(data) != "# Giáo án\nnội dung" {
		t.Errorf("saved content = %q", data)
	}

	if err := r.execute(context.Background(), "save ../escape"); err == nil {
		t.Error("path traversal should be rejected")
	}
}

func TestEditLoadsFile(t *testing.T) {
	r, _, _ := newTestREPL(t)

	path := filepath.Join(t.TempDir(), "sua.md")
	if err := os.WriteFile(path, []byte("# Bản sửa tay"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := r.execute(context.Background(), "edit "+path); err != nil {
		t.Fatalf("edit error = %v", err)
	}
	if got := r.gen.State().Plan; got != "# Bản sửa tay" {
		t.Errorf("Plan = %q", got)
	}
}

func TestRunStopsOnQuit(t *testing.T) {
	r, _, _ := newTestREPL(t)
	r.in = strings.NewReader("quit\nshould not run\n")

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if r.running {
		t.Error("quit should stop the loop")
	}
}
