// Package generator orchestrates lesson plan generation: it turns uploaded
// documents and form state into an initial chat turn, streams refinement
// turns on the same session, and records completed plans in history.
package generator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/anhtn/giaoan/internal/extract"
	"github.com/anhtn/giaoan/internal/gemini"
	"github.com/anhtn/giaoan/internal/history"
	"github.com/anhtn/giaoan/internal/prompt"
	"github.com/anhtn/giaoan/internal/source"
	"github.com/anhtn/giaoan/pkg/models"
)

// ErrBusy is returned by operations that require the generator to be idle.
var ErrBusy = errors.New("a generation is already in progress")

const (
	// trailingInstruction closes the initial turn after the document parts.
	trailingInstruction = "Dựa vào (các) hình ảnh sách giáo khoa này, hãy tạo giáo án."

	untitledFallback = "Giáo án không có tiêu đề"
	refinedPrefix    = "(Tinh chỉnh) "
	genericTitle     = "Giáo án"

	validationMessage = "Vui lòng tải lên ít nhất một hình ảnh sách giáo khoa."
	generateErrPrefix = "Đã xảy ra lỗi khi tạo giáo án"
	refineErrPrefix   = "Đã xảy ra lỗi khi tinh chỉnh giáo án"
)

// Phase is the orchestrator's lifecycle state. An error is not a phase of
// its own: it is a flag layered on Idle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseGenerating
	PhaseRefining
)

func (p Phase) String() string {
	switch p {
	case PhaseGenerating:
		return "generating"
	case PhaseRefining:
		return "refining"
	default:
		return "idle"
	}
}

// Session is one bound conversation; exactly what gemini.Session provides,
// narrowed so tests can substitute a fake.
type Session interface {
	SendMessageStream(ctx context.Context, parts []models.ContentPart) <-chan gemini.Chunk
}

// Provider creates sessions bound to a system prompt.
type Provider interface {
	NewSession(ctx context.Context, systemPrompt string) (Session, error)
}

// NewGeminiProvider adapts a gemini.Client to the Provider interface.
func NewGeminiProvider(client *gemini.Client) Provider {
	return geminiProvider{client: client}
}

type geminiProvider struct {
	client *gemini.Client
}

func (p geminiProvider) NewSession(ctx context.Context, systemPrompt string) (Session, error) {
	return p.client.NewSession(ctx, systemPrompt)
}

// State is an observable snapshot of the orchestrator.
type State struct {
	Phase         Phase
	Plan          string
	ErrMessage    string
	SessionActive bool
}

type Config struct {
	Provider  Provider
	Extractor *extract.Extractor
	History   *history.Log
	OnChunk   func(text string)              // called per streamed fragment, in arrival order
	Warnf     func(format string, args ...any)
}

// Generator owns the single active session and the observable plan state.
// One turn may be in flight at a time, enforced here rather than by any
// front-end affordance.
type Generator struct {
	provider  Provider
	extractor *extract.Extractor
	history   *history.Log
	onChunk   func(string)
	warnf     func(string, ...any)

	mu      sync.Mutex
	phase   Phase
	plan    strings.Builder
	errMsg  string
	session Session
	form    models.FormState
	docs    *source.Collection
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(cfg Config) *Generator {
	g := &Generator{
		provider:  cfg.Provider,
		extractor: cfg.Extractor,
		history:   cfg.History,
		onChunk:   cfg.OnChunk,
		warnf:     cfg.Warnf,
		form:      models.DefaultFormState(),
		docs:      source.NewCollection(),
	}
	if g.onChunk == nil {
		g.onChunk = func(string) {}
	}
	if g.warnf == nil {
		g.warnf = func(string, ...any) {}
	}
	if g.extractor != nil {
		g.extractor.SetWarnLogger(g.warnf)
	}
	return g
}

func (g *Generator) Form() models.FormState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.form
}

// SetForm replaces the form state. Rejected while a turn is in flight.
func (g *Generator) SetForm(form models.FormState) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase != PhaseIdle {
		return ErrBusy
	}
	g.form = form
	return nil
}

// Sources exposes the uploaded document collection. Mutate it only while
// the generator is idle.
func (g *Generator) Sources() *source.Collection {
	return g.docs
}

func (g *Generator) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return State{
		Phase:         g.phase,
		Plan:          g.plan.String(),
		ErrMessage:    g.errMsg,
		SessionActive: g.session != nil,
	}
}

// CanRefine reports whether a refinement turn would be accepted.
func (g *Generator) CanRefine() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session != nil && g.phase == PhaseIdle
}

// Cancel aborts the in-flight turn, if any, and waits for it to unwind.
func (g *Generator) Cancel() {
	g.mu.Lock()
	cancel, done := g.cancel, g.done
	g.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if done != nil {
		<-done
	}
}

// SubmitInitial starts a fresh generation from the current form state and
// documents. Any stale in-flight turn is aborted first; the previous session
// is always discarded, since a new session is the only way to change the
// system prompt.
func (g *Generator) SubmitInitial(ctx context.Context) error {
	g.Cancel()

	g.mu.Lock()
	if g.phase != PhaseIdle {
		g.mu.Unlock()
		return ErrBusy
	}

	docs := g.docs.Documents()
	if len(docs) == 0 {
		g.errMsg = validationMessage
		g.mu.Unlock()
		return fmt.Errorf("%w: %s", models.ErrNoSourceDocuments, validationMessage)
	}

	g.phase = PhaseGenerating
	g.plan.Reset()
	g.errMsg = ""
	g.session = nil
	form := g.form

	turnCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	g.cancel = cancel
	g.done = done
	g.mu.Unlock()

	defer func() {
		cancel()
		g.mu.Lock()
		g.phase = PhaseIdle
		g.cancel = nil
		g.done = nil
		g.mu.Unlock()
		close(done)
	}()

	parts, err := g.extractParts(turnCtx, docs)
	if err != nil {
		return g.failInitial(err)
	}
	parts = append(parts, models.TextPart(trailingInstruction))

	session, err := g.provider.NewSession(turnCtx, prompt.BuildSystemPrompt(form))
	if err != nil {
		return g.failInitial(err)
	}

	g.mu.Lock()
	g.session = session
	g.mu.Unlock()

	accumulated, err := g.consume(session.SendMessageStream(turnCtx, parts))
	if err != nil {
		return g.failInitial(err)
	}

	if strings.TrimSpace(accumulated) != "" {
		g.history.Append(history.NewEntry(DeriveTitle(form.LessonTitle, accumulated), accumulated))
	}
	return nil
}

// SubmitRefinement sends one follow-up message on the existing session. It
// is a silent no-op when no session is active or a turn is already in
// flight. The session survives a failed refinement, so the user may retry.
func (g *Generator) SubmitRefinement(ctx context.Context, message string) error {
	if strings.TrimSpace(message) == "" {
		return nil
	}

	g.mu.Lock()
	if g.session == nil || g.phase != PhaseIdle {
		g.mu.Unlock()
		return nil
	}

	g.phase = PhaseRefining
	g.plan.Reset()
	g.errMsg = ""
	session := g.session
	form := g.form

	turnCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	g.cancel = cancel
	g.done = done
	g.mu.Unlock()

	defer func() {
		cancel()
		g.mu.Lock()
		g.phase = PhaseIdle
		g.cancel = nil
		g.done = nil
		g.mu.Unlock()
		close(done)
	}()

	accumulated, err := g.consume(session.SendMessageStream(turnCtx, []models.ContentPart{models.TextPart(message)}))
	if err != nil {
		g.mu.Lock()
		g.errMsg = fmt.Sprintf("%s: %v", refineErrPrefix, err)
		g.mu.Unlock()
		return err
	}

	if strings.TrimSpace(accumulated) != "" {
		title := refinedPrefix + genericTitle
		if form.LessonTitle != "" {
			title = refinedPrefix + form.LessonTitle
		}
		g.history.Append(history.NewEntry(title, accumulated))
	}
	return nil
}

// ApplyManualEdit overwrites the displayed plan outside the streaming path.
// History, session, and error state are untouched.
func (g *Generator) ApplyManualEdit(text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase != PhaseIdle {
		return ErrBusy
	}
	g.plan.Reset()
	g.plan.WriteString(text)
	return nil
}

// RestorePlan loads a past plan into the display and discards the session:
// refining an old plan would silently run against the wrong context.
func (g *Generator) RestorePlan(text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase != PhaseIdle {
		return ErrBusy
	}
	g.plan.Reset()
	g.plan.WriteString(text)
	g.errMsg = ""
	g.session = nil
	return nil
}

// ResetAll restores defaults: form, documents, plan, error, session.
func (g *Generator) ResetAll() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase != PhaseIdle {
		return ErrBusy
	}
	g.form = models.DefaultFormState()
	g.docs.Reset()
	g.plan.Reset()
	g.errMsg = ""
	g.session = nil
	return nil
}

// extractParts runs per-document extraction concurrently and reassembles
// the flattened parts in upload order.
func (g *Generator) extractParts(ctx context.Context, docs []models.SourceDocument) ([]models.ContentPart, error) {
	eg, ctx := errgroup.WithContext(ctx)
	perDoc := make([][]models.ContentPart, len(docs))

	for i, doc := range docs {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			perDoc[i] = g.extractor.PartsForModel(doc)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var flat []models.ContentPart
	for _, parts := range perDoc {
		flat = append(flat, parts...)
	}
	return flat, nil
}

// consume drains one turn's stream, applying chunks to observable state in
// arrival order. Partial text is kept on failure.
func (g *Generator) consume(stream <-chan gemini.Chunk) (string, error) {
	var accumulated strings.Builder
	for chunk := range stream {
		if chunk.Err != nil {
			return accumulated.String(), chunk.Err
		}
		accumulated.WriteString(chunk.Text)

		g.mu.Lock()
		g.plan.WriteString(chunk.Text)
		g.mu.Unlock()

		g.onChunk(chunk.Text)
	}
	return accumulated.String(), nil
}

// failInitial records the error and discards the session: after a failed
// initial generation there is no context left to refine against.
func (g *Generator) failInitial(err error) error {
	g.mu.Lock()
	g.errMsg = fmt.Sprintf("%s: %v", generateErrPrefix, err)
	g.session = nil
	g.mu.Unlock()
	return err
}

var headingMarkers = regexp.MustCompile(`^#+\s*`)

// DeriveTitle picks the history entry title: the lesson title when set,
// otherwise the first generated line stripped of Markdown heading markers
// and truncated to 50 runes, otherwise a fixed fallback.
func DeriveTitle(lessonTitle, generated string) string {
	if lessonTitle != "" {
		return lessonTitle
	}

	firstLine, _, _ := strings.Cut(generated, "\n")
	firstLine = headingMarkers.ReplaceAllString(firstLine, "")
	if runes := []rune(firstLine); len(runes) > 50 {
		firstLine = string(runes[:50])
	}
	if firstLine == "" {
		return untitledFallback
	}
	return firstLine
}
