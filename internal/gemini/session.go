package gemini

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/anhtn/giaoan/pkg/models"
)

// Chunk is one streamed fragment of a model response. A non-nil Err is
// terminal: no further chunks follow it.
type Chunk struct {
	Text string
	Err  error
}

// Session is one provider-side conversation. It is bound to a single system
// prompt for life and keeps the turn history locally, so refinement turns
// carry the full prior context. At most one turn may stream at a time.
type Session struct {
	client       *Client
	systemPrompt string

	mu       sync.Mutex
	inFlight bool
	history  []content
}

// SendMessageStream submits one user turn and returns a lazy, single-pass
// sequence of text chunks. The channel closes after the terminal chunk. On a
// clean finish the user turn and model reply are committed to the session
// history; on error nothing is committed, so a retry re-sends the same turn.
func (s *Session) SendMessageStream(ctx context.Context, parts []models.ContentPart) <-chan Chunk {
	out := make(chan Chunk)

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		go func() {
			out <- Chunk{Err: ErrTurnInFlight}
			close(out)
		}()
		return out
	}
	s.inFlight = true
	userTurn := content{Role: roleUser, Parts: wireParts(parts)}
	contents := make([]content, len(s.history), len(s.history)+1)
	copy(contents, s.history)
	contents = append(contents, userTurn)
	s.mu.Unlock()

	go func() {
		defer close(out)

		reply, err := s.streamTurn(ctx, contents, out)

		s.mu.Lock()
		s.inFlight = false
		if err == nil {
			s.history = append(s.history, userTurn, content{Role: roleModel, Parts: []part{{Text: reply}}})
		}
		s.mu.Unlock()

		if err != nil {
			out <- Chunk{Err: err}
		}
	}()

	return out
}

// streamTurn performs the SSE request and forwards each text fragment in
// arrival order, returning the accumulated reply.
func (s *Session) streamTurn(ctx context.Context, contents []content, out chan<- Chunk) (string, error) {
	body := generateRequest{
		Contents: contents,
		SystemInstruction: &content{
			Parts: []part{{Text: s.systemPrompt}},
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	c := s.client
	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	c.logf("POST %s (%d bytes)", url, len(data))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStreamFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: status %d: %s", ErrStreamFailed, resp.StatusCode, apiErrorMessage(respBody))
	}

	var reply strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var chunk streamResponse
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			c.logf("skipping malformed stream event: %v", err)
			continue
		}
		if chunk.Error != nil {
			return "", fmt.Errorf("%w: %s", ErrStreamFailed, chunk.Error.Message)
		}

		text := chunk.text()
		if text == "" {
			continue
		}
		reply.WriteString(text)

		select {
		case out <- Chunk{Text: text}:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %v", ErrStreamFailed, err)
	}

	return reply.String(), nil
}

// Turns reports how many committed turns (user and model) the session holds.
func (s *Session) Turns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

const (
	roleUser  = "user"
	roleModel = "model"
)

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generateRequest struct {
	Contents          []content `json:"contents"`
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
}

type streamResponse struct {
	Candidates []candidate `json:"candidates"`
	Error      *apiError   `json:"error,omitempty"`
}

type candidate struct {
	Content content `json:"content"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func (r *streamResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

func wireParts(parts []models.ContentPart) []part {
	wire := make([]part, 0, len(parts))
	for _, p := range parts {
		if p.IsText() {
			wire = append(wire, part{Text: p.Text})
			continue
		}
		wire = append(wire, part{
			InlineData: &inlineData{
				MIMEType: p.MIMEType,
				Data:     base64.StdEncoding.EncodeToString(p.Data),
			},
		})
	}
	return wire
}
