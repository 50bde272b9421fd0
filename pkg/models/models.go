package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrNoSourceDocuments = errors.New("at least one source document is required")
	ErrUnsupportedFormat = errors.New("unsupported template format")
	ErrEmptyMessage      = errors.New("refinement message cannot be empty")
)

// MaxSourceDocuments caps how many textbook documents a single generation
// may reference. Additions beyond the cap are dropped, not rejected.
const MaxSourceDocuments = 10

// ContentPart is one unit of model input: either plain text or a binary
// payload tagged with its MIME type.
type ContentPart struct {
	Text     string
	Data     []byte
	MIMEType string
}

func TextPart(text string) ContentPart {
	return ContentPart{Text: text}
}

func BinaryPart(data []byte, mimeType string) ContentPart {
	return ContentPart{Data: data, MIMEType: mimeType}
}

func (p ContentPart) IsText() bool {
	return len(p.Data) == 0
}

// SourceDocument is one user-supplied textbook page or PDF.
type SourceDocument struct {
	ID       string
	Name     string
	MIMEType string
	Data     []byte
}

// FormState holds the lesson metadata entered by the teacher. CustomTemplate
// is non-empty only when a template file was read successfully; the flag may
// be true with an empty template, in which case the standard prompt is used.
type FormState struct {
	TeacherName       string
	LessonTitle       string
	Subject           string
	ClassLevel        string
	Program           string
	Circulars         []string
	Duration          string
	Notes             string
	UseCustomTemplate bool
	CustomTemplate    string
}

// CircularOption is one Ministry of Education circular the plan may follow.
type CircularOption struct {
	ID    string
	Label string
}

func CircularOptions() []CircularOption {
	return []CircularOption{
		{ID: "5512", Label: "Công văn 5512"},
		{ID: "2345", Label: "Công văn 2345"},
		{ID: "1001", Label: "Công văn 1001"},
	}
}

func DefaultFormState() FormState {
	return FormState{
		Program:   "GDPT 2018",
		Circulars: []string{"5512"},
		Duration:  "1 tiết (45 phút)",
	}
}

// MinutesPerPeriod returns the length of one teaching period for the given
// class level: 35 minutes for primary grades (1-5), 45 otherwise.
func MinutesPerPeriod(classLevel string) int {
	if g, ok := gradeToken(classLevel); ok && g >= 1 && g <= 5 {
		return 35
	}
	return 45
}

// DurationForPeriods renders the displayed duration string for a period
// count, e.g. "2 tiết (90 phút)".
func DurationForPeriods(periods int, classLevel string) string {
	if periods < 1 {
		periods = 1
	}
	minutes := periods * MinutesPerPeriod(classLevel)
	return fmt.Sprintf("%d tiết (%d phút)", periods, minutes)
}

// gradeToken extracts the first run of digits from a class level such as
// "Lớp 3" or "3A".
func gradeToken(classLevel string) (int, bool) {
	start := -1
	for i, r := range classLevel {
		if r >= '0' && r <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			n, err := strconv.Atoi(classLevel[start:i])
			return n, err == nil
		}
	}
	if start >= 0 {
		n, err := strconv.Atoi(classLevel[start:])
		return n, err == nil
	}
	return 0, false
}

// JoinedCirculars renders the selected circular IDs for prompt
// interpolation, falling back to the literal "tiêu chuẩn" token.
func (f FormState) JoinedCirculars() string {
	if len(f.Circulars) == 0 {
		return "tiêu chuẩn"
	}
	return strings.Join(f.Circulars, ", ")
}
