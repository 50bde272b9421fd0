package models

import (
	"testing"
)

func TestDefaultFormState(t *testing.T) {
	form := DefaultFormState()

	if form.Program != "GDPT 2018" {
		t.Errorf("Program = %q, want %q", form.Program, "GDPT 2018")
	}
	if len(form.Circulars) != 1 || form.Circulars[0] != "5512" {
		t.Errorf("Circulars = %v, want [5512]", form.Circulars)
	}
	if form.Duration != "1 tiết (45 phút)" {
		t.Errorf("Duration = %q, want %q", form.Duration, "1 tiết (45 phút)")
	}
	if form.UseCustomTemplate {
		t.Error("UseCustomTemplate should default to false")
	}
}

func TestMinutesPerPeriod(t *testing.T) {
	tests := []struct {
		classLevel string
		want       int
	}{
		{"Lớp 1", 35},
		{"Lớp 3", 35},
		{"Lớp 5", 35},
		{"Lớp 6", 45},
		{"Lớp 12", 45},
		{"3A", 35},
		{"10", 45},
		{"", 45},
		{"Lớp", 45},
	}

	for _, tt := range tests {
		if got := MinutesPerPeriod(tt.classLevel); got != tt.want {
			t.Errorf("MinutesPerPeriod(%q) = %d, want %d", tt.classLevel, got, tt.want)
		}
	}
}

func TestDurationForPeriods(t *testing.T) {
	tests := []struct {
		periods    int
		classLevel string
		want       string
	}{
		{1, "Lớp 8", "1 tiết (45 phút)"},
		{2, "Lớp 2", "2 tiết (70 phút)"},
		{3, "Lớp 10", "3 tiết (135 phút)"},
		{0, "Lớp 7", "1 tiết (45 phút)"},
	}

	for _, tt := range tests {
		if got := DurationForPeriods(tt.periods, tt.classLevel); got != tt.want {
			t.Errorf("DurationForPeriods(%d, %q) = %q, want %q", tt.periods, tt.classLevel, got, tt.want)
		}
	}
}

func TestJoinedCirculars(t *testing.T) {
	form := FormState{Circulars: []string{"5512", "2345"}}
	if got := form.JoinedCirculars(); got != "5512, 2345" {
		t.Errorf("JoinedCirculars() = %q, want %q", got, "5512, 2345")
	}

	form.Circulars = nil
	if got := form.JoinedCirculars(); got != "tiêu chuẩn" {
		t.Errorf("JoinedCirculars() with no selection = %q, want %q", got, "tiêu chuẩn")
	}
}

func TestContentPart(t *testing.T) {
	text := TextPart("hello")
	if !text.IsText() {
		t.Error("TextPart should report IsText")
	}

	bin := BinaryPart([]byte{0x1}, "image/png")
	if bin.IsText() {
		t.Error("BinaryPart should not report IsText")
	}
	if bin.MIMEType != "image/png" {
		t.Errorf("MIMEType = %q, want image/png", bin.MIMEType)
	}
}
