package validation

import (
	"strings"
	"testing"
)

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/watch?v=ABC123&t=5s", "ABC123"},
		{"https://www.youtube.com/watch?v=abc&x=1", "abc"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtube.com/watch?v=abc?x=1", "abc?x=1"},
		{"https://www.youtube.com/shorts/XYZ789?feature=share", "XYZ789"},
		{"https://www.youtube.com/shorts/def?y=2", "def"},
		{"https://m.youtube.com/shorts/def&y=2", "def&y=2"},
	}

	for _, tt := range tests {
		got, err := ExtractVideoID(tt.url)
		if err != nil {
			t.Errorf("ExtractVideoID(%s) unexpected error: %v", tt.url, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ExtractVideoID(%s) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestExtractVideoID_Invalid(t *testing.T) {
	urls := []string{
		"https://example.com/video",
		"",
		"https://youtu.be/abc",
		"https://www.youtube.com/watch?v=",
		"https://www.youtube.com/watch?v=&t=5",
		"https://www.youtube.com/shorts/",
		"https://www.youtube.com/shorts/?feature=share",
	}

	for _, u := range urls {
		_, err := ExtractVideoID(u)
		if err == nil {
			t.Errorf("ExtractVideoID(%s) expected error, got nil", u)
			continue
		}
		if !IsInvalidURL(err) {
			t.Errorf("ExtractVideoID(%s) error = %T, want *InvalidURLError", u, err)
		}
	}
}

func TestNewVideoReference(t *testing.T) {
	ref, err := NewVideoReference("https://www.youtube.com/watch?v=abc&x=1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if ref.ID() != "abc" || ref.URL() != "https://www.youtube.com/watch?v=abc&x=1" {
		t.Errorf("unexpected reference %+v", ref)
	}

	if _, err := NewVideoReference("https://example.com/video"); !IsInvalidURL(err) {
		t.Errorf("expected InvalidURLError, got %v", err)
	}
}

func TestValidateURL_EdgeCases(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://www.youtube.com/watch?v=abc", false},
		{"youtube.com/watch?v=abc", false},
		{"www.youtube.com/shorts/def?y=2", false},
		{"not a url", false},
		{"   ", true},
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateURL(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateURL(%s) error = %v, wantErr %v", tt.url, err, tt.wantErr)
		}
	}
}

func TestValidateCredential(t *testing.T) {
	if err := ValidateCredential("   "); err == nil {
		t.Error("expected error for blank credential")
	}
	if err := ValidateCredential("sk-test"); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestValidateQuestion(t *testing.T) {
	if err := ValidateQuestion(""); err == nil {
		t.Error("expected error for empty question")
	}
	if err := ValidateQuestion(strings.Repeat("a", MaxQuestionLength+1)); err == nil {
		t.Error("expected error for oversized question")
	}
	if err := ValidateQuestion("What is this about?"); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}
