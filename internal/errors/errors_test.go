package errors

import (
	stderrors "errors"
	"testing"
)

func TestNewRegisteredCode(t *testing.T) {
	err := New("E001")
	if err.Code != "E001" {
		t.Errorf("Code = %q, want E001", err.Code)
	}
	if err.Category != CategoryStructural {
		t.Errorf("Category = %q, want structural", err.Category)
	}
	if err.Message == "" {
		t.Error("Message is empty for registered code")
	}
}

func TestNewUnknownCode(t *testing.T) {
	err := New("E999")
	if err.Message != "Unknown error" {
		t.Errorf("Message = %q, want Unknown error", err.Message)
	}
}

func TestErrorString(t *testing.T) {
	err := New("E002")
	want := "E002: Patch path does not resolve to a node"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	noCode := Newf(CategoryInternal, "boom %d", 7)
	if noCode.Error() != "boom 7" {
		t.Errorf("Error() = %q, want boom 7", noCode.Error())
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := stderrors.New("root cause")
	err := New("E030").Wrap(cause)

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "E030") != nil {
		t.Error("FromError(nil) should be nil")
	}

	pe := New("E001")
	if got := FromError(pe, "E030"); got != pe {
		t.Error("FromError should pass through PresageError unchanged")
	}

	wrapped := FromError(stderrors.New("io"), "E030")
	if wrapped.Code != "E030" {
		t.Errorf("Code = %q, want E030", wrapped.Code)
	}
}

func TestIsStructural(t *testing.T) {
	if !IsStructural(New("E001")) {
		t.Error("E001 should be structural")
	}
	if IsStructural(New("E020")) {
		t.Error("E020 is capacity, not structural")
	}
	if IsStructural(stderrors.New("plain")) {
		t.Error("plain errors are not structural")
	}

	// Structural cause behind a fmt wrapper is still found through Unwrap.
	behind := New("E050").Wrap(New("E002"))
	if IsStructural(behind) {
		t.Error("category is read from the outermost PresageError")
	}
}
