package output

import (
	"bytes"
	"strings"
	"testing"
)

func TestProgressBar_NonTTYPrintsOnlyFinalLine(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewProgress(3, "Storing packages")
	p.SetWriter(buf)

	p.Increment()
	p.Increment()
	if buf.Len() != 0 {
		t.Errorf("non-TTY progress should stay silent before completion, got %q", buf.String())
	}

	p.Increment()
	p.Finish()

	out := buf.String()
	if strings.Count(out, "\n") != 1 {
		t.Errorf("expected exactly one line, got %q", out)
	}
	if !strings.Contains(out, "100%") || !strings.Contains(out, "Storing packages") {
		t.Errorf("unexpected final line %q", out)
	}
}

func TestProgressBar_FinishEarly(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewProgress(10, "Working")
	p.SetWriter(buf)

	p.Increment()
	p.Finish()

	if !strings.Contains(buf.String(), "100%") {
		t.Errorf("Finish() should render the completed bar, got %q", buf.String())
	}
}

func TestProgressBar_IncrementBeyondTotal(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewProgress(1, "x")
	p.SetWriter(buf)

	p.Increment()
	p.Increment()
	if p.current != 1 {
		t.Errorf("current = %d, want 1", p.current)
	}
}

func TestProgressBar_ZeroTotal(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewProgress(0, "Nothing")
	p.SetWriter(buf)
	p.Finish()

	if !strings.Contains(buf.String(), "100%") {
		t.Errorf("empty progress should finish at 100%%, got %q", buf.String())
	}
}

func TestSpinner_NonTTY(t *testing.T) {
	buf := &bytes.Buffer{}
	s := NewSpinner("Updating active packages")
	s.SetWriter(buf)

	s.Start()
	s.Start() // no-op while running
	s.Stop()
	s.Stop()

	if got := buf.String(); got != "Updating active packages...\n" {
		t.Errorf("spinner output = %q", got)
	}
}
