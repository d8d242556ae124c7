package logger_test

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/cxlab/cxdriver/logger"
)

func TestCentralLogger(t *testing.T) {
	log := logger.NewLogger(100)
	w := &strings.Builder{}

	log.Write(w)
	if w.String() != "" {
		t.Fatalf("expected empty log, got %q", w.String())
	}

	log.Log(logger.Allow, "test", "this is a test")
	log.Write(w)
	want := "test: this is a test\n"
	if w.String() != want {
		t.Fatalf("got %q, want %q", w.String(), want)
	}

	w.Reset()

	log.Log(logger.Allow, "test2", "this is another test")
	log.Write(w)
	want = "test: this is a test\ntest2: this is another test\n"
	if w.String() != want {
		t.Fatalf("got %q, want %q", w.String(), want)
	}

	w.Reset()
	log.Tail(w, 100)
	if w.String() != want {
		t.Fatalf("Tail(100): got %q, want %q", w.String(), want)
	}

	w.Reset()
	log.Tail(w, 2)
	if w.String() != want {
		t.Fatalf("Tail(2): got %q, want %q", w.String(), want)
	}

	w.Reset()
	log.Tail(w, 1)
	want = "test2: this is another test\n"
	if w.String() != want {
		t.Fatalf("Tail(1): got %q, want %q", w.String(), want)
	}

	w.Reset()
	log.Tail(w, 0)
	if w.String() != "" {
		t.Fatalf("Tail(0): got %q, want empty", w.String())
	}
}

func TestCapacityDropsOldest(t *testing.T) {
	log := logger.NewLogger(2)
	w := &strings.Builder{}

	log.Log(logger.Allow, "a", "1")
	log.Log(logger.Allow, "b", "2")
	log.Log(logger.Allow, "c", "3")

	log.Write(w)
	want := "b: 2\nc: 3\n"
	if w.String() != want {
		t.Fatalf("got %q, want %q", w.String(), want)
	}
}

type prohibitLogging struct {
	allow int
}

func (p prohibitLogging) AllowLogging() bool {
	return p.allow > 50
}

func TestPermissions(t *testing.T) {
	log := logger.NewLogger(100)
	w := &strings.Builder{}

	var p prohibitLogging

	for range [100]struct{}{} {
		p.allow = rand.Intn(100)
		log.Clear()
		w.Reset()
		log.Log(p, "tag", "detail")
		log.Write(w)
		if p.AllowLogging() {
			if w.String() != "tag: detail\n" {
				t.Fatalf("expected logged entry, got %q", w.String())
			}
		} else if w.String() != "" {
			t.Fatalf("expected no entry, got %q", w.String())
		}
	}
}

func TestErrorLogging(t *testing.T) {
	log := logger.NewLogger(100)
	w := &strings.Builder{}

	err := errors.New("test error")

	log.Log(logger.Allow, "tag", err)
	log.Write(w)
	want := "tag: test error\n"
	if w.String() != want {
		t.Fatalf("got %q, want %q", w.String(), want)
	}

	log.Clear()
	w.Reset()

	log.Logf(logger.Allow, "tag", "wrapped: %v", err)
	log.Write(w)
	want = "tag: wrapped: test error\n"
	if w.String() != want {
		t.Fatalf("got %q, want %q", w.String(), want)
	}
}

type stringerTest struct{}

func (stringerTest) String() string {
	return "stringer test"
}

func TestStringerLogging(t *testing.T) {
	log := logger.NewLogger(100)
	w := &strings.Builder{}

	log.Log(logger.Allow, "tag", stringerTest{})
	log.Write(w)
	want := "tag: stringer test\n"
	if w.String() != want {
		t.Fatalf("got %q, want %q", w.String(), want)
	}
}

func TestIntLogging(t *testing.T) {
	log := logger.NewLogger(100)
	w := &strings.Builder{}

	log.Log(logger.Allow, "tag", 100)
	log.Write(w)
	want := "tag: 100\n"
	if w.String() != want {
		t.Fatalf("got %q, want %q", w.String(), want)
	}
}
