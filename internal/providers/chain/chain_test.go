package chain

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type stubStrategy struct {
	name     string
	attempts int
	fn       func() (string, error)
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Attempt(ctx context.Context, req string) (string, error) {
	s.attempts++
	return s.fn()
}

func failing(name string, err error) *stubStrategy {
	return &stubStrategy{name: name, fn: func() (string, error) { return "", err }}
}

func succeeding(name, result string) *stubStrategy {
	return &stubStrategy{name: name, fn: func() (string, error) { return result, nil }}
}

func TestFirstSuccessWins(t *testing.T) {
	first := succeeding("first", "ok-first")
	second := succeeding("second", "ok-second")
	c := New[string, string]("test", zerolog.Nop(), 0, first, second)

	got, err := c.Do(context.Background(), "req")
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got != "ok-first" {
		t.Errorf("result = %q, want ok-first", got)
	}
	if second.attempts != 0 {
		t.Errorf("second strategy attempted %d times after first succeeded", second.attempts)
	}
}

func TestAdvancesPastFailures(t *testing.T) {
	first := failing("first", &StatusError{Code: 400, Message: "bad prompt"})
	second := failing("second", &StatusError{Code: 403, Message: "quota"})
	third := succeeding("third", "ok")
	c := New[string, string]("test", zerolog.Nop(), 0, first, second, third)

	got, err := c.Do(context.Background(), "req")
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got != "ok" {
		t.Errorf("result = %q", got)
	}
	if first.attempts != 1 || second.attempts != 1 || third.attempts != 1 {
		t.Errorf("attempts = %d/%d/%d, want 1/1/1", first.attempts, second.attempts, third.attempts)
	}
}

func TestExhaustionSurfacesLastError(t *testing.T) {
	first := failing("first", &StatusError{Code: 400, Message: "first failure"})
	last := failing("last", &StatusError{Code: 403, Message: "last failure"})
	c := New[string, string]("test", zerolog.Nop(), 0, first, last)

	_, err := c.Do(context.Background(), "req")
	if err == nil {
		t.Fatal("expected error after exhaustion")
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Code != 403 {
		t.Errorf("err = %v, want last strategy's 403 wrapped", err)
	}
	if !strings.Contains(err.Error(), "last") {
		t.Errorf("err = %v, should name the last strategy", err)
	}
	if strings.Contains(err.Error(), "first failure") {
		t.Errorf("err = %v, earlier errors belong in the log, not the return", err)
	}
}

func TestPermanentErrorSkipsRetry(t *testing.T) {
	s := failing("only", &StatusError{Code: 401, Message: "bad key"})
	c := New[string, string]("test", zerolog.Nop(), 3, s)

	if _, err := c.Do(context.Background(), "req"); err == nil {
		t.Fatal("expected error")
	}
	if s.attempts != 1 {
		t.Errorf("permanent failure attempted %d times, want 1", s.attempts)
	}
}

func TestTransientErrorIsRetried(t *testing.T) {
	s := &stubStrategy{name: "flaky"}
	s.fn = func() (string, error) {
		if s.attempts < 2 {
			return "", &StatusError{Code: 503, Message: "overloaded"}
		}
		return "ok", nil
	}
	c := New[string, string]("test", zerolog.Nop(), 2, s)

	got, err := c.Do(context.Background(), "req")
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got != "ok" {
		t.Errorf("result = %q", got)
	}
	if s.attempts != 2 {
		t.Errorf("attempts = %d, want 2", s.attempts)
	}
}

func TestEmptyChain(t *testing.T) {
	c := New[string, string]("test", zerolog.Nop(), 0)
	if _, err := c.Do(context.Background(), "req"); err == nil {
		t.Fatal("empty chain must fail")
	}
}

func TestCancelledContextStopsAdvancing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := &stubStrategy{name: "first"}
	first.fn = func() (string, error) {
		cancel()
		return "", &StatusError{Code: 400}
	}
	second := succeeding("second", "ok")
	c := New[string, string]("test", zerolog.Nop(), 0, first, second)

	if _, err := c.Do(ctx, "req"); err == nil {
		t.Fatal("expected error after cancellation")
	}
	if second.attempts != 0 {
		t.Errorf("chain advanced past a cancelled context")
	}
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"server error", &StatusError{Code: 500}, true},
		{"bad gateway", &StatusError{Code: 502}, true},
		{"bad request", &StatusError{Code: 400}, false},
		{"rate limit", &StatusError{Code: 429}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		if got := IsTransient(tc.err); got != tc.want {
			t.Errorf("IsTransient(%s) = %v, want %v", tc.name, got, tc.want)
		}
	}
}
