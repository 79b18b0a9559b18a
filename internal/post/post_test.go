package post

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestTransitionTable(t *testing.T) {
	legal := []struct{ from, to Status }{
		{StatusDraft, StatusApproved},
		{StatusApproved, StatusScheduled},
		{StatusScheduled, StatusPublished},
		{StatusScheduled, StatusFailed},
	}
	for _, c := range legal {
		if !CanTransition(c.from, c.to) {
			t.Errorf("expected %s -> %s legal", c.from, c.to)
		}
	}

	illegal := []struct{ from, to Status }{
		{StatusDraft, StatusScheduled},
		{StatusDraft, StatusPublished},
		{StatusPublished, StatusScheduled},
		{StatusPublished, StatusFailed},
		{StatusFailed, StatusScheduled},
		{StatusScheduled, StatusDraft},
	}
	for _, c := range illegal {
		if CanTransition(c.from, c.to) {
			t.Errorf("expected %s -> %s rejected", c.from, c.to)
		}
	}
}

func TestTransitionRejectsBackwardMove(t *testing.T) {
	p := &Post{ID: "p1", Status: StatusPublished}
	err := p.Transition(StatusScheduled)
	var invErr *InvalidTransitionError
	if !errors.As(err, &invErr) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if p.Status != StatusPublished {
		t.Errorf("failed transition must not mutate status, got %s", p.Status)
	}
}

func TestValidate(t *testing.T) {
	valid := &Post{
		ID:      "p1",
		Country: "Mexico",
		Photos:  []PhotoRef{{Filename: "a.jpg"}},
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	tooMany := &Post{ID: "p2", Country: "Mexico"}
	for i := 0; i <= MaxCarouselPhotos; i++ {
		tooMany.Photos = append(tooMany.Photos, PhotoRef{Filename: "x.jpg"})
	}
	var cfgErr *ConfigError
	if err := tooMany.Validate(); !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigError for oversize carousel, got %v", err)
	}

	empty := &Post{ID: "p3", Country: "Mexico"}
	if err := empty.Validate(); !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigError for empty photo set, got %v", err)
	}
}

func TestAttemptPhasesMoveForwardOnly(t *testing.T) {
	p := &Post{
		ID:     "p1",
		Photos: []PhotoRef{{Filename: "a.jpg"}, {Filename: "b.jpg", HostedURL: "https://cdn.test/b.jpg"}},
	}
	a := NewAttempt(p, time.Now())

	if a.Phase != PhasePending {
		t.Fatalf("new attempt starts pending, got %s", a.Phase)
	}
	if a.StagedCount() != 1 {
		t.Errorf("expected 1 pre-staged photo, got %d", a.StagedCount())
	}
	if a.Photos[1].State != PhotoStaged {
		t.Errorf("cached URL should seed staged state, got %q", a.Photos[1].State)
	}

	// Skipping a phase is rejected.
	if err := a.Advance(PhaseMediaReady); err == nil {
		t.Error("expected skip rejected")
	}
	if err := a.Advance(PhaseMediaStaged); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Backward never succeeds.
	if err := a.Advance(PhasePending); err == nil {
		t.Error("expected backward move rejected")
	}
}

func TestAttemptFail(t *testing.T) {
	p := &Post{ID: "p1", Photos: []PhotoRef{{Filename: "a.jpg"}}}
	a := NewAttempt(p, time.Now())

	if err := a.Fail("upload timed out"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.Terminal() || a.LastError != "upload timed out" {
		t.Errorf("expected terminal failed attempt, got %s / %q", a.Phase, a.LastError)
	}
	// Terminal attempts reject further moves.
	if err := a.Fail("again"); err == nil {
		t.Error("expected second Fail rejected")
	}
	if err := a.Advance(PhaseMediaStaged); err == nil {
		t.Error("expected Advance from failed rejected")
	}
}

func TestTransportErrorClassification(t *testing.T) {
	base := &TransportError{Op: "upload", Err: errors.New("timeout")}
	wrapped := fmt.Errorf("retries exhausted: %w", base)
	if !IsTransport(wrapped) {
		t.Error("expected wrapped transport error detected")
	}
	if IsTransport(errors.New("plain")) {
		t.Error("plain error must not classify as transport")
	}
}
