// ABOUTME: Tests for the session registry: one active session per workflow and bulk shutdown.
// ABOUTME: Reuses the scripted Source double from the poller tests.
package poller

import (
	"context"
	"testing"
	"time"

	"github.com/2389-research/switchboard/resource"
)

func TestRegistryReplacesExistingSession(t *testing.T) {
	src := &scriptedSource{statuses: []string{resource.StatusInProgress}}
	r := NewRegistry(src, time.Hour)
	defer r.StopAll()

	first, err := r.Start(context.Background(), "wf-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Start(context.Background(), "wf-1", nil)
	if err != nil {
		t.Fatal(err)
	}

	if first.ID == second.ID {
		t.Error("sessions should have distinct ids")
	}
	if first.Poller.State() != StateCancelled {
		t.Errorf("first session state = %s, want cancelled", first.Poller.State())
	}
	got, ok := r.Get("wf-1")
	if !ok || got != second {
		t.Error("registry should hold the newest session")
	}
	if active := r.Active(); len(active) != 1 || active[0] != "wf-1" {
		t.Errorf("Active = %v, want [wf-1]", active)
	}
}

func TestRegistryStopAndStopAll(t *testing.T) {
	src := &scriptedSource{statuses: []string{resource.StatusInProgress}}
	r := NewRegistry(src, time.Hour)

	a, _ := r.Start(context.Background(), "wf-a", nil)
	b, _ := r.Start(context.Background(), "wf-b", nil)

	if !r.Stop("wf-a") {
		t.Error("Stop should report an existing session")
	}
	if r.Stop("wf-a") {
		t.Error("second Stop should report no session")
	}
	if a.Poller.State() != StateCancelled {
		t.Errorf("wf-a state = %s", a.Poller.State())
	}

	r.StopAll()
	if b.Poller.State() != StateCancelled {
		t.Errorf("wf-b state = %s", b.Poller.State())
	}
	if len(r.Active()) != 0 {
		t.Errorf("Active = %v after StopAll", r.Active())
	}
}

func TestRegistryKeepsFinishedSessions(t *testing.T) {
	src := &scriptedSource{statuses: []string{resource.StatusCompleted}}
	r := NewRegistry(src, time.Hour)
	s, _ := r.Start(context.Background(), "wf-done", nil)
	waitDone(t, s.Poller)

	got, ok := r.Get("wf-done")
	if !ok {
		t.Fatal("finished session should stay retrievable")
	}
	snap, _ := got.Tracker().Snapshot()
	if snap.Status != resource.StatusCompleted {
		t.Errorf("snapshot = %+v", snap)
	}
	if len(r.Active()) != 0 {
		t.Error("finished session should not be active")
	}
	if got.LastPoll().IsZero() {
		t.Error("LastPoll should be set")
	}
}
