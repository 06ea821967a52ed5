package models

import "testing"

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to JobStatus }{
		{StatusPending, StatusInProgress},
		{StatusInProgress, StatusCompleted},
		{StatusInProgress, StatusFailed},
		{StatusInProgress, StatusPending},
		{StatusFailed, StatusPending},
		{StatusFailed, StatusInProgress},
		{StatusPending, StatusPending},
		{StatusCompleted, StatusCompleted},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("CanTransition(%s, %s): got false, want true", tc.from, tc.to)
		}
	}
	forbidden := []struct{ from, to JobStatus }{
		{StatusPending, StatusCompleted},
		{StatusPending, StatusFailed},
		{StatusFailed, StatusCompleted},
		{StatusCompleted, StatusPending},
		{StatusCompleted, StatusInProgress},
		{StatusCompleted, StatusFailed},
	}
	for _, tc := range forbidden {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("CanTransition(%s, %s): got true, want false", tc.from, tc.to)
		}
	}
}

func TestJobStatusScan(t *testing.T) {
	var s JobStatus
	if err := s.Scan("failed"); err != nil {
		t.Fatal(err)
	}
	if s != StatusFailed {
		t.Errorf("got %s, want %s", s, StatusFailed)
	}
	if err := s.Scan([]byte("pending")); err != nil {
		t.Fatal(err)
	}
	if s != StatusPending {
		t.Errorf("got %s, want %s", s, StatusPending)
	}
	if err := s.Scan(17); err == nil {
		t.Error("expected an error scanning an int, got nil")
	}
}

func TestTerminal(t *testing.T) {
	if !StatusCompleted.Terminal() {
		t.Error("completed should be terminal")
	}
	for _, s := range []JobStatus{StatusPending, StatusInProgress, StatusFailed} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
