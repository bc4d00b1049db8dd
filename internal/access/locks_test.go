package access

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/sync/errgroup"
)

func TestParseLockMode(t *testing.T) {
	cases := []struct {
		value string
		want  LockMode
	}{
		{"off", LockOff},
		{"fail", LockFail},
		{"block", LockBlock},
		{"", LockOff},
		{"bogus", LockOff},
	}

	for _, tc := range cases {
		if got := ParseLockMode(tc.value); got != tc.want {
			t.Errorf("ParseLockMode(%q) = %q, want %q", tc.value, got, tc.want)
		}
	}
}

func TestLockTable_OffModeNeverBlocks(t *testing.T) {
	table := NewLockTable()
	reg := &registry{}

	release1, err := table.Acquire(context.Background(), reg, "logger", LockOff)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	release2, err := table.Acquire(context.Background(), reg, "logger", LockOff)
	if err != nil {
		t.Fatalf("second Acquire failed: %v", err)
	}

	release1()
	release2()
}

func TestLockTable_FailModeRejectsSecondHolder(t *testing.T) {
	table := NewLockTable()
	reg := &registry{}

	release, err := table.Acquire(context.Background(), reg, "logger", LockFail)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if _, err := table.Acquire(context.Background(), reg, "logger", LockFail); !errors.Is(err, ErrBindingBusy) {
		t.Fatalf("expected ErrBindingBusy, got %v", err)
	}

	// A different binding on the same container is independent.
	otherRelease, err := table.Acquire(context.Background(), reg, "Label", LockFail)
	if err != nil {
		t.Fatalf("Acquire on other field failed: %v", err)
	}
	otherRelease()

	release()

	release, err = table.Acquire(context.Background(), reg, "logger", LockFail)
	if err != nil {
		t.Fatalf("Acquire after release failed: %v", err)
	}
	release()
}

func TestLockTable_BlockModeWaitsForRelease(t *testing.T) {
	table := NewLockTable()
	reg := &registry{}

	release, err := table.Acquire(context.Background(), reg, "logger", LockBlock)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	started := make(chan struct{})

	var group errgroup.Group
	group.Go(func() error {
		close(started)

		blockedRelease, err := table.Acquire(context.Background(), reg, "logger", LockBlock)
		if err != nil {
			return err
		}
		blockedRelease()

		return nil
	})

	<-started
	release()

	if err := group.Wait(); err != nil {
		t.Fatalf("blocked acquire failed: %v", err)
	}
}
