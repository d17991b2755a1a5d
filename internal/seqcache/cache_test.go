package seqcache

import (
	"errors"
	"testing"
)

type fakeEntry struct {
	key uint64
	val string
}

func (f fakeEntry) Key() uint64 { return f.key }

func TestCacheAddAndGet(t *testing.T) {
	t.Parallel()
	c := New[fakeEntry](3)

	if _, err := c.Add(fakeEntry{key: 1, val: "a"}); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if _, err := c.Add(fakeEntry{key: 2, val: "b"}); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	v, ok := c.Get(1)
	if !ok || v.val != "a" {
		t.Errorf("Get(1) = %v, %v, want a, true", v, ok)
	}
}

func TestCacheEvictsOldestBeyondCapacity(t *testing.T) {
	t.Parallel()
	c := New[fakeEntry](3)

	for i := uint64(1); i <= 3; i++ {
		c.Add(fakeEntry{key: i, val: "x"})
	}
	// Window is now [1,3]. Adding 4 should evict 1 and slide to [2,4].
	evicted, err := c.Add(fakeEntry{key: 4, val: "x"})
	if err != nil {
		t.Fatalf("Add(4) error: %v", err)
	}
	if len(evicted) != 1 || evicted[0].key != 1 {
		t.Errorf("evicted = %v, want [key=1]", evicted)
	}
	if _, ok := c.Get(1); ok {
		t.Error("Get(1) found entry after eviction")
	}
	if c.Len() != 3 {
		t.Errorf("Len() = %d, want 3", c.Len())
	}
}

func TestCacheRejectsKeyBelowFloor(t *testing.T) {
	t.Parallel()
	c := New[fakeEntry](3)
	for i := uint64(1); i <= 4; i++ {
		c.Add(fakeEntry{key: i, val: "x"})
	}
	// Window is [2,4]. Key 1 is exactly latest-capacity == 4-3 == 1, which
	// is one below the floor (2) and must be dropped.
	if evicted, err := c.Add(fakeEntry{key: 1, val: "late"}); err != nil || evicted != nil {
		t.Errorf("Add(1) = %v, %v, want nil, nil (dropped, below floor)", evicted, err)
	}
	if _, ok := c.Get(1); ok {
		t.Error("Get(1) found entry that should have been dropped as stale")
	}
	// Key 2 is exactly the floor and must be accepted (overwrite in place).
	if _, err := c.Add(fakeEntry{key: 2, val: "refresh"}); err != nil {
		t.Errorf("Add(2) error: %v, want nil (at floor)", err)
	}
}

func TestCacheRecentLeavesGapsAsNil(t *testing.T) {
	t.Parallel()
	c := New[fakeEntry](5)
	c.Add(fakeEntry{key: 1, val: "a"})
	c.Add(fakeEntry{key: 3, val: "c"}) // gap at key 2

	recent := c.Recent(5)
	if len(recent) != 5 {
		t.Fatalf("len(Recent(5)) = %d, want 5", len(recent))
	}
	// Recent is right-aligned on the latest key (3): position 4 is key 3,
	// position 3 is key 2 (gap), position 2 is key 1, position 1 is key 0
	// (never added), and position 0 underflows below key 0.
	if recent[0] != nil {
		t.Errorf("recent[0] = %v, want nil (underflow)", recent[0])
	}
	if recent[1] != nil {
		t.Errorf("recent[1] = %v, want nil (key 0 never added)", recent[1])
	}
	if recent[2] == nil || recent[2].val != "a" {
		t.Errorf("recent[2] = %v, want a (key 1)", recent[2])
	}
	if recent[3] != nil {
		t.Errorf("recent[3] = %v, want nil (gap at key 2)", recent[3])
	}
	if recent[4] == nil || recent[4].val != "c" {
		t.Errorf("recent[4] = %v, want c (key 3)", recent[4])
	}
}

func TestCacheLatest(t *testing.T) {
	t.Parallel()
	c := New[fakeEntry](3)
	if _, ok := c.Latest(); ok {
		t.Error("Latest() on empty cache returned ok=true")
	}
	c.Add(fakeEntry{key: 5, val: "x"})
	c.Add(fakeEntry{key: 9, val: "y"})
	v, ok := c.Latest()
	if !ok || v.key != 9 {
		t.Errorf("Latest() = %v, %v, want key=9, true", v, ok)
	}
}

func TestCacheRejectsKeyMisalignedToStep(t *testing.T) {
	t.Parallel()
	c := NewStepped[fakeEntry](3, 10, nil)
	if _, err := c.Add(fakeEntry{key: 10, val: "a"}); err != nil {
		t.Fatalf("Add(10) error: %v, want nil (aligned)", err)
	}
	if _, err := c.Add(fakeEntry{key: 15, val: "b"}); err == nil {
		t.Error("Add(15) error = nil, want an error (misaligned to step 10)")
	}
}

func TestCacheValidateRejectsEntry(t *testing.T) {
	t.Parallel()
	c := NewStepped[fakeEntry](3, 1, func(e fakeEntry) error {
		if e.val == "bad" {
			return errors.New("rejected by validate")
		}
		return nil
	})
	if _, err := c.Add(fakeEntry{key: 1, val: "bad"}); err == nil {
		t.Error("Add() error = nil, want validate's error")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0 (rejected entry must not be stored)", c.Len())
	}
}
