package sshsession

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRegistryRegisterAndRemove(t *testing.T) {
	r := NewRegistry()
	s := newSession(r.NewID(), "c1", newStubTransport(), time.Now())

	if err := r.Register(s); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(s); !errors.Is(err, ErrDuplicateSession) {
		t.Fatalf("duplicate Register err = %v", err)
	}
	if got, ok := r.Get(s.ID); !ok || got != s {
		t.Fatal("Get did not return the registered session")
	}

	if _, ok := r.Remove(s.ID); !ok {
		t.Fatal("first Remove failed")
	}
	if _, ok := r.Remove(s.ID); ok {
		t.Fatal("second Remove succeeded")
	}
	if err := r.Register(s); !errors.Is(err, ErrDuplicateSession) {
		t.Fatalf("re-registering a retired id err = %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d", r.Len())
	}
}

func TestRegistryConcurrentRemoveHasOneWinner(t *testing.T) {
	r := NewRegistry()
	s := newSession(r.NewID(), "c1", newStubTransport(), time.Now())
	r.Register(s)

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := r.Remove(s.ID); ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	if winners.Load() != 1 {
		t.Errorf("winners = %d, want 1", winners.Load())
	}
}

func TestRegistryListOrder(t *testing.T) {
	r := NewRegistry()
	base := time.Now()
	var ids []string
	for i := 0; i < 4; i++ {
		s := newSession(r.NewID(), "c1", newStubTransport(), base.Add(time.Duration(3-i)*time.Second))
		r.Register(s)
		ids = append(ids, s.ID)
	}

	list := r.List()
	for i := range list {
		if list[i].ID != ids[3-i] {
			t.Fatalf("List not ordered by creation time")
		}
	}
	if len(r.IDs()) != 4 {
		t.Errorf("IDs = %v", r.IDs())
	}
}

func TestRegistryNewIDUnique(t *testing.T) {
	r := NewRegistry()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := r.NewID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
