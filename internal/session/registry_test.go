package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRegistryWithoutStore(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil, nil)
	s, err := r.Create(ctx)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := r.Get(ctx, s.ID())
	if err != nil || got != s {
		t.Fatalf("Get returned %v, %v", got, err)
	}
	if err := r.Destroy(ctx, s.ID()); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if _, err := r.Get(ctx, s.ID()); !errors.Is(err, ErrSessionGone) {
		t.Fatalf("expected ErrSessionGone, got %v", err)
	}
	if err := r.Destroy(ctx, s.ID()); !errors.Is(err, ErrSessionGone) {
		t.Fatalf("double destroy = %v", err)
	}
	if _, err := r.Get(ctx, " "); !errors.Is(err, ErrInvalidArgs) {
		t.Fatalf("blank id = %v", err)
	}
}

func TestRegistryRestoresFromStore(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	first := NewRegistry(store, nil)
	s, err := first.Create(ctx)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	s.SetBroadcaster(first.Saver(s))
	s.Place(ctx, 3, 3)
	s.Place(ctx, 4, 4)
	s.Undo(ctx)

	second := NewRegistry(store, nil)
	restored, err := second.Get(ctx, s.ID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !restored.State().Equal(s.State()) {
		t.Fatalf("restored %+v, want %+v", restored.State(), s.State())
	}
	if !restored.Board().CanRedo {
		t.Fatalf("redo branch should survive restore")
	}
}

func TestRegistryListOrdersByUpdate(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	r := NewRegistry(store, nil)
	clock := time.Unix(1000, 0)
	r.now = func() time.Time { clock = clock.Add(time.Second); return clock }

	a, _ := r.Create(ctx)
	b, _ := r.Create(ctx)
	a.Place(ctx, 1, 1)
	if err := r.Save(ctx, a); err != nil {
		t.Fatalf("Save: %v", err)
	}

	list, err := r.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != a.ID() || list[1].ID != b.ID() {
		t.Fatalf("List order = %+v", list)
	}
	if list[0].Length != 2 {
		t.Fatalf("length not refreshed: %+v", list[0])
	}

	if err := r.Destroy(ctx, b.ID()); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if list, _ := r.List(ctx); len(list) != 1 {
		t.Fatalf("destroyed session still listed: %+v", list)
	}
}
