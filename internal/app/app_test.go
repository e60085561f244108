package app

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/park285/stoneboard/internal/archive"
	"github.com/park285/stoneboard/internal/board"
	"github.com/park285/stoneboard/internal/peersync/peertest"
	"github.com/park285/stoneboard/internal/session"
	"github.com/redis/go-redis/v9"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type memArchive struct {
	mu   sync.Mutex
	recs []archive.Record
}

func (m *memArchive) Save(_ context.Context, rec archive.Record) error {
	m.mu.Lock()
	m.recs = append(m.recs, rec)
	m.mu.Unlock()
	return nil
}

type testApp struct {
	*App
	out  *syncBuffer
	arch *memArchive
}

func newTestApp(t *testing.T, net *peertest.Network, id string, store session.Store) *testApp {
	t.Helper()
	out := &syncBuffer{}
	arch := &memArchive{}
	a, err := New(Deps{
		Peer:     net.NewPeer(id),
		Store:    store,
		Archiver: arch,
		Out:      out,
		Quiet:    true,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { a.loop.Stop() })
	return &testApp{App: a, out: out, arch: arch}
}

func (a *testApp) run(t *testing.T, lines ...string) {
	t.Helper()
	for _, l := range lines {
		if quit, err := a.Handle(context.Background(), l); err != nil || quit {
			t.Fatalf("%q: quit=%v err=%v", l, quit, err)
		}
	}
}

func (a *testApp) state(t *testing.T) board.SessionState {
	t.Helper()
	_, st, err := a.Active(context.Background())
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	return st
}

func TestTwoPeersShareBoard(t *testing.T) {
	net := peertest.NewNetwork()
	a := newTestApp(t, net, "alice", nil)
	b := newTestApp(t, net, "bob", nil)

	a.run(t, "listen")
	b.run(t, "listen", "connect alice", "place 3 3", "place 4 4", "undo", "place 5 5", "color")

	if !strings.Contains(b.out.String(), "You're connected to: alice") {
		t.Fatalf("bob output:\n%s", b.out.String())
	}
	if !strings.Contains(a.out.String(), "bob connected to you") {
		t.Fatalf("alice output:\n%s", a.out.String())
	}

	sa, sb := a.state(t), b.state(t)
	if !sa.Equal(sb) {
		t.Fatalf("boards differ:\n alice=%+v\n bob=%+v", sa, sb)
	}
	if len(sb.History) != 3 || sb.Cursor != 2 || sb.Buttons.Color != board.ModeBlack {
		t.Fatalf("unexpected shared state %+v", sb)
	}
}

func TestConnectWithoutIDShowsStatus(t *testing.T) {
	net := peertest.NewNetwork()
	a := newTestApp(t, net, "alice", nil)
	a.run(t, "listen")
	if _, err := a.Handle(context.Background(), "connect"); err == nil {
		t.Fatalf("expected error for empty id")
	}
	if !strings.Contains(a.out.String(), "Friend's PeerID cannot be empty string") {
		t.Fatalf("output:\n%s", a.out.String())
	}
}

func TestDisabledActionsAndBadInput(t *testing.T) {
	net := peertest.NewNetwork()
	a := newTestApp(t, net, "alice", nil)
	a.run(t, "undo", "redo", "place 0 4")
	out := a.out.String()
	for _, want := range []string{"Nothing to undo", "Nothing to redo", "Nothing changed at (0,4)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if _, err := a.Handle(context.Background(), "place x 1"); !errors.Is(err, errUsage) {
		t.Fatalf("bad number = %v", err)
	}
	if _, err := a.Handle(context.Background(), "place 1"); !errors.Is(err, errUsage) {
		t.Fatalf("missing arg = %v", err)
	}
	if _, err := a.Handle(context.Background(), "jump"); err == nil {
		t.Fatalf("unknown command accepted")
	}
	if quit, _ := a.Handle(context.Background(), "quit"); !quit {
		t.Fatalf("quit not reported")
	}
}

func TestClearArchivesBoard(t *testing.T) {
	net := peertest.NewNetwork()
	a := newTestApp(t, net, "alice", nil)
	a.run(t, "clear", "place 1 1", "place 2 2", "clear")

	a.arch.mu.Lock()
	recs := append([]archive.Record(nil), a.arch.recs...)
	a.arch.mu.Unlock()
	if len(recs) != 1 {
		t.Fatalf("expected one archived board (empty clear skipped), got %d", len(recs))
	}
	if recs[0].Reason != "clear" || len(recs[0].State.History) != 3 {
		t.Fatalf("record = %+v", recs[0])
	}
	if !a.state(t).Equal(board.NewSessionState()) {
		t.Fatalf("board not cleared")
	}
}

func TestSessionsNewResumeDrop(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	store := session.NewRedisStore(rdb, time.Hour)

	net := peertest.NewNetwork()
	a := newTestApp(t, net, "alice", store)
	firstID, _, _ := a.Active(context.Background())
	a.run(t, "place 5 5", "new")
	secondID, st, _ := a.Active(context.Background())
	if secondID == firstID || len(st.History) != 1 {
		t.Fatalf("new session not active: %s %+v", secondID, st)
	}

	a.run(t, "sessions")
	if !strings.Contains(a.out.String(), "* "+secondID) {
		t.Fatalf("active marker missing:\n%s", a.out.String())
	}

	if _, err := a.Handle(context.Background(), "drop "+secondID); !errors.Is(err, session.ErrActiveSession) {
		t.Fatalf("dropping the active session = %v", err)
	}

	// a fresh process restores the first board from Redis
	b := newTestApp(t, net, "alice2", store)
	b.run(t, "resume "+firstID)
	id, restored, _ := b.Active(context.Background())
	if id != firstID || !restored.History[1].Occupied(5, 5) {
		t.Fatalf("resume gave %s %+v", id, restored)
	}

	a.run(t, "drop "+firstID)
	if _, err := a.Handle(context.Background(), "resume "+firstID); !errors.Is(err, session.ErrSessionGone) {
		t.Fatalf("resume after drop = %v", err)
	}
}

func TestSessionsListWhileRemoteEdits(t *testing.T) {
	net := peertest.NewNetwork()
	a := newTestApp(t, net, "alice", nil)
	b := newTestApp(t, net, "bob", nil)
	a.run(t, "listen")
	b.run(t, "listen", "connect alice")

	ctx := context.Background()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			for _, line := range []string{"place 1 1", "undo"} {
				if _, err := b.Handle(ctx, line); err != nil {
					t.Errorf("bob %q: %v", line, err)
					return
				}
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			if _, err := a.Handle(ctx, "sessions"); err != nil {
				t.Errorf("alice sessions: %v", err)
				return
			}
		}
	}()
	wg.Wait()

	// drain remote updates queued on alice's loop
	st := a.state(t)
	if len(st.History) != 2 || st.Cursor != 0 {
		t.Fatalf("alice state = %+v", st)
	}
	a.run(t, "sessions")
	out := a.out.String()
	if !strings.HasSuffix(strings.TrimRight(out, "\n"), "(2 snapshots)") {
		t.Fatalf("listing not refreshed by remote edits:\n%s", out)
	}
}

func TestShutdownArchivesActiveBoard(t *testing.T) {
	net := peertest.NewNetwork()
	a := newTestApp(t, net, "alice", nil)
	a.run(t, "place 1 1")
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if len(a.arch.recs) != 1 || a.arch.recs[0].Reason != "quit" {
		t.Fatalf("records = %+v", a.arch.recs)
	}
}

func TestRunReadsCommands(t *testing.T) {
	net := peertest.NewNetwork()
	out := &syncBuffer{}
	a, err := New(Deps{Peer: net.NewPeer("r"), Out: out})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	in := strings.NewReader("place 5 5\nstatus\nquit\nplace 1 1\n")
	if err := a.Run(context.Background(), in); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, " 5  . . . . X . . . .") {
		t.Fatalf("board not printed:\n%s", got)
	}
	if !strings.Contains(got, "Turn: white | mode: both | remove: false | step 1/1") {
		t.Fatalf("status missing:\n%s", got)
	}
}
