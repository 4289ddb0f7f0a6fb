package chat

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"
)

// fakeStore is an in-memory ThreadStore keyed by userid/chatid.
type fakeStore struct {
	threads  map[string][]Turn
	times    map[string]time.Time
	loadErr  error
	saveErr  error
	saveErrN int // fail only the Nth save (1-based); 0 means every save
	saves    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{threads: map[string][]Turn{}, times: map[string]time.Time{}}
}

func key(userID, chatID string) string { return userID + "/" + chatID }

func (s *fakeStore) Load(_ context.Context, userID, chatID string) ([]Turn, bool, error) {
	if s.loadErr != nil {
		return nil, false, s.loadErr
	}
	turns, ok := s.threads[key(userID, chatID)]
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, ok, nil
}

func (s *fakeStore) Save(_ context.Context, userID, chatID string, turns []Turn, ts time.Time) error {
	s.saves++
	if s.saveErr != nil && (s.saveErrN == 0 || s.saveErrN == s.saves) {
		return s.saveErr
	}
	cp := make([]Turn, len(turns))
	copy(cp, turns)
	s.threads[key(userID, chatID)] = cp
	s.times[key(userID, chatID)] = ts
	return nil
}

type fakeTranscripts struct {
	text  string
	calls int
}

func (f *fakeTranscripts) Get(_ context.Context, ticker string, year, quarter int) string {
	f.calls++
	return f.text
}

type fakeGateway struct {
	reply string
	err   error
	calls int
}

func (g *fakeGateway) Respond(_ context.Context, turns []Turn) (string, []Turn, error) {
	g.calls++
	if g.err != nil {
		return "", nil, g.err
	}
	updated := append(append([]Turn{}, turns...), Turn{Role: RoleAssistant, Content: g.reply})
	return g.reply, updated, nil
}

func TestAppend_FirstMessageBootstraps(t *testing.T) {
	store := newFakeStore()
	tr := &fakeTranscripts{text: "APPLE Q1 2025 EARNINGS CALL..."}
	gw := &fakeGateway{reply: "Revenue was $100B."}
	acc := NewAccumulator(store, tr, gw)

	var emitted []Turn
	c, err := acc.Append(context.Background(), Request{
		UserID: "u1", ChatID: "c1",
		Ticker: "AAPL", Year: 2025, Quarter: 1,
		Content: "What was revenue?",
	}, func(tn Turn) { emitted = append(emitted, tn) })
	if err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if c.State != StateAnswered {
		t.Errorf("state = %v, want answered", c.State)
	}

	want := []Turn{
		{Role: RoleSystem, Content: "APPLE Q1 2025 EARNINGS CALL..."},
		{Role: RoleSystem, Content: bootstrapInstruction},
		{Role: RoleUser, Content: "What was revenue?"},
		{Role: RoleAssistant, Content: "Revenue was $100B."},
	}
	got, found, _ := store.Load(context.Background(), "u1", "c1")
	if !found {
		t.Fatal("thread not persisted")
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("stored turns = %+v, want %+v", got, want)
	}

	// User turn emitted first, assistant second.
	if len(emitted) != 2 || emitted[0].Role != RoleUser || emitted[1].Role != RoleAssistant {
		t.Errorf("emitted = %+v, want [user, assistant]", emitted)
	}
}

func TestAppend_SecondMessagePreservesHistory(t *testing.T) {
	store := newFakeStore()
	tr := &fakeTranscripts{text: "transcript"}
	gw := &fakeGateway{reply: "Revenue was $100B."}
	acc := NewAccumulator(store, tr, gw)
	ctx := context.Background()
	req := Request{UserID: "u1", ChatID: "c1", Ticker: "AAPL", Year: 2025, Quarter: 1, Content: "What was revenue?"}

	if _, err := acc.Append(ctx, req, nil); err != nil {
		t.Fatalf("first Append: %v", err)
	}
	first, _, _ := store.Load(ctx, "u1", "c1")

	gw.reply = "Net income was $25B."
	req.Content = "And net income?"
	if _, err := acc.Append(ctx, req, nil); err != nil {
		t.Fatalf("second Append: %v", err)
	}

	got, _, _ := store.Load(ctx, "u1", "c1")
	if len(got) != 6 {
		t.Fatalf("len(turns) = %d, want 6", len(got))
	}
	if !reflect.DeepEqual(got[:4], first) {
		t.Errorf("original turns mutated: %+v", got[:4])
	}
	if got[4] != (Turn{Role: RoleUser, Content: "And net income?"}) ||
		got[5] != (Turn{Role: RoleAssistant, Content: "Net income was $25B."}) {
		t.Errorf("appended turns = %+v", got[4:])
	}

	// Bootstrap happens exactly once per (userID, chatID).
	if tr.calls != 1 {
		t.Errorf("transcript fetched %d times, want 1", tr.calls)
	}
}

func TestAppend_NCyclesYieldNPairs(t *testing.T) {
	store := newFakeStore()
	acc := NewAccumulator(store, &fakeTranscripts{text: "t"}, &fakeGateway{reply: "ok"})
	ctx := context.Background()

	const n = 5
	for i := 0; i < n; i++ {
		req := Request{UserID: "u2", ChatID: "c9", Ticker: "msft", Year: 2024, Quarter: 3,
			Content: fmt.Sprintf("question %d", i)}
		if _, err := acc.Append(ctx, req, nil); err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
	}

	turns, _, _ := store.Load(ctx, "u2", "c9")
	if len(turns) != 2+2*n {
		t.Fatalf("len(turns) = %d, want %d", len(turns), 2+2*n)
	}
	var users, assistants int
	for _, tn := range turns {
		switch tn.Role {
		case RoleUser:
			users++
		case RoleAssistant:
			assistants++
		}
	}
	if users != n || assistants != n {
		t.Errorf("user/assistant turns = %d/%d, want %d/%d", users, assistants, n, n)
	}
}

func TestAppend_UserSaveFailureAbortsBeforeModel(t *testing.T) {
	store := newFakeStore()
	store.saveErr = errors.New("mongo down")
	gw := &fakeGateway{reply: "never"}
	acc := NewAccumulator(store, &fakeTranscripts{text: "t"}, gw)

	var emitted []Turn
	_, err := acc.Append(context.Background(),
		Request{UserID: "u1", ChatID: "c1", Ticker: "AAPL", Year: 2025, Quarter: 1, Content: "hi"},
		func(tn Turn) { emitted = append(emitted, tn) })
	if err == nil {
		t.Fatal("expected error")
	}
	if gw.calls != 0 {
		t.Errorf("model called %d times after failed persist, want 0", gw.calls)
	}
	if len(emitted) != 0 {
		t.Errorf("emitted %d turns, want 0", len(emitted))
	}
}

func TestAppend_ModelFailureLeavesUserTurnDurable(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{err: errors.New("quota exceeded")}
	acc := NewAccumulator(store, &fakeTranscripts{text: "t"}, gw)
	ctx := context.Background()

	_, err := acc.Append(ctx,
		Request{UserID: "u1", ChatID: "c1", Ticker: "AAPL", Year: 2025, Quarter: 1, Content: "hi"}, nil)
	if err == nil {
		t.Fatal("expected error")
	}

	turns, found, _ := store.Load(ctx, "u1", "c1")
	if !found {
		t.Fatal("user turn not persisted")
	}
	last := turns[len(turns)-1]
	if last.Role != RoleUser || last.Content != "hi" {
		t.Errorf("last turn = %+v, want the user turn", last)
	}
	for _, tn := range turns {
		if tn.Role == RoleAssistant {
			t.Errorf("unexpected assistant turn after model failure: %+v", tn)
		}
	}
}

func TestAppend_AssistantSaveFailureStillEmits(t *testing.T) {
	store := newFakeStore()
	store.saveErr = errors.New("mongo down")
	store.saveErrN = 2 // user-turn save succeeds, assistant-turn save fails
	acc := NewAccumulator(store, &fakeTranscripts{text: "t"}, &fakeGateway{reply: "answer"})

	var emitted []Turn
	c, err := acc.Append(context.Background(),
		Request{UserID: "u1", ChatID: "c1", Ticker: "AAPL", Year: 2025, Quarter: 1, Content: "hi"},
		func(tn Turn) { emitted = append(emitted, tn) })
	if err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if c.State != StateAnswered {
		t.Errorf("state = %v, want answered", c.State)
	}
	if len(emitted) != 2 || emitted[1] != (Turn{Role: RoleAssistant, Content: "answer"}) {
		t.Errorf("emitted = %+v, want user then assistant", emitted)
	}
}

func TestAppend_EmptyTranscriptAbortsBootstrap(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{reply: "never"}
	acc := NewAccumulator(store, &fakeTranscripts{text: ""}, gw)

	_, err := acc.Append(context.Background(),
		Request{UserID: "u1", ChatID: "c1", Ticker: "AAPL", Year: 2025, Quarter: 1, Content: "hi"}, nil)
	if err == nil {
		t.Fatal("expected error for unavailable transcript")
	}
	if _, found, _ := store.Load(context.Background(), "u1", "c1"); found {
		t.Error("thread persisted despite failed bootstrap")
	}
	if gw.calls != 0 {
		t.Error("model called despite failed bootstrap")
	}
}

func TestAppend_Validation(t *testing.T) {
	acc := NewAccumulator(newFakeStore(), &fakeTranscripts{text: "t"}, &fakeGateway{reply: "x"})
	tests := []struct {
		name string
		req  Request
	}{
		{"missing user", Request{ChatID: "c", Ticker: "A", Year: 2025, Quarter: 1, Content: "x"}},
		{"missing chat", Request{UserID: "u", Ticker: "A", Year: 2025, Quarter: 1, Content: "x"}},
		{"missing content", Request{UserID: "u", ChatID: "c", Ticker: "A", Year: 2025, Quarter: 1}},
		{"bad quarter", Request{UserID: "u", ChatID: "c", Ticker: "A", Year: 2025, Quarter: 5, Content: "x"}},
		{"missing ticker", Request{UserID: "u", ChatID: "c", Year: 2025, Quarter: 1, Content: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := acc.Append(context.Background(), tt.req, nil); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleSystem, RoleUser, RoleAssistant} {
		if !r.Valid() {
			t.Errorf("%q should be valid", r)
		}
	}
	if Role("model").Valid() {
		t.Error("free-form role accepted")
	}
	if _, err := NewTurn(Role("bot"), "x"); err == nil {
		t.Error("NewTurn accepted invalid role")
	}
}
