package chat

import (
	"context"
	"fmt"
	"log"
	"time"
)

// State tags the progress of one append cycle. Transitions run strictly
// Uninitialized → Bootstrapped → AwaitingModel → Answered; an answered
// cycle becomes the baseline history for the next one.
type State int

const (
	StateUninitialized State = iota
	StateBootstrapped
	StateAwaitingModel
	StateAnswered
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateBootstrapped:
		return "bootstrapped"
	case StateAwaitingModel:
		return "awaiting_model"
	case StateAnswered:
		return "answered"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Instruction seeded as the second system turn of every new thread.
const bootstrapInstruction = "You are a financial analysis assistant. The earnings call transcript " +
	"is provided above. Answer the user's questions using only the transcript; " +
	"if the transcript does not contain the answer, say so."

// Gateway is the stateless adapter to the external language model. It
// receives the full turn list every call and returns the response text plus
// the list with the new assistant turn appended.
type Gateway interface {
	Respond(ctx context.Context, turns []Turn) (string, []Turn, error)
}

// Transcripts resolves an earnings-call transcript. An empty string means
// the transcript is unavailable, not that it is empty.
type Transcripts interface {
	Get(ctx context.Context, ticker string, year, quarter int) string
}

// Request is one inbound user message.
type Request struct {
	UserID  string
	ChatID  string
	Ticker  string
	Year    int
	Quarter int
	Content string
}

func (r Request) validate() error {
	if r.UserID == "" || r.ChatID == "" {
		return fmt.Errorf("missing userid or chatid")
	}
	if r.Content == "" {
		return fmt.Errorf("missing message content")
	}
	if r.Ticker == "" || r.Year == 0 || r.Quarter < 1 || r.Quarter > 4 {
		return fmt.Errorf("invalid ticker/year/quarter: %q %d Q%d", r.Ticker, r.Year, r.Quarter)
	}
	return nil
}

// Cycle is the in-flight request object. It holds the only transient copy of
// the thread; the store owns the durable state.
type Cycle struct {
	State  State
	UserID string
	ChatID string
	Turns  []Turn
}

// Accumulator drives one user-message/model-response cycle against the
// thread store. One cycle per (userID, chatID) at a time is assumed;
// concurrent cycles on the same thread can interleave load/save and lose
// turns.
type Accumulator struct {
	store       ThreadStore
	transcripts Transcripts
	gateway     Gateway
	now         func() time.Time
}

func NewAccumulator(store ThreadStore, transcripts Transcripts, gateway Gateway) *Accumulator {
	return &Accumulator{
		store:       store,
		transcripts: transcripts,
		gateway:     gateway,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Append runs one full cycle: load-or-bootstrap, persist the user turn,
// round-trip the model, persist the assistant turn. emit is called with the
// user turn once it is durable (before the model call) and with the
// assistant turn once the cycle completes.
func (a *Accumulator) Append(ctx context.Context, req Request, emit func(Turn)) (*Cycle, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	c := &Cycle{State: StateUninitialized, UserID: req.UserID, ChatID: req.ChatID}

	turns, found, err := a.store.Load(ctx, req.UserID, req.ChatID)
	if err != nil {
		return nil, fmt.Errorf("load thread: %w", err)
	}
	if found {
		c.Turns = turns
	} else {
		// First message for this pair: seed the system context exactly once.
		text := a.transcripts.Get(ctx, req.Ticker, req.Year, req.Quarter)
		if text == "" {
			return nil, fmt.Errorf("transcript unavailable for %s %d Q%d", req.Ticker, req.Year, req.Quarter)
		}
		c.Turns = []Turn{
			{Role: RoleSystem, Content: text},
			{Role: RoleSystem, Content: bootstrapInstruction},
		}
	}
	c.State = StateBootstrapped

	userTurn := Turn{Role: RoleUser, Content: req.Content}
	c.Turns = append(c.Turns, userTurn)
	c.State = StateAwaitingModel

	// The user turn must be durable before any model cost is incurred.
	if err := a.store.Save(ctx, c.UserID, c.ChatID, c.Turns, a.now()); err != nil {
		return nil, fmt.Errorf("save user turn: %w", err)
	}
	if emit != nil {
		emit(userTurn)
	}

	text, updated, err := a.gateway.Respond(ctx, c.Turns)
	if err != nil {
		// The user turn is already persisted; the next append resumes from it.
		return nil, fmt.Errorf("model call: %w", err)
	}
	c.Turns = updated

	assistantTurn := Turn{Role: RoleAssistant, Content: text}
	if err := a.store.Save(ctx, c.UserID, c.ChatID, c.Turns, a.now()); err != nil {
		// Memory and store now disagree until the next successful save. The
		// response still goes out so the user is not left hanging.
		log.Printf("[chat] save assistant turn for %s/%s failed: %v", c.UserID, c.ChatID, err)
	}
	c.State = StateAnswered
	if emit != nil {
		emit(assistantTurn)
	}
	return c, nil
}
