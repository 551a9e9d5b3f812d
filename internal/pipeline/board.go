// Package pipeline implements the tender stage board: an optimistic
// move-then-confirm workflow over six fixed stages, reconciled against a
// remote authority.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tenderlens/tenderlens/internal/crm"
	"github.com/tenderlens/tenderlens/internal/store"
	"github.com/tenderlens/tenderlens/pkg/models"
)

// ErrUnknownTender means the board has no stage assignment for the id.
var ErrUnknownTender = errors.New("tender not on board")

// revertTimeout bounds the compensating write when the caller's context is
// already dead.
const revertTimeout = 10 * time.Second

// MoveOutcome reports how a move request resolved.
type MoveOutcome struct {
	TenderID  uuid.UUID    `json:"tender_id"`
	Stage     models.Stage `json:"stage"`
	Confirmed bool         `json:"confirmed"`
	Reverted  bool         `json:"reverted"`
	Message   string       `json:"message,omitempty"`
}

// Board tracks which stage each tender occupies. Stage membership is a
// partition: a tender id maps to exactly one stage at any time. The mutex is
// held across the whole move-confirm-revert sequence, so no reader observes
// a tender mid-transition and no two moves of the same tender interleave
// locally. The remote authority remains the arbiter of conflicting moves
// issued from other processes.
type Board struct {
	mu        sync.Mutex
	stages    map[uuid.UUID]models.Stage
	store     store.Store
	authority crm.Authority
}

// NewBoard creates an empty Board.
func NewBoard(st store.Store, authority crm.Authority) *Board {
	return &Board{
		stages:    make(map[uuid.UUID]models.Stage),
		store:     st,
		authority: authority,
	}
}

// Hydrate loads current stage assignments for a user from the record store.
func (b *Board) Hydrate(ctx context.Context, userID uuid.UUID) error {
	tenders, _, err := b.store.ListTenders(ctx, store.TenderFilter{UserID: userID, Limit: 1000})
	if err != nil {
		return fmt.Errorf("hydrating board: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range tenders {
		b.stages[t.ID] = t.Stage
	}
	return nil
}

// Track places a newly created tender on the board in its current stage.
func (b *Board) Track(tenderID uuid.UUID, stage models.Stage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stages[tenderID] = stage
}

// StageOf returns the tender's current stage.
func (b *Board) StageOf(tenderID uuid.UUID) (models.Stage, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.stages[tenderID]
	return s, ok
}

// Members returns the ids currently in a stage.
func (b *Board) Members(stage models.Stage) []uuid.UUID {
	b.mu.Lock()
	defer b.mu.Unlock()
	var ids []uuid.UUID
	for id, s := range b.stages {
		if s == stage {
			ids = append(ids, id)
		}
	}
	return ids
}

// MoveTender moves a tender from one stage to another. The local state (board
// and record store) is mutated first, then the authority is asked to confirm;
// on remote failure the inverse move restores the prior state and the outcome
// reports Reverted. A tender already in the target stage is a no-op success.
// The error return is reserved for local failures (unknown tender, store
// write failure); remote rejection never raises past this boundary.
func (b *Board) MoveTender(ctx context.Context, tenderID uuid.UUID, from, to models.Stage) (*MoveOutcome, error) {
	if !models.ValidStage(to) {
		return nil, fmt.Errorf("invalid target stage %q", to)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	current, ok := b.stages[tenderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTender, tenderID)
	}
	if current == to {
		return &MoveOutcome{TenderID: tenderID, Stage: to, Confirmed: true, Message: "already in target stage"}, nil
	}
	if current != from {
		// Stale precondition from the caller. Move from where the tender
		// actually is so the partition stays intact.
		slog.Warn("move precondition stale", "tender_id", tenderID, "claimed_from", from, "actual", current)
		from = current
	}

	if err := b.store.UpdateTenderStage(ctx, tenderID, from, to); err != nil {
		return nil, fmt.Errorf("moving tender: %w", err)
	}
	b.stages[tenderID] = to

	if err := b.authority.ConfirmMove(ctx, tenderID, from, to); err != nil {
		slog.Warn("remote move rejected, reverting", "tender_id", tenderID, "from", from, "to", to, "error", err)
		b.revert(tenderID, from, to)
		return &MoveOutcome{
			TenderID: tenderID,
			Stage:    from,
			Reverted: true,
			Message:  fmt.Sprintf("move to %s rejected: %v", to, err),
		}, nil
	}

	return &MoveOutcome{TenderID: tenderID, Stage: to, Confirmed: true}, nil
}

// revert issues the compensating inverse move. It uses a fresh context so a
// cancelled request cannot strand the tender in the unconfirmed stage. Caller
// holds the mutex.
func (b *Board) revert(tenderID uuid.UUID, from, to models.Stage) {
	ctx, cancel := context.WithTimeout(context.Background(), revertTimeout)
	defer cancel()

	if err := b.store.UpdateTenderStage(ctx, tenderID, to, from); err != nil {
		slog.Error("compensating move failed", "tender_id", tenderID, "from", to, "to", from, "error", err)
	}
	b.stages[tenderID] = from
}

// PlaceFromAnalysis advances a tender off the new stage once a scoring run
// lands. Tenders past new, and failed analyses, are left where they are.
func (b *Board) PlaceFromAnalysis(ctx context.Context, tenderID uuid.UUID, analysis *models.AnalysisResult) (*MoveOutcome, error) {
	target := DefaultStageFor(analysis)
	if target == models.StageNew {
		return nil, nil
	}

	current, ok := b.StageOf(tenderID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTender, tenderID)
	}
	if current != models.StageNew {
		return nil, nil
	}
	return b.MoveTender(ctx, tenderID, models.StageNew, target)
}

// DefaultStageFor maps scoring output to board placement: a completed
// analysis moves the tender to scored, anything else keeps it in new.
func DefaultStageFor(analysis *models.AnalysisResult) models.Stage {
	if analysis != nil && analysis.Status == models.AnalysisStatusCompleted {
		return models.StageScored
	}
	return models.StageNew
}
