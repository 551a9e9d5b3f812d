package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenderlens/tenderlens/internal/crm"
	"github.com/tenderlens/tenderlens/internal/pipeline"
	"github.com/tenderlens/tenderlens/internal/store"
	"github.com/tenderlens/tenderlens/pkg/models"
)

// stageStore tracks tender stages with compare-and-set semantics.
type stageStore struct {
	store.Store
	mu     sync.Mutex
	stages map[uuid.UUID]models.Stage
}

func newStageStore() *stageStore {
	return &stageStore{stages: map[uuid.UUID]models.Stage{}}
}

func (s *stageStore) UpdateTenderStage(_ context.Context, id uuid.UUID, from, to models.Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.stages[id]
	if !ok {
		return store.ErrNotFound
	}
	if current != from {
		if current == to {
			return nil
		}
		return store.ErrStageConflict
	}
	s.stages[id] = to
	return nil
}

func (s *stageStore) ListTenders(_ context.Context, filter store.TenderFilter) ([]*models.Tender, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Tender
	for id, stage := range s.stages {
		out = append(out, &models.Tender{ID: id, UserID: filter.UserID, Stage: stage})
	}
	return out, len(out), nil
}

// scriptedAuthority confirms or rejects moves per its fail flag.
type scriptedAuthority struct {
	mu    sync.Mutex
	fail  bool
	calls int
}

func (a *scriptedAuthority) ConfirmMove(_ context.Context, _ uuid.UUID, _, _ models.Stage) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.fail {
		return crm.ErrCRMRejected
	}
	return nil
}

func (a *scriptedAuthority) Ready(context.Context) error { return nil }

var _ crm.Authority = (*scriptedAuthority)(nil)

func newTestBoard(t *testing.T, authority crm.Authority, tenders map[uuid.UUID]models.Stage) (*pipeline.Board, *stageStore) {
	t.Helper()
	st := newStageStore()
	for id, stage := range tenders {
		st.stages[id] = stage
	}
	board := pipeline.NewBoard(st, authority)
	require.NoError(t, board.Hydrate(context.Background(), uuid.New()))
	return board, st
}

// --- MoveTender ---

func TestMoveTender_Confirmed(t *testing.T) {
	id := uuid.New()
	board, st := newTestBoard(t, &scriptedAuthority{}, map[uuid.UUID]models.Stage{id: models.StageNew})

	outcome, err := board.MoveTender(context.Background(), id, models.StageNew, models.StageScored)
	require.NoError(t, err)

	assert.True(t, outcome.Confirmed)
	assert.False(t, outcome.Reverted)
	assert.Equal(t, models.StageScored, outcome.Stage)

	stage, ok := board.StageOf(id)
	require.True(t, ok)
	assert.Equal(t, models.StageScored, stage)
	assert.Equal(t, models.StageScored, st.stages[id])
}

func TestMoveTender_RemoteFailureReverts(t *testing.T) {
	id := uuid.New()
	board, st := newTestBoard(t, &scriptedAuthority{fail: true}, map[uuid.UUID]models.Stage{id: models.StageNew})

	outcome, err := board.MoveTender(context.Background(), id, models.StageNew, models.StageScored)
	require.NoError(t, err, "remote rejection must not raise past the workflow boundary")

	assert.True(t, outcome.Reverted)
	assert.Equal(t, models.StageNew, outcome.Stage)
	assert.NotEmpty(t, outcome.Message)

	stage, ok := board.StageOf(id)
	require.True(t, ok)
	assert.Equal(t, models.StageNew, stage)
	assert.Equal(t, models.StageNew, st.stages[id])
	assert.Empty(t, board.Members(models.StageScored))
}

func TestMoveTender_AlreadyInTargetIsNoOp(t *testing.T) {
	id := uuid.New()
	authority := &scriptedAuthority{}
	board, _ := newTestBoard(t, authority, map[uuid.UUID]models.Stage{id: models.StageScored})

	outcome, err := board.MoveTender(context.Background(), id, models.StageNew, models.StageScored)
	require.NoError(t, err)

	assert.True(t, outcome.Confirmed)
	assert.Equal(t, 0, authority.calls, "no-op moves never hit the authority")
}

func TestMoveTender_UnknownTender(t *testing.T) {
	board, _ := newTestBoard(t, &scriptedAuthority{}, nil)

	_, err := board.MoveTender(context.Background(), uuid.New(), models.StageNew, models.StageScored)
	assert.ErrorIs(t, err, pipeline.ErrUnknownTender)
}

func TestMoveTender_InvalidTargetStage(t *testing.T) {
	id := uuid.New()
	board, _ := newTestBoard(t, &scriptedAuthority{}, map[uuid.UUID]models.Stage{id: models.StageNew})

	_, err := board.MoveTender(context.Background(), id, models.StageNew, models.Stage("archived"))
	require.Error(t, err)
}

func TestMoveTender_StaleFromUsesActualStage(t *testing.T) {
	id := uuid.New()
	board, st := newTestBoard(t, &scriptedAuthority{}, map[uuid.UUID]models.Stage{id: models.StageScored})

	outcome, err := board.MoveTender(context.Background(), id, models.StageNew, models.StageApproved)
	require.NoError(t, err)
	assert.True(t, outcome.Confirmed)
	assert.Equal(t, models.StageApproved, st.stages[id])
}

func TestMoveTender_PartitionInvariant(t *testing.T) {
	t1, t2 := uuid.New(), uuid.New()
	board, _ := newTestBoard(t, &scriptedAuthority{}, map[uuid.UUID]models.Stage{
		t1: models.StageNew,
		t2: models.StageNew,
	})

	moves := []struct {
		id       uuid.UUID
		from, to models.Stage
	}{
		{t1, models.StageNew, models.StageScored},
		{t2, models.StageNew, models.StageScored},
		{t1, models.StageScored, models.StageApproved},
		{t1, models.StageApproved, models.StagePushed},
		{t2, models.StageScored, models.StageNew},
		{t1, models.StagePushed, models.StageWon},
	}
	for _, m := range moves {
		_, err := board.MoveTender(context.Background(), m.id, m.from, m.to)
		require.NoError(t, err)
		assertPartition(t, board, t1, t2)
	}
}

func TestMoveTender_ConcurrentMovesKeepPartition(t *testing.T) {
	id := uuid.New()
	board, _ := newTestBoard(t, &scriptedAuthority{}, map[uuid.UUID]models.Stage{id: models.StageNew})

	var wg sync.WaitGroup
	targets := []models.Stage{models.StageScored, models.StageApproved, models.StageNew, models.StagePushed}
	for _, target := range targets {
		wg.Add(1)
		go func(to models.Stage) {
			defer wg.Done()
			from, _ := board.StageOf(id)
			_, _ = board.MoveTender(context.Background(), id, from, to)
		}(target)
	}
	wg.Wait()

	assertPartition(t, board, id)
}

func assertPartition(t *testing.T, board *pipeline.Board, ids ...uuid.UUID) {
	t.Helper()
	for _, id := range ids {
		memberships := 0
		for _, stage := range models.StageOrder {
			for _, member := range board.Members(stage) {
				if member == id {
					memberships++
				}
			}
		}
		assert.Equal(t, 1, memberships, "tender %s must be in exactly one stage", id)
	}
}

// --- PlaceFromAnalysis ---

func TestPlaceFromAnalysis_CompletedMovesToScored(t *testing.T) {
	id := uuid.New()
	board, _ := newTestBoard(t, &scriptedAuthority{}, map[uuid.UUID]models.Stage{id: models.StageNew})

	outcome, err := board.PlaceFromAnalysis(context.Background(), id,
		&models.AnalysisResult{Status: models.AnalysisStatusCompleted})
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, models.StageScored, outcome.Stage)
}

func TestPlaceFromAnalysis_FailedStaysInNew(t *testing.T) {
	id := uuid.New()
	board, _ := newTestBoard(t, &scriptedAuthority{}, map[uuid.UUID]models.Stage{id: models.StageNew})

	outcome, err := board.PlaceFromAnalysis(context.Background(), id,
		&models.AnalysisResult{Status: models.AnalysisStatusFailed})
	require.NoError(t, err)
	assert.Nil(t, outcome)

	stage, _ := board.StageOf(id)
	assert.Equal(t, models.StageNew, stage)
}

func TestPlaceFromAnalysis_PastNewIsUntouched(t *testing.T) {
	id := uuid.New()
	board, _ := newTestBoard(t, &scriptedAuthority{}, map[uuid.UUID]models.Stage{id: models.StageApproved})

	outcome, err := board.PlaceFromAnalysis(context.Background(), id,
		&models.AnalysisResult{Status: models.AnalysisStatusCompleted})
	require.NoError(t, err)
	assert.Nil(t, outcome)

	stage, _ := board.StageOf(id)
	assert.Equal(t, models.StageApproved, stage)
}

// --- DefaultStageFor ---

func TestDefaultStageFor(t *testing.T) {
	assert.Equal(t, models.StageScored, pipeline.DefaultStageFor(&models.AnalysisResult{Status: models.AnalysisStatusCompleted}))
	assert.Equal(t, models.StageNew, pipeline.DefaultStageFor(&models.AnalysisResult{Status: models.AnalysisStatusFailed}))
	assert.Equal(t, models.StageNew, pipeline.DefaultStageFor(nil))
}

func TestHydrate_LoadsStoreState(t *testing.T) {
	id := uuid.New()
	st := newStageStore()
	st.stages[id] = models.StagePushed

	board := pipeline.NewBoard(st, &scriptedAuthority{})
	require.NoError(t, board.Hydrate(context.Background(), uuid.New()))

	stage, ok := board.StageOf(id)
	require.True(t, ok)
	assert.Equal(t, models.StagePushed, stage)
}

func TestMoveTender_StoreConflictSurfaces(t *testing.T) {
	id := uuid.New()
	st := newStageStore()
	st.stages[id] = models.StageNew
	board := pipeline.NewBoard(st, &scriptedAuthority{})
	require.NoError(t, board.Hydrate(context.Background(), uuid.New()))

	// Another process moved the tender under us.
	st.mu.Lock()
	st.stages[id] = models.StageLost
	st.mu.Unlock()

	_, err := board.MoveTender(context.Background(), id, models.StageNew, models.StageScored)
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrStageConflict))
}
