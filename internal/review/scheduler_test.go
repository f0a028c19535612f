package review

import (
	"testing"
	"time"

	"marginalia/internal/annotation/model"
	"marginalia/internal/annotation/service"
	"marginalia/internal/annotation/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reviewDay = time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

func newTestScheduler(st *store.Store) *Scheduler {
	s := NewScheduler(service.NewAnnotationService(st, nil, nil))
	s.now = func() time.Time { return reviewDay }
	return s
}

func seedCard(st *store.Store, front string, difficulty *float64, due *time.Time) model.Annotation {
	a := st.Create(model.Annotation{
		Type:  model.TypeFlashcard,
		Front: front,
		Back:  "answer",
	})
	if difficulty != nil || due != nil {
		st.Update(a.ID, model.Patch{Difficulty: difficulty, NextReviewDate: due})
	}
	got, _ := st.Get(a.ID)
	return got
}

func TestDueQueueOrdering(t *testing.T) {
	st := store.New()
	past := reviewDay.AddDate(0, 0, -1)
	future := reviewDay.AddDate(0, 0, 5)

	dated := seedCard(st, "dated future", nil, &future)
	undated := seedCard(st, "never scheduled", nil, nil)
	overdue := seedCard(st, "overdue", nil, &past)
	st.Create(model.Annotation{Type: model.TypeHighlight, Text: "not a card"})

	queue := newTestScheduler(st).DueQueue()
	require.Len(t, queue, 3)
	assert.Equal(t, undated.ID, queue[0].ID, "undated card sorts first")
	assert.Equal(t, overdue.ID, queue[1].ID)
	assert.Equal(t, dated.ID, queue[2].ID)
}

func TestDueQueueTieBreakKeepsInsertionOrder(t *testing.T) {
	st := store.New()
	first := seedCard(st, "first undated", nil, nil)
	second := seedCard(st, "second undated", nil, nil)

	queue := newTestScheduler(st).DueQueue()
	require.Len(t, queue, 2)
	assert.Equal(t, first.ID, queue[0].ID)
	assert.Equal(t, second.ID, queue[1].ID)
}

func TestGradeEasyScenario(t *testing.T) {
	st := store.New()
	seed := 2.5
	card := seedCard(st, "q", &seed, nil)

	out, err := newTestScheduler(st).Grade(card.ID, Easy)
	require.NoError(t, err)

	// delta = 0.1 - 1*0.08 = 0.02 → 2.52, band [2, 3) → 3 days.
	require.NotNil(t, out.Card.Difficulty)
	assert.InDelta(t, 2.52, *out.Card.Difficulty, 1e-9)
	assert.True(t, out.Correct)
	assert.Equal(t, 3.0, out.IntervalDays)
	require.NotNil(t, out.Card.NextReviewDate)
	assert.Equal(t, reviewDay.AddDate(0, 0, 3), *out.Card.NextReviewDate)

	// The outcome was written back through the store.
	stored, _ := st.Get(card.ID)
	assert.Equal(t, *out.Card.Difficulty, *stored.Difficulty)
	assert.Equal(t, *out.Card.NextReviewDate, *stored.NextReviewDate)
}

func TestGradeAgainStaysDueToday(t *testing.T) {
	st := store.New()
	seed := 2.5
	card := seedCard(st, "q", &seed, nil)

	out, err := newTestScheduler(st).Grade(card.ID, Again)
	require.NoError(t, err)

	// delta = 0.1 - 4*0.08 = -0.22 → 2.28. The 0.25-day retry interval
	// truncates under day arithmetic: still due today.
	assert.InDelta(t, 2.28, *out.Card.Difficulty, 1e-9)
	assert.False(t, out.Correct)
	assert.Equal(t, 0.25, out.IntervalDays)
	assert.Equal(t, reviewDay, *out.Card.NextReviewDate)
}

func TestGradeDefaultsDifficultyOnFirstReview(t *testing.T) {
	st := store.New()
	card := seedCard(st, "q", nil, nil)
	require.Nil(t, card.Difficulty, "difficulty must not be materialized before first grading")

	out, err := newTestScheduler(st).Grade(card.ID, Good)
	require.NoError(t, err)

	// Reads as 2.5: delta = 0.1 - 2*0.08 = -0.06 → 2.44.
	assert.InDelta(t, 2.44, *out.Card.Difficulty, 1e-9)
	assert.Equal(t, 3.0, out.IntervalDays)
}

func TestGradeIntervalBands(t *testing.T) {
	cases := []struct {
		seed float64
		want float64
	}{
		{seed: 1.0, want: 1},   // 1.0 + 0.02 = 1.02 < 2
		{seed: 2.5, want: 3},   // 2.52 in [2, 3)
		{seed: 3.5, want: 7},   // 3.52 in [3, 4)
		{seed: 4.5, want: 14},  // 4.52 >= 4
		{seed: 5.0, want: 14},  // clamped at 5.0
	}
	for _, tc := range cases {
		st := store.New()
		seed := tc.seed
		card := seedCard(st, "q", &seed, nil)

		out, err := newTestScheduler(st).Grade(card.ID, Easy)
		require.NoError(t, err)
		assert.Equal(t, tc.want, out.IntervalDays, "seed %.2f", tc.seed)
	}
}

func TestDifficultyAlwaysInDomain(t *testing.T) {
	for _, seed := range []float64{1.0, 1.1, 2.5, 4.9, 5.0} {
		for q := Again; q <= Perfect; q++ {
			st := store.New()
			s := seed
			card := seedCard(st, "q", &s, nil)

			out, err := newTestScheduler(st).Grade(card.ID, q)
			require.NoError(t, err)
			d := *out.Card.Difficulty
			assert.GreaterOrEqual(t, d, model.MinDifficulty, "seed %.2f quality %s", seed, q)
			assert.LessOrEqual(t, d, model.MaxDifficulty, "seed %.2f quality %s", seed, q)
		}
	}
}

func TestGradeRejectsOutOfRangeQuality(t *testing.T) {
	st := store.New()
	card := seedCard(st, "q", nil, nil)
	sched := newTestScheduler(st)

	for _, q := range []Quality{0, -1, 6} {
		_, err := sched.Grade(card.ID, q)
		assert.ErrorIs(t, err, ErrInvalidQuality, "quality %d", int(q))
	}

	// Rejected grades must leave the card untouched.
	stored, _ := st.Get(card.ID)
	assert.Nil(t, stored.Difficulty)
	assert.Nil(t, stored.NextReviewDate)
}

func TestGradeUnknownCard(t *testing.T) {
	sched := newTestScheduler(store.New())
	_, err := sched.Grade("missing", Good)
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestGradeNonFlashcard(t *testing.T) {
	st := store.New()
	a := st.Create(model.Annotation{Type: model.TypeHighlight, Text: "passage"})

	_, err := newTestScheduler(st).Grade(a.ID, Good)
	assert.ErrorIs(t, err, ErrNotFlashcard)
}

func TestQualityNames(t *testing.T) {
	assert.Equal(t, "Again", Again.String())
	assert.Equal(t, "Perfect", Perfect.String())
	assert.Equal(t, "Quality(7)", Quality(7).String())
	assert.False(t, Hard.Correct())
	assert.True(t, Good.Correct())
}
