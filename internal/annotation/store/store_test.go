package store

import (
	"testing"
	"time"

	"marginalia/internal/annotation/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func TestCreateAssignsIDAndCreatedAt(t *testing.T) {
	s := New()

	seen := make(map[string]bool)
	var prev time.Time
	for i := 0; i < 50; i++ {
		a := s.Create(model.Annotation{
			PaperID:     "10.1000/demo",
			DocumentURL: "https://example.org/paper.pdf",
			Type:        model.TypeHighlight,
			Text:        "some passage",
		})
		require.NotEmpty(t, a.ID)
		assert.False(t, seen[a.ID], "duplicate id %s", a.ID)
		seen[a.ID] = true
		assert.False(t, a.CreatedAt.Before(prev), "created_at went backwards")
		prev = a.CreatedAt
	}
}

func TestCreatedAtMonotonicWithBackwardsClock(t *testing.T) {
	// Clock steps backwards between creations; stored timestamps must not.
	times := []time.Time{
		time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
	}
	i := 0
	s := NewWithClock(func() time.Time { t := times[i]; i++; return t })

	first := s.Create(model.Annotation{Type: model.TypeNote})
	second := s.Create(model.Annotation{Type: model.TypeNote})
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
}

func TestUpdateMergesFields(t *testing.T) {
	s := New()
	a := s.Create(model.Annotation{
		DocumentURL: "https://example.org/a.pdf",
		Type:        model.TypeNote,
		Text:        "anchored text",
		Note:        "original note",
		ColorName:   "yellow",
	})

	patch := model.Patch{Note: strptr("revised note")}
	require.True(t, s.Update(a.ID, patch))

	got, ok := s.Get(a.ID)
	require.True(t, ok)
	assert.Equal(t, "revised note", got.Note)
	assert.Equal(t, "anchored text", got.Text, "unspecified field changed")
	assert.Equal(t, "yellow", got.ColorName, "unspecified field changed")
	assert.Equal(t, a.CreatedAt, got.CreatedAt)

	// Repeating the identical update is idempotent.
	require.True(t, s.Update(a.ID, patch))
	again, _ := s.Get(a.ID)
	assert.Equal(t, got, again)
}

func TestUpdateUnknownIDIsNoop(t *testing.T) {
	s := New()
	s.Create(model.Annotation{Type: model.TypeNote, Note: "keep me"})

	assert.False(t, s.Update("missing", model.Patch{Note: strptr("x")}))
	all := s.GetAll()
	require.Len(t, all, 1)
	assert.Equal(t, "keep me", all[0].Note)
}

func TestUpdateClampsDifficulty(t *testing.T) {
	s := New()
	a := s.Create(model.Annotation{Type: model.TypeFlashcard, Front: "q", Back: "a"})

	high := 9.0
	s.Update(a.ID, model.Patch{Difficulty: &high})
	got, _ := s.Get(a.ID)
	require.NotNil(t, got.Difficulty)
	assert.Equal(t, model.MaxDifficulty, *got.Difficulty)

	low := -3.0
	s.Update(a.ID, model.Patch{Difficulty: &low})
	got, _ = s.Get(a.ID)
	assert.Equal(t, model.MinDifficulty, *got.Difficulty)
}

func TestDeleteRemovesAndSecondDeleteIsNoop(t *testing.T) {
	s := New()
	a := s.Create(model.Annotation{DocumentURL: "https://example.org/a.pdf", Type: model.TypeHighlight, Text: "x"})

	require.True(t, s.Delete(a.ID))
	assert.Empty(t, s.GetAll())
	assert.Empty(t, s.GetByDocument("https://example.org/a.pdf"))
	_, ok := s.Get(a.ID)
	assert.False(t, ok)

	assert.False(t, s.Delete(a.ID))
}

func TestGetByDocument(t *testing.T) {
	s := New()
	s.Create(model.Annotation{DocumentURL: "https://example.org/a.pdf", Type: model.TypeHighlight, Text: "first"})
	s.Create(model.Annotation{DocumentURL: "https://example.org/b.pdf", Type: model.TypeHighlight, Text: "other"})
	s.Create(model.Annotation{DocumentURL: "https://example.org/a.pdf", Type: model.TypeNote, Note: "second"})

	got := s.GetByDocument("https://example.org/a.pdf")
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Text)
	assert.Equal(t, "second", got[1].Note)

	assert.Len(t, s.GetAll(), 3)
}

func TestSearch(t *testing.T) {
	records := []model.Annotation{
		{Type: model.TypeNote, Note: "refutes Smith 2020"},
		{Type: model.TypeHighlight, Text: "entropy increases", ColorName: "green"},
		{Type: model.TypeFlashcard, Front: "What is entropy?", Back: "disorder"},
	}

	found := Search(records, "smith")
	require.Len(t, found, 1)
	assert.Equal(t, "refutes Smith 2020", found[0].Note)

	assert.Empty(t, Search(records, "jones"))

	// Front/back and color name take part in matching.
	assert.Len(t, Search(records, "ENTROPY"), 2)
	assert.Len(t, Search(records, "green"), 1)
	assert.Len(t, Search(records, "disorder"), 1)

	// Empty query matches everything.
	assert.Len(t, Search(records, ""), 3)
	assert.Len(t, Search(records, "   "), 3)
}

func TestFilterByType(t *testing.T) {
	records := []model.Annotation{
		{ID: "1", Type: model.TypeHighlight},
		{ID: "2", Type: model.TypeFlashcard},
		{ID: "3", Type: model.TypeNote},
		{ID: "4", Type: model.TypeFlashcard},
	}

	cards := FilterByType(records, model.TypeFlashcard)
	require.Len(t, cards, 2)
	assert.Equal(t, "2", cards[0].ID)
	assert.Equal(t, "4", cards[1].ID)

	assert.Len(t, FilterByType(records, "all"), 4)
}

func TestSubscribeNotifiesEveryMutation(t *testing.T) {
	s := New()
	calls := 0
	unsubscribe := s.Subscribe(func() { calls++ })

	a := s.Create(model.Annotation{Type: model.TypeNote})
	assert.Equal(t, 1, calls)

	s.Update(a.ID, model.Patch{Note: strptr("n")})
	assert.Equal(t, 2, calls)

	s.Delete(a.ID)
	assert.Equal(t, 3, calls)

	// No-op mutations do not notify.
	s.Update("missing", model.Patch{})
	s.Delete("missing")
	assert.Equal(t, 3, calls)

	unsubscribe()
	s.Create(model.Annotation{Type: model.TypeNote})
	assert.Equal(t, 3, calls)
}

func TestObserverMayMutateDuringDispatch(t *testing.T) {
	s := New()
	added := false
	s.Subscribe(func() {
		if !added {
			added = true
			s.Create(model.Annotation{Type: model.TypeNote, Note: "from observer"})
		}
	})

	s.Create(model.Annotation{Type: model.TypeNote, Note: "trigger"})
	assert.Len(t, s.GetAll(), 2)
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	s := New()
	a := s.Create(model.Annotation{Type: model.TypeHighlight, Text: "original", Tags: []string{"one"}})

	got, _ := s.Get(a.ID)
	got.Text = "scribbled over"
	got.Tags[0] = "two"

	fresh, _ := s.Get(a.ID)
	assert.Equal(t, "original", fresh.Text)
	assert.Equal(t, []string{"one"}, fresh.Tags)
}
