package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCopiesSeed(t *testing.T) {
	seed := []string{"a", "b"}
	s := New(seed)
	seed[0] = "mutated"

	assert.Equal(t, []string{"a", "b"}, s.EntityQueue)
	assert.NotNil(t, s.VisitedEntities)
	assert.False(t, s.StartedAt.IsZero())
}

func TestApplyReplacesOnlySetFields(t *testing.T) {
	s := New([]string{"a"})
	s.DraftText = "draft"
	s.CritiqueCount = 2

	s.Apply(Partial{
		CurrentEntity: StringPtr("a"),
		Approved:      BoolPtr(true),
	})

	assert.Equal(t, "a", s.CurrentEntity)
	assert.True(t, s.Approved)
	assert.Equal(t, "draft", s.DraftText, "unset fields stay untouched")
	assert.Equal(t, 2, s.CritiqueCount)
}

func TestApplyDistinguishesZeroFromUnset(t *testing.T) {
	s := New(nil)
	s.CritiqueNotes = "needs work"
	s.CritiqueCount = 3

	s.Apply(Partial{
		CritiqueNotes: StringPtr(""),
		CritiqueCount: IntPtr(0),
	})

	assert.Empty(t, s.CritiqueNotes)
	assert.Zero(t, s.CritiqueCount)
}

func TestApplyAccumulatesTokens(t *testing.T) {
	s := New(nil)
	s.Apply(Partial{TokensConsumed: 100})
	s.Apply(Partial{TokensConsumed: 50})
	assert.Equal(t, 150, s.TokensConsumed)
}

func TestApplyVisitAndPaths(t *testing.T) {
	s := New(nil)
	s.Apply(Partial{VisitEntity: "a", AppendPath: "/vault/a.md"})
	s.Apply(Partial{VisitEntity: "b", AppendPath: "/vault/b.md"})

	assert.True(t, s.Visited("a"))
	assert.True(t, s.Visited("b"))
	assert.False(t, s.Visited("c"))
	assert.Equal(t, []string{"/vault/a.md", "/vault/b.md"}, s.GeneratedPaths)
}

func TestApplyQueueReplacement(t *testing.T) {
	s := New([]string{"a", "b"})

	queue := []string{"b", "c"}
	s.Apply(Partial{EntityQueue: QueuePtr(queue)})
	queue[0] = "mutated"

	assert.Equal(t, []string{"b", "c"}, s.EntityQueue)
	assert.True(t, s.InQueue("c"))
	assert.False(t, s.InQueue("a"))
}

func TestCloneIsolation(t *testing.T) {
	s := New([]string{"a"})
	s.Apply(Partial{VisitEntity: "x", AppendPath: "/p"})

	c := s.Clone()
	c.EntityQueue[0] = "mutated"
	c.VisitedEntities["y"] = struct{}{}
	c.GeneratedPaths[0] = "/q"

	assert.Equal(t, "a", s.EntityQueue[0])
	assert.False(t, s.Visited("y"))
	assert.Equal(t, "/p", s.GeneratedPaths[0])
}
