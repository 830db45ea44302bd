package node

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhanna110/worldsmith-v3/internal/llm"
	"github.com/Zhanna110/worldsmith-v3/internal/state"
)

func TestArchitectSeedsQueueFromAnalysis(t *testing.T) {
	analysis := `{"entities": [
		{"name": "The Citadel", "category": "locations", "tier": 1},
		{"name": "Iron Pact", "category": "factions", "tier": 3},
		{"name": "", "category": "junk", "tier": 9}
	]}`
	reg := tempRegistry(t)
	a := NewArchitect(llm.NewMock([]string{analysis}), reg, "In the second era...", nil)

	s := state.New(nil)
	partial, cost, err := a.Execute(context.Background(), s)
	require.NoError(t, err)
	assert.Greater(t, cost, 0)

	s.Apply(partial)
	assert.Equal(t, []string{"The Citadel", "Iron Pact"}, s.EntityQueue)
	assert.True(t, reg.Contains("The Citadel"))
	assert.True(t, reg.Contains("Iron Pact"))
}

func TestArchitectSeedsInTierOrder(t *testing.T) {
	analysis := `{"entities": [
		{"name": "Minor Shrine", "category": "locations", "tier": 5},
		{"name": "The Citadel", "category": "locations", "tier": 1},
		{"name": "Iron Pact", "category": "factions", "tier": 3}
	]}`
	a := NewArchitect(llm.NewMock([]string{analysis}), tempRegistry(t), "source", nil)

	s := state.New(nil)
	partial, _, err := a.Execute(context.Background(), s)
	require.NoError(t, err)

	s.Apply(partial)
	assert.Equal(t, []string{"The Citadel", "Iron Pact", "Minor Shrine"}, s.EntityQueue)
}

func TestArchitectKeepsOperatorSeedFirst(t *testing.T) {
	analysis := `{"entities": [{"name": "Discovered", "category": "x", "tier": 4}]}`
	a := NewArchitect(llm.NewMock([]string{analysis}), tempRegistry(t), "source", nil)

	s := state.New([]string{"Seeded First"})
	partial, _, err := a.Execute(context.Background(), s)
	require.NoError(t, err)

	s.Apply(partial)
	assert.Equal(t, []string{"Seeded First", "Discovered"}, s.EntityQueue)
}

func TestArchitectWithoutSourceSkipsAnalysis(t *testing.T) {
	mock := llm.NewMock(nil)
	a := NewArchitect(mock, tempRegistry(t), "", nil)

	s := state.New([]string{"Only Entity"})
	partial, cost, err := a.Execute(context.Background(), s)
	require.NoError(t, err)
	assert.Zero(t, cost)
	assert.Empty(t, mock.Calls())

	s.Apply(partial)
	assert.Equal(t, []string{"Only Entity"}, s.EntityQueue)
}

func TestArchitectHandlesFencedJSON(t *testing.T) {
	fenced := "```json\n{\"entities\": [{\"name\": \"Walled City\", \"category\": \"locations\", \"tier\": 2}]}\n```"
	a := NewArchitect(llm.NewMock([]string{fenced}), tempRegistry(t), "source", nil)

	s := state.New(nil)
	partial, _, err := a.Execute(context.Background(), s)
	require.NoError(t, err)

	s.Apply(partial)
	assert.Equal(t, []string{"Walled City"}, s.EntityQueue)
}

func TestArchitectUnparseableAnalysisFails(t *testing.T) {
	a := NewArchitect(llm.NewMock([]string{"no json here"}), tempRegistry(t), "source", nil)

	_, _, err := a.Execute(context.Background(), state.New(nil))
	assert.Error(t, err)
}
