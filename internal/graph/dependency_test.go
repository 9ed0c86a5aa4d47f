package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDependencyGraph(t *testing.T) {
	g := NewDependencyGraph()
	assert.NotNil(t, g)
	assert.Equal(t, 0, g.TaskCount())
}

func TestAddTask(t *testing.T) {
	g := NewDependencyGraph()

	g.AddTask("market_analyst", nil)
	g.AddTask("bull_researcher", []string{"market_analyst"})
	g.AddTask("trader", []string{"market_analyst", "bull_researcher"})

	assert.Equal(t, 3, g.TaskCount())
	assert.Empty(t, g.Dependencies("market_analyst"))
	assert.Equal(t, []string{"market_analyst"}, g.Dependencies("bull_researcher"))
	assert.Equal(t, []string{"market_analyst", "bull_researcher"}, g.Dependencies("trader"))
}

func TestAddTask_MutationProtection(t *testing.T) {
	g := NewDependencyGraph()

	deps := []string{"a", "b"}
	g.AddTask("c", deps)

	deps[0] = "x"

	assert.Equal(t, []string{"a", "b"}, g.Dependencies("c"))
}

func TestDependencies_NotFound(t *testing.T) {
	g := NewDependencyGraph()
	assert.Nil(t, g.Dependencies("unknown"))
}

func TestValidate_UnknownDependency(t *testing.T) {
	g := NewDependencyGraph()
	g.AddTask("a", []string{"unknown"})

	err := g.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownDependency))
}

func TestValidate_SimpleCycle(t *testing.T) {
	g := NewDependencyGraph()
	g.AddTask("a", []string{"b"})
	g.AddTask("b", []string{"a"})

	err := g.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCycleDetected))

	var cycleErr *CycleError
	require.True(t, errors.As(err, &cycleErr))
	assert.Len(t, cycleErr.Path, 3) // a -> b -> a
}

func TestValidate_SelfDependency(t *testing.T) {
	g := NewDependencyGraph()
	g.AddTask("a", []string{"a"})

	err := g.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCycleDetected))
}

func TestStages_Empty(t *testing.T) {
	g := NewDependencyGraph()
	stages, err := g.Stages()
	require.NoError(t, err)
	assert.Nil(t, stages)
}

func TestStages_Linear(t *testing.T) {
	g := NewDependencyGraph()
	g.AddTask("a", nil)
	g.AddTask("b", []string{"a"})
	g.AddTask("c", []string{"b"})

	stages, err := g.Stages()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}, {"b"}, {"c"}}, stages)
}

func TestStages_Diamond(t *testing.T) {
	g := NewDependencyGraph()
	g.AddTask("fundamentals_analyst", nil)
	g.AddTask("news_analyst", nil)
	g.AddTask("bull_researcher", []string{"fundamentals_analyst", "news_analyst"})
	g.AddTask("bear_researcher", []string{"fundamentals_analyst", "news_analyst"})
	g.AddTask("research_manager", []string{"bull_researcher", "bear_researcher"})

	stages, err := g.Stages()
	require.NoError(t, err)
	require.Len(t, stages, 3)
	assert.Equal(t, []string{"fundamentals_analyst", "news_analyst"}, stages[0])
	assert.Equal(t, []string{"bear_researcher", "bull_researcher"}, stages[1])
	assert.Equal(t, []string{"research_manager"}, stages[2])
}

func TestEligible(t *testing.T) {
	g := NewDependencyGraph()
	g.AddTask("a", nil)
	g.AddTask("b", nil)
	g.AddTask("c", []string{"a"})
	g.AddTask("d", []string{"a", "b"})

	done := map[string]struct{}{"a": {}}

	ready := g.Eligible([]string{"c", "d"}, done)
	assert.Equal(t, []string{"c"}, ready)

	done["b"] = struct{}{}
	ready = g.Eligible([]string{"c", "d"}, done)
	assert.Equal(t, []string{"c", "d"}, ready)
}

func TestEligible_UnknownCandidateSkipped(t *testing.T) {
	g := NewDependencyGraph()
	g.AddTask("a", nil)

	ready := g.Eligible([]string{"a", "ghost"}, map[string]struct{}{})
	assert.Equal(t, []string{"a"}, ready)
}
