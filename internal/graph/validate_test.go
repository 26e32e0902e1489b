package graph

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/fentz26/worklog/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memEdges is an in-memory EdgeSource and ParentSource.
type memEdges struct {
	deps    map[string][]string
	parents map[string]string
	calls   int
}

func newMemEdges() *memEdges {
	return &memEdges{deps: map[string][]string{}, parents: map[string]string{}}
}

func (m *memEdges) DependenciesOf(_ context.Context, id string) ([]string, error) {
	m.calls++
	return m.deps[id], nil
}

func (m *memEdges) ParentOf(_ context.Context, id string) (string, error) {
	return m.parents[id], nil
}

// add validates and inserts, the way the task service does.
func (m *memEdges) add(from, to string) error {
	if err := ValidateEdge(context.Background(), m, from, to); err != nil {
		return err
	}
	m.deps[from] = append(m.deps[from], to)
	return nil
}

func TestValidateEdge_ReverseEdgeRejected(t *testing.T) {
	g := newMemEdges()

	require.NoError(t, g.add("B", "A"))
	err := g.add("A", "B")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrCyclicDependency))
	assert.Contains(t, err.Error(), "A -> B -> A")
}

func TestValidateEdge_TransitiveCycle(t *testing.T) {
	g := newMemEdges()

	require.NoError(t, g.add("B", "A"))
	require.NoError(t, g.add("C", "A"))
	require.NoError(t, g.add("B", "C"))

	err := g.add("A", "C")
	assert.ErrorIs(t, err, models.ErrCyclicDependency)

	err = g.add("A", "B")
	assert.ErrorIs(t, err, models.ErrCyclicDependency)
}

func TestValidateEdge_SelfLoopSkipsSearch(t *testing.T) {
	g := newMemEdges()

	err := ValidateEdge(context.Background(), g, "T", "T")
	assert.ErrorIs(t, err, models.ErrSelfDependency)
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Zero(t, g.calls)

	cyclic, err := WouldCreateCycle(context.Background(), g, "T", "T")
	require.NoError(t, err)
	assert.True(t, cyclic)
}

func TestWouldCreateCycle_DiamondIsNotACycle(t *testing.T) {
	g := newMemEdges()
	require.NoError(t, g.add("D", "B"))
	require.NoError(t, g.add("D", "C"))
	require.NoError(t, g.add("B", "A"))
	require.NoError(t, g.add("C", "A"))

	cyclic, err := WouldCreateCycle(context.Background(), g, "D", "A")
	require.NoError(t, err)
	assert.False(t, cyclic)
}

func TestWouldCreateCycle_TerminatesOnMalformedData(t *testing.T) {
	g := newMemEdges()
	// A cycle that slipped in outside the validator.
	g.deps["X"] = []string{"Y"}
	g.deps["Y"] = []string{"X"}

	cyclic, err := WouldCreateCycle(context.Background(), g, "Z", "X")
	require.NoError(t, err)
	assert.False(t, cyclic)
}

func TestValidateEdge_RandomSequencesStayAcyclic(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	g := newMemEdges()
	nodes := make([]string, 12)
	for i := range nodes {
		nodes[i] = fmt.Sprintf("t%d", i)
	}

	for i := 0; i < 400; i++ {
		from := nodes[rng.Intn(len(nodes))]
		to := nodes[rng.Intn(len(nodes))]
		_ = g.add(from, to)
	}

	for _, n := range nodes {
		assert.False(t, reachesSelf(g, n), "task %s reaches itself", n)
	}
}

func reachesSelf(g *memEdges, start string) bool {
	seen := map[string]bool{}
	stack := append([]string(nil), g.deps[start]...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == start {
			return true
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		stack = append(stack, g.deps[n]...)
	}
	return false
}

func TestWouldCreateParentCycle(t *testing.T) {
	g := newMemEdges()
	g.parents["child"] = "root"
	g.parents["grandchild"] = "child"

	ctx := context.Background()
	cases := []struct {
		name   string
		task   string
		parent string
		want   bool
	}{
		{"self", "root", "root", true},
		{"descendant", "root", "grandchild", true},
		{"sibling", "other", "grandchild", false},
		{"clear parent", "root", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := WouldCreateParentCycle(ctx, g, tc.task, tc.parent)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestWouldCreateParentCycle_ExistingLoopAbove(t *testing.T) {
	g := newMemEdges()
	g.parents["p"] = "q"
	g.parents["q"] = "p"

	got, err := WouldCreateParentCycle(context.Background(), g, "x", "p")
	require.NoError(t, err)
	assert.False(t, got)
}
