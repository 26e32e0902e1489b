package graph

import (
	"sort"
	"testing"

	"github.com/fentz26/worklog/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func task(id, parent string) models.Task {
	return models.Task{ID: id, Title: id, ParentTaskID: parent}
}

func ids(tasks []models.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range Flatten(tasks) {
		out = append(out, t.ID)
	}
	sort.Strings(out)
	return out
}

func TestAssembleTrees_NestsChildren(t *testing.T) {
	roots := AssembleTrees([]models.Task{
		task("a", ""),
		task("a1", "a"),
		task("a2", "a"),
		task("a1x", "a1"),
		task("b", ""),
	})

	require.Len(t, roots, 2)
	assert.Equal(t, "a", roots[0].ID)
	require.Len(t, roots[0].Subtasks, 2)
	assert.Equal(t, "a1", roots[0].Subtasks[0].ID)
	assert.Equal(t, "a2", roots[0].Subtasks[1].ID)
	require.Len(t, roots[0].Subtasks[0].Subtasks, 1)
	assert.Equal(t, "a1x", roots[0].Subtasks[0].Subtasks[0].ID)
	assert.Equal(t, "b", roots[1].ID)
	assert.Empty(t, roots[1].Subtasks)
}

func TestAssembleTrees_UnresolvedParentBecomesRoot(t *testing.T) {
	roots := AssembleTrees([]models.Task{
		task("mine", "someone-elses"),
		task("child", "mine"),
	})

	require.Len(t, roots, 1)
	assert.Equal(t, "mine", roots[0].ID)
	require.Len(t, roots[0].Subtasks, 1)
	assert.Equal(t, "child", roots[0].Subtasks[0].ID)
}

func TestAssembleTrees_Idempotent(t *testing.T) {
	flat := []models.Task{
		task("a", ""),
		task("a1", "a"),
		task("a1x", "a1"),
		task("b", "missing"),
		task("b1", "b"),
	}

	once := AssembleTrees(flat)
	twice := AssembleTrees(once)

	assert.Equal(t, once, twice)
	assert.Equal(t, []string{"a", "a1", "a1x", "b", "b1"}, ids(twice))
}

func TestAssembleTrees_ParentCycleIsNotDropped(t *testing.T) {
	roots := AssembleTrees([]models.Task{
		task("x", "y"),
		task("y", "x"),
		task("self", "self"),
	})

	assert.Equal(t, []string{"self", "x", "y"}, ids(roots))
}

func TestAssembleTrees_Empty(t *testing.T) {
	assert.Empty(t, AssembleTrees(nil))
}
