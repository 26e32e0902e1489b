package graph

import "github.com/fentz26/worklog/internal/models"

// AssembleTrees nests tasks under their parents at every depth, so Subtasks
// holds whole subtrees rather than direct children only. Tasks whose parent is
// not in the input are returned as roots. Input that already carries Subtasks is
// flattened first, so assembling an assembled forest yields the same forest.
// Every input task appears exactly once in the output.
func AssembleTrees(tasks []models.Task) []models.Task {
	flat := Flatten(tasks)

	byID := make(map[string]bool, len(flat))
	for _, t := range flat {
		byID[t.ID] = true
	}

	children := make(map[string][]int)
	var rootIdx []int
	for i, t := range flat {
		if t.ParentTaskID == "" || t.ParentTaskID == t.ID || !byID[t.ParentTaskID] {
			rootIdx = append(rootIdx, i)
			continue
		}
		children[t.ParentTaskID] = append(children[t.ParentTaskID], i)
	}

	emitted := make([]bool, len(flat))
	var build func(i int) models.Task
	build = func(i int) models.Task {
		emitted[i] = true
		node := flat[i]
		for _, c := range children[node.ID] {
			if !emitted[c] {
				node.Subtasks = append(node.Subtasks, build(c))
			}
		}
		return node
	}

	roots := make([]models.Task, 0, len(rootIdx))
	for _, i := range rootIdx {
		roots = append(roots, build(i))
	}
	// Tasks caught in a parent cycle never hang off a root. Surface them.
	for i := range flat {
		if !emitted[i] {
			roots = append(roots, build(i))
		}
	}
	return roots
}

// Flatten returns every task in the forest, depth first, with Subtasks
// cleared. Duplicate ids keep their first occurrence.
func Flatten(tasks []models.Task) []models.Task {
	seen := make(map[string]bool)
	var out []models.Task
	var walk func([]models.Task)
	walk = func(ts []models.Task) {
		for _, t := range ts {
			if seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			subs := t.Subtasks
			t.Subtasks = nil
			out = append(out, t)
			walk(subs)
		}
	}
	walk(tasks)
	return out
}
