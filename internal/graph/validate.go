package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/fentz26/worklog/internal/models"
)

// EdgeSource yields the tasks a task directly depends on.
type EdgeSource interface {
	DependenciesOf(ctx context.Context, taskID string) ([]string, error)
}

// ParentSource yields the parent of a task, "" for roots.
type ParentSource interface {
	ParentOf(ctx context.Context, taskID string) (string, error)
}

// WouldCreateCycle reports whether adding taskID -> dependsOnID closes a
// cycle. A self-loop always does.
func WouldCreateCycle(ctx context.Context, src EdgeSource, taskID, dependsOnID string) (bool, error) {
	path, err := cyclePath(ctx, src, taskID, dependsOnID)
	if err != nil {
		return false, err
	}
	return path != nil, nil
}

// ValidateEdge returns ErrSelfDependency for a self-loop and
// ErrCyclicDependency, naming the closing path, when the edge would close a
// cycle.
func ValidateEdge(ctx context.Context, src EdgeSource, taskID, dependsOnID string) error {
	if taskID == dependsOnID {
		return fmt.Errorf("%w (%s)", models.ErrSelfDependency, taskID)
	}
	path, err := cyclePath(ctx, src, taskID, dependsOnID)
	if err != nil {
		return err
	}
	if path != nil {
		return fmt.Errorf("%w: %s", models.ErrCyclicDependency, strings.Join(path, " -> "))
	}
	return nil
}

// cyclePath searches outward from dependsOnID along existing edges. If taskID
// is reachable it returns the cycle the new edge would close, starting and
// ending at taskID; otherwise nil.
func cyclePath(ctx context.Context, src EdgeSource, taskID, dependsOnID string) ([]string, error) {
	if taskID == dependsOnID {
		return []string{taskID, taskID}, nil
	}

	// came[x] is the node from which x was first reached.
	came := map[string]string{dependsOnID: ""}
	stack := []string{dependsOnID}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		next, err := src.DependenciesOf(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("walk dependencies of %s: %w", n, err)
		}
		for _, m := range next {
			if _, seen := came[m]; seen {
				continue
			}
			came[m] = n
			if m == taskID {
				return buildPath(came, taskID), nil
			}
			stack = append(stack, m)
		}
	}
	return nil, nil
}

func buildPath(came map[string]string, taskID string) []string {
	// Walk back from taskID to dependsOnID, then prepend taskID for the new edge.
	var rev []string
	for n := taskID; n != ""; n = came[n] {
		rev = append(rev, n)
	}
	path := make([]string, 0, len(rev)+1)
	path = append(path, taskID)
	for i := len(rev) - 1; i >= 0; i-- {
		path = append(path, rev[i])
	}
	return path
}

// WouldCreateParentCycle reports whether making parentID the parent of taskID
// would make taskID its own ancestor.
func WouldCreateParentCycle(ctx context.Context, src ParentSource, taskID, parentID string) (bool, error) {
	if parentID == "" {
		return false, nil
	}
	seen := make(map[string]bool)
	for n := parentID; n != ""; {
		if n == taskID {
			return true, nil
		}
		if seen[n] {
			// Already malformed above us; it does not involve taskID.
			return false, nil
		}
		seen[n] = true

		p, err := src.ParentOf(ctx, n)
		if err != nil {
			return false, fmt.Errorf("walk ancestors of %s: %w", n, err)
		}
		n = p
	}
	return false, nil
}
