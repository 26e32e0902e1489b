// Package graph validates the task dependency graph and the parent/child
// tree, and assembles flat task lists into trees for presentation.
//
// The dependency graph ("A depends on B") must stay acyclic. Reachability is
// recomputed on every proposed edge rather than maintained incrementally;
// each check is a bounded O(V+E) walk over the edges reachable from the
// proposed target.
//
// The parent/child tree is separate from the dependency graph. Assigning a
// parent walks the proposed parent's ancestor chain so that a task can never
// become its own ancestor.
package graph
