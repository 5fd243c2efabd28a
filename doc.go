// Package forksearch provides a generic concurrent branch-and-explore graph search.
//
// A search starts at one node of an implicit graph and races to any goal node:
//
//   - Search / Coordinator.Run: explore the graph with one goroutine per discovered
//     branch and return as soon as the whole fork tree has joined.
//   - ClaimRegistry: the exactly-once admission set shared by every branch.
//   - CancellationToken: the monotonic stop signal raised by the first goal finder.
//
// At every fork point the current goroutine claims all neighbors it intends to
// pursue, keeps the first accepted one for itself and forks the rest, then joins
// the forked branches before returning.
package forksearch
