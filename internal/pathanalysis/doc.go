// Package pathanalysis resolves AQL object paths against the reference
// model.
//
// AnalyzeTypes computes the candidate RM types of every node of a single
// path, narrowed by archetype predicates and by which types can actually
// hold the following attribute. AnalyzeCohesion merges all paths of a
// query into one tree per containment, and PathInfo classifies the nodes
// of such a tree so the algebra builder knows how to join them.
package pathanalysis
