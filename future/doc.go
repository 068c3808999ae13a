// Package future provides the single-assignment futures used by the grid's
// coordination paths: drain barriers, affinity readiness and transaction
// completion.
//
// A Future resolves exactly once, either with a value or with an error.
// Listeners attached after resolution still fire, synchronously, with the
// resolved outcome. Compound AND-composes any number of Waiters and, once
// marked initialized, resolves after every constituent has resolved,
// reporting the first observed failure.
package future
