// Package preflight diagnoses a mojify installation before it is trusted to
// serve: the data directory, the catalog database, the search index and the
// embedding model.
//
// Required checks must pass for indexing and search to work at all. The
// index and embedder checks only warn, since search degrades to lexical
// results or an empty index rather than failing.
//
//	checker := preflight.New(cfg)
//	results := checker.RunAll(ctx)
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
