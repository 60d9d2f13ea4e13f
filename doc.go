// Package safearchive serves a directory of build artifacts while refusing
// content that escapes the directory or was modified after it was indexed.
//
// An [Archive] walks its root once when created and records a fingerprint for
// every file whose name does not end in one of the configured safe
// extensions. Every later read of such a file recomputes the fingerprint and
// compares it to the recorded one before any bytes are released:
//
//	a, err := safearchive.New(ctx, "/var/lib/jenkins/jobs/app/builds/42/reports",
//	    safearchive.WithURLName("reports"),
//	    safearchive.WithIndexFile("index.html"),
//	    safearchive.WithSafeExtensions("html", "css", "js"),
//	)
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//
//	res, err := a.Resolve("/data/results.xml")
//
// [Archive.Resolve] decides one of four outcomes: redirect to the index
// document, not found, forbidden, or serve. Paths outside the root, files
// added after indexing and missing files are all reported as not found.
// Files whose content changed since indexing are forbidden.
//
// The http subpackage adapts an Archive to net/http.
//
// # Re-indexing
//
// The fingerprint table is immutable. [Archive.Reindex] walks the root again
// and swaps in the new table atomically; concurrent requests see either the
// old table or the new one, never a mix.
package safearchive
