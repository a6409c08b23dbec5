package logtail

// Changed reports whether next differs from the last observed size.
// Content is never compared, so a truncate-and-regrow to the same length is
// missed.
func Changed(prevSize int64, next Snapshot) bool {
	return next.FileSize != prevSize
}
