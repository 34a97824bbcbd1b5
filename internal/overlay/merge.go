// Package overlay holds the demonstration data shown alongside live records and the
// merge that combines the two.
package overlay

// Merge returns live when disabled and sample followed by live when enabled. Neither
// input is modified and the enabled result never aliases live.
func Merge[E any](live, sample []E, enabled bool) []E {
	if !enabled {
		return live
	}
	out := make([]E, 0, len(sample)+len(live))
	out = append(out, sample...)
	return append(out, live...)
}
