package autopilot

import "unicode/utf8"

// Chunk splits text into consecutive segments of at most limit runes.
// Joining the segments yields text exactly. A non-positive limit returns the
// text whole; empty text yields no segments.
func Chunk(text string, limit int) []string {
	if text == "" {
		return nil
	}
	if limit <= 0 {
		return []string{text}
	}

	segments := make([]string, 0, utf8.RuneCountInString(text)/limit+1)
	start, count := 0, 0
	for i := range text {
		if count == limit {
			segments = append(segments, text[start:i])
			start, count = i, 0
		}
		count++
	}
	return append(segments, text[start:])
}
