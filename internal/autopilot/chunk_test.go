package autopilot

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunkProperties(t *testing.T) {
	texts := []string{
		"a",
		"hello world",
		strings.Repeat("x", 2000),
		strings.Repeat("y", 4000),
		strings.Repeat("z", 4001),
		strings.Repeat("héllo ✓ ", 700),
	}
	limits := []int{1, 3, 7, 2000}

	for _, text := range texts {
		for _, limit := range limits {
			segs := Chunk(text, limit)
			if got := strings.Join(segs, ""); got != text {
				t.Fatalf("limit %d: segments do not reassemble text", limit)
			}

			n := utf8.RuneCountInString(text)
			wantSegs := (n + limit - 1) / limit
			if len(segs) != wantSegs {
				t.Fatalf("limit %d, len %d: got %d segments, want %d", limit, n, len(segs), wantSegs)
			}
			for i, s := range segs {
				if utf8.RuneCountInString(s) > limit {
					t.Fatalf("segment %d exceeds limit %d", i, limit)
				}
			}

			wantLast := n % limit
			if wantLast == 0 {
				wantLast = limit
			}
			if got := utf8.RuneCountInString(segs[len(segs)-1]); got != wantLast {
				t.Fatalf("limit %d, len %d: last segment has %d runes, want %d", limit, n, got, wantLast)
			}
		}
	}
}

func TestChunkEdgeCases(t *testing.T) {
	if segs := Chunk("", 10); len(segs) != 0 {
		t.Fatalf("expected no segments for empty text, got %q", segs)
	}
	if segs := Chunk("short", 2000); len(segs) != 1 || segs[0] != "short" {
		t.Fatalf("expected single segment, got %q", segs)
	}
	if segs := Chunk("abcdef", 3); len(segs) != 2 || segs[0] != "abc" || segs[1] != "def" {
		t.Fatalf("unexpected exact-multiple split %q", segs)
	}
	if segs := Chunk("abc", 0); len(segs) != 1 || segs[0] != "abc" {
		t.Fatalf("expected whole text for non-positive limit, got %q", segs)
	}
}
