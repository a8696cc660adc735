package redis

import (
	"strconv"
	"strings"
)

// zeroCursor means "from the beginning of retained history".
const zeroCursor = "0-0"

// mirrorCursorPrefix marks cursors issued by the durable mirror. Stream
// cursors ("<ms>-<seq>") and mirror cursors ("m:<id>") are separate
// families; the prefix keeps a stream cursor from being misread as a huge
// mirror id during a transport outage.
const mirrorCursorPrefix = "m:"

// normalizeCursor maps the accepted "start over" spellings ("", "0",
// "0-0") to the canonical zero cursor and leaves everything else as given.
func normalizeCursor(cursor string) string {
	switch cursor {
	case "", "0", zeroCursor:
		return zeroCursor
	}
	return cursor
}

func isMirrorCursor(cursor string) bool {
	return strings.HasPrefix(cursor, mirrorCursorPrefix)
}

// cursorSequence maps a cursor to the mirror's integer id space
// ("m:1712" → 1712). A cursor from any other family is a detectable gap:
// it reads from the start of retained history rather than silently
// skipping everything below an unreachable id.
func cursorSequence(cursor string) int64 {
	cursor = normalizeCursor(cursor)
	if !isMirrorCursor(cursor) {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(cursor, mirrorCursorPrefix), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
