package store

import "context"

// Store persists the bot's three key-value documents as whole snapshots.
// Reads of a document that was never written return an empty map. Writes
// replace the whole document. I/O errors are surfaced to the caller, which
// defers the operation to the next reconciliation pass instead of retrying.
type Store interface {
	SessionMap(ctx context.Context) (SessionMap, error)
	PutSessionMap(ctx context.Context, m SessionMap) error

	Attendance(ctx context.Context) (AttendanceMap, error)
	PutAttendance(ctx context.Context, m AttendanceMap) error

	Wins(ctx context.Context) (WinMap, error)
	PutWins(ctx context.Context, m WinMap) error
}
