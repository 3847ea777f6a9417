package store

// SessionMap maps a scheduled-event ID to the signup message tracking it.
type SessionMap map[string]string

// AttendanceRecord counts how often a member registered for a scrim and how
// often they were actually present in voice when attendance was sampled.
// Both counters only ever grow.
type AttendanceRecord struct {
	Registered int `json:"registered"`
	Attended   int `json:"attended"`
}

type AttendanceMap map[string]AttendanceRecord

type WinMap map[string]int
