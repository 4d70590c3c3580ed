package model

// StoredVector is a persisted embedding row used by the duplicate scan.
type StoredVector struct {
	ID     string
	BugID  int64
	Vector []float64
}
