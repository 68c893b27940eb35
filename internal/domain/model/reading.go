package model

import "time"

type ReadingStatus string

const (
	ReadingProcessing ReadingStatus = "processing"
	ReadingCompleted  ReadingStatus = "completed"
	ReadingFailed     ReadingStatus = "failed"
)

// ReadingRecord is the persisted outcome of one paid unit of work.
// All readings derived from the same submitted photo (the original plus
// retopics) share a SessionGroupID.
type ReadingRecord struct {
	ID             string
	OwnerID        string
	SessionGroupID string
	Status         ReadingStatus
	Persona        string
	Topic          string
	VisionResult   string // cached structured intermediate, JSON
	Interpretation string
	TokensUsed     int
	ProcessingMs   int64
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeliveredAt    *time.Time
}

// Completed readings always carry interpretation text.
func (r *ReadingRecord) IsDeliverable() bool {
	return r != nil && r.Status == ReadingCompleted && r.Interpretation != ""
}
