package model

import "time"

// Field names written by Base and Timestamps.
const (
	FieldID        = "_id"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

// Base carries the record identifier. Embed it with `bson:",inline"`.
type Base struct {
	ID string `bson:"_id" json:"id"`
}

func (b *Base) GetID() string   { return b.ID }
func (b *Base) SetID(id string) { b.ID = id }

// Record is the capability every persisted type must provide.
type Record interface {
	GetID() string
	SetID(id string)
}

// Timestamps carries creation and update times. Embed it with
// `bson:",inline"` to opt a record type into timestamp bookkeeping.
type Timestamps struct {
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

func (t *Timestamps) GetTimestamps() *Timestamps { return t }

// Stamp records a write at now. CreatedAt is only set the first time and
// UpdatedAt never moves before CreatedAt.
func (t *Timestamps) Stamp(now time.Time) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if now.Before(t.CreatedAt) {
		now = t.CreatedAt
	}
	t.UpdatedAt = now
}

// Timestamped is implemented by record types that embed Timestamps.
type Timestamped interface {
	GetTimestamps() *Timestamps
}

// Now returns the current time in UTC at millisecond precision, which is what
// a BSON datetime can hold.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
