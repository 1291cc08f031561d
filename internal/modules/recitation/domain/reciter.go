package domain

// UserRecordingsReciterID is the sentinel reciter that plays the user's own
// captured recordings instead of a narrator.
const UserRecordingsReciterID = "user"

// Reciter is an audio-source identity.
type Reciter struct {
	ID          string
	DisplayName string
}

// IsUserRecordings reports whether the reciter is the user-recordings sentinel.
func (r Reciter) IsUserRecordings() bool {
	return r.ID == UserRecordingsReciterID
}

// IsUserRecordingsID reports whether id denotes the user-recordings sentinel.
func IsUserRecordingsID(id string) bool {
	return id == UserRecordingsReciterID
}
