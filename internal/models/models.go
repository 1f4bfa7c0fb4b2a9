package models

import "time"

// Player represents a simulation client identity
type Player struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username  string    `json:"username" gorm:"uniqueIndex;size:40;not null"`
	Email     string    `json:"email,omitempty" gorm:"size:200"`
	Token     string    `json:"-" gorm:"size:128;not null"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidateToken reports whether token is the player's shared secret
func (p *Player) ValidateToken(token string) bool {
	return token == p.Token
}

// TrainState is the lifecycle state of a mailbox item
type TrainState int

const (
	TrainAvailable  TrainState = 1
	TrainDownloaded TrainState = 2
)

// String returns the state name
func (s TrainState) String() string {
	switch s {
	case TrainAvailable:
		return "available"
	case TrainDownloaded:
		return "downloaded"
	default:
		return "unknown"
	}
}

// Train represents one file in transit between two players
type Train struct {
	ID           int64      `json:"pk" gorm:"primaryKey;autoIncrement"`
	Filename     string     `json:"file" gorm:"size:255;not null"`
	FromPlayer   string     `json:"from_player" gorm:"size:40;index"`
	ToPlayer     string     `json:"to_player" gorm:"size:40;index"`
	DownloadedBy string     `json:"downloaded_by" gorm:"size:40;not null;default:''"`
	UploadDate   time.Time  `json:"upload_date" gorm:"type:date;not null"`
	State        TrainState `json:"state" gorm:"not null;default:1;index"`
}

// TrainFilter narrows a listing of available trains
type TrainFilter struct {
	// Player matches either sender or recipient
	Player string
	// FilenameContains is a case-sensitive substring of the stored name
	FilenameContains string
	// UploadedBefore is an inclusive upper bound on the upload date
	UploadedBefore *time.Time
}

// Date truncates t to midnight UTC
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
