package models

import "time"

// User is owned by the identity service. The messaging core only ever reads
// these rows to join display fields onto messages and conversation summaries.
type User struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Username  string    `gorm:"uniqueIndex" json:"username"`
	Name      string    `json:"name"`
	Image     string    `json:"image"`
	CreatedAt time.Time `json:"createdAt"`
}
