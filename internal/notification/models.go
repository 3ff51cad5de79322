// internal/notification/models.go

package notification

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

var ErrNotificationNotFound = errors.New("notification not found")

// Type represents the notification kinds raised by the matching engine
type Type string

const (
	TypeMatchCreated Type = "match_created"
	TypeMutualMatch  Type = "mutual_match"
)

// Notification represents a stored in-app notification
type Notification struct {
	ID        string    `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Type      Type      `json:"type" db:"type"`
	Title     string    `json:"title" db:"title"`
	Message   string    `json:"message" db:"message"`
	Data      Data      `json:"data" db:"data"`
	IsRead    bool      `json:"is_read" db:"is_read"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Data represents additional notification data
type Data map[string]interface{}

// Scan implements sql.Scanner interface
func (d *Data) Scan(value interface{}) error {
	if value == nil {
		*d = make(Data)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, d)
}

// Value implements driver.Valuer interface
func (d Data) Value() (driver.Value, error) {
	if d == nil {
		return "{}", nil
	}
	return json.Marshal(d)
}
