package model

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrContactNotFound = errors.New("contact not found")
	ErrContactExists   = errors.New("contact already exists")
)

// Contact is the stored record keyed by normalized phone number.
// CategoryIDs is filled by single-contact lookups only.
type Contact struct {
	Phone        string     `json:"phone"`
	Name         string     `json:"name"`
	Nickname     string     `json:"nickname"`
	Title        string     `json:"title"`
	IsActive     bool       `json:"isActive"`
	LastChatDate *time.Time `json:"lastChatDate,omitempty"`
	CategoryIDs  []string   `json:"categoryIds,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// NewContact is the body for manual creation. Phone is normalized by the
// caller.
type NewContact struct {
	Phone    string `json:"phone"`
	Name     string `json:"name"`
	Nickname string `json:"nickname"`
	Title    string `json:"title"`
}

// ContactUpdate changes only the fields that are set.
type ContactUpdate struct {
	Name     *string `json:"name"`
	Nickname *string `json:"nickname"`
	Title    *string `json:"title"`
	IsActive *bool   `json:"isActive"`
}

func (u ContactUpdate) Validate() error {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return errors.New("name cannot be empty")
	}
	if u.Name == nil && u.Nickname == nil && u.Title == nil && u.IsActive == nil {
		return errors.New("nothing to update")
	}
	return nil
}

// ContactSource tells which stream a contact event came from.
type ContactSource string

const (
	ContactSourceHistorySync ContactSource = "history_sync"
	ContactSourceUpsert      ContactSource = "upsert"
	ContactSourceUpdate      ContactSource = "update"
)

// ContactEvent is a transport contact payload before normalization.
// Any name field may be empty.
type ContactEvent struct {
	Source       ContactSource
	JID          string
	NotifyName   string
	ProfileName  string
	VerifiedName string
	PushName     string
}

// InboundMessage is an incoming chat message as seen by the app.
// SenderAlt carries the phone address when Sender is a hidden (lid) id.
type InboundMessage struct {
	ID        string    `json:"id"`
	Chat      string    `json:"chat"`
	Sender    string    `json:"sender"`
	SenderAlt string    `json:"senderAlt,omitempty"`
	PushName  string    `json:"pushName,omitempty"`
	Text      string    `json:"text,omitempty"`
	IsGroup   bool      `json:"isGroup"`
	IsFromMe  bool      `json:"isFromMe"`
	Timestamp time.Time `json:"timestamp"`
}
