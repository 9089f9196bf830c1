// Package entity defines the domain objects of the relay: the feed Item and
// its delivery Status, along with validation rules and domain errors.
package entity

import (
	"fmt"
	"strconv"
)

// Status is the delivery state of an Item.
type Status int

// Delivery states. The numeric values are part of the durable store format.
const (
	StatusNew    Status = 0
	StatusSent   Status = 1
	StatusFailed Status = 2
)

// Valid reports whether s is one of the legal delivery states.
func (s Status) Valid() bool {
	return s == StatusNew || s == StatusSent || s == StatusFailed
}

// Validate returns ErrInvalidStatus wrapped with the offending value when s is not legal.
func (s Status) Validate() error {
	if !s.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidStatus, int(s))
	}
	return nil
}

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusSent:
		return "sent"
	case StatusFailed:
		return "failed"
	default:
		return "status(" + strconv.Itoa(int(s)) + ")"
	}
}

// ParseStatus decodes the numeric form used by the durable store.
func ParseStatus(raw string) (Status, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	s := Status(n)
	if err := s.Validate(); err != nil {
		return 0, err
	}
	return s, nil
}

// Item is one feed entry as tracked by the relay.
// GUID is the identity of the entry and never changes once observed.
type Item struct {
	GUID        string
	Title       string
	Link        string
	Description string
	Status      Status
}

// NewItem returns an Item in the NEW state.
func NewItem(guid, title, link, description string) *Item {
	return &Item{
		GUID:        guid,
		Title:       title,
		Link:        link,
		Description: description,
		Status:      StatusNew,
	}
}

// Pending reports whether the item still needs delivery.
// FAILED items are pending exactly like NEW ones.
func (i *Item) Pending() bool {
	return i.Status != StatusSent
}

// Validate checks the item before it enters the store.
func (i *Item) Validate() error {
	if i.GUID == "" {
		return &ValidationError{Field: "guid", Message: "guid is required"}
	}
	return i.Status.Validate()
}
