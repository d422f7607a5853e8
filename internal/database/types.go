package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrPostNotFound    = errors.New("post not found")
	ErrInvalidPostType = errors.New("invalid post type")
	ErrPayloadMismatch = errors.New("payload does not match post type")
)

// PostType distinguishes reports of missing people from sightings of found people.
type PostType string

const (
	PostTypeMissing PostType = "missing"
	PostTypeFound   PostType = "found"
)

// ParsePostType validates s as a post type.
func ParsePostType(s string) (PostType, error) {
	switch t := PostType(s); t {
	case PostTypeMissing, PostTypeFound:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPostType, s)
	}
}

// PostStatus is the lifecycle state of a post. Deleted posts are kept but never listed.
type PostStatus string

const (
	StatusActive  PostStatus = "active"
	StatusDeleted PostStatus = "deleted"
)

// Payload is the type-specific part of a post: *MissingPayload or *FoundPayload.
type Payload interface {
	Kind() PostType
	fields() map[string]any
}

// MissingPayload describes a missing person.
type MissingPayload struct {
	Name     string `json:"missing_name"`
	Age      int    `json:"missing_age"`
	LastSeen string `json:"last_seen"`
	Notes    string `json:"notes"`
}

func (*MissingPayload) Kind() PostType { return PostTypeMissing }

func (p *MissingPayload) fields() map[string]any {
	return map[string]any{
		"missing_name": p.Name,
		"missing_age":  p.Age,
		"last_seen":    p.LastSeen,
		"notes":        p.Notes,
	}
}

// FoundPayload describes a person who was found and could not be identified.
type FoundPayload struct {
	Name         string `json:"found_name"`
	EstimatedAge int    `json:"estimated_age"`
	Location     string `json:"found_location"`
	Notes        string `json:"notes"`
}

func (*FoundPayload) Kind() PostType { return PostTypeFound }

func (p *FoundPayload) fields() map[string]any {
	return map[string]any{
		"found_name":     p.Name,
		"estimated_age":  p.EstimatedAge,
		"found_location": p.Location,
		"notes":          p.Notes,
	}
}

// DecodePayload parses a JSON payload document for a post of type t.
func DecodePayload(t PostType, data []byte) (Payload, error) {
	var p Payload
	switch t {
	case PostTypeMissing:
		p = &MissingPayload{}
	case PostTypeFound:
		p = &FoundPayload{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidPostType, t)
	}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return p, nil
}

// Post is a missing- or found-person record.
type Post struct {
	ID         string
	AuthorID   string
	AuthorName string
	Type       PostType
	ImageURL   string
	Status     PostStatus
	CreatedAt  time.Time
	Payload    Payload
}

// Validate checks that the payload matches the post type.
func (p *Post) Validate() error {
	if _, err := ParsePostType(string(p.Type)); err != nil {
		return err
	}
	if p.Payload == nil || p.Payload.Kind() != p.Type {
		return fmt.Errorf("%w: %s post", ErrPayloadMismatch, p.Type)
	}
	return nil
}

// Name returns the person's name from the payload.
func (p *Post) Name() string {
	switch pl := p.Payload.(type) {
	case *MissingPayload:
		return pl.Name
	case *FoundPayload:
		return pl.Name
	default:
		return ""
	}
}

// MarshalJSON flattens the payload fields next to the common post fields.
func (p Post) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"id":          p.ID,
		"author_id":   p.AuthorID,
		"author_name": p.AuthorName,
		"post_type":   p.Type,
		"image_url":   p.ImageURL,
		"status":      p.Status,
		"created_at":  p.CreatedAt,
	}
	if p.Payload != nil {
		for k, v := range p.Payload.fields() {
			out[k] = v
		}
	}
	return json.Marshal(out)
}

// PostUpdate holds optional changes to a post. Nil fields are left untouched.
// Name, Age and Place map onto the payload of either post type
// (Place is last_seen for missing posts and found_location for found posts).
type PostUpdate struct {
	Name     *string
	Age      *int
	Place    *string
	Notes    *string
	ImageURL *string
}

// IsEmpty reports whether the update changes nothing.
func (u PostUpdate) IsEmpty() bool {
	return u.Name == nil && u.Age == nil && u.Place == nil && u.Notes == nil && u.ImageURL == nil
}

// Apply writes the update into p.
func (u PostUpdate) Apply(p *Post) {
	if u.ImageURL != nil {
		p.ImageURL = *u.ImageURL
	}
	switch pl := p.Payload.(type) {
	case *MissingPayload:
		setIf(&pl.Name, u.Name)
		setIf(&pl.Age, u.Age)
		setIf(&pl.LastSeen, u.Place)
		setIf(&pl.Notes, u.Notes)
	case *FoundPayload:
		setIf(&pl.Name, u.Name)
		setIf(&pl.EstimatedAge, u.Age)
		setIf(&pl.Location, u.Place)
		setIf(&pl.Notes, u.Notes)
	}
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
