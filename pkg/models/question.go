package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// QuestionType distinguishes multiple choice questions from open ones
type QuestionType string

const (
	MultipleChoice QuestionType = "MULTIPLE_CHOICE"
	OpenEnded      QuestionType = "OPEN_ENDED"
)

// Question is the payload of a review item, stored as JSON
type Question struct {
	Q           string       `json:"q"`
	Options     []string     `json:"options,omitempty"` // For multiple choice
	Answer      string       `json:"answer"`
	Explanation string       `json:"explanation"`
	Type        QuestionType `json:"type,omitempty"` // Empty in older rows, see Kind
}

// Kind returns Type, or infers it from Options when Type is empty
func (q Question) Kind() QuestionType {
	switch {
	case q.Type != "":
		return q.Type
	case len(q.Options) > 0:
		return MultipleChoice
	default:
		return OpenEnded
	}
}

// Text returns the normalized question text used for duplicate detection
func (q Question) Text() string {
	return strings.TrimSpace(q.Q)
}

// Value implements driver.Valuer
func (q Question) Value() (driver.Value, error) {
	b, err := json.Marshal(q)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (q *Question) Scan(src interface{}) error {
	data, err := jsonBytes(src)
	if err != nil {
		return fmt.Errorf("failed to scan question: %v", err)
	}
	if len(data) == 0 {
		*q = Question{}
		return nil
	}
	return json.Unmarshal(data, q)
}

// Tags is a list of labels stored as a JSON array
type Tags []string

// Value implements driver.Valuer
func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(t))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (t *Tags) Scan(src interface{}) error {
	data, err := jsonBytes(src)
	if err != nil {
		return fmt.Errorf("failed to scan tags: %v", err)
	}
	if len(data) == 0 {
		*t = Tags{}
		return nil
	}
	return json.Unmarshal(data, (*[]string)(t))
}

// Merge returns the union of t and other, t's tags first, without duplicates
func (t Tags) Merge(other Tags) Tags {
	seen := make(map[string]bool, len(t)+len(other))
	merged := make(Tags, 0, len(t)+len(other))
	for _, list := range []Tags{t, other} {
		for _, tag := range list {
			tag = strings.TrimSpace(tag)
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			merged = append(merged, tag)
		}
	}
	return merged
}

func jsonBytes(src interface{}) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", src)
	}
}
