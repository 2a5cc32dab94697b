package store

import (
	"encoding/json"
	"time"
)

// Document is a stored ProseMirror document. Content holds the JSON tree;
// PlainText is its projection, kept for full-text search. List queries
// leave Content empty.
type Document struct {
	ID        string
	Title     string
	Content   json.RawMessage
	PlainText string
	UpdatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DictionaryWord is a word an owner approved for spelling checks.
type DictionaryWord struct {
	Owner     string
	Word      string
	CreatedAt time.Time
}
