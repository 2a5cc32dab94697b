package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, updated_by_name, created_at, updated_at
		FROM documents
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	items := make([]Document, 0)
	for rows.Next() {
		var item Document
		if err := rows.Scan(&item.ID, &item.Title, &item.UpdatedBy, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return items, nil
}

// GetDocument returns sql.ErrNoRows when the document does not exist.
func (s *PostgresStore) GetDocument(ctx context.Context, documentID string) (Document, error) {
	var item Document
	var content []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, content, plain_text, updated_by_name, created_at, updated_at
		FROM documents
		WHERE id=$1
	`, documentID).Scan(&item.ID, &item.Title, &content, &item.PlainText, &item.UpdatedBy, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Document{}, err
	}
	item.Content = content
	return item, nil
}

func (s *PostgresStore) InsertDocument(ctx context.Context, item Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, content, plain_text, updated_by_name)
		VALUES ($1, $2, $3::jsonb, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, item.ID, item.Title, contentJSON(item.Content), item.PlainText, item.UpdatedBy)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// UpdateDocumentContent replaces the content and projection of a document.
// An empty title keeps the stored one.
func (s *PostgresStore) UpdateDocumentContent(ctx context.Context, item Document) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET title=COALESCE(NULLIF($2, ''), title), content=$3::jsonb, plain_text=$4, updated_by_name=$5, updated_at=NOW()
		WHERE id=$1
	`, item.ID, item.Title, contentJSON(item.Content), item.PlainText, item.UpdatedBy)
	if err != nil {
		return false, fmt.Errorf("update document content: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update document content rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, documentID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id=$1`, documentID)
	if err != nil {
		return false, fmt.Errorf("delete document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete document rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ListDictionaryWords(ctx context.Context, owner string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT word FROM dictionary_words
		WHERE owner=$1
		ORDER BY word
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("list dictionary words: %w", err)
	}
	defer rows.Close()

	words := make([]string, 0)
	for rows.Next() {
		var word string
		if err := rows.Scan(&word); err != nil {
			return nil, fmt.Errorf("scan dictionary word: %w", err)
		}
		words = append(words, word)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dictionary words: %w", err)
	}
	return words, nil
}

// AddDictionaryWord stores word for owner. Words are unique per owner
// regardless of case; re-adding is not an error.
func (s *PostgresStore) AddDictionaryWord(ctx context.Context, owner, word string) error {
	word = strings.TrimSpace(word)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dictionary_words (owner, word)
		VALUES ($1, $2)
		ON CONFLICT (owner, lower(word)) DO NOTHING
	`, owner, word)
	if err != nil {
		return fmt.Errorf("add dictionary word: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveDictionaryWord(ctx context.Context, owner, word string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM dictionary_words
		WHERE owner=$1 AND lower(word)=lower($2)
	`, owner, strings.TrimSpace(word))
	if err != nil {
		return false, fmt.Errorf("remove dictionary word: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove dictionary word rows: %w", err)
	}
	return affected > 0, nil
}

func contentJSON(content []byte) string {
	if len(content) == 0 {
		return `{"type":"doc","content":[]}`
	}
	return string(content)
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
