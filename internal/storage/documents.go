package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrDocumentNotFound = errors.New("document not found")

// SaveOrUpdateDocument stores an SCL document, replacing the content of an
// existing document with the same name.
func (p *PostgresClient) SaveOrUpdateDocument(ctx context.Context, doc SCLDocument) (uuid.UUID, error) {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}

	var id uuid.UUID
	err := p.pool.QueryRow(ctx, `
		INSERT INTO scl_documents (id, name, description, content)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name)
		DO UPDATE SET
			description = EXCLUDED.description,
			content = EXCLUDED.content,
			updated_at = NOW()
		RETURNING id
	`, doc.ID, doc.Name, doc.Description, doc.Content).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to upsert document: %w", err)
	}

	return id, nil
}

// GetDocument loads a single document including its content.
func (p *PostgresClient) GetDocument(ctx context.Context, id uuid.UUID) (*SCLDocument, error) {
	var doc SCLDocument
	err := p.pool.QueryRow(ctx, `
		SELECT id, name, description, content, created_at, updated_at
		FROM scl_documents
		WHERE id = $1
	`, id).Scan(&doc.ID, &doc.Name, &doc.Description, &doc.Content, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

// LoadAllDocuments returns every stored document including content.
func (p *PostgresClient) LoadAllDocuments(ctx context.Context) ([]SCLDocument, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, name, description, content, created_at, updated_at
		FROM scl_documents
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	docs := make([]SCLDocument, 0)
	for rows.Next() {
		var doc SCLDocument
		if err := rows.Scan(&doc.ID, &doc.Name, &doc.Description, &doc.Content, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}

	return docs, nil
}

// DeleteDocument removes a stored document.
func (p *PostgresClient) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	result, err := p.pool.Exec(ctx, `DELETE FROM scl_documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}

	return nil
}
