package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"jsonwidget.org/internal/documents"
	"jsonwidget.org/internal/ids"
)

var _ documents.Service = (*Store)(nil)

// errSaveRaced marks an insert that lost to a concurrent save of the same title.
var errSaveRaced = errors.New("concurrent insert of the same title")

// Save upserts the document by (user, title) and updates or creates its
// linked schema in the same transaction.
func (s *Store) Save(ctx context.Context, userID, title string, data, schema json.RawMessage) error {
	if err := documents.ValidateSave(title, data, schema); err != nil {
		return err
	}
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		err = s.saveOnce(ctx, userID, title, documents.Compact(data), documents.Compact(schema))
		if !errors.Is(err, errSaveRaced) {
			return err
		}
	}
	return err
}

func (s *Store) saveOnce(ctx context.Context, userID, title string, data, schema json.RawMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		docID    string
		schemaID sql.NullString
	)
	err = tx.QueryRowContext(ctx, `
		select id, schema_id from json_documents
		where user_id = $1 and title = $2
		for update
	`, userID, title).Scan(&docID, &schemaID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		newSchemaID := ids.New()
		if _, err := tx.ExecContext(ctx, `
			insert into json_schemas (id, user_id, schema) values ($1, $2, $3)
		`, newSchemaID, userID, []byte(schema)); err != nil {
			return fmt.Errorf("insert schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			insert into json_documents (id, user_id, title, data, schema_id, created_at, updated_at)
			values ($1, $2, $3, $4, $5, clock_timestamp(), clock_timestamp())
		`, ids.New(), userID, title, []byte(data), newSchemaID); err != nil {
			if isPgCode(err, pgErrUniqueViolation) {
				return errSaveRaced
			}
			return fmt.Errorf("insert document: %w", err)
		}
	case err != nil:
		return fmt.Errorf("lock document: %w", err)
	default:
		if schemaID.Valid {
			if _, err := tx.ExecContext(ctx, `
				update json_schemas set schema = $1, updated_at = clock_timestamp() where id = $2
			`, []byte(schema), schemaID.String); err != nil {
				return fmt.Errorf("update schema: %w", err)
			}
		} else {
			schemaID = sql.NullString{String: ids.New(), Valid: true}
			if _, err := tx.ExecContext(ctx, `
				insert into json_schemas (id, user_id, schema) values ($1, $2, $3)
			`, schemaID.String, userID, []byte(schema)); err != nil {
				return fmt.Errorf("insert schema: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `
			update json_documents
			set data = $1, schema_id = $2, updated_at = clock_timestamp()
			where id = $3
		`, []byte(data), schemaID.String, docID); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) Get(ctx context.Context, userID, title string) (documents.Document, error) {
	var (
		doc    documents.Document
		data   []byte
		schema []byte
	)
	err := s.db.QueryRowContext(ctx, `
		select d.title, d.data, sc.schema, d.created_at, d.updated_at
		from json_documents d
		left join json_schemas sc on sc.id = d.schema_id
		where d.user_id = $1 and d.title = $2
	`, userID, title).Scan(&doc.Title, &data, &schema, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return documents.Document{}, documents.ErrNotFound
	}
	if err != nil {
		return documents.Document{}, err
	}
	doc.Data = data
	doc.Schema = schema
	return doc, nil
}

func (s *Store) List(ctx context.Context, userID string) ([]documents.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		select title, updated_at from json_documents
		where user_id = $1
		order by updated_at desc, id desc
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []documents.Summary{}
	for rows.Next() {
		var (
			item    documents.Summary
			updated time.Time
		)
		if err := rows.Scan(&item.Title, &updated); err != nil {
			return nil, err
		}
		item.UpdatedAt = updated.UTC()
		out = append(out, item)
	}
	return out, rows.Err()
}

// Rename fails with ErrTitleConflict when newTitle is already taken.
func (s *Store) Rename(ctx context.Context, userID, oldTitle, newTitle string) error {
	if err := documents.ValidateRename(oldTitle, newTitle); err != nil {
		return err
	}
	if oldTitle == newTitle {
		var one int
		err := s.db.QueryRowContext(ctx, `
			select 1 from json_documents where user_id = $1 and title = $2
		`, userID, oldTitle).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return documents.ErrNotFound
		}
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		update json_documents set title = $3, updated_at = clock_timestamp()
		where user_id = $1 and title = $2
	`, userID, oldTitle, newTitle)
	if err != nil {
		if isPgCode(err, pgErrUniqueViolation) {
			return documents.ErrTitleConflict
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return documents.ErrNotFound
	}
	return nil
}

// Delete removes the document and its schema in one transaction.
func (s *Store) Delete(ctx context.Context, userID, title string) (bool, error) {
	if strings.TrimSpace(title) == "" {
		return false, documents.ErrInvalidInput
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var schemaID sql.NullString
	err = tx.QueryRowContext(ctx, `
		delete from json_documents where user_id = $1 and title = $2
		returning schema_id
	`, userID, title).Scan(&schemaID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete document: %w", err)
	}
	if schemaID.Valid {
		if _, err := tx.ExecContext(ctx, `delete from json_schemas where id = $1`, schemaID.String); err != nil {
			return false, fmt.Errorf("delete schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}
