package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"jsonwidget.org/internal/documents"
	"jsonwidget.org/internal/tenant"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock
}

func verify(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSaveInsertsDocumentAndSchema(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("select id, schema_id from json_documents").
		WithArgs("u1", "doc1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("insert into json_schemas").
		WithArgs(sqlmock.AnyArg(), "u1", []byte(`{"type":"object"}`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into json_documents").
		WithArgs(sqlmock.AnyArg(), "u1", "doc1", []byte(`{"a":1}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.Save(context.Background(), "u1", "doc1", json.RawMessage(`{"a": 1}`), json.RawMessage(`{"type": "object"}`))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	verify(t, mock)
}

func TestSaveUpdatesExisting(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("select id, schema_id from json_documents").
		WithArgs("u1", "doc1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "schema_id"}).AddRow("d1", "s1"))
	mock.ExpectExec("update json_schemas set schema").
		WithArgs([]byte(`{}`), "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("update json_documents").
		WithArgs([]byte(`[1]`), "s1", "d1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.Save(context.Background(), "u1", "doc1", json.RawMessage(`[1]`), json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	verify(t, mock)
}

func TestSaveRetriesAfterConcurrentInsert(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("select id, schema_id from json_documents").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("insert into json_schemas").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into json_documents").WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery("select id, schema_id from json_documents").
		WillReturnRows(sqlmock.NewRows([]string{"id", "schema_id"}).AddRow("d1", "s1"))
	mock.ExpectExec("update json_schemas set schema").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("update json_documents").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.Save(context.Background(), "u1", "doc1", json.RawMessage(`{}`), json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	verify(t, mock)
}

func TestSaveRejectsInvalidInput(t *testing.T) {
	store, mock := newMock(t)
	err := store.Save(context.Background(), "u1", "doc", json.RawMessage(`null`), json.RawMessage(`{}`))
	if !errors.Is(err, documents.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	verify(t, mock)
}

func TestGetDocument(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery("from json_documents d").
		WithArgs("u1", "doc1").
		WillReturnRows(sqlmock.NewRows([]string{"title", "data", "schema", "created_at", "updated_at"}).
			AddRow("doc1", []byte(`{"a":1}`), []byte(`{"type":"object"}`), now, now))
	mock.ExpectQuery("from json_documents d").
		WithArgs("u1", "missing").
		WillReturnError(sql.ErrNoRows)

	doc, err := store.Get(context.Background(), "u1", "doc1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(doc.Data) != `{"a":1}` || string(doc.Schema) != `{"type":"object"}` {
		t.Fatalf("unexpected doc: %s %s", doc.Data, doc.Schema)
	}
	if _, err := store.Get(context.Background(), "u1", "missing"); !errors.Is(err, documents.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	verify(t, mock)
}

func TestListOrdersByRecency(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery("order by updated_at desc, id desc").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"title", "updated_at"}).
			AddRow("B", now).
			AddRow("A", now.Add(-time.Minute)))

	list, err := store.List(context.Background(), "u1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].Title != "B" {
		t.Fatalf("unexpected list: %+v", list)
	}
	verify(t, mock)
}

func TestRenameOutcomes(t *testing.T) {
	store, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectExec("update json_documents set title").
		WithArgs("u1", "old", "new").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("update json_documents set title").
		WithArgs("u1", "ghost", "new").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("update json_documents set title").
		WithArgs("u1", "a", "b").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	if err := store.Rename(ctx, "u1", "old", "new"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if err := store.Rename(ctx, "u1", "ghost", "new"); !errors.Is(err, documents.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Rename(ctx, "u1", "a", "b"); !errors.Is(err, documents.ErrTitleConflict) {
		t.Fatalf("expected ErrTitleConflict, got %v", err)
	}
	verify(t, mock)
}

func TestDeleteRemovesSchemaInSameTransaction(t *testing.T) {
	store, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery("delete from json_documents").
		WithArgs("u1", "doc1").
		WillReturnRows(sqlmock.NewRows([]string{"schema_id"}).AddRow("s1"))
	mock.ExpectExec("delete from json_schemas").WithArgs("s1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectQuery("delete from json_documents").
		WithArgs("u1", "doc1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	removed, err := store.Delete(ctx, "u1", "doc1")
	if err != nil || !removed {
		t.Fatalf("first delete: %v %v", removed, err)
	}
	removed, err = store.Delete(ctx, "u1", "doc1")
	if err != nil || removed {
		t.Fatalf("second delete: %v %v", removed, err)
	}
	verify(t, mock)
}

func TestDeleteRollsBackWhenSchemaDeleteFails(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("delete from json_documents").
		WillReturnRows(sqlmock.NewRows([]string{"schema_id"}).AddRow("s1"))
	mock.ExpectExec("delete from json_schemas").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	if _, err := store.Delete(context.Background(), "u1", "doc1"); err == nil {
		t.Fatal("expected error")
	}
	verify(t, mock)
}

func TestWidgetFindJoinsClient(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()
	id := "6f1c2a9e-3b7d-4c1e-9a5f-2d8e7b4c1a03"

	mock.ExpectQuery("from widgets w join clients c").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "client_id", "name", "secret", "locale", "enabled", "client_enabled", "created_at", "updated_at"}).
			AddRow(id, "c1", "Demo", "s3cret", "en", true, false, now, now))
	mock.ExpectQuery("from widgets w join clients c").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	w, err := store.Widgets(context.Background()).Find(context.Background(), id)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if w.Secret != "s3cret" || w.Active() {
		t.Fatalf("expected inactive widget with secret, got %+v", w)
	}
	if _, err := store.Widgets(context.Background()).Find(context.Background(), "missing"); !errors.Is(err, tenant.ErrNotFound) {
		t.Fatalf("expected tenant.ErrNotFound, got %v", err)
	}
	verify(t, mock)
}

func TestUserCreateMapsConstraintErrors(t *testing.T) {
	store, mock := newMock(t)
	users := store.Users(context.Background())

	mock.ExpectQuery("insert into users").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})
	mock.ExpectQuery("insert into users").
		WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation})

	if err := users.Create(context.Background(), &tenant.User{WidgetID: "w1", Email: "A@Example.com"}); !errors.Is(err, tenant.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if err := users.Create(context.Background(), &tenant.User{WidgetID: "nope", Email: "b@example.com"}); !errors.Is(err, tenant.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	verify(t, mock)
}

func TestRotateSecretUnknownWidget(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("update widgets set secret").
		WithArgs("w1", "fresh").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Widgets(context.Background()).RotateSecret(context.Background(), "w1", "fresh")
	if !errors.Is(err, tenant.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	verify(t, mock)
}
