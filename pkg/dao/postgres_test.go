package dao

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-functions/pkg/clients/postgres"
	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
)

// testTime returns a fixed timestamp for row fixtures.
func testTime(t *testing.T) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, "2025-06-01T12:00:00Z")
	require.NoError(t, err)
	return ts
}

// newMockStore returns a PostgresStore backed by a pgxmock pool. The
// caller is responsible for asserting expectations and closing the mock.
func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	client := postgres.NewFromPool(mock, &postgres.Config{Database: "functions"})
	store, err := NewPostgresStore(client, "")
	require.NoError(t, err)
	return store, mock
}

func TestNewPostgresStore(t *testing.T) {
	t.Parallel()

	_, err := NewPostgresStore(nil, "")
	require.Error(t, err)
	assert.True(t, sserr.HasCode(err, sserr.CodeValidation))

	store, mock := newMockStore(t)
	defer mock.Close()
	assert.Equal(t, DefaultTable, store.table)
}

func TestPostgresStore_EnsureSchema(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS documents").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get(t *testing.T) {
	t.Parallel()

	t.Run("Found", func(t *testing.T) {
		t.Parallel()

		store, mock := newMockStore(t)
		defer mock.Close()

		mock.ExpectQuery("SELECT body, created_at, updated_at FROM documents").
			WithArgs("orders", "o-1").
			WillReturnRows(pgxmock.NewRows([]string{"body", "created_at", "updated_at"}).
				AddRow([]byte(`{"total":12}`), testTime(t), testTime(t)))

		doc, err := store.Get(context.Background(), "orders", "o-1")
		require.NoError(t, err)
		assert.Equal(t, "orders", doc.Collection)
		assert.Equal(t, "o-1", doc.ID)
		assert.JSONEq(t, `{"total":12}`, string(doc.Body))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		t.Parallel()

		store, mock := newMockStore(t)
		defer mock.Close()

		mock.ExpectQuery("SELECT body, created_at, updated_at FROM documents").
			WithArgs("orders", "absent").
			WillReturnRows(pgxmock.NewRows([]string{"body", "created_at", "updated_at"}))

		_, err := store.Get(context.Background(), "orders", "absent")
		require.Error(t, err)
		assert.True(t, sserr.HasCode(err, sserr.CodeNotFoundResource))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("EmptyArguments", func(t *testing.T) {
		t.Parallel()

		store, mock := newMockStore(t)
		defer mock.Close()

		_, err := store.Get(context.Background(), "", "o-1")
		require.Error(t, err)
		assert.True(t, sserr.HasCode(err, sserr.CodeValidation))
	})
}

func TestPostgresStore_Put(t *testing.T) {
	t.Parallel()

	t.Run("Upsert", func(t *testing.T) {
		t.Parallel()

		store, mock := newMockStore(t)
		defer mock.Close()

		mock.ExpectExec("INSERT INTO documents").
			WithArgs("orders", "o-1", json.RawMessage(`{"total":12}`), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		doc := &Document{Collection: "orders", ID: "o-1", Body: json.RawMessage(`{"total":12}`)}
		require.NoError(t, store.Put(context.Background(), doc))
		assert.False(t, doc.UpdatedAt.IsZero())
		assert.False(t, doc.CreatedAt.IsZero())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("InvalidDocument", func(t *testing.T) {
		t.Parallel()

		store, mock := newMockStore(t)
		defer mock.Close()

		doc := &Document{Collection: "orders", ID: "o-1", Body: json.RawMessage(`{broken`)}
		err := store.Put(context.Background(), doc)
		require.Error(t, err)
		assert.True(t, sserr.HasCode(err, sserr.CodeValidation))
	})

	t.Run("StorageFailure", func(t *testing.T) {
		t.Parallel()

		store, mock := newMockStore(t)
		defer mock.Close()

		mock.ExpectExec("INSERT INTO documents").
			WithArgs("orders", "o-1", json.RawMessage(`{}`), pgxmock.AnyArg()).
			WillReturnError(errors.New("connection reset"))

		doc := &Document{Collection: "orders", ID: "o-1", Body: json.RawMessage(`{}`)}
		err := store.Put(context.Background(), doc)
		require.Error(t, err)
		assert.True(t, sserr.HasCode(err, sserr.CodeInternalStorage))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_Delete(t *testing.T) {
	t.Parallel()

	t.Run("Found", func(t *testing.T) {
		t.Parallel()

		store, mock := newMockStore(t)
		defer mock.Close()

		mock.ExpectExec("DELETE FROM documents").
			WithArgs("orders", "o-1").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		require.NoError(t, store.Delete(context.Background(), "orders", "o-1"))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		t.Parallel()

		store, mock := newMockStore(t)
		defer mock.Close()

		mock.ExpectExec("DELETE FROM documents").
			WithArgs("orders", "absent").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		err := store.Delete(context.Background(), "orders", "absent")
		require.Error(t, err)
		assert.True(t, sserr.HasCode(err, sserr.CodeNotFoundResource))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_List(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, body, created_at, updated_at FROM documents").
		WithArgs("orders", DefaultListLimit, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "body", "created_at", "updated_at"}).
			AddRow("o-1", []byte(`{"total":12}`), testTime(t), testTime(t)).
			AddRow("o-2", []byte(`{"total":7}`), testTime(t), testTime(t)))

	docs, err := store.List(context.Background(), "orders", 0, 0)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "o-1", docs[0].ID)
	assert.Equal(t, "orders", docs[0].Collection)
	assert.JSONEq(t, `{"total":7}`, string(docs[1].Body))
	require.NoError(t, mock.ExpectationsWereMet())
}
