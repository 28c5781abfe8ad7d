package persistence

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/labstock/backend/tests/testutil"
)

func newMockDatabase(t *testing.T) (*Database, *testutil.MockDB) {
	t.Helper()
	db := testutil.NewMockDB(t)
	return &Database{DB: db.DB}, db
}

func TestDatabase_Stats(t *testing.T) {
	db, mock := newMockDatabase(t)
	defer mock.Close()

	stats, err := db.Stats()

	assert.NoError(t, err)
	assert.GreaterOrEqual(t, stats.MaxOpenConnections, 0)
	assert.GreaterOrEqual(t, stats.OpenConnections, 0)
	assert.Equal(t, stats.OpenConnections, stats.InUse+stats.Idle)
	assert.GreaterOrEqual(t, stats.WaitCount, int64(0))
	assert.GreaterOrEqual(t, stats.WaitDuration, time.Duration(0))
}

func TestDatabase_Ping(t *testing.T) {
	db, mock := newMockDatabase(t)
	defer mock.Close()

	assert.NoError(t, db.Ping())
}

func TestDatabase_Close(t *testing.T) {
	db, mock := newMockDatabase(t)

	mock.Mock.ExpectClose()

	assert.NoError(t, db.Close())
	mock.ExpectationsWereMet(t)
}

func TestDatabase_Transaction(t *testing.T) {
	t.Run("commits on success", func(t *testing.T) {
		db, mock := newMockDatabase(t)
		defer mock.Close()

		type StockroomShelf struct {
			ID   uint
			Name string
		}

		mock.Mock.ExpectBegin()
		// The postgres driver issues INSERT ... RETURNING, so the
		// statement arrives as a query.
		mock.Mock.ExpectQuery(`INSERT INTO "stockroom_shelves"`).
			WithArgs("cold storage").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.Mock.ExpectCommit()

		err := db.Transaction(func(tx *gorm.DB) error {
			return tx.Create(&StockroomShelf{Name: "cold storage"}).Error
		})

		assert.NoError(t, err)
		mock.ExpectationsWereMet(t)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock := newMockDatabase(t)
		defer mock.Close()

		mock.Mock.ExpectBegin()
		mock.Mock.ExpectRollback()

		err := db.Transaction(func(tx *gorm.DB) error {
			return assert.AnError
		})

		assert.Error(t, err)
		mock.ExpectationsWereMet(t)
	})
}
