package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type testModel struct {
	ID   int
	Name string `gorm:"uniqueIndex"`
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return dbtest.Open(t, &testModel{})
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := Wrap(db)

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestPing(t *testing.T) {
	client := Wrap(newTestDB(t))
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	db := newTestDB(t)
	if err := db.Create(&testModel{Name: "dup"}).Error; err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	err := db.Create(&testModel{Name: "dup"}).Error
	if err == nil {
		t.Fatal("expected unique constraint error")
	}

	cases := map[string]struct {
		err  error
		want bool
	}{
		"sqlite":    {err, true},
		"pgx":       {fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), true},
		"pgx other": {&pgconn.PgError{Code: "23503"}, false},
		"lib/pq":    {&pq.Error{Code: "23505"}, true},
		"gorm":      {gorm.ErrDuplicatedKey, true},
		"unrelated": {errors.New("connection reset"), false},
		"nil":       {nil, false},
	}
	for name, tc := range cases {
		if got := IsUniqueViolation(tc.err); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", name, tc.want, got)
		}
	}
}

func TestLockForUpdateSkipsSQLite(t *testing.T) {
	db := newTestDB(t)
	var rows []testModel
	if err := LockForUpdate(db.Model(&testModel{})).Find(&rows).Error; err != nil {
		t.Fatalf("locked query failed on sqlite: %v", err)
	}
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	db := newTestDB(t)
	client := Wrap(db)

	func() {
		defer func() { _ = recover() }()
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			tx.Create(&testModel{Name: "panicked"})
			panic("boom")
		})
	}()

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected panic to roll back, found %d rows", count)
	}
}

func TestQueryLoggerReportsSlowAndFailedQueries(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "db-test", Output: buf})
	db := newTestDB(t).Session(&gorm.Session{Logger: newQueryLogger(logg, time.Nanosecond)})

	var rows []testModel
	if err := db.Find(&rows).Error; err != nil {
		t.Fatalf("find: %v", err)
	}
	if !strings.Contains(buf.String(), "slow query") || !strings.Contains(buf.String(), `"sql"`) {
		t.Fatalf("expected slow query entry, got %q", buf.String())
	}

	buf.Reset()
	quiet := newTestDB(t).Session(&gorm.Session{Logger: newQueryLogger(logg, 0)})
	var one testModel
	if err := quiet.First(&one).Error; !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("record not found must not be logged, got %q", buf.String())
	}

	_ = quiet.Exec("SELECT * FROM missing_table").Error
	if !strings.Contains(buf.String(), "query failed") {
		t.Fatalf("expected failed query entry, got %q", buf.String())
	}
}
