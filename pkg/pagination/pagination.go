package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// Params is a page request. Cursor is the opaque NextCursor of the previous page.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the keyset position (created_at, id) of the last row served.
type Cursor struct {
	CreatedAt time.Time `json:"t"`
	ID        uuid.UUID `json:"id"`
}

// Size clamps the requested limit to [1, MaxLimit], defaulting to DefaultLimit.
func (p Params) Size() int {
	switch {
	case p.Limit <= 0:
		return DefaultLimit
	case p.Limit > MaxLimit:
		return MaxLimit
	default:
		return p.Limit
	}
}

// Position decodes the cursor. A blank cursor is the first page.
func (p Params) Position() (*Cursor, error) {
	raw := strings.TrimSpace(p.Cursor)
	if raw == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("cursor is not base64: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("cursor is malformed: %w", err)
	}
	if c.CreatedAt.IsZero() || c.ID == uuid.Nil {
		return nil, fmt.Errorf("cursor is incomplete")
	}
	return &c, nil
}

func (c Cursor) Encode() string {
	data, _ := json.Marshal(Cursor{CreatedAt: c.CreatedAt.UTC(), ID: c.ID})
	return base64.RawURLEncoding.EncodeToString(data)
}

// Keyset orders newest first and selects size+1 rows after cursor, so Split
// can tell whether another page exists.
func Keyset(cursor *Cursor, size int) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		q = q.Order("created_at DESC").Order("id DESC").Limit(size + 1)
		if cursor != nil {
			q = q.Where("created_at < ? OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
		}
		return q
	}
}

// Split cuts a Keyset result to size rows and returns the cursor of the next
// page, or "" on the last page.
func Split[T any](rows []T, size int, key func(T) Cursor) ([]T, string) {
	if len(rows) <= size {
		return rows, ""
	}
	rows = rows[:size]
	return rows, key(rows[size-1]).Encode()
}
