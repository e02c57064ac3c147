package shared

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// ErrInvalidCursor is returned when a client-supplied cursor cannot be decoded.
var ErrInvalidCursor = errors.New("shared: invalid cursor")

// Cursor is the opaque pagination key used by every list endpoint that orders
// rows by (creation_instant, id). Encoding it as base64url JSON keeps it
// opaque to clients while remaining trivial to construct and parse.
type Cursor struct {
	CreatedAt time.Time `json:"t"`
	ID        string    `json:"i"`
}

// Encode renders the cursor as an opaque base64url string.
func (c Cursor) Encode() string {
	raw, _ := json.Marshal(c)
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(raw)
}

// DecodeCursor parses a cursor previously produced by Cursor.Encode. An empty
// string decodes to the zero Cursor with no error, representing "start of list".
func DecodeCursor(s string) (Cursor, error) {
	if s == "" {
		return Cursor{}, nil
	}
	raw, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(s)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	return c, nil
}
