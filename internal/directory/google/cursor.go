package google

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/relaysync/internal/core/domain"
)

// CursorVersion is the current cursor format version.
const CursorVersion = 1

// Cursor tracks incremental sync position for one Google service.
//
// SyncToken is the server-issued token a completed enumeration ends
// with; the next pass replays only changes since then. PageToken is the
// in-flight position inside an enumeration, set while HasMore pages
// remain so an interrupted pass resumes at a page boundary.
type Cursor struct {
	// Version is the cursor format version for future compatibility.
	Version int `json:"v"`
	// SyncToken is the token for the next incremental listing.
	SyncToken string `json:"sync_token,omitempty"`
	// PageToken resumes a partially consumed enumeration.
	PageToken string `json:"page_token,omitempty"`
}

// NewCursor creates a new empty cursor.
func NewCursor() *Cursor {
	return &Cursor{Version: CursorVersion}
}

// Encode serialises the cursor to a base64 string for storage.
func (c *Cursor) Encode() string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeCursor deserialises a cursor from a base64 string.
func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return NewCursor(), nil
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCursor, err)
	}

	var cursor Cursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCursor, err)
	}

	// Version check for future migrations
	if cursor.Version > CursorVersion {
		return nil, fmt.Errorf("%w: unsupported cursor version %d", domain.ErrInvalidCursor, cursor.Version)
	}

	return &cursor, nil
}

// IsEmpty returns true if the cursor has no sync state.
func (c *Cursor) IsEmpty() bool {
	return c.SyncToken == "" && c.PageToken == ""
}
