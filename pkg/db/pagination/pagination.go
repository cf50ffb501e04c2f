package pagination

import (
	"encoding/base64"
	"encoding/json"
)

type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size,default=50"`
}

type Cursor struct {
	ID        string `json:"id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token"`
	HasMore       bool   `json:"has_more"`
}

func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, err
	}
	return &cursor, nil
}

// NormalizeSize clamps a requested page size to [1, 250], defaulting to 50.
func NormalizeSize(size int) int {
	if size <= 0 {
		return 50
	}
	if size > 250 {
		return 250
	}
	return size
}

// Trim cuts a limit+1 result set down to limit and reports whether more rows exist.
func Trim[T any](data []T, limit int) ([]T, bool) {
	if len(data) > limit {
		return data[:limit], true
	}
	return data, false
}
