package model

import "time"

type ChecklistItem struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Completed   bool       `json:"completed"`
	Repeatable  bool       `json:"repeatable"`
	UserID      string     `json:"user_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	// CompletedAt records the most recent completion. It is not cleared when
	// the item is toggled back to incomplete.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type HistoryRecord struct {
	ID          string     `json:"id"`
	ItemID      string     `json:"item_id"`
	UserID      string     `json:"user_id"`
	CompletedAt time.Time  `json:"completed_at"`
	// UncheckedAt is reserved; nothing writes it yet.
	UncheckedAt *time.Time `json:"unchecked_at,omitempty"`
	// ItemTitle is filled in from the current item document when history is
	// listed. Not stored on the record itself.
	ItemTitle string `json:"item_title,omitempty"`
}

type User struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	IsAdmin     bool       `json:"is_admin"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
}

type ChecklistStats struct {
	TotalItems     int        `json:"total_items"`
	CompletedItems int        `json:"completed_items"`
	LastCompleted  *time.Time `json:"last_completed"`
}
