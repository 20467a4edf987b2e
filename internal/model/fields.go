package model

import "time"

// Document field names match the original collection layout so existing data
// keeps working: camelCase keys in the `checklist`, `history`, and `users`
// collections.

// Fields returns the document representation of an item, without its ID.
func (i ChecklistItem) Fields() map[string]any {
	f := map[string]any{
		"title":      i.Title,
		"completed":  i.Completed,
		"repeatable": i.Repeatable,
		"userId":     i.UserID,
		"createdAt":  i.CreatedAt,
		"updatedAt":  i.UpdatedAt,
	}
	if i.Description != "" {
		f["description"] = i.Description
	}
	if i.CompletedAt != nil {
		f["completedAt"] = *i.CompletedAt
	}
	return f
}

func ItemFromFields(id string, f map[string]any) ChecklistItem {
	return ChecklistItem{
		ID:          id,
		Title:       stringField(f, "title"),
		Description: stringField(f, "description"),
		Completed:   boolField(f, "completed"),
		Repeatable:  boolField(f, "repeatable"),
		UserID:      stringField(f, "userId"),
		CreatedAt:   timeField(f, "createdAt"),
		UpdatedAt:   timeField(f, "updatedAt"),
		CompletedAt: timePtrField(f, "completedAt"),
	}
}

// Fields returns the stored representation of a history record. ItemTitle is
// derived at read time and never persisted.
func (h HistoryRecord) Fields() map[string]any {
	f := map[string]any{
		"itemId":      h.ItemID,
		"userId":      h.UserID,
		"completedAt": h.CompletedAt,
	}
	if h.UncheckedAt != nil {
		f["uncheckedAt"] = *h.UncheckedAt
	}
	return f
}

func HistoryFromFields(id string, f map[string]any) HistoryRecord {
	return HistoryRecord{
		ID:          id,
		ItemID:      stringField(f, "itemId"),
		UserID:      stringField(f, "userId"),
		CompletedAt: timeField(f, "completedAt"),
		UncheckedAt: timePtrField(f, "uncheckedAt"),
	}
}

func UserFromFields(id string, f map[string]any) User {
	return User{
		ID:          id,
		Email:       stringField(f, "email"),
		DisplayName: stringField(f, "displayName"),
		IsAdmin:     boolField(f, "isAdmin"),
		CreatedAt:   timeField(f, "createdAt"),
		LastLogin:   timePtrField(f, "lastLogin"),
	}
}

func stringField(f map[string]any, key string) string {
	s, _ := f[key].(string)
	return s
}

func boolField(f map[string]any, key string) bool {
	switch v := f[key].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case float64:
		return v != 0
	}
	return false
}

// timeField accepts both time.Time (in-memory store) and RFC 3339 strings
// (JSON-backed store).
func timeField(f map[string]any, key string) time.Time {
	switch v := f[key].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func timePtrField(f map[string]any, key string) *time.Time {
	if _, ok := f[key]; !ok {
		return nil
	}
	t := timeField(f, key)
	if t.IsZero() {
		return nil
	}
	return &t
}
