package models

import (
	"strings"
	"time"
)

const (
	// DefaultFolderID is the reserved identifier of the folder that always exists
	DefaultFolderID = "default"
	// DefaultFolderName is the folder name that maps to DefaultFolderID
	DefaultFolderName = "Default"
	// DefaultFolderColor is used when a folder is created without a color
	DefaultFolderColor = "#007AFF"
	// UntitledNote replaces a blank title at save time
	UntitledNote = "Untitled Note"
)

// Note represents a single note
type Note struct {
	ID        string    `json:"id" cbor:"id"`
	Title     string    `json:"title" cbor:"title"`
	Content   string    `json:"content" cbor:"content"`
	FolderID  *string   `json:"folderId,omitempty" cbor:"folderId,omitempty"` // nil = unfiled
	CreatedAt time.Time `json:"createdAt" cbor:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" cbor:"updatedAt"`
}

// InFolder reports whether the note belongs to the folder with the given id
func (n *Note) InFolder(folderID string) bool {
	return n.FolderID != nil && *n.FolderID == folderID
}

// Folder represents a notes folder
type Folder struct {
	ID        string    `json:"id" cbor:"id"`
	Name      string    `json:"name" cbor:"name"`
	Color     string    `json:"color" cbor:"color"`
	CreatedAt time.Time `json:"createdAt" cbor:"createdAt"`
}

// IsDefault reports whether f is the undeletable default folder
func (f *Folder) IsDefault() bool {
	return f.ID == DefaultFolderID
}

// NoteUpdate holds the fields of a partial note update.
// A nil field is left untouched. FolderID pointing at "" moves the note
// back to unfiled.
type NoteUpdate struct {
	Title    *string
	Content  *string
	FolderID *string
}

// IsEmpty reports whether the update carries no fields at all
func (u NoteUpdate) IsEmpty() bool {
	return u.Title == nil && u.Content == nil && u.FolderID == nil
}

// Apply merges the update onto n
func (u NoteUpdate) Apply(n *Note) {
	if u.Title != nil {
		n.Title = *u.Title
	}
	if u.Content != nil {
		n.Content = *u.Content
	}
	if u.FolderID != nil {
		if *u.FolderID == "" {
			n.FolderID = nil
		} else {
			id := *u.FolderID
			n.FolderID = &id
		}
	}
}

// Draft is what an editor hands over on save. An empty ID means a new note.
type Draft struct {
	ID       string
	Title    string
	Content  string
	FolderID *string
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}

// AppendSentence joins dictated text onto content with a single space
func AppendSentence(content, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return content
	}
	if content == "" {
		return text
	}
	return content + " " + text
}
