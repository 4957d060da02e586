// internal/domain/models/card.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Card is a task inside a list. BoardID mirrors the board of ListID and is
// rewritten whenever the card moves to a list on another board.
type Card struct {
	ID           primitive.ObjectID  `bson:"_id" json:"id"`
	ListID       primitive.ObjectID  `bson:"list_id" json:"list_id"`
	BoardID      primitive.ObjectID  `bson:"board_id" json:"board_id"`
	Title        string              `bson:"title" json:"title"`
	Description  string              `bson:"description" json:"description"`
	Position     int                 `bson:"position" json:"position"`
	Priority     Priority            `bson:"priority" json:"priority"`
	DueDate      *time.Time          `bson:"due_date,omitempty" json:"due_date,omitempty"`
	Archived     bool                `bson:"archived" json:"archived"`
	CreatedByID  primitive.ObjectID  `bson:"created_by_id" json:"created_by_id"`
	AssignedToID *primitive.ObjectID `bson:"assigned_to_id,omitempty" json:"assigned_to_id,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// CardComment is shown newest first.
type CardComment struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	CardID   primitive.ObjectID `bson:"card_id" json:"card_id"`
	BoardID  primitive.ObjectID `bson:"board_id" json:"board_id"`
	AuthorID primitive.ObjectID `bson:"author_id" json:"author_id"`
	Body     string             `bson:"body" json:"body"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// CardAttachment records file metadata only; the bytes live in external storage
// under StorageKey.
type CardAttachment struct {
	ID           primitive.ObjectID `bson:"_id" json:"id"`
	CardID       primitive.ObjectID `bson:"card_id" json:"card_id"`
	BoardID      primitive.ObjectID `bson:"board_id" json:"board_id"`
	FileName     string             `bson:"file_name" json:"file_name"`
	ContentType  string             `bson:"content_type" json:"content_type"`
	Size         int64              `bson:"size" json:"size"`
	StorageKey   string             `bson:"storage_key" json:"storage_key"`
	UploadedByID primitive.ObjectID `bson:"uploaded_by_id" json:"uploaded_by_id"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
}

// Label is a board-scoped tag that can be attached to cards.
type Label struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	BoardID   primitive.ObjectID `bson:"board_id" json:"board_id"`
	Name      string             `bson:"name" json:"name"`
	Color     string             `bson:"color" json:"color"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// CardLabel joins a card and a label. One document per (card_id, label_id).
type CardLabel struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CardID    primitive.ObjectID `bson:"card_id" json:"card_id"`
	LabelID   primitive.ObjectID `bson:"label_id" json:"label_id"`
	BoardID   primitive.ObjectID `bson:"board_id" json:"board_id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
