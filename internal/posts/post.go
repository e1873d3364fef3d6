package posts

import (
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrPostNotFound            = errors.New("post not found")
	ErrPostTitleOrContentEmpty = errors.New("post title or content empty")
	ErrPostAuthorEmpty         = errors.New("post author empty")
	ErrUpdateFieldsEmpty       = errors.New("no fields to update")
)

// Author is persisted in its structured form; the single display
// string sent over the wire is derived at serialization time.
type Author struct {
	FirstName string `bson:"first_name" json:"first_name"`
	LastName  string `bson:"last_name" json:"last_name"`
}

func (a Author) DisplayName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

func (a Author) Empty() bool {
	return a.FirstName == "" && a.LastName == ""
}

type Post struct {
	ID      primitive.ObjectID `bson:"_id,omitempty"`
	Author  Author             `bson:"author"`
	Title   string             `bson:"title"`
	Content string             `bson:"content"`
	Created time.Time          `bson:"created"`
}
