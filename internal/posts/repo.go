package posts

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "posts"

var _ postsRepo = (*Repo)(nil)

type Repo struct {
	posts *mongo.Collection
}

func NewRepo(database *mongo.Database) *Repo {
	return &Repo{
		posts: database.Collection(collectionName),
	}
}

func (r *Repo) Add(ctx context.Context, post *Post) error {
	if post.Title == "" || post.Content == "" {
		return ErrPostTitleOrContentEmpty
	}
	if post.Author.Empty() {
		return ErrPostAuthorEmpty
	}

	if post.Created.IsZero() {
		post.Created = time.Now()
	}

	res, err := r.posts.InsertOne(ctx, post)
	if err != nil {
		return err
	}

	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return errors.New("unexpected error, inserted post id has invalid type")
	}

	post.ID = id
	return nil
}

// InsertMany persists the given posts in order, assigning ids and default
// timestamps. Used for test fixture seeding, not part of the HTTP surface.
func (r *Repo) InsertMany(ctx context.Context, newPosts []*Post) error {
	if len(newPosts) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(newPosts))
	for _, post := range newPosts {
		if post.Created.IsZero() {
			post.Created = time.Now()
		}
		docs = append(docs, post)
	}

	res, err := r.posts.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err != nil {
		return err
	}

	for i, insertedID := range res.InsertedIDs {
		id, ok := insertedID.(primitive.ObjectID)
		if !ok {
			return errors.New("unexpected error, inserted post id has invalid type")
		}
		newPosts[i].ID = id
	}

	return nil
}

func (r *Repo) Get(ctx context.Context, id primitive.ObjectID) (*Post, error) {
	var post Post
	err := r.posts.FindOne(ctx, bson.M{"_id": id}).Decode(&post)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// FindOne returns an arbitrary single post, with no ordering guarantee.
func (r *Repo) FindOne(ctx context.Context) (*Post, error) {
	var post Post
	err := r.posts.FindOne(ctx, bson.M{}).Decode(&post)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *Repo) All(ctx context.Context) ([]*Post, error) {
	cursor, err := r.posts.Find(
		ctx,
		bson.M{},
		options.Find().SetSort(bson.D{{Key: "created", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}

	var allPosts []*Post
	if err := cursor.All(ctx, &allPosts); err != nil {
		return nil, err
	}
	return allPosts, nil
}

func (r *Repo) Count(ctx context.Context) (int64, error) {
	return r.posts.CountDocuments(ctx, bson.M{})
}

// UpdateFields carries the post fields to be replaced; zero values
// mean the field was not supplied and stays untouched.
type UpdateFields struct {
	Author  *Author
	Title   string
	Content string
}

// Update replaces the supplied fields of the post.
// The id and the created timestamp are never updated.
func (r *Repo) Update(ctx context.Context, id primitive.ObjectID, fields UpdateFields) error {
	set := bson.M{}
	if fields.Author != nil {
		if fields.Author.Empty() {
			return ErrPostAuthorEmpty
		}
		set["author"] = *fields.Author
	}
	if fields.Title != "" {
		set["title"] = fields.Title
	}
	if fields.Content != "" {
		set["content"] = fields.Content
	}
	if len(set) == 0 {
		return ErrUpdateFieldsEmpty
	}

	res, err := r.posts.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return err
	}

	if res.MatchedCount == 0 {
		return ErrPostNotFound
	}

	return nil
}

func (r *Repo) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.posts.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}

	if res.DeletedCount == 0 {
		return ErrPostNotFound
	}

	return nil
}

// Drop destroys the whole posts collection. Test teardown only.
func (r *Repo) Drop(ctx context.Context) error {
	log.Warnf("dropping collection [%s]", collectionName)
	return r.posts.Drop(ctx)
}
