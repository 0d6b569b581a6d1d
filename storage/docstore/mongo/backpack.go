package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/smartbackpack/core/backpack"
)

type homeworkDoc struct {
	ID            string    `bson:"_id"`
	Title         string    `bson:"title"`
	Subject       string    `bson:"subject"`
	DueDate       string    `bson:"due_date"`
	RequiredBooks []string  `bson:"required_books"`
	CreatedBy     string    `bson:"created_by"`
	CreatedAt     time.Time `bson:"created_at"`
}

func (d homeworkDoc) toHomework() backpack.Homework {
	return backpack.Homework{
		ID:            d.ID,
		Title:         d.Title,
		Subject:       d.Subject,
		DueDate:       d.DueDate,
		RequiredBooks: d.RequiredBooks,
		CreatedBy:     d.CreatedBy,
		CreatedAt:     d.CreatedAt.UTC(),
	}
}

type backpackDoc struct {
	StudentID string    `bson:"_id"`
	Books     []string  `bson:"books"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type backpackRepository struct {
	homework  *mongo.Collection
	backpacks *mongo.Collection
}

var _ backpack.Repository = (*backpackRepository)(nil)

func NewBackpackRepository(db *mongo.Database) backpack.Repository {
	return &backpackRepository{homework: db.Collection(homeworkCol), backpacks: db.Collection(backpacksCol)}
}

func (repo *backpackRepository) CreateHomework(ctx context.Context, hw backpack.Homework) (backpack.Homework, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := repo.homework.InsertOne(ctx, homeworkDoc{
		ID:            hw.ID,
		Title:         hw.Title,
		Subject:       hw.Subject,
		DueDate:       hw.DueDate,
		RequiredBooks: hw.RequiredBooks,
		CreatedBy:     hw.CreatedBy,
		CreatedAt:     hw.CreatedAt,
	})
	if err != nil {
		return backpack.Homework{}, errors.Wrap(err, "inserting homework")
	}
	return hw, nil
}

func (repo *backpackRepository) QueryHomework(ctx context.Context) ([]backpack.Homework, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cur, err := repo.homework.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "querying homework")
	}
	docs, err := decodeAll[homeworkDoc](ctx, cur)
	if err != nil {
		return nil, errors.Wrap(err, "decoding homework")
	}
	hws := make([]backpack.Homework, 0, len(docs))
	for _, d := range docs {
		hws = append(hws, d.toHomework())
	}
	return hws, nil
}

func (repo *backpackRepository) GetHomeworkByID(ctx context.Context, id string) (backpack.Homework, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var doc homeworkDoc
	if err := repo.homework.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return backpack.Homework{}, backpack.ErrHomeworkNotFound
		}
		return backpack.Homework{}, errors.Wrap(err, "finding homework")
	}
	return doc.toHomework(), nil
}

func (repo *backpackRepository) UpdateHomework(ctx context.Context, hw backpack.Homework) (backpack.Homework, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	set := bson.M{
		"title":          hw.Title,
		"subject":        hw.Subject,
		"due_date":       hw.DueDate,
		"required_books": hw.RequiredBooks,
	}
	var updated homeworkDoc
	err := repo.homework.FindOneAndUpdate(ctx, bson.M{"_id": hw.ID}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&updated)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return backpack.Homework{}, backpack.ErrHomeworkNotFound
		}
		return backpack.Homework{}, errors.Wrap(err, "updating homework")
	}
	return updated.toHomework(), nil
}

func (repo *backpackRepository) DeleteHomework(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := repo.homework.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return errors.Wrap(err, "deleting homework")
	}
	return nil
}

func (repo *backpackRepository) GetBackpack(ctx context.Context, studentID string) (backpack.Backpack, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var doc backpackDoc
	if err := repo.backpacks.FindOne(ctx, bson.M{"_id": studentID}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return backpack.Backpack{}, backpack.ErrBackpackNotFound
		}
		return backpack.Backpack{}, errors.Wrap(err, "finding backpack")
	}
	return backpack.Backpack{StudentID: doc.StudentID, Books: doc.Books, UpdatedAt: doc.UpdatedAt.UTC()}, nil
}

func (repo *backpackRepository) SaveBackpack(ctx context.Context, bp backpack.Backpack) (backpack.Backpack, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	doc := backpackDoc{StudentID: bp.StudentID, Books: bp.Books, UpdatedAt: bp.UpdatedAt}
	_, err := repo.backpacks.ReplaceOne(ctx, bson.M{"_id": bp.StudentID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return backpack.Backpack{}, errors.Wrap(err, "saving backpack")
	}
	return bp, nil
}
