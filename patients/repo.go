package patients

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/glucolab/agp/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const patientsCollectionName = "patients"

func NewRepository(db *mongo.Database, logger *zap.SugaredLogger, lifecycle fx.Lifecycle) (Repository, error) {
	repo := &repository{
		collection: db.Collection(patientsCollectionName),
		logger:     logger,
	}

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return repo.Initialize(ctx)
		},
	})

	return repo, nil
}

type repository struct {
	collection *mongo.Collection
	logger     *zap.SugaredLogger
}

func (r *repository) Initialize(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "mrn", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.D{
					{Key: "mrn", Value: bson.D{{Key: "$exists", Value: true}}},
				}).
				SetName("UniqueMrn"),
		},
		{
			Keys: bson.D{
				{Key: "fullName", Value: 1},
			},
			Options: options.Index().
				SetName("FullName"),
		},
	})
	return err
}

func (r *repository) Create(ctx context.Context, patient Patient) (*Patient, error) {
	now := time.Now().UTC()
	patient.CreatedAt = now
	patient.UpdatedAt = now

	res, err := r.collection.InsertOne(ctx, patient)
	if err != nil {
		if store.IsDuplicateKeyError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("error creating patient: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		patient.ID = &id
	}
	return &patient, nil
}

func (r *repository) Get(ctx context.Context, id string) (*Patient, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	patient := &Patient{}
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(patient)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return patient, nil
}

func (r *repository) List(ctx context.Context, filter *Filter, pagination store.Pagination) (*ListResult, error) {
	selector := bson.M{}
	if filter != nil {
		if filter.Mrn != nil {
			selector["mrn"] = *filter.Mrn
		}
		if filter.Search != nil {
			selector["fullName"] = bson.M{"$regex": primitive.Regex{
				Pattern: regexp.QuoteMeta(*filter.Search),
				Options: "i",
			}}
		}
	}

	count, err := r.collection.CountDocuments(ctx, selector)
	if err != nil {
		return nil, fmt.Errorf("error counting patients: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "fullName", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(pagination.Offset)).
		SetLimit(int64(pagination.Limit))
	cursor, err := r.collection.Find(ctx, selector, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing patients: %w", err)
	}

	result := &ListResult{TotalCount: int(count), Patients: make([]*Patient, 0)}
	if err := cursor.All(ctx, &result.Patients); err != nil {
		return nil, fmt.Errorf("error decoding patients: %w", err)
	}
	return result, nil
}
