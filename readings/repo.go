package readings

import (
	"context"
	"fmt"
	"time"

	"github.com/glucolab/agp/glucose"
	"github.com/glucolab/agp/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const readingsCollectionName = "readings"

type document struct {
	PatientID string    `bson:"patientId"`
	Time      time.Time `bson:"time"`
	Value     float64   `bson:"value"`
}

func NewRepository(db *mongo.Database, logger *zap.SugaredLogger, lifecycle fx.Lifecycle) (Repository, error) {
	repo := &repository{
		collection: db.Collection(readingsCollectionName),
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
				{Key: "patientId", Value: 1},
				{Key: "time", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetName("UniquePatientTime"),
		},
	})
	return err
}

func (r *repository) Add(ctx context.Context, patientID string, incoming []glucose.Reading) (int, error) {
	documents := make([]interface{}, len(incoming))
	for i, reading := range incoming {
		documents[i] = document{
			PatientID: patientID,
			Time:      reading.Time.UTC(),
			Value:     reading.Value,
		}
	}

	opts := options.InsertMany().SetOrdered(false)
	res, err := r.collection.InsertMany(ctx, documents, opts)
	inserted := 0
	if res != nil {
		inserted = len(res.InsertedIDs)
	}
	if err != nil {
		// Duplicate timestamps mean the readings were already ingested;
		// unordered insert stored the rest of the batch.
		if store.IsDuplicateKeyError(err) {
			r.logger.Debugw("skipped already ingested readings",
				"patientId", patientID,
				"batch", len(incoming),
				"inserted", inserted)
			return inserted, nil
		}
		return inserted, fmt.Errorf("error inserting readings: %w", err)
	}
	return inserted, nil
}

func (r *repository) GetSeries(ctx context.Context, patientID string, from, to time.Time) (*glucose.Series, error) {
	selector := bson.M{"patientId": patientID}
	window := bson.M{}
	if !from.IsZero() {
		window["$gte"] = from.UTC()
	}
	if !to.IsZero() {
		window["$lte"] = to.UTC()
	}
	if len(window) > 0 {
		selector["time"] = window
	}

	opts := options.Find().SetSort(bson.D{{Key: "time", Value: 1}})
	cursor, err := r.collection.Find(ctx, selector, opts)
	if err != nil {
		return nil, fmt.Errorf("error fetching readings: %w", err)
	}

	var documents []document
	if err := cursor.All(ctx, &documents); err != nil {
		return nil, fmt.Errorf("error decoding readings: %w", err)
	}
	if len(documents) == 0 {
		return nil, ErrNoReadings
	}

	result := make([]glucose.Reading, len(documents))
	for i, doc := range documents {
		result[i] = glucose.Reading{Time: doc.Time, Value: doc.Value}
	}
	return glucose.NewSeries(patientID, result)
}
