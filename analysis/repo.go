package analysis

import (
	"context"
	"fmt"

	"github.com/glucolab/agp/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const reportsCollectionName = "reports"

//go:generate mockgen --build_flags=--mod=mod -source=./analysis.go -destination=./test/mock_repository.go -package test MockRepository

func NewRepository(db *mongo.Database, logger *zap.SugaredLogger, lifecycle fx.Lifecycle) (Repository, error) {
	repo := &repository{
		collection: db.Collection(reportsCollectionName),
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
				{Key: "reportId", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetName("UniqueReportId"),
		},
		{
			Keys: bson.D{
				{Key: "patientId", Value: 1},
				{Key: "seriesHash", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetName("UniquePatientSeries"),
		},
		{
			Keys: bson.D{
				{Key: "patientId", Value: 1},
				{Key: "generatedAt", Value: -1},
			},
			Options: options.Index().
				SetName("PatientGeneratedAt"),
		},
		{
			Keys: bson.D{
				{Key: "brittleness.category", Value: 1},
				{Key: "generatedAt", Value: -1},
			},
			Options: options.Index().
				SetName("CategoryGeneratedAt"),
		},
	})
	return err
}

// Create inserts the report. Reports are write-once: there are no update
// paths, and a second report for the same series is rejected.
func (r *repository) Create(ctx context.Context, report *Report) error {
	if report == nil {
		return fmt.Errorf("report object is missing")
	}
	if report.PatientID == "" {
		return fmt.Errorf("report missing patient id")
	}
	if report.ReportID == "" {
		return fmt.Errorf("report missing report id")
	}

	res, err := r.collection.InsertOne(ctx, report)
	if err != nil {
		if store.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("error creating report: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		report.ID = id
	}
	return nil
}

func (r *repository) Get(ctx context.Context, reportID string) (*Report, error) {
	report := &Report{}
	err := r.collection.FindOne(ctx, bson.M{"reportId": reportID}).Decode(report)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return report, nil
}

func (r *repository) GetBySeriesHash(ctx context.Context, patientID, seriesHash string) (*Report, error) {
	report := &Report{}
	selector := bson.M{
		"patientId":  patientID,
		"seriesHash": seriesHash,
	}
	err := r.collection.FindOne(ctx, selector).Decode(report)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return report, nil
}

func (r *repository) List(ctx context.Context, filter *Filter, pagination store.Pagination) (*ListResult, error) {
	// Aggregation with a facet returns the page and the total count from a
	// single query.
	pipeline := []bson.M{
		{"$match": generateListFilterQuery(filter)},
		{"$sort": bson.D{
			{Key: "generatedAt", Value: -1},
			{Key: "_id", Value: 1},
		}},
	}
	pipeline = append(pipeline, generatePaginationFacetStages(pagination)...)

	r.logger.Debugw("listing reports", "pipeline", pipeline)

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("error listing reports: %w", err)
	}
	if !cursor.Next(ctx) {
		return nil, fmt.Errorf("error getting pipeline result")
	}

	var result ListResult
	if err = cursor.Decode(&result); err != nil {
		return nil, fmt.Errorf("error decoding report list: %w", err)
	}

	if result.TotalCount == 0 {
		result.Reports = make([]*Report, 0)
	}

	return &result, nil
}

func generateListFilterQuery(filter *Filter) bson.M {
	selector := bson.M{}
	if filter == nil {
		return selector
	}
	if filter.PatientID != nil {
		selector["patientId"] = *filter.PatientID
	}
	if filter.Category != nil {
		selector["brittleness.category"] = *filter.Category
	}
	generatedAt := bson.M{}
	if filter.GeneratedFrom != nil && !filter.GeneratedFrom.IsZero() {
		generatedAt["$gte"] = filter.GeneratedFrom
	}
	if filter.GeneratedTo != nil && !filter.GeneratedTo.IsZero() {
		generatedAt["$lt"] = filter.GeneratedTo
	}
	if len(generatedAt) > 0 {
		selector["generatedAt"] = generatedAt
	}
	return selector
}

func generatePaginationFacetStages(pagination store.Pagination) []bson.M {
	return []bson.M{
		{
			"$facet": bson.M{
				"data": []bson.M{
					{"$match": bson.M{}},
					{"$skip": pagination.Offset},
					{"$limit": pagination.Limit},
				},
				"meta": []bson.M{
					{"$count": "count"},
				},
			},
		},
		{
			"$project": bson.M{
				"data": "$data",
				"temp_count": bson.M{
					"$arrayElemAt": bson.A{"$meta", 0},
				},
			},
		},
		{
			"$project": bson.M{
				"data":  "$data",
				"count": "$temp_count.count",
			},
		},
	}
}
