package patients

import (
	"context"
	"fmt"
	"time"

	"github.com/glucolab/agp/errors"
	"github.com/glucolab/agp/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound  = fmt.Errorf("patient %w", errors.NotFound)
	ErrDuplicate = fmt.Errorf("patient %w", errors.Duplicate)
)

type Patient struct {
	ID        *primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	FullName  string              `json:"fullName" bson:"fullName"`
	Mrn       *string             `json:"mrn,omitempty" bson:"mrn,omitempty"`
	BirthDate *string             `json:"birthDate,omitempty" bson:"birthDate,omitempty"`
	CreatedAt time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt" bson:"updatedAt"`
}

type Filter struct {
	Search *string
	Mrn    *string
}

type ListResult struct {
	Patients   []*Patient `bson:"data"`
	TotalCount int        `bson:"count"`
}

type Service interface {
	Create(ctx context.Context, patient Patient) (*Patient, error)
	Get(ctx context.Context, id string) (*Patient, error)
	List(ctx context.Context, filter *Filter, pagination store.Pagination) (*ListResult, error)
}

type Repository interface {
	Service
}
