package etl

import (
	"context"

	"github.com/BartekS5/restsync/pkg/models"
)

// Sink receives each page of records as one batch.
type Sink interface {
	Write(ctx context.Context, stream string, records []models.Record) error
}
