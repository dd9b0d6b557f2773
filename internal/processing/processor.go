package processing

import (
	"context"

	"github.com/rpattn/vizflow/internal/domain"
)

// Processor extracts records from one file format.
//
// Process receives the metadata by value and reports format specific fields
// through ProcessingResult.Metadata. Implementations return either a complete
// result or an error, never a partial result.
type Processor interface {
	Name() string
	Process(ctx context.Context, file domain.Upload, meta domain.ProcessingMetadata) (domain.ProcessingResult, error)
}
