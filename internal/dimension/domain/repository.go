package domain

import "context"

// Repository loads the materialized dimension tables produced by the
// upstream harmonization stage.
type Repository interface {
	Load(ctx context.Context) (Tables, error)
}
