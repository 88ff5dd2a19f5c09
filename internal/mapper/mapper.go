// Package mapper converts coordinates to H3 cells for the report index.
package mapper

import (
	"github.com/mohammed-shakir/propscope/internal/core/model"
)

type Interface interface {
	CellFor(c model.Coordinate) (string, error)
	Neighborhood(c model.Coordinate, k int) ([]string, error)
}
