package h3mapper

import (
	"fmt"
	"sort"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/propscope/internal/core/model"
	"github.com/mohammed-shakir/propscope/internal/mapper"
)

type Mapper struct {
	res int
}

var _ mapper.Interface = (*Mapper)(nil)

// New returns a Mapper indexing at resolution res.
func New(res int) (*Mapper, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	return &Mapper{res: res}, nil
}

func (m *Mapper) Resolution() int { return m.res }

func (m *Mapper) CellFor(c model.Coordinate) (string, error) {
	cell, err := m.cell(c)
	if err != nil {
		return "", err
	}
	return cell.String(), nil
}

// Neighborhood returns the cell of c and every cell within k steps of it,
// sorted and unique.
func (m *Mapper) Neighborhood(c model.Coordinate, k int) ([]string, error) {
	if k < 0 {
		return nil, fmt.Errorf("invalid ring size %d", k)
	}
	cell, err := m.cell(c)
	if err != nil {
		return nil, err
	}
	disk, err := h3.GridDisk(cell, k)
	if err != nil {
		return nil, fmt.Errorf("h3 grid disk: %w", err)
	}

	seen := make(map[string]struct{}, len(disk))
	out := make([]string, 0, len(disk))
	for _, d := range disk {
		if d == 0 {
			continue
		}
		s := d.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Mapper) cell(c model.Coordinate) (h3.Cell, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	cell, err := h3.LatLngToCell(h3.NewLatLng(c.Lat, c.Lon), m.res)
	if err != nil {
		return 0, fmt.Errorf("h3 cell: %w", err)
	}
	return cell, nil
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}
