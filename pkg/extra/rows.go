package extra

import (
	"slices"

	"github.com/shopspring/decimal"
)

// Row is a labelled amount recorded against a basket, item or order.
type Row struct {
	Identifier string          `json:"identifier"`
	Label      string          `json:"label"`
	Amount     decimal.Decimal `json:"amount"`
	Extra      Data            `json:"extra,omitempty"`
}

// Rows keeps rows unique by identifier in insertion order. The JSON form is a
// plain list.
type Rows []Row

// NewRows returns an empty, non-nil collection.
func NewRows() Rows {
	return Rows{}
}

// Set overwrites the row with the same identifier in place or appends it.
func (r *Rows) Set(row Row) {
	for i := range *r {
		if (*r)[i].Identifier == row.Identifier {
			(*r)[i] = row
			return
		}
	}
	*r = append(*r, row)
}

// Get returns the row stored under identifier.
func (r Rows) Get(identifier string) (Row, bool) {
	for _, row := range r {
		if row.Identifier == identifier {
			return row, true
		}
	}
	return Row{}, false
}

// Identifiers lists identifiers in order.
func (r Rows) Identifiers() []string {
	ids := make([]string, 0, len(r))
	for _, row := range r {
		ids = append(ids, row.Identifier)
	}
	return ids
}

// Total sums every row amount.
func (r Rows) Total() decimal.Decimal {
	total := decimal.Zero
	for _, row := range r {
		total = total.Add(row.Amount)
	}
	return total
}

// Clone copies the rows and their extra maps.
func (r Rows) Clone() Rows {
	out := slices.Clone(r)
	if out == nil {
		return Rows{}
	}
	for i := range out {
		if out[i].Extra != nil {
			out[i].Extra = out[i].Extra.Clone()
		}
	}
	return out
}
