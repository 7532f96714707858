// Package clean implements the cleaning and quality gate stage: type
// normalization, deduplication, referential integrity, missing-value policies
// and per-dataset quality reports. Dirty input degrades to smaller, cleaner
// output; no defect in the data is ever fatal.
package clean

import (
	"github.com/quarrydata/quarry/internal/table"
)

// MissingPolicy decides what happens to a row when a column value is missing.
type MissingPolicy int

const (
	// DropRow removes the row. This is the default for unspecified columns.
	DropRow MissingPolicy = iota
	// FillConstant replaces the missing value with a fixed constant.
	FillConstant
	// FillStatistic replaces the missing value with the column mean
	// (numeric) or the most frequent value (categorical).
	FillStatistic
	// ForwardFill carries the last seen valid value forward.
	ForwardFill
)

// Bounds restricts a numeric column to (Min, Max]. Rows outside are dropped.
type Bounds struct {
	Min float64
	Max float64
}

// ColumnSpec declares the target type and policies for one column.
type ColumnSpec struct {
	Kind   table.Kind
	Policy MissingPolicy
	Fill   any     // constant used by FillConstant
	Bounds *Bounds // optional numeric domain rule
}

// Schema declares how a raw dataset is cleaned.
type Schema struct {
	Name       string
	Columns    map[string]ColumnSpec
	Order      []string // output column order
	PrimaryKey string
	Unique     []string // secondary uniqueness pass (e.g. email)
	ForeignKey string   // column checked against Options.ValidKeys
	// Contains maps a column to a substring it must contain (e.g. email "@").
	Contains map[string]string
}

// CustomerSchema returns the cleaning schema for the customers dataset.
func CustomerSchema() Schema {
	return Schema{
		Name: "customers",
		Columns: map[string]ColumnSpec{
			"customer_id": {Kind: table.Int64, Policy: DropRow},
			"name":        {Kind: table.String, Policy: DropRow},
			"email":       {Kind: table.String, Policy: DropRow},
			"signup_date": {Kind: table.Time, Policy: DropRow},
			"country":     {Kind: table.String, Policy: FillConstant, Fill: "UNKNOWN"},
		},
		Order:      []string{"customer_id", "name", "email", "signup_date", "country"},
		PrimaryKey: "customer_id",
		Unique:     []string{"email"},
		Contains:   map[string]string{"email": "@"},
	}
}

// PurchaseSchema returns the cleaning schema for the purchases dataset.
// Amounts outside (0, 10000] are dropped as a fixed business rule.
func PurchaseSchema() Schema {
	return Schema{
		Name: "purchases",
		Columns: map[string]ColumnSpec{
			"purchase_id":   {Kind: table.Int64, Policy: DropRow},
			"customer_id":   {Kind: table.Int64, Policy: DropRow},
			"purchase_date": {Kind: table.Time, Policy: DropRow},
			"amount":        {Kind: table.Float64, Policy: DropRow, Bounds: &Bounds{Min: 0, Max: 10000}},
			"product":       {Kind: table.String, Policy: FillConstant, Fill: "UNKNOWN"},
		},
		Order:      []string{"purchase_id", "customer_id", "purchase_date", "amount", "product"},
		PrimaryKey: "purchase_id",
		ForeignKey: "customer_id",
	}
}
