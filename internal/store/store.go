package store

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/malbeclabs/aquabot/internal/table"
)

var ErrMissingColumn = errors.New("required column missing")

// Column names of the district summary table.
const (
	ColDistrictName        = "Name of District"
	ColRainfallMonsoon     = "Recharge from rainfall (Monsoon)"
	ColOtherMonsoon        = "Recharge from other sources (Monsoon)"
	ColRainfallNonMonsoon  = "Recharge from rainfall (Non-monsoon)"
	ColOtherNonMonsoon     = "Recharge from other sources (Non-monsoon)"
	ColTotalRecharge       = "Total Annual Ground Water Recharge"
	ColNaturalDischarges   = "Total Natural Discharges"
	ColExtractableResource = "Annual Extractable Ground Water Resource"
	ColNetAvailability     = "Net Ground Water Availability for future use"
	ColIrrigation          = "Irrigation"
	ColIndustrial          = "Industrial"
	ColDomestic            = "Domestic"
	ColTotalExtraction     = "Total"
	ColExtractionStage     = "Stage of Ground Water Extraction (%)"
	ColDomesticAllocation  = "Annual GW Allocation for Domestic Use as on 2025"
	colBlockName           = "block"
	colBlockDistrict       = "District"
	colYearlyDistrict      = "District"
	conditionColumnPrefix  = "Condition"
)

// Dataset names a yearly table.
type Dataset string

const (
	Recharge     Dataset = "recharge"
	Availability Dataset = "availability"
)

var yearPattern = regexp.MustCompile(`\b(20\d{2})\b`)

// Tables holds the four source tables a store is built from.
type Tables struct {
	Districts    *table.Table
	Blocks       *table.Table
	Recharge     *table.Table
	Availability *table.Table
}

// District is one row of the district summary table. Key is the trimmed,
// lower-cased district name used for matching.
type District struct {
	Key string
	table.Row
}

func (d District) Name() string {
	return d.Get(ColDistrictName)
}

type Block struct {
	Key         string
	DistrictKey string
	Name        string
	District    string
	Condition   string
}

// Series pairs year labels with the raw cell text of a yearly row, in column
// order.
type Series struct {
	Years  []string
	Values []string
}

type yearly struct {
	years   []string
	columns []int
	keys    []string
	rows    []table.Row
}

// Store is an immutable, normalized view over the four source tables. It is
// safe for concurrent use.
type Store struct {
	districts []District
	blocks    []Block
	yearly    map[Dataset]*yearly
}

// New builds a store from loaded tables after checking that the key columns
// are present.
func New(t Tables) (*Store, error) {
	if t.Districts == nil || t.Blocks == nil || t.Recharge == nil || t.Availability == nil {
		return nil, errors.New("all four tables are required")
	}
	if !t.Districts.Has(ColDistrictName) {
		return nil, fmt.Errorf("%w: district table: %q", ErrMissingColumn, ColDistrictName)
	}
	for _, c := range []string{colBlockName, colBlockDistrict} {
		if !t.Blocks.Has(c) {
			return nil, fmt.Errorf("%w: block table: %q", ErrMissingColumn, c)
		}
	}
	condition := conditionColumn(t.Blocks)
	if condition == "" {
		return nil, fmt.Errorf("%w: block table: %q*", ErrMissingColumn, conditionColumnPrefix)
	}

	s := &Store{yearly: make(map[Dataset]*yearly, 2)}

	for _, row := range t.Districts.Rows() {
		key := normalize(row.Get(ColDistrictName))
		if key == "" {
			continue
		}
		s.districts = append(s.districts, District{Key: key, Row: row})
	}

	for _, row := range t.Blocks.Rows() {
		key := normalize(row.Get(colBlockName))
		if key == "" {
			continue
		}
		s.blocks = append(s.blocks, Block{
			Key:         key,
			DistrictKey: normalize(row.Get(colBlockDistrict)),
			Name:        row.Get(colBlockName),
			District:    row.Get(colBlockDistrict),
			Condition:   row.Get(condition),
		})
	}

	for ds, tbl := range map[Dataset]*table.Table{Recharge: t.Recharge, Availability: t.Availability} {
		y, err := newYearly(tbl)
		if err != nil {
			return nil, fmt.Errorf("%s table: %w", ds, err)
		}
		s.yearly[ds] = y
	}

	return s, nil
}

func newYearly(tbl *table.Table) (*yearly, error) {
	if !tbl.Has(colYearlyDistrict) {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, colYearlyDistrict)
	}
	y := &yearly{}
	for i, c := range tbl.Columns() {
		if m := yearPattern.FindStringSubmatch(c); m != nil {
			y.years = append(y.years, m[1])
			y.columns = append(y.columns, i)
		}
	}
	for _, row := range tbl.Rows() {
		y.keys = append(y.keys, normalize(row.Get(colYearlyDistrict)))
		y.rows = append(y.rows, row)
	}
	return y, nil
}

// Districts returns every district in table order.
func (s *Store) Districts() []District {
	out := make([]District, len(s.districts))
	copy(out, s.districts)
	return out
}

// District returns the first district whose key equals key.
func (s *Store) District(key string) (District, bool) {
	for _, d := range s.districts {
		if d.Key == key {
			return d, true
		}
	}
	return District{}, false
}

// BlocksIn returns the blocks that reference districtKey, in table order.
func (s *Store) BlocksIn(districtKey string) []Block {
	var out []Block
	for _, b := range s.blocks {
		if b.DistrictKey == districtKey {
			out = append(out, b)
		}
	}
	return out
}

// Yearly returns the year series of the first row of dataset whose district
// matches districtKey.
func (s *Store) Yearly(dataset Dataset, districtKey string) (Series, bool) {
	y, ok := s.yearly[dataset]
	if !ok {
		return Series{}, false
	}
	for i, key := range y.keys {
		if key != districtKey {
			continue
		}
		series := Series{
			Years:  make([]string, len(y.years)),
			Values: make([]string, len(y.columns)),
		}
		copy(series.Years, y.years)
		for j, col := range y.columns {
			series.Values[j] = y.rows[i].At(col)
		}
		return series, true
	}
	return Series{}, false
}

func conditionColumn(t *table.Table) string {
	for _, c := range t.Columns() {
		if strings.HasPrefix(c, conditionColumnPrefix) {
			return c
		}
	}
	return ""
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
