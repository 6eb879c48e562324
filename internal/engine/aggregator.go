package engine

import (
	"math"
	"sort"

	"kmlviz/internal/models"
)

// ForYear returns ISO code -> value for one year. Later rows win on duplicates.
func (cs *ColumnStore) ForYear(year int) map[string]float64 {
	out := make(map[string]float64)
	y := int32(year)
	for i, ry := range cs.Years {
		if ry == y {
			out[cs.CountryDict[cs.CountryIDs[i]]] = cs.Values[i]
		}
	}
	return out
}

// ByYear returns year -> ISO code -> value for every loaded row.
func (cs *ColumnStore) ByYear() map[int]map[string]float64 {
	out := make(map[int]map[string]float64)
	for i, ry := range cs.Years {
		m, ok := out[int(ry)]
		if !ok {
			m = make(map[string]float64)
			out[int(ry)] = m
		}
		m[cs.CountryDict[cs.CountryIDs[i]]] = cs.Values[i]
	}
	return out
}

// YearRange returns the first and last loaded year, or 0, 0 when empty.
func (cs *ColumnStore) YearRange() (int, int) {
	if len(cs.Years) == 0 {
		return 0, 0
	}
	lo, hi := int32(math.MaxInt32), int32(math.MinInt32)
	for _, y := range cs.Years {
		lo = min(lo, y)
		hi = max(hi, y)
	}
	return int(lo), int(hi)
}

// Series returns one country's values in year order with a running total.
// ok is false for an unknown ISO code.
func (cs *ColumnStore) Series(iso string) (models.CountrySeries, bool) {
	cid := cs.countryID(iso)
	if cid < 0 {
		return models.CountrySeries{}, false
	}

	// 1. Collect (dedup on year, last row wins)
	byYear := make(map[int]float64)
	for i, id := range cs.CountryIDs {
		if id == cid {
			byYear[int(cs.Years[i])] = cs.Values[i]
		}
	}
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	// 2. Accumulate
	series := models.CountrySeries{
		ISOCode: iso,
		Name:    cs.NameDict[iso],
		Years:   make([]models.YearValue, 0, len(years)),
	}
	var sum float64
	for _, y := range years {
		sum += byYear[y]
		series.Years = append(series.Years, models.YearValue{Year: y, Value: byYear[y], Cumulative: sum})
	}
	return series, true
}

// Ranking returns every country's value for one year, highest first.
func (cs *ColumnStore) Ranking(year int) []models.CountryValue {
	values := cs.ForYear(year)
	out := make([]models.CountryValue, 0, len(values))
	for iso, v := range values {
		out = append(out, models.CountryValue{ISOCode: iso, Name: cs.NameDict[iso], Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].ISOCode < out[j].ISOCode
	})
	return out
}
