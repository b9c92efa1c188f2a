// Package pricerefs maintains reference price/size statistics per
// (brand, category) bucket and computes robust z-scores against them.
// Buckets fall back from most to least specific: brand+category,
// brand-only, category-only, global.
package pricerefs

import (
	"sort"
	"strconv"
	"strings"

	"github.com/shopagent/cartwright/pkg/catalog"
	"github.com/shopagent/cartwright/pkg/models"
)

// Metric names tracked per bucket.
const (
	MetricPrice  = "price"
	MetricWeight = "weight"
	MetricHeight = "height"
	MetricWidth  = "width"
	MetricLength = "length"
)

var dimensionMetrics = []string{MetricHeight, MetricWidth, MetricLength}

// Stats is a robust location/scale pair: median and median absolute
// deviation. A zero spread is treated as 1.0 when scoring.
type Stats struct {
	Median float64 `json:"median"`
	Spread float64 `json:"spread"`
}

// Store holds per-bucket reference statistics. Immutable once built.
type Store struct {
	refs map[string]map[string]Stats
}

// NewStore wraps a prebuilt reference table. Bucket keys have the form
// "brand|category" with either side possibly empty.
func NewStore(refs map[string]map[string]Stats) *Store {
	return &Store{refs: refs}
}

// Build derives the reference table from catalog listings. Each listing
// contributes its price and any numeric weight/height/width/length
// attributes to all four buckets it belongs to.
func Build(items []catalog.Item) *Store {
	samples := make(map[string]map[string][]float64)

	record := func(key, metric string, value float64) {
		bucket, present := samples[key]
		if !present {
			bucket = make(map[string][]float64)
			samples[key] = bucket
		}
		bucket[metric] = append(bucket[metric], value)
	}

	for _, it := range items {
		brand := BrandFromTitle(it.Title)
		for _, key := range bucketKeys(brand, it.Category) {
			record(key, MetricPrice, it.PriceUSD)
			if w, ok := toFloat(it.Attributes[MetricWeight]); ok {
				record(key, MetricWeight, w)
			}
			for _, dim := range dimensionMetrics {
				if v, ok := toFloat(it.Attributes[dim]); ok {
					record(key, dim, v)
				}
			}
		}
	}

	refs := make(map[string]map[string]Stats, len(samples))
	for key, bucket := range samples {
		stats := make(map[string]Stats, len(bucket))
		for metric, values := range bucket {
			med := median(values)
			stats[metric] = Stats{Median: med, Spread: mad(values, med)}
		}
		refs[key] = stats
	}
	return &Store{refs: refs}
}

// Lookup returns the statistics of the most specific bucket available for
// the brand/category pair, or nil when none exists.
func (s *Store) Lookup(brand, category string) map[string]Stats {
	for _, key := range bucketKeys(brand, category) {
		if stats, present := s.refs[key]; present {
			return stats
		}
	}
	return nil
}

// PriceZ computes the price z-score for an offer, with the brand taken
// from the title's first token.
func (s *Store) PriceZ(offer models.Offer) (float64, bool) {
	return s.metricZ(BrandFromTitle(offer.Title), offer.Category, MetricPrice, offer.PriceUSD)
}

// WeightZ computes the weight z-score from the offer's weight attribute.
func (s *Store) WeightZ(offer models.Offer) (float64, bool) {
	w, ok := toFloat(offer.Attributes[MetricWeight])
	if !ok {
		return 0, false
	}
	return s.metricZ(BrandFromTitle(offer.Title), offer.Category, MetricWeight, w)
}

// DimensionZs computes z-scores for every linear dimension attribute the
// offer carries. Missing attributes are simply absent from the result.
func (s *Store) DimensionZs(offer models.Offer) map[string]float64 {
	brand := BrandFromTitle(offer.Title)
	var scores map[string]float64
	for _, dim := range dimensionMetrics {
		v, ok := toFloat(offer.Attributes[dim])
		if !ok {
			continue
		}
		z, ok := s.metricZ(brand, offer.Category, dim, v)
		if !ok {
			continue
		}
		if scores == nil {
			scores = make(map[string]float64, len(dimensionMetrics))
		}
		scores[dim] = z
	}
	return scores
}

// metricZ walks the bucket fallback chain until one carries the metric.
func (s *Store) metricZ(brand, category, metric string, value float64) (float64, bool) {
	if s == nil || len(s.refs) == 0 {
		return 0, false
	}
	for _, key := range bucketKeys(brand, category) {
		stats, present := s.refs[key]
		if !present {
			continue
		}
		ms, present := stats[metric]
		if !present {
			continue
		}
		spread := ms.Spread
		if spread == 0 {
			spread = 1.0
		}
		return (value - ms.Median) / spread, true
	}
	return 0, false
}

// BrandFromTitle extracts the brand heuristically: the first whitespace
// token with surrounding dashes/underscores stripped.
func BrandFromTitle(title string) string {
	fields := strings.Fields(title)
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], "-_")
}

func bucketKeys(brand, category string) [4]string {
	b := strings.ToLower(strings.TrimSpace(brand))
	c := strings.ToLower(strings.TrimSpace(category))
	return [4]string{b + "|" + c, b + "|", "|" + c, "|"}
}

func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// mad is the median absolute deviation around med.
func mad(values []float64, med float64) float64 {
	if len(values) == 0 {
		return 0
	}
	devs := make([]float64, len(values))
	for i, v := range values {
		d := v - med
		if d < 0 {
			d = -d
		}
		devs[i] = d
	}
	return median(devs)
}
