package indexing

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/casevault/discovery-backend/internal/dedup"
	"github.com/casevault/discovery-backend/internal/platform/logger"
)

type AdvisorConfig struct {
	// FrequencyThreshold and SlowQueryThreshold must both be crossed before
	// a query shape earns a recommendation.
	FrequencyThreshold int
	SlowQueryThreshold time.Duration

	HighPriorityFrequency int
	HighPriorityAvg       time.Duration
}

func DefaultAdvisorConfig() AdvisorConfig {
	return AdvisorConfig{
		FrequencyThreshold:    10,
		SlowQueryThreshold:    500 * time.Millisecond,
		HighPriorityFrequency: 20,
		HighPriorityAvg:       2 * time.Second,
	}
}

// QueryObservation is one executed query, described by shape rather than
// values: which collection, which filter keys, which sort keys.
type QueryObservation struct {
	Collection  string
	FilterKeys  []string
	SortKeys    []string
	Duration    time.Duration
	ResultCount int
}

type Recommendation struct {
	Signature   string        `json:"signature"`
	Collection  string        `json:"collection"`
	Columns     []string      `json:"columns"`
	Priority    int           `json:"priority"`
	Frequency   int           `json:"frequency"`
	AvgDuration time.Duration `json:"avg_duration"`
	// EstimatedImprovement is the advisory fraction of query time a
	// composite index is expected to recover.
	EstimatedImprovement float64 `json:"estimated_improvement"`
}

type signatureStats struct {
	collection    string
	sortKeys      []string
	filterKeyFreq map[string]int
	count         int
	totalDuration time.Duration
}

// Advisor aggregates query-shape statistics and recommends composite
// indexes. It only ever advises; nothing changes until a caller applies a
// recommendation explicitly. Safe for concurrent use.
type Advisor struct {
	mu    sync.Mutex
	log   *logger.Logger
	cfg   AdvisorConfig
	stats map[string]*signatureStats
}

func NewAdvisor(baseLog *logger.Logger, cfg AdvisorConfig) *Advisor {
	if cfg.FrequencyThreshold <= 0 {
		cfg = DefaultAdvisorConfig()
	}
	return &Advisor{
		log:   baseLog.With("service", "IndexingStrategyAdvisor"),
		cfg:   cfg,
		stats: make(map[string]*signatureStats),
	}
}

// Signature identifies a query shape: collection plus sorted filter and
// sort keys. Two queries differing only in values share a signature.
func Signature(collection string, filterKeys, sortKeys []string) string {
	f := append([]string(nil), filterKeys...)
	s := append([]string(nil), sortKeys...)
	sort.Strings(f)
	sort.Strings(s)
	canonical := collection + "|" + strings.Join(f, ",") + "|" + strings.Join(s, ",")
	return dedup.HashText(canonical)[:16]
}

func (a *Advisor) RecordQuery(obs QueryObservation) {
	if obs.Collection == "" {
		return
	}
	sig := Signature(obs.Collection, obs.FilterKeys, obs.SortKeys)

	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.stats[sig]
	if !ok {
		sorted := append([]string(nil), obs.SortKeys...)
		sort.Strings(sorted)
		st = &signatureStats{
			collection:    obs.Collection,
			sortKeys:      sorted,
			filterKeyFreq: make(map[string]int),
		}
		a.stats[sig] = st
	}
	st.count++
	st.totalDuration += obs.Duration
	for _, k := range obs.FilterKeys {
		st.filterKeyFreq[k]++
	}
}

// Observe times a query from call to the returned done func.
func (a *Advisor) Observe(collection string, filterKeys, sortKeys []string) func(resultCount int) {
	start := time.Now()
	return func(resultCount int) {
		a.RecordQuery(QueryObservation{
			Collection:  collection,
			FilterKeys:  filterKeys,
			SortKeys:    sortKeys,
			Duration:    time.Since(start),
			ResultCount: resultCount,
		})
	}
}

// Recommendations returns index advice for every signature past both
// thresholds, highest priority first.
func (a *Advisor) Recommendations() []Recommendation {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []Recommendation
	for sig, st := range a.stats {
		if st.count < a.cfg.FrequencyThreshold {
			continue
		}
		avg := st.totalDuration / time.Duration(st.count)
		if avg < a.cfg.SlowQueryThreshold {
			continue
		}
		cols := topFilterKeys(st.filterKeyFreq, 3)
		if len(cols) == 0 {
			continue
		}

		priority := 3
		improvement := 0.3
		switch {
		case avg > a.cfg.HighPriorityAvg && st.count > a.cfg.HighPriorityFrequency:
			priority = 1
			improvement = 0.75
		case avg > 2*a.cfg.SlowQueryThreshold || st.count > 2*a.cfg.FrequencyThreshold:
			priority = 2
			improvement = 0.5
		}

		out = append(out, Recommendation{
			Signature:            sig,
			Collection:           st.collection,
			Columns:              cols,
			Priority:             priority,
			Frequency:            st.count,
			AvgDuration:          avg,
			EstimatedImprovement: improvement,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].Signature < out[j].Signature
	})
	return out
}

// topFilterKeys returns up to n keys by descending frequency, ties broken
// alphabetically so column order is deterministic.
func topFilterKeys(freq map[string]int, n int) []string {
	keys := make([]string, 0, len(freq))
	for k := range freq {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if freq[keys[i]] != freq[keys[j]] {
			return freq[keys[i]] > freq[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

// Applier is the explicit apply step. Creating an index that already exists
// is a no-op, so re-applying a recommendation list is safe.
type Applier struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewApplier(db *gorm.DB, baseLog *logger.Logger) *Applier {
	return &Applier{db: db, log: baseLog.With("service", "IndexApplier")}
}

func IndexName(rec Recommendation) string {
	return fmt.Sprintf("idx_adv_%s_%s", rec.Collection, strings.Join(rec.Columns, "_"))
}

func (ap *Applier) Apply(rec Recommendation) error {
	if rec.Collection == "" || len(rec.Columns) == 0 {
		return fmt.Errorf("indexing: recommendation missing collection or columns")
	}
	name := IndexName(rec)
	stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
		name, rec.Collection, strings.Join(rec.Columns, ", "))
	if err := ap.db.Exec(stmt).Error; err != nil {
		return fmt.Errorf("create index %s: %w", name, err)
	}
	ap.log.Info("index applied",
		"index", name,
		"collection", rec.Collection,
		"priority", rec.Priority,
	)
	return nil
}

func (ap *Applier) ApplyAll(recs []Recommendation) error {
	for _, rec := range recs {
		if err := ap.Apply(rec); err != nil {
			return err
		}
	}
	return nil
}
