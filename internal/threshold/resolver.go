package threshold

import (
	"dbwatch/internal/metric"
	"dbwatch/internal/models"
)

// Set maps metric identities to the threshold that governs them for one
// target. Precedence is structural: group thresholds are inserted first and
// database thresholds overwrite them, so database scope always wins for a
// metric defined at both levels.
type Set map[metric.Ref]models.Threshold

// Lookup finds the threshold governing a sample. Exact Ref match first;
// a bare "disk" threshold covers any mount path without its own
// disk_<path> override.
func (s Set) Lookup(ref metric.Ref) (models.Threshold, bool) {
	if t, ok := s[ref]; ok {
		return t, true
	}
	if ref.Class == metric.ClassDisk && ref.Unit != "" {
		if t, ok := s[metric.Ref{Class: metric.ClassDisk}]; ok {
			return t, true
		}
	}
	return models.Threshold{}, false
}

// Store is the subset of the entity store the resolver reads.
type Store interface {
	GetThresholdsForDatabase(databaseID uint) ([]models.Threshold, error)
	GetThresholdsForGroup(groupID uint) ([]models.Threshold, error)
}

// Resolver produces the enabled thresholds applicable to a database target.
type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns database-scoped thresholds overlaid on the owning group's
// thresholds, disabled ones excluded. Resolution is read-only and idempotent.
func (r *Resolver) Resolve(db *models.Database) (Set, error) {
	set := make(Set)

	if db.GroupID != nil {
		groupThresholds, err := r.store.GetThresholdsForGroup(*db.GroupID)
		if err != nil {
			return nil, err
		}
		insert(set, groupThresholds)
	}

	dbThresholds, err := r.store.GetThresholdsForDatabase(db.ID)
	if err != nil {
		return nil, err
	}
	insert(set, dbThresholds)

	return set, nil
}

func insert(set Set, thresholds []models.Threshold) {
	for _, t := range thresholds {
		if !t.Enabled {
			continue
		}
		set[metric.ParseRef(t.MetricName)] = t
	}
}
