package services

import (
	"context"
	"errors"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
	"github.com/lightfastai/lightfast-search/internal/core/ports/driven"
)

// Ensure ProfileRetriever implements Scorer
var _ Scorer = (*ProfileRetriever)(nil)

// ProfileRetriever scores the candidates of a pass by how close each item's
// actor profile is to the caller's. It never surfaces items of its own.
type ProfileRetriever struct {
	store driven.ProfileStore
}

// NewProfileRetriever creates a new ProfileRetriever
func NewProfileRetriever(store driven.ProfileStore) *ProfileRetriever {
	return &ProfileRetriever{store: store}
}

func (r *ProfileRetriever) Signal() domain.Signal {
	return domain.SignalProfile
}

// Score looks up the profile of every candidate actor in the item's own
// workspace and scores it against the caller's centroid.
func (r *ProfileRetriever) Score(ctx context.Context, q *domain.ResolvedQuery, target domain.ScopeTarget, found []*domain.CandidateList) (*domain.CandidateList, error) {
	list := &domain.CandidateList{Signal: domain.SignalProfile, Target: target}
	if q.ActorID == "" || r.store == nil {
		return list, nil
	}

	var items []*domain.Item
	var keys []domain.ProfileKey
	seenItem := make(map[string]bool)
	seenKey := make(map[domain.ProfileKey]bool)
	for _, l := range found {
		if l == nil || l.Signal == domain.SignalProfile {
			continue
		}
		for _, c := range l.Candidates {
			if c.Item == nil || c.Item.ActorID == "" || seenItem[c.Item.ID] {
				continue
			}
			seenItem[c.Item.ID] = true
			items = append(items, c.Item)
			key := profileKey(c.Item)
			if !seenKey[key] {
				seenKey[key] = true
				keys = append(keys, key)
			}
		}
	}
	if len(items) == 0 {
		return list, nil
	}

	profile, err := r.store.Get(ctx, q.WorkspaceID, q.ActorID)
	if errors.Is(err, domain.ErrNotFound) {
		return list, nil
	}
	if err != nil {
		return nil, err
	}

	centroids, err := r.store.Centroids(ctx, keys)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		centroid, ok := centroids[profileKey(item)]
		if !ok {
			continue
		}
		sim := domain.CosineSimilarity(profile.Centroid, centroid)
		if sim <= 0 {
			continue
		}
		list.Candidates = append(list.Candidates, domain.Candidate{
			Item:     item,
			Score:    sim,
			RawScore: sim,
		})
	}
	return list, nil
}

func profileKey(item *domain.Item) domain.ProfileKey {
	return domain.ProfileKey{WorkspaceID: item.WorkspaceID, EntityID: item.ActorID}
}
