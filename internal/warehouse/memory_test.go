package warehouse

import (
	"context"
	"strings"
	"sync"
)

// memoryStore is an in-memory Store for tests. It mimics the repository's
// semantics: substring name search, blind version bumps on UpdateMaterial and
// compare-and-swap on UpdateMaterialWAC.
type memoryStore struct {
	mu        sync.Mutex
	materials map[string]Material
	purchases []Purchase

	insertErr   error
	updateErr   error
	forceWACErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{materials: make(map[string]Material)}
}

func (s *memoryStore) put(m Material) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.Version == 0 {
		m.Version = 1
	}
	s.materials[m.ID] = m
}

func (s *memoryStore) get(id string) Material {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.materials[id]
}

func (s *memoryStore) byName(name string) Material {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.materials {
		if strings.EqualFold(m.Name, name) {
			return m
		}
	}
	return Material{}
}

func (s *memoryStore) GetMaterial(ctx context.Context, ownerID, id string) (Material, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.materials[id]
	if !ok || m.OwnerID != ownerID {
		return Material{}, ErrMaterialNotFound
	}
	return m, nil
}

func (s *memoryStore) FindMaterialsByName(ctx context.Context, ownerID, name string) ([]Material, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := strings.ToLower(name)
	var out []Material
	for _, m := range s.materials {
		if m.OwnerID != ownerID {
			continue
		}
		if strings.Contains(strings.ToLower(m.Name), want) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memoryStore) ListMaterials(ctx context.Context, ownerID string) ([]Material, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Material
	for _, m := range s.materials {
		if m.OwnerID == ownerID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memoryStore) InsertMaterial(ctx context.Context, m Material) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.put(m)
	return nil
}

func (s *memoryStore) UpdateMaterial(ctx context.Context, m Material) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.materials[m.ID]
	if !ok || current.OwnerID != m.OwnerID {
		return ErrMaterialNotFound
	}
	m.Version = current.Version + 1
	s.materials[m.ID] = m
	return nil
}

func (s *memoryStore) UpdateMaterialWAC(ctx context.Context, ownerID, id string, wac float64, expectedVersion int64) error {
	if s.forceWACErr != nil {
		return s.forceWACErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.materials[id]
	if !ok || m.OwnerID != ownerID {
		return ErrMaterialNotFound
	}
	if m.Version != expectedVersion {
		return ErrVersionConflict
	}
	m.WAC = wac
	m.Version++
	s.materials[id] = m
	return nil
}

func (s *memoryStore) ListCompletedPurchases(ctx context.Context, ownerID string) ([]Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Purchase
	for _, p := range s.purchases {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out, nil
}
