package catalog

import (
	"context"
	"sort"
	"sync"
)

// MemoryCatalog keeps catalog data in process memory. Used by tests and local runs.
type MemoryCatalog struct {
	mu       sync.RWMutex
	services map[string][]Service
	staff    map[string][]Staff
	profiles map[string]*Profile
}

var (
	_ Catalog       = (*MemoryCatalog)(nil)
	_ Lister        = (*MemoryCatalog)(nil)
	_ ProfileGetter = (*MemoryCatalog)(nil)
)

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		services: make(map[string][]Service),
		staff:    make(map[string][]Staff),
		profiles: make(map[string]*Profile),
	}
}

// PutService adds or replaces a service.
func (m *MemoryCatalog) PutService(s Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.services[s.MerchantID]
	for i := range list {
		if list[i].ID == s.ID {
			list[i] = s
			return
		}
	}
	list = append(list, s)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	m.services[s.MerchantID] = list
}

// PutStaff adds or replaces a staff member.
func (m *MemoryCatalog) PutStaff(s Staff) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.staff[s.MerchantID]
	for i := range list {
		if list[i].ID == s.ID {
			list[i] = s
			return
		}
	}
	list = append(list, s)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	m.staff[s.MerchantID] = list
}

// PutProfile stores a merchant profile.
func (m *MemoryCatalog) PutProfile(p *Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.profiles[p.MerchantID] = &cp
}

func (m *MemoryCatalog) ListServices(_ context.Context, merchantID string) ([]Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Service(nil), m.services[merchantID]...), nil
}

func (m *MemoryCatalog) ListStaff(_ context.Context, merchantID string) ([]Staff, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Staff(nil), m.staff[merchantID]...), nil
}

func (m *MemoryCatalog) Get(ctx context.Context, merchantID string) (*Profile, error) {
	return m.Profile(ctx, merchantID)
}

func (m *MemoryCatalog) Profile(_ context.Context, merchantID string) (*Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.profiles[merchantID]; ok {
		cp := *p
		return &cp, nil
	}
	return DefaultProfile(merchantID), nil
}

// CalendarID returns the external calendar linked to a resource.
func (m *MemoryCatalog) CalendarID(_ context.Context, resourceID string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.profiles {
		if id, ok := p.CalendarIDs[resourceID]; ok && id != "" {
			return id, true, nil
		}
	}
	return "", false, nil
}
