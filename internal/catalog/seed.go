package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Seed describes one merchant's catalog as stored in a seed file.
type Seed struct {
	Profile  *Profile  `json:"profile"`
	Services []Service `json:"services"`
	Staff    []Staff   `json:"staff"`
}

// SeedFile is a list of merchants.
type SeedFile struct {
	Merchants []Seed `json:"merchants"`
}

// Seeder persists catalog entries.
type Seeder interface {
	UpsertService(ctx context.Context, s Service) error
	UpsertStaff(ctx context.Context, s Staff) error
}

// ProfileSetter persists merchant profiles.
type ProfileSetter interface {
	Set(ctx context.Context, p *Profile) error
}

// DecodeSeed reads a seed file. Entries inherit the merchant id of their profile.
func DecodeSeed(r io.Reader) (*SeedFile, error) {
	var f SeedFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("catalog: decode seed: %w", err)
	}
	for i := range f.Merchants {
		m := &f.Merchants[i]
		if m.Profile == nil || strings.TrimSpace(m.Profile.MerchantID) == "" {
			return nil, fmt.Errorf("catalog: seed merchant %d: profile.merchant_id is required", i)
		}
		id := m.Profile.MerchantID
		for j := range m.Services {
			if m.Services[j].MerchantID == "" {
				m.Services[j].MerchantID = id
			}
			if m.Services[j].ID == "" || m.Services[j].DurationMinutes <= 0 {
				return nil, fmt.Errorf("catalog: seed merchant %s: service %d needs an id and a positive duration", id, j)
			}
		}
		for j := range m.Staff {
			if m.Staff[j].MerchantID == "" {
				m.Staff[j].MerchantID = id
			}
			if m.Staff[j].ID == "" {
				return nil, fmt.Errorf("catalog: seed merchant %s: staff %d needs an id", id, j)
			}
		}
	}
	return &f, nil
}

// LoadSeedFile opens and decodes a seed file from disk.
func LoadSeedFile(path string) (*SeedFile, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open seed: %w", err)
	}
	defer fh.Close()
	return DecodeSeed(fh)
}

// Apply writes the seed to persistent stores. profiles may be nil.
func (f *SeedFile) Apply(ctx context.Context, seeder Seeder, profiles ProfileSetter) error {
	for _, m := range f.Merchants {
		if profiles != nil {
			if err := profiles.Set(ctx, m.Profile); err != nil {
				return err
			}
		}
		for _, s := range m.Services {
			if err := seeder.UpsertService(ctx, s); err != nil {
				return err
			}
		}
		for _, s := range m.Staff {
			if err := seeder.UpsertStaff(ctx, s); err != nil {
				return err
			}
		}
	}
	return nil
}

// Load fills an in-memory catalog.
func (f *SeedFile) Load(m *MemoryCatalog) {
	for _, merchant := range f.Merchants {
		m.PutProfile(merchant.Profile)
		for _, s := range merchant.Services {
			m.PutService(s)
		}
		for _, s := range merchant.Staff {
			m.PutStaff(s)
		}
	}
}
