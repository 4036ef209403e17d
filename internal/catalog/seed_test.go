package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedJSON = `{
  "merchants": [{
    "profile": {"merchant_id": "m1", "name": "Salon Sari", "timezone": "Asia/Jakarta",
      "working_hours": {"monday": {"open": "09:00", "close": "18:00"}}, "slot_granularity_minutes": 30},
    "services": [{"id": "svc-cut", "name": "Haircut", "duration_minutes": 60, "price_cents": 150000, "active": true}],
    "staff": [{"id": "stf-rina", "name": "Rina", "active": true}]
  }]
}`

type recordingSeeder struct {
	services []Service
	staff    []Staff
	fail     error
}

func (r *recordingSeeder) UpsertService(_ context.Context, s Service) error {
	if r.fail != nil {
		return r.fail
	}
	r.services = append(r.services, s)
	return nil
}

func (r *recordingSeeder) UpsertStaff(_ context.Context, s Staff) error {
	r.staff = append(r.staff, s)
	return nil
}

type recordingProfiles struct{ profiles []*Profile }

func (r *recordingProfiles) Set(_ context.Context, p *Profile) error {
	r.profiles = append(r.profiles, p)
	return nil
}

func TestDecodeSeedInheritsMerchant(t *testing.T) {
	f, err := DecodeSeed(strings.NewReader(seedJSON))
	require.NoError(t, err)
	require.Len(t, f.Merchants, 1)
	assert.Equal(t, "m1", f.Merchants[0].Services[0].MerchantID)
	assert.Equal(t, "m1", f.Merchants[0].Staff[0].MerchantID)
}

func TestDecodeSeedRejectsInvalidEntries(t *testing.T) {
	for _, body := range []string{
		`{"merchants":[{"services":[]}]}`,
		`{"merchants":[{"profile":{"merchant_id":"m1"},"services":[{"id":"x","name":"X"}]}]}`,
		`{"merchants":[{"profile":{"merchant_id":"m1"},"staff":[{"name":"Rina"}]}]}`,
		`not json`,
	} {
		_, err := DecodeSeed(strings.NewReader(body))
		assert.Error(t, err, body)
	}
}

func TestSeedApplyAndLoad(t *testing.T) {
	f, err := DecodeSeed(strings.NewReader(seedJSON))
	require.NoError(t, err)

	seeder := &recordingSeeder{}
	profiles := &recordingProfiles{}
	require.NoError(t, f.Apply(context.Background(), seeder, profiles))
	assert.Len(t, seeder.services, 1)
	assert.Len(t, seeder.staff, 1)
	require.Len(t, profiles.profiles, 1)
	assert.Equal(t, "Salon Sari", profiles.profiles[0].Name)

	mem := NewMemoryCatalog()
	f.Load(mem)
	services, err := mem.ListServices(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "Haircut", services[0].Name)
	profile, err := mem.Profile(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "Asia/Jakarta", profile.Timezone)
}

func TestSeedApplyStopsOnError(t *testing.T) {
	f, err := DecodeSeed(strings.NewReader(seedJSON))
	require.NoError(t, err)
	boom := errors.New("db down")
	err = f.Apply(context.Background(), &recordingSeeder{fail: boom}, nil)
	assert.ErrorIs(t, err, boom)
}
