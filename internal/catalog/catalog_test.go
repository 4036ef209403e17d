package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleServices() []Service {
	return []Service{
		{ID: "svc-cut", MerchantID: "m1", Name: "Haircut", DurationMinutes: 30, Active: true},
		{ID: "svc-cut-color", MerchantID: "m1", Name: "Haircut & Color", DurationMinutes: 90, Active: true},
		{ID: "svc-cream", MerchantID: "m1", Name: "Creambath", DurationMinutes: 60, Active: true},
		{ID: "svc-massage", MerchantID: "m1", Name: "Hot Stone Massage", DurationMinutes: 60, Active: true},
		{ID: "svc-old", MerchantID: "m1", Name: "Perm", DurationMinutes: 120, Active: false},
	}
}

func TestMatchService(t *testing.T) {
	services := sampleServices()

	t.Run("exact name wins over substring", func(t *testing.T) {
		res := MatchService(services, "haircut")
		require.NotNil(t, res.Match)
		assert.Equal(t, "svc-cut", res.Match.ID)
	})

	t.Run("unique substring", func(t *testing.T) {
		res := MatchService(services, "massage")
		require.NotNil(t, res.Match)
		assert.Equal(t, "svc-massage", res.Match.ID)
	})

	t.Run("longer name does not match a shorter catalog name", func(t *testing.T) {
		res := MatchService(services, "I'd like a creambath please")
		assert.Nil(t, res.Match)
		assert.Empty(t, res.Candidates)
	})

	t.Run("ambiguous substring", func(t *testing.T) {
		res := MatchService(services, "hair")
		assert.Nil(t, res.Match)
		assert.True(t, res.Ambiguous())
		assert.Len(t, res.Candidates, 2)
	})

	t.Run("inactive ignored", func(t *testing.T) {
		res := MatchService(services, "perm")
		assert.Nil(t, res.Match)
		assert.Empty(t, res.Candidates)
	})

	t.Run("blank", func(t *testing.T) {
		res := MatchService(services, "  ")
		assert.Nil(t, res.Match)
		assert.False(t, res.Ambiguous())
	})
}

func TestMatchStaff(t *testing.T) {
	staff := []Staff{
		{ID: "st-1", Name: "Dewi Lestari", Active: true},
		{ID: "st-2", Name: "Dewi Sartika", Active: true},
		{ID: "st-3", Name: "Budi", Active: true},
	}
	res := MatchStaff(staff, "BUDI")
	require.NotNil(t, res.Match)
	assert.Equal(t, "st-3", res.Match.ID)

	res = MatchStaff(staff, "dewi")
	assert.True(t, res.Ambiguous())
	assert.Equal(t, []string{"st-1", "st-2"}, []string{res.Candidates[0].ID, res.Candidates[1].ID})

	for _, name := range []string{"Budiman", "Katrina Wijaya", "Dewi Lestari Putri"} {
		res = MatchStaff(staff, name)
		assert.Nil(t, res.Match, name)
		assert.Empty(t, res.Candidates, name)
	}
}

func TestMatchServiceInText(t *testing.T) {
	services := sampleServices()

	cases := []struct {
		name string
		text string
		want string
		amb  int
	}{
		{name: "name inside a sentence", text: "I'd like a creambath please", want: "svc-cream"},
		{name: "punctuation around the name", text: "mau creambath, bisa?", want: "svc-cream"},
		{name: "longer name wins", text: "haircut & color please", want: "svc-cut-color"},
		{name: "shorter name alone", text: "just a haircut", want: "svc-cut"},
		{name: "partial reply falls back to substring", text: "massage", want: "svc-massage"},
		{name: "partial word is not a name", text: "creambaths are great"},
		{name: "ambiguous fallback", text: "hair", amb: 2},
		{name: "inactive ignored", text: "a perm please"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := MatchServiceInText(services, tc.text)
			if tc.want != "" {
				require.NotNil(t, res.Match)
				assert.Equal(t, tc.want, res.Match.ID)
				return
			}
			assert.Nil(t, res.Match)
			assert.Len(t, res.Candidates, tc.amb)
		})
	}
}

func TestWorkingHoursAndProfileDefaults(t *testing.T) {
	p := DefaultProfile("m1")
	assert.Nil(t, p.WorkingHours.ForDay(time.Sunday))
	require.NotNil(t, p.WorkingHours.ForDay(time.Monday))
	assert.Equal(t, "09:00", p.WorkingHours.ForDay(time.Monday).Open)
	assert.Equal(t, 30*time.Minute, p.Granularity())
	assert.Equal(t, time.Duration(0), p.Buffer())

	p.Timezone = "Not/AZone"
	assert.Equal(t, time.UTC, p.Location())

	var nilProfile *Profile
	assert.Equal(t, time.UTC, nilProfile.Location())
}

func TestProfileStoreRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewProfileStore(client)
	ctx := context.Background()

	p, err := store.Get(ctx, "m-missing")
	require.NoError(t, err)
	assert.Equal(t, "m-missing", p.MerchantID)
	assert.NotNil(t, p.WorkingHours.Monday)

	custom := &Profile{
		MerchantID:    "m1",
		Timezone:      "Asia/Makassar",
		BufferMinutes: 10,
		WorkingHours:  WorkingHours{Saturday: &DayHours{Open: "10:00", Close: "14:00"}},
		CalendarIDs:   map[string]string{"st-1": "dewi@example.com"},
	}
	require.NoError(t, store.Set(ctx, custom))
	assert.True(t, mr.Exists("merchant_profile:m1"))

	got, err := store.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, custom, got)

	calID, ok, err := store.CalendarID(ctx, "st-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "dewi@example.com", calID)
	_, ok, err = store.CalendarID(ctx, "st-unknown")
	require.NoError(t, err)
	assert.False(t, ok)

	require.Error(t, store.Set(ctx, &Profile{}))

	mr.Set("merchant_profile:broken", "{not json")
	_, err = store.Get(ctx, "broken")
	assert.Error(t, err)
}

func TestPostgresRepositoryListServices(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	rows := pgxmock.NewRows([]string{"id", "merchant_id", "name", "duration_minutes", "price_cents", "active"}).
		AddRow("svc-cut", "m1", "Haircut", 30, int64(75000), true).
		AddRow("svc-cream", "m1", "Creambath", 60, int64(120000), false)
	mock.ExpectQuery("SELECT id, merchant_id, name, duration_minutes").WithArgs("m1").WillReturnRows(rows)

	services, err := repo.ListServices(context.Background(), "m1")
	require.NoError(t, err)
	require.Len(t, services, 2)
	assert.Equal(t, 30*time.Minute, services[0].Duration())
	assert.False(t, services[1].Active)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepositoryListStaff(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	rows := pgxmock.NewRows([]string{"id", "merchant_id", "name", "specialization", "active"}).
		AddRow("st-1", "m1", "Dewi", "colour", true)
	mock.ExpectQuery("FROM staff").WithArgs("m1").WillReturnRows(rows)

	staff, err := repo.ListStaff(context.Background(), "m1")
	require.NoError(t, err)
	require.Len(t, staff, 1)
	assert.Equal(t, "colour", staff[0].Specialization)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepositoryGetServiceNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	mock.ExpectQuery("FROM services").WithArgs("m1", "nope").
		WillReturnRows(pgxmock.NewRows([]string{"id", "merchant_id", "name", "duration_minutes", "price_cents", "active"}))

	_, err = repo.GetService(context.Background(), "m1", "nope")
	assert.True(t, errors.Is(err, ErrServiceNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepositoryUpsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	mock.ExpectExec("INSERT INTO services").
		WithArgs("svc-cut", "m1", "Haircut", 30, int64(0), true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, repo.UpsertService(context.Background(), Service{ID: "svc-cut", MerchantID: "m1", Name: "Haircut", DurationMinutes: 30, Active: true}))

	assert.Error(t, repo.UpsertService(context.Background(), Service{ID: "bad"}))

	mock.ExpectExec("INSERT INTO staff").
		WithArgs("st-1", "m1", "Dewi", "", true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, repo.UpsertStaff(context.Background(), Staff{ID: "st-1", MerchantID: "m1", Name: "Dewi", Active: true}))

	require.NoError(t, mock.ExpectationsWereMet())
}

type countingLister struct {
	services int
	staff    int
	err      error
}

func (c *countingLister) ListServices(context.Context, string) ([]Service, error) {
	c.services++
	if c.err != nil {
		return nil, c.err
	}
	return sampleServices(), nil
}

func (c *countingLister) ListStaff(context.Context, string) ([]Staff, error) {
	c.staff++
	return []Staff{{ID: "st-1", Name: "Dewi", Active: true}}, nil
}

func TestCachedCatalogReadsThrough(t *testing.T) {
	lister := &countingLister{}
	mem := NewMemoryCatalog()
	mem.PutProfile(&Profile{MerchantID: "m1", Timezone: "Asia/Jakarta", BufferMinutes: 5})
	cat := NewCachedCatalog(lister, mem, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		services, err := cat.ListServices(ctx, "m1")
		require.NoError(t, err)
		assert.Len(t, services, 5)
		_, err = cat.ListStaff(ctx, "m1")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, lister.services)
	assert.Equal(t, 1, lister.staff)

	p, err := cat.Profile(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.BufferMinutes)

	cat.Invalidate("m1")
	_, err = cat.ListServices(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 2, lister.services)
}

func TestCachedCatalogDoesNotCacheErrors(t *testing.T) {
	lister := &countingLister{err: errors.New("db down")}
	cat := NewCachedCatalog(lister, nil, time.Minute)

	_, err := cat.ListServices(context.Background(), "m1")
	require.Error(t, err)
	_, err = cat.ListServices(context.Background(), "m1")
	require.Error(t, err)
	assert.Equal(t, 2, lister.services)

	p, err := cat.Profile(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", p.MerchantID)
}

func TestCachedCatalogWithoutTTL(t *testing.T) {
	lister := &countingLister{}
	cat := NewCachedCatalog(lister, nil, 0)
	_, _ = cat.ListServices(context.Background(), "m1")
	_, _ = cat.ListServices(context.Background(), "m1")
	assert.Equal(t, 2, lister.services)
}

func TestMemoryCatalogReplaces(t *testing.T) {
	mem := NewMemoryCatalog()
	mem.PutService(Service{ID: "a", MerchantID: "m1", Name: "Zumba", DurationMinutes: 60, Active: true})
	mem.PutService(Service{ID: "b", MerchantID: "m1", Name: "Aerobics", DurationMinutes: 45, Active: true})
	mem.PutService(Service{ID: "a", MerchantID: "m1", Name: "Zumba", DurationMinutes: 50, Active: true})

	services, err := mem.ListServices(context.Background(), "m1")
	require.NoError(t, err)
	require.Len(t, services, 2)
	assert.Equal(t, "b", services[0].ID)
	assert.Equal(t, 50, services[1].DurationMinutes)

	svc, ok := FindService(services, "a")
	require.True(t, ok)
	assert.Equal(t, "Zumba", svc.Name)
	_, ok = FindService(services, "missing")
	assert.False(t, ok)
}
