package session

import (
	"fmt"
	"sync"
	"testing"
	"time"
	"umsassist-backend/internal/components/chrono"
	"umsassist-backend/internal/components/telemetry"
	"umsassist-backend/internal/scrapers/ums"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(opts Options) (*Registry, telemetry.RecorderAPI) {
	tel := telemetry.NewRecorderAPI()
	clock := chrono.FixedImpl{At: time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)}
	return NewRegistry(opts, clock, tel), tel
}

func TestCreateGetUpdate(t *testing.T) {
	registry, tel := newTestRegistry(Options{})

	entry := registry.Create(nil)
	_, err := uuid.Parse(entry.Id)
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC), entry.CreatedAt)
	require.False(t, entry.LoggedIn)

	hidden := ums.HiddenFields{ums.FieldBranchId: "14"}
	err = registry.Update(entry.Id, ums.Profile{StudentName: "Asha"}, hidden)
	require.NoError(t, err)
	// later changes to the caller's map are not visible
	hidden[ums.FieldBranchId] = "15"

	got, err := registry.Get(entry.Id)
	require.NoError(t, err)
	require.True(t, got.LoggedIn)
	require.Equal(t, "Asha", got.Profile.StudentName)
	require.Equal(t, "14", got.Hidden[ums.FieldBranchId])
	require.Equal(t, entry.CreatedAt, got.CreatedAt)

	counts := tel.Find("count", report_registry_size)
	require.Len(t, counts, 1)
	require.Equal(t, []any{int64(1)}, counts[0].Params)
}

func TestUnknownSession(t *testing.T) {
	registry, _ := newTestRegistry(Options{})

	_, err := registry.Get("")
	require.ErrorIs(t, err, ErrSessionNotFound)
	_, err = registry.Get(uuid.NewString())
	require.ErrorIs(t, err, ErrSessionNotFound)
	err = registry.Update("missing", ums.Profile{}, nil)
	require.ErrorIs(t, err, ErrSessionNotFound)
	require.False(t, registry.Remove("missing"))
}

func TestExpiredSessionIsUnknown(t *testing.T) {
	registry, _ := newTestRegistry(Options{TTL: 50 * time.Millisecond})

	entry := registry.Create(nil)
	_, err := registry.Get(entry.Id)
	require.NoError(t, err)

	time.Sleep(150 * time.Millisecond)

	_, err = registry.Get(entry.Id)
	require.ErrorIs(t, err, ErrSessionNotFound)
	require.ErrorIs(t, registry.Update(entry.Id, ums.Profile{}, nil), ErrSessionNotFound)
}

func TestCapacityEvictsLeastRecentlyUsed(t *testing.T) {
	registry, tel := newTestRegistry(Options{Capacity: 2})

	first := registry.Create(nil)
	second := registry.Create(nil)
	// touch the first so the second becomes least recently used
	_, err := registry.Get(first.Id)
	require.NoError(t, err)
	third := registry.Create(nil)

	require.Equal(t, 2, registry.Len())
	_, err = registry.Get(second.Id)
	require.ErrorIs(t, err, ErrSessionNotFound)
	_, err = registry.Get(first.Id)
	require.NoError(t, err)
	_, err = registry.Get(third.Id)
	require.NoError(t, err)

	require.NotEmpty(t, tel.Find("debug", report_registry_evicted))
}

func TestRemove(t *testing.T) {
	registry, _ := newTestRegistry(Options{})

	entry := registry.Create(nil)
	require.True(t, registry.Remove(entry.Id))
	_, err := registry.Get(entry.Id)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestConcurrentAccess(t *testing.T) {
	registry, _ := newTestRegistry(Options{})

	wg := sync.WaitGroup{}
	ids := make([]string, 32)
	for i := range ids {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry := registry.Create(nil)
			ids[i] = entry.Id
			for j := 0; j < 10; j++ {
				err := registry.Update(entry.Id, ums.Profile{StudentName: fmt.Sprint(j)}, nil)
				if err != nil {
					t.Error(err)
				}
				_, err = registry.Get(entry.Id)
				if err != nil {
					t.Error(err)
				}
			}
		}()
	}
	wg.Wait()

	require.Equal(t, len(ids), registry.Len())
	for _, id := range ids {
		entry, err := registry.Get(id)
		require.NoError(t, err)
		require.Equal(t, "9", entry.Profile.StudentName)
	}
}
