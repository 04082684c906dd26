package session

import (
	"errors"
	"maps"
	"sync"
	"time"
	"umsassist-backend/internal/components/assert"
	"umsassist-backend/internal/components/chrono"
	"umsassist-backend/internal/components/telemetry"
	"umsassist-backend/internal/scrapers/ums"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	report_registry_size    = "registry.size"
	report_registry_evicted = "registry.evicted"
)

// ErrSessionNotFound is returned for ids that were never issued and for
// ids that have expired or been evicted, callers cannot tell them apart.
var ErrSessionNotFound = errors.New("session: invalid or expired session")

const (
	DefaultTTL      = 45 * time.Minute
	DefaultCapacity = 4096
)

// Entry is everything the server keeps about one portal session.
type Entry struct {
	Id        string
	CreatedAt time.Time
	// Client is owned by this entry, it is never shared with another session.
	Client *ums.Client

	// LoggedIn is set by the first Update.
	LoggedIn bool
	Profile  ums.Profile
	Hidden   ums.HiddenFields
}

type Options struct {
	TTL      time.Duration
	Capacity int
}

// Registry maps session ids to entries. Entries expire TTL after their last
// write and the least recently used entry is evicted once Capacity is reached.
type Registry struct {
	cache *expirable.LRU[string, Entry]
	// serializes read-modify-write in Update, reads go straight to the cache
	mutex sync.Mutex
	time  chrono.API
	tel   telemetry.API
}

func NewRegistry(opts Options, time chrono.API, tel telemetry.API) *Registry {
	assert.NotNil(time, "chrono")
	assert.NotNil(tel, "telemetry")

	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}

	tel = telemetry.NewScopedAPI("session", tel)
	onEvict := func(id string, _ Entry) {
		tel.ReportDebug(report_registry_evicted, id)
	}

	return &Registry{
		cache: expirable.NewLRU[string, Entry](opts.Capacity, onEvict, opts.TTL),
		time:  time,
		tel:   tel,
	}
}

// Create registers a new entry owning the client under a fresh random id.
func (r *Registry) Create(client *ums.Client) Entry {
	entry := Entry{
		Id:        uuid.NewString(),
		CreatedAt: r.time.Now(),
		Client:    client,
		Hidden:    ums.HiddenFields{},
	}
	r.cache.Add(entry.Id, entry)
	r.tel.ReportCount(report_registry_size, int64(r.cache.Len()))
	return entry
}

func (r *Registry) Get(id string) (Entry, error) {
	if id == "" {
		return Entry{}, ErrSessionNotFound
	}
	entry, ok := r.cache.Get(id)
	if !ok {
		return Entry{}, ErrSessionNotFound
	}
	return entry, nil
}

// Update stores the result of a login, the last write wins.
func (r *Registry) Update(id string, profile ums.Profile, hidden ums.HiddenFields) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	entry, err := r.Get(id)
	if err != nil {
		return err
	}
	entry.LoggedIn = true
	entry.Profile = profile
	entry.Hidden = maps.Clone(hidden)
	if entry.Hidden == nil {
		entry.Hidden = ums.HiddenFields{}
	}
	r.cache.Add(id, entry)
	return nil
}

// Remove forgets the entry, it returns false when there was nothing to remove.
func (r *Registry) Remove(id string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	removed := r.cache.Remove(id)
	if removed {
		r.tel.ReportCount(report_registry_size, int64(r.cache.Len()))
	}
	return removed
}

// Len counts live entries, including expired ones not purged yet.
func (r *Registry) Len() int {
	return r.cache.Len()
}
