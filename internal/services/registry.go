package services

import (
	"github.com/fyrsmithlabs/buildscout/internal/learning"
	"github.com/fyrsmithlabs/buildscout/internal/matcher"
	"github.com/fyrsmithlabs/buildscout/internal/patternstore"
	"github.com/fyrsmithlabs/buildscout/internal/race"
)

// Registry provides access to the buildscout services.
type Registry interface {
	Catalog() *race.Catalog
	Store() *patternstore.Store
	Learning() *learning.Service
	Matcher() *matcher.Matcher
	Ingest() *IngestQueue
	// Close stops the ingest worker. Pending writes fail with ErrQueueClosed.
	Close() error
}

// Options configures the registry with service instances.
type Options struct {
	Catalog  *race.Catalog
	Store    *patternstore.Store
	Learning *learning.Service
	Matcher  *matcher.Matcher
	Ingest   *IngestQueue
}

type registry struct {
	catalog  *race.Catalog
	store    *patternstore.Store
	learning *learning.Service
	matcher  *matcher.Matcher
	ingest   *IngestQueue
}

// NewRegistry creates a new service registry.
func NewRegistry(opts Options) Registry {
	return &registry{
		catalog:  opts.Catalog,
		store:    opts.Store,
		learning: opts.Learning,
		matcher:  opts.Matcher,
		ingest:   opts.Ingest,
	}
}

func (r *registry) Catalog() *race.Catalog      { return r.catalog }
func (r *registry) Store() *patternstore.Store  { return r.store }
func (r *registry) Learning() *learning.Service { return r.learning }
func (r *registry) Matcher() *matcher.Matcher   { return r.matcher }
func (r *registry) Ingest() *IngestQueue        { return r.ingest }

func (r *registry) Close() error {
	if r.ingest == nil {
		return nil
	}
	r.ingest.Close()
	return nil
}
