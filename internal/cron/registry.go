package cron

import (
	"context"
	"slices"
)

// Job is one unit of scheduled work. Name feeds logs and metrics labels, so
// it should be stable across deploys.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds the jobs a worker executes, in registration order. Order
// matters: retention jobs run after the reconcile jobs that feed them.
type Registry struct {
	jobs []Job
}

func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{}
	r.Register(jobs...)
	return r
}

// Register appends jobs, silently skipping nils so callers can pass
// conditionally-constructed jobs without guarding.
func (r *Registry) Register(jobs ...Job) {
	for _, job := range jobs {
		if job == nil {
			continue
		}
		r.jobs = append(r.jobs, job)
	}
}

// Jobs returns a copy; mutating it does not affect the registry.
func (r *Registry) Jobs() []Job {
	return slices.Clone(r.jobs)
}
