package factory

import (
	"errors"
	"sync"
)

// Resources collects the shutdown hooks of everything the factories open
type Resources struct {
	mu      sync.Mutex
	closers []func() error
}

// NewResources creates an empty resource set
func NewResources() *Resources {
	return &Resources{}
}

// Add registers a shutdown hook
func (r *Resources) Add(closer func() error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closers = append(r.closers, closer)
}

// Close runs every hook in reverse order of registration
func (r *Resources) Close() error {
	r.mu.Lock()
	closers := r.closers
	r.closers = nil
	r.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
