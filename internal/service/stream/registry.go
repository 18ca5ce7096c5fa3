package stream

import (
	"sort"
	"sync"

	"pettracker/internal/logger"
)

// Registry is the single table of live sources keyed by camera id.
// Lifecycle operations are serialized, so Add never leaves two decoders
// running for one camera.
type Registry struct {
	mu      sync.Mutex
	sources map[string]*Source
	opts    Options
	logger  *logger.Logger
}

// NewRegistry creates an empty registry; every source it starts uses opts.
func NewRegistry(opts Options, log *logger.Logger) *Registry {
	return &Registry{
		sources: make(map[string]*Source),
		opts:    opts,
		logger:  log,
	}
}

// Add starts a source for cameraID. An existing source for the same id is
// stopped, and its decoder reaped, before the new one starts.
func (r *Registry) Add(cameraID, url string) *Source {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.sources[cameraID]; ok {
		r.logger.Warning("Stream %s already exists, stopping old one", cameraID)
		old.Stop()
		delete(r.sources, cameraID)
	}

	src := NewSource(cameraID, url, r.opts, r.logger)
	r.sources[cameraID] = src
	src.Start()
	return src
}

func (r *Registry) Get(cameraID string) (*Source, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	src, ok := r.sources[cameraID]
	return src, ok
}

// Remove stops and forgets the source for cameraID.
func (r *Registry) Remove(cameraID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	src, ok := r.sources[cameraID]
	if !ok {
		return false
	}
	src.Stop()
	delete(r.sources, cameraID)
	return true
}

// StopAll stops every source concurrently and empties the registry. Sources
// whose stream already ended are fine to stop again.
func (r *Registry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	var wg sync.WaitGroup
	for _, src := range r.sources {
		wg.Add(1)
		go func(src *Source) {
			defer wg.Done()
			src.Stop()
		}(src)
	}
	wg.Wait()

	r.sources = make(map[string]*Source)
	r.logger.Info("All streams stopped")
}

// IDs returns the registered camera ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.sources))
	for id := range r.sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sources)
}
