package detector

import (
	"sort"
	"sync"

	"pettracker/internal/logger"
	"pettracker/internal/service/ai"
)

// Registry is the single table of running detectors keyed by camera id.
// Detectors share one classifier and one publisher.
type Registry struct {
	mu        sync.Mutex
	detectors map[string]*Detector
	cls       ai.Classifier
	pub       Publisher
	options   []Option
	logger    *logger.Logger
}

func NewRegistry(cls ai.Classifier, pub Publisher, log *logger.Logger, options ...Option) *Registry {
	return &Registry{
		detectors: make(map[string]*Detector),
		cls:       cls,
		pub:       pub,
		options:   options,
		logger:    log,
	}
}

// Add starts a detector for src, stopping any detector already running for
// the same camera first.
func (r *Registry) Add(src FrameProvider, opts Options) *Detector {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := src.CameraID()
	if old, ok := r.detectors[id]; ok {
		r.logger.Warning("Detector %s already exists, stopping old one", id)
		old.Stop()
		delete(r.detectors, id)
	}

	d := New(src, r.cls, r.pub, opts, r.logger, r.options...)
	r.detectors[id] = d
	d.Start()
	return d
}

func (r *Registry) Get(cameraID string) (*Detector, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.detectors[cameraID]
	return d, ok
}

func (r *Registry) Remove(cameraID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.detectors[cameraID]
	if !ok {
		return false
	}
	d.Stop()
	delete(r.detectors, cameraID)
	return true
}

// StopAll stops every detector concurrently so one hung classifier call
// delays shutdown by at most one StopTimeout.
func (r *Registry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	var wg sync.WaitGroup
	for _, d := range r.detectors {
		wg.Add(1)
		go func(d *Detector) {
			defer wg.Done()
			d.Stop()
		}(d)
	}
	wg.Wait()

	r.detectors = make(map[string]*Detector)
	r.logger.Info("All detectors stopped")
}

func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.detectors))
	for id := range r.detectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.detectors)
}
