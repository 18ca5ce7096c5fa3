package service

import (
	"sort"
	"sync"

	"pettracker/internal/dto"
	"pettracker/internal/logger"
	"pettracker/internal/model"
	"pettracker/internal/service/detector"
	"pettracker/internal/service/stream"
)

// Manager is the lifecycle authority for cameras: each camera gets a frame
// source and a detector reading from it.
type Manager struct {
	sources   *stream.Registry
	detectors *detector.Registry
	detOpts   detector.Options
	logger    *logger.Logger

	mu      sync.Mutex
	cameras map[string]model.Camera
}

func NewManager(sources *stream.Registry, detectors *detector.Registry, detOpts detector.Options, log *logger.Logger) *Manager {
	return &Manager{
		sources:   sources,
		detectors: detectors,
		detOpts:   detOpts,
		logger:    log,
		cameras:   make(map[string]model.Camera),
	}
}

// StartCameras starts every configured camera. A repeated id replaces the
// earlier entry.
func (m *Manager) StartCameras(cameras []model.Camera) {
	if len(cameras) == 0 {
		m.logger.Warning("No cameras configured")
		return
	}
	for _, cam := range cameras {
		m.AddCamera(cam)
	}
	m.logger.Info("🎬 Manager started %d camera(s)", len(m.sources.IDs()))
}

// AddCamera starts (or restarts) the source and detector of one camera.
func (m *Manager) AddCamera(cam model.Camera) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.cameras[cam.ID]; ok {
		m.detectors.Remove(cam.ID)
	}
	src := m.sources.Add(cam.ID, cam.URL)
	m.detectors.Add(src, m.detOpts)
	m.cameras[cam.ID] = cam
	m.logger.Info("📹 Camera %s added", cam.ID)
}

// RemoveCamera stops the detector before its source.
func (m *Manager) RemoveCamera(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.cameras[id]; !ok {
		return false
	}
	m.detectors.Remove(id)
	m.sources.Remove(id)
	delete(m.cameras, id)
	m.logger.Info("Camera %s removed", id)
	return true
}

// Status reports every camera in id order.
func (m *Manager) Status() []dto.CameraStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]dto.CameraStatus, 0, len(m.cameras))
	for id, cam := range m.cameras {
		st := dto.CameraStatus{ID: id, URL: cam.URL}
		if src, ok := m.sources.Get(id); ok {
			st.Streaming = src.Running()
			st.FramesDecoded = src.FramesDecoded()
		}
		if det, ok := m.detectors.Get(id); ok {
			s := det.Stats()
			st.Detecting = det.Running()
			st.Detector = dto.DetectorStats{
				Cycles:     s.Cycles,
				Skipped:    s.Skipped,
				Failures:   s.Failures,
				Detections: s.Detections,
				Dropped:    s.Dropped,
			}
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Stop tears down all detectors, then all sources.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.detectors.StopAll()
	m.sources.StopAll()
	m.cameras = make(map[string]model.Camera)
	m.logger.Info("🛑 All cameras stopped")
}
