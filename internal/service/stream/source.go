package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"pettracker/internal/logger"
	"pettracker/internal/model"
)

// ErrDecoderUnavailable is recorded when the decoder executable cannot be found.
var ErrDecoderUnavailable = errors.New("stream: decoder executable not available")

const (
	// DefaultStopGrace is how long a decoder may take to exit after SIGTERM
	// before it is killed.
	DefaultStopGrace = 5 * time.Second
	// DefaultLogEvery controls the "frames decoded" progress log.
	DefaultLogEvery = 60
)

type Options struct {
	Width     int
	Height    int
	Command   CommandFunc
	StopGrace time.Duration
	LogEvery  uint64
}

func (o Options) withDefaults() Options {
	if o.Command == nil {
		o.Command = FFmpegCommand("ffmpeg")
	}
	if o.StopGrace <= 0 {
		o.StopGrace = DefaultStopGrace
	}
	if o.LogEvery == 0 {
		o.LogEvery = DefaultLogEvery
	}
	return o
}

type state int

const (
	stateIdle state = iota
	stateRunning
	stateStopped
)

// Source keeps the most recent decoded frame of one camera. A decoder
// process writes raw frames to a pipe; a single reader goroutine copies each
// complete frame into the slot, overwriting whatever was there. Readers get
// copies, so the slot can be overwritten while a caller still holds a frame.
type Source struct {
	cameraID  string
	url       string
	opts      Options
	frameSize int
	logger    *logger.Logger

	mu   sync.Mutex
	slot []byte
	seq  uint64

	lifeMu   sync.Mutex
	state    state
	cmd      *exec.Cmd
	cancel   context.CancelFunc
	startErr error
	stopping atomic.Bool
	stopOnce sync.Once
	killer   *time.Timer
	done     chan struct{}

	frames atomic.Uint64
}

// NewSource creates an idle source for one camera.
func NewSource(cameraID, url string, opts Options, log *logger.Logger) *Source {
	opts = opts.withDefaults()
	return &Source{
		cameraID:  cameraID,
		url:       url,
		opts:      opts,
		frameSize: model.FrameSize(opts.Width, opts.Height),
		logger:    log.With("camera", cameraID),
		cancel:    func() {},
		done:      make(chan struct{}),
	}
}

func (s *Source) CameraID() string { return s.cameraID }
func (s *Source) URL() string      { return s.url }

// Start launches the decoder and the reader loop. A decoder that cannot be
// spawned is logged and leaves the source stopped; Start never fails loudly
// because other cameras must keep running.
func (s *Source) Start() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	switch s.state {
	case stateRunning:
		s.logger.Warning("[%s] reader already running", s.cameraID)
		return
	case stateStopped:
		s.logger.Warning("[%s] reader was stopped; add the camera again to restart it", s.cameraID)
		return
	}

	if s.frameSize <= 0 {
		s.fail(fmt.Errorf("invalid frame size %dx%d", s.opts.Width, s.opts.Height))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := s.opts.Command(ctx, s.url, s.opts.Width, s.opts.Height)
	cmd.Stderr = &stderrLogger{log: s.logger}
	cmd.WaitDelay = s.opts.StopGrace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		s.fail(fmt.Errorf("failed to open decoder output: %w", err))
		return
	}
	if err := cmd.Start(); err != nil {
		cancel()
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("%w: %v", ErrDecoderUnavailable, err)
		}
		s.fail(err)
		return
	}

	s.cmd = cmd
	s.cancel = cancel
	s.state = stateRunning
	go s.readLoop(stdout)

	s.logger.Info("[%s] reader started → %s", s.cameraID, s.url)
}

// fail leaves the source stopped. Caller holds lifeMu.
func (s *Source) fail(err error) {
	s.startErr = err
	s.state = stateStopped
	close(s.done)
	if errors.Is(err, ErrDecoderUnavailable) {
		s.logger.Error("[%s] decoder not installed: %v", s.cameraID, err)
		return
	}
	s.logger.Error("[%s] failed to start decoder: %v", s.cameraID, err)
}

func (s *Source) readLoop(stdout io.Reader) {
	defer s.finish()

	buf := make([]byte, s.frameSize)
	for !s.stopping.Load() {
		if _, err := io.ReadFull(stdout, buf); err != nil {
			if !s.stopping.Load() {
				s.logger.Warning("[%s] incomplete frame (%v); terminating reader", s.cameraID, err)
			}
			return
		}
		s.store(buf)

		if n := s.frames.Add(1); n%s.opts.LogEvery == 0 {
			s.logger.Info("[%s] %d frames decoded", s.cameraID, n)
		}
	}
}

// finish reaps the decoder. It runs on the reader goroutine only.
func (s *Source) finish() {
	s.terminate()
	kill := time.AfterFunc(s.opts.StopGrace, s.cancel)
	err := s.cmd.Wait()
	kill.Stop()
	s.cancel()

	if err != nil && !s.stopping.Load() {
		s.logger.Debug("[%s] decoder exited: %v", s.cameraID, err)
	}

	s.lifeMu.Lock()
	s.state = stateStopped
	if s.killer != nil {
		s.killer.Stop()
	}
	s.lifeMu.Unlock()
	close(s.done)

	s.logger.Info("[%s] reader stopped after %d frames", s.cameraID, s.frames.Load())
}

// terminate asks the decoder to exit. Signalling a reaped process is a no-op.
func (s *Source) terminate() {
	if s.cmd == nil || s.cmd.Process == nil {
		return
	}
	if err := s.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Debug("[%s] failed to signal decoder: %v", s.cameraID, err)
	}
}

func (s *Source) store(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.slot == nil {
		s.slot = make([]byte, s.frameSize)
	}
	copy(s.slot, frame)
	s.seq++
}

// LatestFrame returns a copy of the most recent complete frame, or false when
// nothing has been decoded yet. The last frame survives the end of the stream.
func (s *Source) LatestFrame() (model.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seq == 0 {
		return model.Frame{}, false
	}
	data := make([]byte, len(s.slot))
	copy(data, s.slot)
	return model.Frame{
		Width:  s.opts.Width,
		Height: s.opts.Height,
		Seq:    s.seq,
		Data:   data,
	}, true
}

// Stop terminates the decoder and waits for the reader loop to exit. A read
// in progress completes; no further frame is stored afterwards. Stop is
// idempotent and safe on a source that was never started or already ended.
func (s *Source) Stop() {
	s.stopOnce.Do(func() {
		s.stopping.Store(true)

		s.lifeMu.Lock()
		if s.state == stateIdle {
			s.state = stateStopped
			close(s.done)
		}
		cmd, cancel := s.cmd, s.cancel
		s.lifeMu.Unlock()

		if cmd != nil && cmd.Process != nil {
			if err := cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
				s.logger.Debug("[%s] failed to signal decoder: %v", s.cameraID, err)
			}
			// A decoder ignoring SIGTERM keeps the pipe open; kill it.
			s.lifeMu.Lock()
			if s.state == stateRunning {
				s.killer = time.AfterFunc(s.opts.StopGrace, cancel)
			}
			s.lifeMu.Unlock()
		}
	})
	<-s.done
}

// Running reports whether the reader loop is alive.
func (s *Source) Running() bool {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	return s.state == stateRunning
}

// Done is closed once the reader loop has exited and the decoder was reaped,
// or immediately after a failed start.
func (s *Source) Done() <-chan struct{} {
	return s.done
}

// Err returns the reason Start failed, if it did.
func (s *Source) Err() error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	return s.startErr
}

// FramesDecoded returns how many complete frames were read.
func (s *Source) FramesDecoded() uint64 {
	return s.frames.Load()
}
