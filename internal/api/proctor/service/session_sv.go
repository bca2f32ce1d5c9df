package proctorService

import (
	"ProctorEngine/internal/entity"
	"ProctorEngine/pkg/inference"
	"ProctorEngine/pkg/media"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	faceCycleInterval   = 500 * time.Millisecond
	audioCycleInterval  = 200 * time.Millisecond
	objectCycleInterval = 1 * time.Second

	frameStaleness    = 3 * time.Second
	audioRingCapacity = 16384
)

// Session is one live proctored interview. The client streams media into the
// frame and sample buffers over websockets; the monitoring loops poll those
// buffers on their own cadence, so a slow model call never blocks ingestion
// and a stalled client never blocks the engine.
type Session struct {
	ID          string
	InterviewID string
	UserID      string
	ReportEmail string
	StartTime   time.Time

	log        *logrus.Logger
	frames     *media.FrameBuffer
	audio      *media.SampleBuffer
	monitor    *monitor
	faces      *faceMonitor
	audioMon   *audioMonitor
	escalator  *escalator
	detector   *objectEngine
	landmarker inference.IInference

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once

	subMu       sync.Mutex
	subscribers map[chan entity.Violation]struct{}
}

func (s *Session) run() {
	s.wg.Add(4)
	go s.faceLoop()
	go s.audioLoop()
	go s.objectLoop()
	go s.spotCheckLoop()
}

// faceLoop drives face presence and head pose monitoring. Every per-cycle
// failure is swallowed: a dropped model connection or a corrupt frame costs
// one cycle, never the session.
func (s *Session) faceLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(faceCycleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.faceCycle()
		}
	}
}

func (s *Session) faceCycle() {
	frame, ok := s.frames.Latest()
	if !ok {
		return
	}

	landmarks, err := s.landmarker.DetectLandmarks(frame)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"session_id": s.ID,
			"error":      err.Error(),
		}).Debug("Face landmark cycle failed")
		return
	}

	if s.ctx.Err() != nil {
		return
	}

	if obs, fired := s.faces.Evaluate(landmarks); fired {
		s.monitor.Record(obs.Violation, obs.Message)
	}

	if s.faces.AwayDuration() >= sustainedAwayDuration && !s.escalator.InFlight() {
		s.faces.RestartAwayClock()
		go s.escalator.Analyze(s.ctx, s.ID, frame, "sustained_looking_away")
	}
}

func (s *Session) audioLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(audioCycleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.audioCycle()
		}
	}
}

func (s *Session) audioCycle() {
	if !s.audio.Receiving() {
		return
	}

	window, ok := s.audio.ReadWindow(audioWindowSize)
	if !ok {
		return
	}

	if s.audioMon.Evaluate(window) {
		s.monitor.Record(entity.ViolationBackgroundNoise, "Sustained background noise detected")
	}
}

// objectLoop scans frames for suspicious objects when the optional detector
// is deployed. The load is retried in-loop so a detector that comes up after
// the session started still gets picked up.
func (s *Session) objectLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(objectCycleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.objectCycle()
		}
	}
}

func (s *Session) objectCycle() {
	// Until the client is actually streaming there is nothing to scan, so
	// don't even pull the model in.
	if !s.frames.Ready() {
		return
	}

	if !s.detector.Loaded() {
		if err := s.detector.EnsureLoaded(s.ctx); err != nil {
			return
		}
	}

	frame, ok := s.frames.Latest()
	if !ok {
		return
	}

	detections, err := s.detector.Detect(frame)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"session_id": s.ID,
			"error":      err.Error(),
		}).Debug("Object detection cycle failed")
		return
	}

	if s.ctx.Err() != nil {
		return
	}

	if hit, alarm := s.escalator.ShouldAlarmOnObjects(detections); alarm {
		trigger := fmt.Sprintf("object_alarm:%s", hit.Class)
		go s.escalator.Analyze(s.ctx, s.ID, frame, trigger)
	}
}

// spotCheckLoop fires a deep analysis at a random interval, rescheduling
// itself after each shot. A spot check that lands while another analysis is
// in flight is skipped, not queued.
func (s *Session) spotCheckLoop() {
	defer s.wg.Done()

	timer := time.NewTimer(nextSpotCheckDelay())
	defer timer.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-timer.C:
		}

		if frame, ok := s.frames.Latest(); ok && !s.escalator.InFlight() {
			s.escalator.Analyze(s.ctx, s.ID, frame, "spot_check")
		}

		timer.Reset(nextSpotCheckDelay())
	}
}

// stop tears the session down. Safe to call more than once; later calls are
// no-ops.
func (s *Session) stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
		s.monitor.Stop()
		s.landmarker.CloseConnections()

		s.subMu.Lock()
		for ch := range s.subscribers {
			close(ch)
		}
		s.subscribers = nil
		s.subMu.Unlock()
	})
}

func (s *Session) subscribe() (<-chan entity.Violation, func()) {
	ch := make(chan entity.Violation, 16)

	s.subMu.Lock()
	if s.subscribers == nil {
		s.subMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()

	return ch, func() {
		s.subMu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.subMu.Unlock()
	}
}

// broadcast fans an accepted violation out to event subscribers. Sends are
// non-blocking; a consumer that stopped reading loses events instead of
// stalling the monitor.
func (s *Session) broadcast(violation entity.Violation) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for ch := range s.subscribers {
		select {
		case ch <- violation:
		default:
		}
	}
}
