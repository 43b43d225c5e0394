// Package scanner feeds check-in codes from a decoder or from manual entry
// into the attendance recorder.
//
// Scan mode state machine:
//
//	idle -> starting -> running <-> paused -> stopped
//
// A successful decode pauses the decoder, records the code once and resumes
// automatically after ResumeDelay. Close releases the decoder from any state.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"conference-portal/models"

	"go.uber.org/zap"
)

type State int

const (
	Idle State = iota
	Starting
	Running
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	ErrEmptyCode          = errors.New("scanner: please enter a ticket code")
	ErrDecoderUnavailable = errors.New("scanner: decoder unavailable")
	ErrNotRunning         = errors.New("scanner: not running")
	ErrClosed             = errors.New("scanner: closed")
)

// Decoder produces codes, one onDecode call per successful decode. Stop must
// be safe to call more than once.
type Decoder interface {
	Start(ctx context.Context, onDecode func(code string)) error
	Pause() error
	Resume() error
	Stop() error
}

// Recorder is the attendance recording operation.
type Recorder interface {
	RecordAttendance(ctx context.Context, code string, method models.CheckInMethod, operatorID string) models.CheckInResult
}

type Options struct {
	OperatorID  string
	ResumeDelay time.Duration
	// OnResult is called once per recorded code, scan or manual.
	OnResult    func(code string, method models.CheckInMethod, res models.CheckInResult)
	Logger      *zap.Logger
}

type Scanner struct {
	dec  Decoder
	rec  Recorder
	opts Options

	mu           sync.Mutex
	state        State
	startErr     error
	pausedByScan bool
	closed       bool
	cancel       context.CancelFunc
	runCtx       context.Context
	timer        *time.Timer
	wg           sync.WaitGroup
	inflight     sync.WaitGroup
}

func New(dec Decoder, rec Recorder, opts Options) *Scanner {
	if opts.ResumeDelay <= 0 {
		opts.ResumeDelay = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Scanner{dec: dec, rec: rec, opts: opts, state: Idle}
}

func (s *Scanner) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the decoder start failure, if the last start failed.
func (s *Scanner) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startErr
}

// Start acquires the decoder. A failure leaves the scanner stopped with Err
// set; Retry re-initialises from scratch.
func (s *Scanner) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	switch s.state {
	case Starting, Running, Paused:
		s.mu.Unlock()
		return nil
	}
	s.state = Starting
	s.startErr = nil
	runCtx, cancel := context.WithCancel(ctx)
	s.runCtx, s.cancel = runCtx, cancel
	s.mu.Unlock()

	err := s.dec.Start(runCtx, s.handleDecode)

	s.mu.Lock()
	if s.closed || s.state != Starting {
		s.mu.Unlock()
		cancel()
		_ = s.dec.Stop()
		return ErrClosed
	}
	if err != nil {
		s.state = Stopped
		s.startErr = fmt.Errorf("%w: %v", ErrDecoderUnavailable, err)
		startErr := s.startErr
		s.mu.Unlock()
		cancel()
		s.opts.Logger.Warn("scanner start failed", zap.Error(err))
		return startErr
	}
	s.state = Running
	s.mu.Unlock()

	s.opts.Logger.Info("scanner running", zap.String("operator", s.opts.OperatorID))
	return nil
}

func (s *Scanner) handleDecode(code string) {
	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return
	}
	s.state = Paused
	s.pausedByScan = true
	ctx := s.runCtx
	s.wg.Add(1)
	s.inflight.Add(1)
	s.mu.Unlock()

	if err := s.dec.Pause(); err != nil {
		s.opts.Logger.Warn("failed to pause decoder", zap.Error(err))
	}

	go s.process(ctx, code)
}

func (s *Scanner) process(ctx context.Context, code string) {
	defer s.wg.Done()
	defer s.inflight.Done()

	// A result is always reported, even one cut short by Close.
	res := s.rec.RecordAttendance(ctx, code, models.MethodScan, s.opts.OperatorID)
	if s.opts.OnResult != nil {
		s.opts.OnResult(code, models.MethodScan, res)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.state != Paused || !s.pausedByScan {
		return
	}
	s.wg.Add(1)
	s.timer = time.AfterFunc(s.opts.ResumeDelay, func() {
		defer s.wg.Done()
		s.autoResume()
	})
}

func (s *Scanner) autoResume() {
	s.mu.Lock()
	if s.closed || s.state != Paused || !s.pausedByScan {
		s.mu.Unlock()
		return
	}
	s.state = Running
	s.pausedByScan = false
	s.timer = nil
	s.mu.Unlock()

	if err := s.dec.Resume(); err != nil {
		s.opts.Logger.Warn("failed to resume decoder", zap.Error(err))
	}
}

// stopTimerLocked cancels a pending automatic resume. Caller holds s.mu.
func (s *Scanner) stopTimerLocked() {
	if s.timer != nil && s.timer.Stop() {
		s.wg.Done()
	}
	s.timer = nil
}

// Pause is the operator pause. It also turns a pending automatic resume into
// an operator pause.
func (s *Scanner) Pause() error {
	s.mu.Lock()
	switch s.state {
	case Paused:
		s.pausedByScan = false
		s.stopTimerLocked()
		s.mu.Unlock()
		return nil
	case Running:
	default:
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.state = Paused
	s.pausedByScan = false
	s.mu.Unlock()

	if err := s.dec.Pause(); err != nil {
		s.opts.Logger.Warn("failed to pause decoder", zap.Error(err))
	}
	return nil
}

// Resume is the operator resume.
func (s *Scanner) Resume() error {
	s.mu.Lock()
	if s.state != Paused {
		s.mu.Unlock()
		if s.state == Running {
			return nil
		}
		return ErrNotRunning
	}
	s.state = Running
	s.pausedByScan = false
	s.stopTimerLocked()
	s.mu.Unlock()

	if err := s.dec.Resume(); err != nil {
		s.opts.Logger.Warn("failed to resume decoder", zap.Error(err))
	}
	return nil
}

// Retry tears the current session down and starts the decoder again.
func (s *Scanner) Retry(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.mu.Unlock()

	s.teardown(Idle)
	return s.Start(ctx)
}

// Drain waits until every decoded code has been recorded and its result
// reported. Call it once the decoder can produce no more codes, before Close.
func (s *Scanner) Drain() {
	s.inflight.Wait()
}

// Close releases the decoder whatever the current state and waits for any
// in-flight recording to finish. It is safe to call more than once.
func (s *Scanner) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.teardown(Stopped)
}

func (s *Scanner) teardown(next State) error {
	s.mu.Lock()
	s.state = next
	s.pausedByScan = false
	s.stopTimerLocked()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	err := s.dec.Stop()
	s.wg.Wait()
	return err
}

// SubmitManual records a typed code. Blank input is rejected without touching
// the store.
func (s *Scanner) SubmitManual(ctx context.Context, text string) (models.CheckInResult, error) {
	code := strings.TrimSpace(text)
	if code == "" {
		return models.CheckInResult{}, ErrEmptyCode
	}
	res := s.rec.RecordAttendance(ctx, code, models.MethodManual, s.opts.OperatorID)
	if s.opts.OnResult != nil {
		s.opts.OnResult(code, models.MethodManual, res)
	}
	return res, nil
}
