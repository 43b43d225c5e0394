package scanner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"conference-portal/models"

	qrgen "github.com/skip2/go-qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeDecoder struct {
	mu       sync.Mutex
	startErr error
	onDecode func(string)
	starts   int
	pauses   int
	resumes  int
	stops    int
	pauseErr error
}

func (d *fakeDecoder) Start(ctx context.Context, onDecode func(string)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.starts++
	if d.startErr != nil {
		return d.startErr
	}
	d.onDecode = onDecode
	return nil
}

func (d *fakeDecoder) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pauses++
	return d.pauseErr
}

func (d *fakeDecoder) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resumes++
	return nil
}

func (d *fakeDecoder) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops++
	d.onDecode = nil
	return nil
}

func (d *fakeDecoder) emit(code string) {
	d.mu.Lock()
	fn := d.onDecode
	d.mu.Unlock()
	if fn != nil {
		fn(code)
	}
}

func (d *fakeDecoder) counts() (starts, pauses, resumes, stops int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.starts, d.pauses, d.resumes, d.stops
}

type call struct {
	code     string
	method   models.CheckInMethod
	operator string
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []call
	block chan struct{}
}

func (r *fakeRecorder) RecordAttendance(ctx context.Context, code string, method models.CheckInMethod, operatorID string) models.CheckInResult {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return models.CheckInResult{Message: "cancelled"}
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{code, method, operatorID})
	return models.CheckInResult{Success: true, Message: "Welcome"}
}

func (r *fakeRecorder) recorded() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

func TestScanPausesRecordsOnceAndResumes(t *testing.T) {
	defer goleak.VerifyNone(t)

	dec := &fakeDecoder{}
	rec := &fakeRecorder{}
	results := make(chan models.CheckInResult, 4)
	s := New(dec, rec, Options{
		OperatorID:  "op1",
		ResumeDelay: 20 * time.Millisecond,
		OnResult: func(code string, method models.CheckInMethod, res models.CheckInResult) {
			results <- res
		},
	})
	defer s.Close()

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, Running, s.State())

	dec.emit("TK-1")
	dec.emit("TK-1")
	dec.emit("TK-1")

	select {
	case res := <-results:
		assert.True(t, res.Success)
	case <-time.After(2 * time.Second):
		t.Fatal("no result")
	}

	assert.Eventually(t, func() bool { return s.State() == Running }, 2*time.Second, 5*time.Millisecond)

	calls := rec.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, call{"TK-1", models.MethodScan, "op1"}, calls[0])

	_, pauses, resumes, _ := dec.counts()
	assert.Equal(t, 1, pauses)
	assert.Equal(t, 1, resumes)

	dec.emit("TK-1")
	assert.Eventually(t, func() bool { return len(rec.recorded()) == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestPauseFailureIsNotFatal(t *testing.T) {
	defer goleak.VerifyNone(t)

	dec := &fakeDecoder{pauseErr: errors.New("track busy")}
	rec := &fakeRecorder{}
	s := New(dec, rec, Options{ResumeDelay: 10 * time.Millisecond})
	defer s.Close()

	require.NoError(t, s.Start(context.Background()))
	dec.emit("TK-2")

	assert.Eventually(t, func() bool { return len(rec.recorded()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return s.State() == Running }, 2*time.Second, 5*time.Millisecond)
}

func TestStartFailureThenRetry(t *testing.T) {
	defer goleak.VerifyNone(t)

	dec := &fakeDecoder{startErr: errors.New("permission denied")}
	s := New(dec, &fakeRecorder{}, Options{})
	defer s.Close()

	err := s.Start(context.Background())
	require.ErrorIs(t, err, ErrDecoderUnavailable)
	assert.Equal(t, Stopped, s.State())
	assert.ErrorIs(t, s.Err(), ErrDecoderUnavailable)

	dec.mu.Lock()
	dec.startErr = nil
	dec.mu.Unlock()

	require.NoError(t, s.Retry(context.Background()))
	assert.Equal(t, Running, s.State())
	assert.NoError(t, s.Err())

	starts, _, _, stops := dec.counts()
	assert.Equal(t, 2, starts)
	assert.Equal(t, 1, stops)
}

func TestOperatorPauseBlocksAutoResume(t *testing.T) {
	defer goleak.VerifyNone(t)

	dec := &fakeDecoder{}
	rec := &fakeRecorder{}
	s := New(dec, rec, Options{ResumeDelay: 10 * time.Millisecond})
	defer s.Close()

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Pause())
	assert.Equal(t, Paused, s.State())

	dec.emit("TK-3")
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, rec.recorded())
	assert.Equal(t, Paused, s.State())

	require.NoError(t, s.Resume())
	assert.Equal(t, Running, s.State())
}

func TestCloseMidScanReleasesDecoder(t *testing.T) {
	defer goleak.VerifyNone(t)

	dec := &fakeDecoder{}
	rec := &fakeRecorder{block: make(chan struct{})}
	s := New(dec, rec, Options{ResumeDelay: time.Hour})

	require.NoError(t, s.Start(context.Background()))
	dec.emit("TK-4")
	assert.Equal(t, Paused, s.State())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.Equal(t, Stopped, s.State())
	_, _, _, stops := dec.counts()
	assert.Equal(t, 1, stops)
	assert.ErrorIs(t, s.Start(context.Background()), ErrClosed)
	assert.ErrorIs(t, s.Retry(context.Background()), ErrClosed)
}

func TestCloseDuringResumeDelay(t *testing.T) {
	defer goleak.VerifyNone(t)

	dec := &fakeDecoder{}
	rec := &fakeRecorder{}
	s := New(dec, rec, Options{ResumeDelay: time.Hour})

	require.NoError(t, s.Start(context.Background()))
	dec.emit("TK-5")
	assert.Eventually(t, func() bool { return len(rec.recorded()) == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Close())
	_, _, resumes, _ := dec.counts()
	assert.Equal(t, 0, resumes)
}

func TestDrainWaitsForInFlightScan(t *testing.T) {
	defer goleak.VerifyNone(t)

	dec := &fakeDecoder{}
	rec := &fakeRecorder{block: make(chan struct{})}
	var mu sync.Mutex
	var results []models.CheckInResult
	s := New(dec, rec, Options{
		ResumeDelay: time.Hour,
		OnResult: func(code string, method models.CheckInMethod, res models.CheckInResult) {
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		},
	})

	require.NoError(t, s.Start(context.Background()))
	dec.emit("TK-6")
	time.AfterFunc(50*time.Millisecond, func() { close(rec.block) })

	s.Drain()
	require.Len(t, rec.recorded(), 1)
	mu.Lock()
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	mu.Unlock()

	require.NoError(t, s.Close())
}

func TestCloseMidScanStillReportsResult(t *testing.T) {
	defer goleak.VerifyNone(t)

	dec := &fakeDecoder{}
	rec := &fakeRecorder{block: make(chan struct{})}
	reported := make(chan models.CheckInResult, 1)
	s := New(dec, rec, Options{
		ResumeDelay: time.Hour,
		OnResult: func(code string, method models.CheckInMethod, res models.CheckInResult) {
			reported <- res
		},
	})

	require.NoError(t, s.Start(context.Background()))
	dec.emit("TK-7")
	require.NoError(t, s.Close())

	select {
	case res := <-reported:
		assert.False(t, res.Success)
		assert.Equal(t, "cancelled", res.Message)
	default:
		t.Fatal("no result reported for the interrupted scan")
	}
}

func TestLineDecoderReportsBusyLines(t *testing.T) {
	defer goleak.VerifyNone(t)

	pr, pw := io.Pipe()
	dec := NewLineDecoder(pr)
	busy := make(chan string, 1)
	dec.OnBusy = func(code string) { busy <- code }

	require.NoError(t, dec.Start(context.Background(), func(code string) {
		t.Errorf("decoded %q while paused", code)
	}))
	require.NoError(t, dec.Pause())

	_, err := io.WriteString(pw, "TK-8\n")
	require.NoError(t, err)
	select {
	case code := <-busy:
		assert.Equal(t, "TK-8", code)
	case <-time.After(2 * time.Second):
		t.Fatal("busy line not reported")
	}

	require.NoError(t, dec.Stop())
}

func TestSubmitManual(t *testing.T) {
	rec := &fakeRecorder{}
	s := New(&fakeDecoder{}, rec, Options{OperatorID: "desk-2"})

	_, err := s.SubmitManual(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyCode)
	assert.Empty(t, rec.recorded())

	res, err := s.SubmitManual(context.Background(), "  abc123 \n")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []call{{"abc123", models.MethodManual, "desk-2"}}, rec.recorded())
}

func TestLineDecoderWithScanner(t *testing.T) {
	defer goleak.VerifyNone(t)

	pr, pw := io.Pipe()
	dec := NewLineDecoder(pr)
	rec := &fakeRecorder{}
	s := New(dec, rec, Options{ResumeDelay: 10 * time.Millisecond})

	require.NoError(t, s.Start(context.Background()))

	_, err := io.WriteString(pw, "\nCONF|r1|a@example.com\n")
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return len(rec.recorded()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "CONF|r1|a@example.com", rec.recorded()[0].code)

	require.NoError(t, s.Close())
	_, err = io.WriteString(pw, "late\n")
	assert.Error(t, err)
}

func TestLineDecoderReadsUntilEOF(t *testing.T) {
	defer goleak.VerifyNone(t)

	var got []string
	var mu sync.Mutex
	dec := NewLineDecoder(bytes.NewBufferString("a\nb\n"))
	require.NoError(t, dec.Start(context.Background(), func(code string) {
		mu.Lock()
		got = append(got, code)
		mu.Unlock()
	}))
	<-dec.Done()
	require.NoError(t, dec.Stop())

	mu.Lock()
	assert.Equal(t, []string{"a", "b"}, got)
	mu.Unlock()

	assert.Error(t, dec.Pause())
}

func TestDeviceDecoderMissingDevice(t *testing.T) {
	s := New(NewDeviceDecoder("/nonexistent/scanner0"), &fakeRecorder{}, Options{})
	defer s.Close()

	err := s.Start(context.Background())
	assert.ErrorIs(t, err, ErrDecoderUnavailable)
	assert.Equal(t, Stopped, s.State())
}

func TestDecodeImage(t *testing.T) {
	payload := "CONF2026|5b1c|ana@example.com"
	png, err := qrgen.Encode(payload, qrgen.Medium, 256)
	require.NoError(t, err)

	text, err := DecodeImage(bytes.NewReader(png))
	require.NoError(t, err)
	assert.Equal(t, payload, text)

	_, err = DecodeImage(bytes.NewReader([]byte("not an image")))
	assert.Error(t, err)
}
