package scanner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// LineDecoder reads one code per line, the way keyboard-wedge and serial
// barcode scanners deliver them. Lines read while paused are dropped and
// passed to OnBusy.
type LineDecoder struct {
	open        func() (io.Reader, error)
	StopTimeout time.Duration
	// OnBusy is called from the read goroutine. Set it before Start.
	OnBusy func(code string)

	mu      sync.Mutex
	r       io.Reader
	paused  bool
	running bool
	done    chan struct{}
}

// NewLineDecoder decodes lines from r. r is closed on Stop when it is an
// io.Closer.
func NewLineDecoder(r io.Reader) *LineDecoder {
	return &LineDecoder{
		open:        func() (io.Reader, error) { return r, nil },
		StopTimeout: time.Second,
	}
}

// NewDeviceDecoder opens path on every Start, so a scanner unplugged and
// plugged back in is picked up by a retry.
func NewDeviceDecoder(path string) *LineDecoder {
	return &LineDecoder{
		open: func() (io.Reader, error) {
			f, err := os.Open(path)
			if err != nil {
				return nil, err
			}
			return f, nil
		},
		StopTimeout: time.Second,
	}
}

func (d *LineDecoder) Start(ctx context.Context, onDecode func(code string)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return errors.New("line decoder already running")
	}
	r, err := d.open()
	if err != nil {
		return err
	}
	if r == nil {
		return errors.New("line decoder has no input")
	}
	d.r = r
	d.paused = false
	d.running = true
	d.done = make(chan struct{})
	go d.read(ctx, r, d.done, onDecode)
	return nil
}

func (d *LineDecoder) read(ctx context.Context, r io.Reader, done chan struct{}, onDecode func(string)) {
	defer close(done)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		code := strings.TrimSpace(sc.Text())
		if code == "" {
			continue
		}
		d.mu.Lock()
		paused := d.paused
		d.mu.Unlock()
		if paused {
			if d.OnBusy != nil {
				d.OnBusy(code)
			}
			continue
		}
		onDecode(code)
	}
}

// Done is closed when the input is exhausted or the decoder stopped.
func (d *LineDecoder) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done
}

func (d *LineDecoder) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return errors.New("line decoder not running")
	}
	d.paused = true
	return nil
}

func (d *LineDecoder) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return errors.New("line decoder not running")
	}
	d.paused = false
	return nil
}

// Stop closes the input and waits up to StopTimeout for the reader to exit.
// Blocking terminal reads cannot always be interrupted, hence the bound.
func (d *LineDecoder) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	r, done := d.r, d.done
	d.r = nil
	d.mu.Unlock()

	var err error
	if c, ok := r.(io.Closer); ok {
		err = c.Close()
	}
	select {
	case <-done:
	case <-time.After(d.StopTimeout):
	}
	return err
}

var qrHints = map[gozxing.DecodeHintType]interface{}{
	gozxing.DecodeHintType_TRY_HARDER: true,
}

// DecodeImage finds a QR code in a PNG or JPEG image and returns its text.
func DecodeImage(r io.Reader) (string, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("prepare bitmap: %w", err)
	}
	result, err := qrcode.NewQRCodeReader().Decode(bmp, qrHints)
	if err != nil {
		return "", fmt.Errorf("no QR code found: %w", err)
	}
	return result.GetText(), nil
}
