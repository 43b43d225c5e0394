package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"conference-portal/models"
	"conference-portal/scanner"
	"conference-portal/services"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	okStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	failStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
)

func checkinCmd(e *env) *cobra.Command {
	var (
		manual   bool
		device   string
		operator string
		retries  int
	)

	cmd := &cobra.Command{
		Use:   "checkin",
		Short: "Check attendees in from a barcode scanner or typed codes",
		Long: `Runs a check-in desk in the terminal.

Scan mode (default) reads one code per line from a keyboard-wedge or serial
barcode scanner: stdin, or --device. After each scan input pauses until the
result has been shown and the resume delay has passed.

Manual mode (--manual) prompts for ticket codes or registration ids.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := e.openDB()
			if err != nil {
				return err
			}
			if operator == "" {
				operator = os.Getenv("USER")
			}
			rec := services.NewAttendanceService(db, nil, nil, e.logger)
			out := &lockedWriter{w: cmd.OutOrStdout()}

			var dec *scanner.LineDecoder
			if device != "" {
				dec = scanner.NewDeviceDecoder(device)
			} else {
				dec = scanner.NewLineDecoder(cmd.InOrStdin())
			}
			sc := newDesk(dec, rec, operator, e.cfg.ScanResumeDelay, out, e.logger)
			defer sc.Close()

			if manual {
				return runManual(cmd.Context(), sc, cmd.InOrStdin(), out)
			}
			return runScan(cmd.Context(), sc, dec, out, retries, e.logger)
		},
	}

	cmd.Flags().BoolVar(&manual, "manual", false, "Type codes instead of scanning")
	cmd.Flags().StringVar(&device, "device", "", "Read scans from this device (e.g. /dev/ttyACM0) instead of stdin")
	cmd.Flags().StringVar(&operator, "operator", "", "Operator id recorded on each check-in (default $USER)")
	cmd.Flags().IntVar(&retries, "retries", 3, "How many times to retry opening the scanner")
	return cmd
}

func runManual(ctx context.Context, sc *scanner.Scanner, in io.Reader, out io.Writer) error {
	lines := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "code> ")
		if !lines.Scan() {
			fmt.Fprintln(out)
			return lines.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		if _, err := sc.SubmitManual(ctx, lines.Text()); errors.Is(err, scanner.ErrEmptyCode) {
			fmt.Fprintln(out, failStyle.Render("Enter a ticket code or registration id."))
		}
	}
}

func runScan(ctx context.Context, sc *scanner.Scanner, dec *scanner.LineDecoder, out io.Writer, retries int, logger *zap.Logger) error {
	err := sc.Start(ctx)
	for attempt := 1; err != nil && attempt <= retries; attempt++ {
		fmt.Fprintln(out, failStyle.Render("Scanner unavailable: "+err.Error()))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(attempt) * time.Second):
		}
		logger.Info("retrying scanner", zap.Int("attempt", attempt))
		err = sc.Retry(ctx)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(out, okStyle.Render("Scanner ready. Press Ctrl+C to stop."))
	select {
	case <-ctx.Done():
	case <-dec.Done():
		// Input ended; let the last scans finish before teardown.
		sc.Drain()
	}
	return nil
}

// newDesk wires a scanner that prints every outcome to out and tells the
// operator when a scan arrived while the previous one was still showing.
func newDesk(dec *scanner.LineDecoder, rec scanner.Recorder, operator string, resumeDelay time.Duration, out io.Writer, logger *zap.Logger) *scanner.Scanner {
	dec.OnBusy = func(code string) {
		logger.Debug("scan dropped while busy", zap.String("code", code))
		fmt.Fprintln(out, failStyle.Render("Scanner busy, scan again: "+code))
	}
	return scanner.New(dec, rec, scanner.Options{
		OperatorID:  operator,
		ResumeDelay: resumeDelay,
		OnResult: func(code string, method models.CheckInMethod, res models.CheckInResult) {
			printResult(out, res)
		},
		Logger: logger,
	})
}

// lockedWriter serialises output from the scan and result goroutines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func printResult(out io.Writer, res models.CheckInResult) {
	if res.Success {
		fmt.Fprintln(out, okStyle.Render("✔ "+res.Message))
		return
	}
	fmt.Fprintln(out, failStyle.Render("✘ "+res.Message))
}
