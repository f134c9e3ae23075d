// Command checkin-console runs a check-in terminal on a plain tty. A
// keyboard-wedge scanner typing into the console feeds the HID channel;
// anything that is not a run of digits is treated as a manually entered
// code.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/diagnosis/luxsuv-checkin/internal/domain"
	"github.com/diagnosis/luxsuv-checkin/internal/hid"
	"github.com/diagnosis/luxsuv-checkin/internal/operator"
	"github.com/diagnosis/luxsuv-checkin/internal/scan"
	"github.com/diagnosis/luxsuv-checkin/internal/verify"
	"github.com/diagnosis/luxsuv-checkin/pkg/auth"
	"github.com/diagnosis/luxsuv-checkin/pkg/clock"
	"github.com/diagnosis/luxsuv-checkin/pkg/config"
	"github.com/diagnosis/luxsuv-checkin/pkg/logger"
)

func main() {
	cfg := config.Load()

	verifierURL := pflag.String("verifier-url", cfg.Verifier.BaseURL, "base URL of the verification service")
	operatorCode := pflag.String("operator-code", os.Getenv("OPERATOR_CODE"), "inspector access code")
	terminalID := pflag.String("terminal-id", cfg.Terminal.ID, "terminal identifier sent with each request")
	timeout := pflag.Duration("timeout", cfg.Verifier.Timeout, "verification request timeout")
	autoAttend := pflag.Bool("attend", false, "mark attendance after every successful verification")
	pflag.Parse()

	if cfg.ProfileErr != nil {
		logger.Warn("Scanner profile not applied", "error", cfg.ProfileErr)
	}
	if *operatorCode == "" {
		fmt.Fprintln(os.Stderr, "an operator code is required (--operator-code or OPERATOR_CODE)")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = context.WithValue(ctx, logger.ServiceKey, "checkin-console")
	ctx = context.WithValue(ctx, logger.TerminalIDKey, *terminalID)

	clk := clock.Real()
	dispatcher := verify.NewDispatcher(verify.NewClient(*verifierURL, *timeout))
	operators := operator.NewMemoryStore(clk)
	if err := signIn(ctx, dispatcher, operators, cfg, *operatorCode, clk); err != nil {
		fmt.Fprintf(os.Stderr, "sign-in failed: %s\n", verify.Message(err))
		os.Exit(1)
	}

	feed := hid.NewFeed()
	keystrokes := hid.New(clk, hid.Options{
		ResetAfter:    cfg.Scanner.KeystrokeReset,
		FinalizeAfter: cfg.Scanner.KeystrokeFinalize,
	})
	coord := scan.New(scan.Options{
		Channels:    map[scan.Mode]scan.Channel{scan.ModeHID: scan.NewHID(feed, keystrokes)},
		Verifier:    dispatcher,
		Credentials: operators,
		Clock:       clk,
	})
	defer coord.Close()

	coord.Observe(scan.LogTransitions(ctx))
	coord.Observe(printer(os.Stdout, coord, clk, *autoAttend))
	if err := coord.SelectMode(scan.ModeHID); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Println("Ready. Scan a code, type one and press Enter, or type \"quit\".")

	lines := make(chan string)
	go readLines(os.Stdin, lines)
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if !handleLine(line, feed, coord) {
				return
			}
		}
	}
}

func signIn(ctx context.Context, d *verify.Dispatcher, store operator.Store, cfg *config.Config, code string, c clock.Clock) error {
	token, err := d.Login(ctx, code)
	if err != nil {
		return err
	}
	session := operator.Session{
		InspectorID: "console",
		Credential:  domain.OperatorCredential(code),
		ExpiresAt:   c.Now().Add(cfg.Auth.OperatorSessionTTL),
	}
	// The token is only readable when this console shares the service's
	// signing secret.
	if claims, err := auth.ParseOperatorToken(token, cfg.Auth.JWTSecret); err == nil {
		session.InspectorID = claims.InspectorID()
		session.Name = claims.Name
		session.ExpiresAt = claims.ExpiresAt.Time
	} else {
		logger.DebugContext(ctx, "Operator token not verifiable locally", "error", err)
	}
	return store.SignIn(ctx, session)
}

func readLines(r io.Reader, out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		out <- sc.Text()
	}
}

// handleLine feeds one console line to the terminal. It returns false
// when the operator asked to quit.
func handleLine(line string, feed *hid.Feed, coord *scan.Coordinator) bool {
	text := strings.TrimRight(line, "\r")
	switch strings.TrimSpace(strings.ToLower(text)) {
	case "":
		return true
	case "quit", "exit":
		return false
	case "attend":
		coord.MarkAttended()
		return true
	}

	if isDigits(text) {
		for i := 0; i < len(text); i++ {
			feed.Emit(hid.KeyEvent{Key: text[i : i+1]})
		}
		feed.Emit(hid.KeyEvent{Key: hid.KeyEnter})
		return true
	}
	coord.SubmitManualCode(text)
	return true
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// printer reports results and re-arms the terminal for the next code.
func printer(w io.Writer, coord *scan.Coordinator, clk clock.Clock, autoAttend bool) func(scan.Transition) {
	return func(t scan.Transition) {
		if t.To.Notice != "" && t.To.Notice != t.From.Notice {
			fmt.Fprintln(w, "!", t.To.Notice)
		}
		if t.To.AuthRequired && !t.From.AuthRequired {
			fmt.Fprintln(w, "! Operator session expired. Restart the console to sign in again.")
		}

		switch {
		case t.To.Phase == scan.PhaseResult && t.From.Phase != scan.PhaseResult:
			out := t.To.Outcome
			if out == nil {
				return
			}
			if !out.Success {
				fmt.Fprintf(w, "x %s  %s\n", t.To.Code.Code, out.Message)
				coord.ScanAnother()
				return
			}
			fmt.Fprintf(w, "✓ %s  %s\n", t.To.Code.Code, describe(out.Payload))
			if autoAttend && out.Payload != nil && out.Payload.RegistrationID != "" {
				coord.MarkAttended()
				return
			}
			coord.ScanAnother()

		case t.To.Attendance != t.From.Attendance && (t.To.Attendance == scan.AttendanceRecorded || t.To.Attendance == scan.AttendanceFailed):
			if t.To.Attendance == scan.AttendanceRecorded {
				at := clk.Now()
				if p := t.To.Outcome.Payload; p != nil && p.AttendedAt != nil {
					at = *p.AttendedAt
				}
				fmt.Fprintln(w, "  attendance recorded", at.Format(time.Kitchen))
			} else {
				fmt.Fprintln(w, "  attendance failed:", t.To.AttendanceMessage)
			}
			if autoAttend {
				coord.ScanAnother()
			}
		}
	}
}

func describe(rec *domain.AttendeeRecord) string {
	if rec == nil {
		return "verified"
	}
	parts := []string{rec.Name}
	if rec.TicketType != "" {
		parts = append(parts, rec.TicketType)
	}
	if rec.Quantity > 1 {
		parts = append(parts, fmt.Sprintf("x%d", rec.Quantity))
	}
	if rec.Attended {
		parts = append(parts, "(already checked in)")
	}
	return strings.Join(parts, " ")
}
