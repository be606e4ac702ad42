// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// SpinnerType defines the animation style
type SpinnerType int

const (
	SpinnerDots SpinnerType = iota
	SpinnerWave
	SpinnerCompass
)

var spinnerFrames = map[SpinnerType][]string{
	SpinnerDots:    {"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
	SpinnerWave:    {"~", "≈", "≋", "≈"},
	SpinnerCompass: {"◐", "◓", "◑", "◒"},
}

// spinnerInterval is the frame period of the animation.
const spinnerInterval = 80 * time.Millisecond

// Spinner shows lint progress as "⠋ message [done/total]".
//
// On a terminal the spinner animates in place. Elsewhere (CI logs, pipes)
// it stays silent apart from the final line, so redirected output is not
// flooded with carriage returns.
//
// Thread Safety: Safe for concurrent use.
type Spinner struct {
	p        *Printer
	spinType SpinnerType

	mu         sync.Mutex
	message    string
	current    int
	total      int
	label      string
	isRunning  bool
	frameIndex int

	stop chan struct{}
	done chan struct{}
}

// NewSpinner creates a spinner writing to w.
func NewSpinner(w io.Writer, message string) *Spinner {
	return &Spinner{
		p:        NewPrinter(w),
		spinType: SpinnerDots,
		message:  message,
	}
}

// WithType sets the spinner animation type
func (s *Spinner) WithType(t SpinnerType) *Spinner {
	s.spinType = t
	return s
}

// Start begins the animation with a known total. Calling Start on a
// running spinner only updates the total.
func (s *Spinner) Start(total int) {
	s.mu.Lock()
	s.total = total
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	if !s.p.tty {
		close(s.done)
		return
	}

	go s.animate()
}

func (s *Spinner) animate() {
	frames := spinnerFrames[s.spinType]
	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			// Clear the spinner line
			fmt.Fprint(s.p.w, "\r\033[K")
			close(s.done)
			return
		case <-ticker.C:
			s.mu.Lock()
			frame := s.p.styles.Highlight.Render(frames[s.frameIndex])
			line := s.lineLocked()
			s.frameIndex = (s.frameIndex + 1) % len(frames)
			s.mu.Unlock()
			fmt.Fprintf(s.p.w, "\r\033[K%s %s", frame, line)
		}
	}
}

// Set records progress. label describes the check that just finished.
func (s *Spinner) Set(current, total int, label string) {
	s.mu.Lock()
	s.current = current
	s.total = total
	s.label = label
	s.mu.Unlock()
}

// Stop halts the animation and clears the line. Safe to call when the
// spinner never started.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	select {
	case <-done:
	default:
		close(stop)
		<-done
	}
}

// StopWithSuccess stops and prints a success message
func (s *Spinner) StopWithSuccess(message string) {
	s.Stop()
	s.p.Success(message)
}

// StopWithError stops and prints an error message
func (s *Spinner) StopWithError(message string) {
	s.Stop()
	s.p.Error(message)
}

// Line returns the current progress text without the animation frame.
func (s *Spinner) Line() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lineLocked()
}

func (s *Spinner) lineLocked() string {
	line := fmt.Sprintf("%s [%d/%d]", s.message, s.current, s.total)
	if s.label != "" {
		line += " " + s.p.styles.Muted.Render(s.label)
	}
	return line
}
