package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// InterruptHandler turns the first interrupt into a stop request and a
// cancelled context.
type InterruptHandler struct {
	writer      io.Writer
	onInterrupt func()
	interrupted bool
	mu          sync.Mutex
}

// NewInterruptHandler creates a handler. onInterrupt runs once, before the
// context is cancelled.
func NewInterruptHandler(writer io.Writer, onInterrupt func()) *InterruptHandler {
	if writer == nil {
		writer = os.Stdout
	}
	return &InterruptHandler{
		writer:      writer,
		onInterrupt: onInterrupt,
	}
}

// HandleInterrupts returns a context cancelled after SIGINT or SIGTERM.
func (h *InterruptHandler) HandleInterrupts(ctx context.Context) context.Context {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer signal.Stop(sigChan)
		h.wait(ctx, sigChan, cancel)
	}()
	return ctx
}

func (h *InterruptHandler) wait(ctx context.Context, sigChan <-chan os.Signal, cancel context.CancelFunc) {
	select {
	case <-ctx.Done():
		return
	case <-sigChan:
	}

	h.mu.Lock()
	first := !h.interrupted
	h.interrupted = true
	h.mu.Unlock()

	if first {
		h.showInterruptMessage()
		if h.onInterrupt != nil {
			h.onInterrupt()
		}
	}
	cancel()
}

func (h *InterruptHandler) showInterruptMessage() {
	msg := "\n" + FormatWarning("Focus session interrupted") + "\n" + FormatInfo("Stopping the monitor.") + "\n"
	if _, err := fmt.Fprint(h.writer, msg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write interrupt message: %v\n", err)
	}
}

// WasInterrupted returns true if a signal arrived.
func (h *InterruptHandler) WasInterrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interrupted
}
