package playback

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const defaultPlayerCommand = "aplay -q -t wav -"

// startupGrace is how long Play watches a fresh player process for fast
// failures (busy device, bad command) before treating it as started.
const startupGrace = 150 * time.Millisecond

// CommandPlayer plays audio clips by piping them to an external player
// command. Play returns once the process is established; completion is
// reaped in the background so a caller is never blocked for the length of
// a clip. At most one clip plays at a time.
type CommandPlayer struct {
	args []string

	current *playing
	mu      sync.Mutex
}

// playing is one launched player process.
type playing struct {
	cmd    *exec.Cmd
	stderr bytes.Buffer
	// stopped marks the process as intentionally killed by Stop, so its
	// exit error is not reported as a playback failure.
	stopped bool
}

// NewCommandPlayer creates a player around the given shell-style command
// line. The clip is written to the command's stdin. An empty command
// selects aplay.
func NewCommandPlayer(command string) (*CommandPlayer, error) {
	if command == "" {
		command = defaultPlayerCommand
	}

	args := strings.Fields(command)
	if len(args) == 0 {
		return nil, fmt.Errorf("player command cannot be empty")
	}

	return &CommandPlayer{args: args}, nil
}

// Play kills any clip still running and starts the new one. A busy audio
// device is reported as ErrAutoplayBlocked so the queue can retry; a
// process that outlives the startup grace counts as started and finishes
// in the background.
func (p *CommandPlayer) Play(audio []byte) error {
	p.Stop()

	pl := &playing{}
	cmd := exec.Command(p.args[0], p.args[1:]...)
	cmd.Stdin = bytes.NewReader(audio)
	cmd.Stderr = &pl.stderr
	pl.cmd = cmd

	p.mu.Lock()
	if err := cmd.Start(); err != nil {
		p.mu.Unlock()
		return fmt.Errorf("failed to start player command: %w", err)
	}
	p.current = pl
	p.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		err := cmd.Wait()

		p.mu.Lock()
		if p.current == pl {
			p.current = nil
		}
		stopped := pl.stopped
		stderr := pl.stderr.String()
		p.mu.Unlock()

		switch {
		case stopped, err == nil:
			done <- nil
		case deviceBusy(stderr):
			done <- ErrAutoplayBlocked
		default:
			done <- fmt.Errorf("player command failed: %w", err)
		}
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(startupGrace):
		return nil
	}
}

// Stop kills the currently playing clip, if any.
func (p *CommandPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil {
		p.current.stopped = true
		if p.current.cmd.Process != nil {
			p.current.cmd.Process.Kill()
		}
		p.current = nil
	}
}

func deviceBusy(stderr string) bool {
	lower := strings.ToLower(stderr)
	return strings.Contains(lower, "busy") ||
		strings.Contains(lower, "resource temporarily unavailable")
}
