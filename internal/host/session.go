package host

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"

	"github.com/ably-labs/webcli/pkg/logger"
)

// replayRingSize bounds how much recent terminal output a resumed connection
// gets replayed.
const replayRingSize = 32 * 1024

// ringBuffer keeps the tail of the terminal output stream for resumption
// replay.
type ringBuffer struct {
	mu   sync.Mutex
	buf  []byte
	pos  int
	full bool
}

func newRingBuffer(size int) *ringBuffer {
	return &ringBuffer{buf: make([]byte, size)}
}

func (r *ringBuffer) Write(p []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range p {
		r.buf[r.pos] = b
		r.pos = (r.pos + 1) % len(r.buf)
		if r.pos == 0 {
			r.full = true
		}
	}
}

func (r *ringBuffer) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		return append([]byte(nil), r.buf[:r.pos]...)
	}
	out := make([]byte, len(r.buf))
	copy(out, r.buf[r.pos:])
	copy(out[len(r.buf)-r.pos:], r.buf[:r.pos])
	return out
}

// session is one live shell. It outlives the websocket connections attached
// to it: a dropped client may resume within the detach window.
type session struct {
	id   string
	cmd  *exec.Cmd
	ptmx *os.File
	ring *ringBuffer

	mu       sync.Mutex
	attached *conn
	detachAt *time.Timer
	closed   bool

	done chan struct{}
}

// spawnSession starts the shell under a PTY with the handshake environment
// injected.
func spawnSession(shell string, env map[string]string) (*session, error) {
	cmd := exec.Command(shell)
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("start shell: %w", err)
	}

	s := &session{
		id:   uuid.NewString(),
		cmd:  cmd,
		ptmx: ptmx,
		ring: newRingBuffer(replayRingSize),
		done: make(chan struct{}),
	}
	go s.pump()
	return s, nil
}

// pump copies shell output into the ring buffer and the attached connection
// until the shell exits.
func (s *session) pump() {
	defer close(s.done)
	buf := make([]byte, 4096)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			s.ring.Write(chunk)
			s.mu.Lock()
			c := s.attached
			s.mu.Unlock()
			if c != nil {
				if err := c.writeData(chunk); err != nil {
					logger.Debugf("session %s: write to client: %v", s.id, err)
				}
			}
		}
		if err != nil {
			// PTY read fails once the shell exits.
			logger.Debugf("session %s: shell exited: %v", s.id, err)
			_ = s.cmd.Wait()
			return
		}
	}
}

// attach makes c the session's single active connection, replaying the
// recent output tail. A previously attached connection is told goodbye.
func (s *session) attach(c *conn) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("session %s is closed", s.id)
	}
	prev := s.attached
	s.attached = c
	if s.detachAt != nil {
		s.detachAt.Stop()
		s.detachAt = nil
	}
	s.mu.Unlock()

	if prev != nil && prev != c {
		prev.sayBye("session attached elsewhere")
	}
	if tail := s.ring.Bytes(); len(tail) > 0 {
		if err := c.writeData(tail); err != nil {
			return fmt.Errorf("replay: %w", err)
		}
	}
	return nil
}

// detach clears the active connection and arms the idle close timer. onIdle
// runs if no client resumes within window.
func (s *session) detach(c *conn, window time.Duration, onIdle func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attached != c {
		return
	}
	s.attached = nil
	if s.detachAt != nil {
		s.detachAt.Stop()
	}
	s.detachAt = time.AfterFunc(window, onIdle)
}

func (s *session) write(p []byte) error {
	_, err := s.ptmx.Write(p)
	return err
}

// close ends the shell. Safe to call multiple times.
func (s *session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.detachAt != nil {
		s.detachAt.Stop()
		s.detachAt = nil
	}
	attached := s.attached
	s.attached = nil
	s.mu.Unlock()

	if attached != nil {
		attached.sayBye("session closed")
	}
	_ = s.ptmx.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
}
