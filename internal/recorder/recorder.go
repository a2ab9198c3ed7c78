// ABOUTME: Session recorder that streams station events to a compressed JSONL file
// ABOUTME: One file per recording session, named session-<uuid>.jsonl.zst

package recorder

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/teamera/basestation/internal/events"
)

var (
	ErrAlreadyRecording = errors.New("recording already in progress")
	ErrNotRecording     = errors.New("no recording in progress")
)

// Source hands out event subscriptions. *events.Broadcaster satisfies it.
type Source interface {
	Subscribe(ctx context.Context) (<-chan events.Event, string)
}

// Recorder writes every event from a Source to disk while a session is open.
// At most one session is open at a time.
type Recorder struct {
	dir    string
	logger *slog.Logger

	mu      sync.Mutex
	session *session
}

type session struct {
	path   string
	cancel context.CancelFunc
	done   chan struct{}
	err    error // set by the writer goroutine before done closes
}

// New creates a recorder writing into dir. The directory is created on the
// first Start.
func New(dir string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		dir:    dir,
		logger: logger.With("component", "recorder"),
	}
}

// Start opens a new session file and begins recording events from src.
// It returns the session file path.
func (r *Recorder) Start(src Source) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session != nil {
		return "", fmt.Errorf("%w: %s", ErrAlreadyRecording, r.session.path)
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating session directory: %w", err)
	}
	path := filepath.Join(r.dir, fmt.Sprintf("session-%s.jsonl.zst", uuid.New().String()))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("creating session file: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return "", fmt.Errorf("creating zstd encoder: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := src.Subscribe(ctx)

	s := &session{
		path:   path,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.session = s

	go r.write(s, ch, f, enc)

	r.logger.Info("recording started", "path", path)
	return path, nil
}

// Stop closes the current session, flushing everything received so far.
// It returns the session file path and the first write error, if any.
func (r *Recorder) Stop() (string, error) {
	r.mu.Lock()
	s := r.session
	r.session = nil
	r.mu.Unlock()

	if s == nil {
		return "", ErrNotRecording
	}

	s.cancel()
	<-s.done

	if s.err != nil {
		r.logger.Warn("recording stopped with error", "path", s.path, "error", s.err)
	} else {
		r.logger.Info("recording stopped", "path", s.path)
	}
	return s.path, s.err
}

// Recording reports whether a session is open and its path.
func (r *Recorder) Recording() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return "", false
	}
	return r.session.path, true
}

// write drains ch until the subscription closes. After the first write error
// events are still drained so the broadcaster never sees a stuck subscriber.
func (r *Recorder) write(s *session, ch <-chan events.Event, f *os.File, enc *zstd.Encoder) {
	defer close(s.done)

	w := bufio.NewWriterSize(enc, 64*1024)
	jsonEnc := json.NewEncoder(w)

	var written int
	for ev := range ch {
		if s.err != nil {
			continue
		}
		if err := jsonEnc.Encode(ev); err != nil {
			s.err = fmt.Errorf("writing event: %w", err)
			continue
		}
		written++
	}

	if err := w.Flush(); err != nil && s.err == nil {
		s.err = fmt.Errorf("flushing session: %w", err)
	}
	if err := enc.Close(); err != nil && s.err == nil {
		s.err = fmt.Errorf("closing zstd stream: %w", err)
	}
	if err := f.Close(); err != nil && s.err == nil {
		s.err = fmt.Errorf("closing session file: %w", err)
	}

	r.logger.Debug("session writer finished", "path", s.path, "events", written)
}

// ReadSession decodes every event in a session file.
func ReadSession(path string) ([]events.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	var out []events.Event
	for sc.Scan() {
		var ev events.Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			return out, fmt.Errorf("%s: line %d: %w", filepath.Base(path), len(out)+1, err)
		}
		out = append(out, ev)
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return out, nil
}
