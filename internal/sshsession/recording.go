package sshsession

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// maxRecordingEntries caps a recording's memory use. Events past the cap
// are dropped.
const maxRecordingEntries = 100000

// recordingEntry is one asciicast v2 event line.
type recordingEntry struct {
	elapsed float64
	kind    string // "o" output, "i" input, "r" resize
	data    string
}

func (e recordingEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{e.elapsed, e.kind, e.data})
}

// Recording captures timestamped terminal I/O in asciicast v2 form. It is
// safe for concurrent use.
type Recording struct {
	mu        sync.Mutex
	entries   []recordingEntry
	startTime time.Time
	width     int
	height    int
	termType  string
}

func NewRecording(width, height int, termType string) *Recording {
	return &Recording{
		startTime: time.Now(),
		width:     width,
		height:    height,
		termType:  termType,
	}
}

func (r *Recording) RecordOutput(data []byte) {
	r.add("o", string(data))
}

func (r *Recording) RecordInput(data []byte) {
	r.add("i", string(data))
}

func (r *Recording) RecordResize(cols, rows int) {
	r.add("r", fmt.Sprintf("%dx%d", cols, rows))
}

func (r *Recording) add(kind, data string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) >= maxRecordingEntries {
		return
	}
	r.entries = append(r.entries, recordingEntry{
		elapsed: time.Since(r.startTime).Seconds(),
		kind:    kind,
		data:    data,
	})
}

func (r *Recording) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// WriteTo writes the recording as an asciicast v2 document.
func (r *Recording) WriteTo(w io.Writer) (int64, error) {
	r.mu.Lock()
	entries := make([]recordingEntry, len(r.entries))
	copy(entries, r.entries)
	r.mu.Unlock()

	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)
	enc := json.NewEncoder(bw)
	header := map[string]interface{}{
		"version":   2,
		"width":     r.width,
		"height":    r.height,
		"timestamp": r.startTime.Unix(),
		"env":       map[string]string{"TERM": r.termType},
	}
	if err := enc.Encode(header); err != nil {
		return cw.n, err
	}
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return cw.n, err
		}
	}
	err := bw.Flush()
	return cw.n, err
}

// Save writes the recording to dir/name and returns the file path.
func (r *Recording) Save(dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("create recording dir: %w", err)
	}
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return "", fmt.Errorf("create recording: %w", err)
	}
	if _, err := r.WriteTo(f); err != nil {
		f.Close()
		return "", fmt.Errorf("write recording: %w", err)
	}
	return path, f.Close()
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
