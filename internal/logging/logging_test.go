package logging

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitAndReadTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.log")
	Init(path)
	t.Cleanup(func() { Close() })

	for i := 0; i < 20; i++ {
		log.Printf("line-%02d", i)
	}

	tail, err := ReadTail(3)
	if err != nil {
		t.Fatalf("ReadTail: %v", err)
	}
	lines := strings.Split(tail, "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3: %q", len(lines), tail)
	}
	for i, want := range []int{17, 18, 19} {
		if !strings.HasSuffix(lines[i], fmt.Sprintf("line-%02d", want)) {
			t.Errorf("line %d = %q, want suffix line-%02d", i, lines[i], want)
		}
	}
}

func TestReadTailWithoutInit(t *testing.T) {
	Close()
	tail, err := ReadTail(10)
	if err != nil {
		t.Fatalf("ReadTail: %v", err)
	}
	if tail != "" {
		t.Errorf("expected empty tail, got %q", tail)
	}
}
