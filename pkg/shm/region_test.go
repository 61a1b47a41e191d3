package shm

import (
	"errors"
	"os"
	"testing"
)

func createRegion(t *testing.T, cfg Config) (*Region, *os.File) {
	t.Helper()

	r, f, err := Create(cfg)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	t.Cleanup(func() {
		r.Close()
		f.Close()
	})
	return r, f
}

func TestMapReadsHeader(t *testing.T) {
	server, f := createRegion(t, Config{FrameSize: 4, Capacity: 4 * 480, Period: 480})

	client, err := Map(f)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	defer client.Close()

	if client.FrameSize() != 4 {
		t.Errorf("expected frame size 4, got %d", client.FrameSize())
	}
	if client.Capacity() != 1920 {
		t.Errorf("expected capacity 1920, got %d", client.Capacity())
	}
	if client.Period() != 480 {
		t.Errorf("expected period 480, got %d", client.Period())
	}
	if len(client.Data()) != len(server.Data()) {
		t.Errorf("expected %d data bytes, got %d", len(server.Data()), len(client.Data()))
	}
}

func TestMapRejectsBadRegions(t *testing.T) {
	t.Run("too small", func(t *testing.T) {
		f, err := os.CreateTemp(t.TempDir(), "shm")
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		f.Write(make([]byte, 16))

		if _, err := Map(f); !errors.Is(err, ErrTooSmall) {
			t.Errorf("expected ErrTooSmall, got %v", err)
		}
	})

	t.Run("bad magic", func(t *testing.T) {
		f, err := os.CreateTemp(t.TempDir(), "shm")
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		f.Write(make([]byte, HeaderSize+64))

		if _, err := Map(f); !errors.Is(err, ErrBadHeader) {
			t.Errorf("expected ErrBadHeader, got %v", err)
		}
	})

	t.Run("truncated data", func(t *testing.T) {
		_, f := createRegion(t, Config{FrameSize: 4, Capacity: 16, Period: 4})
		if err := f.Truncate(HeaderSize + 8); err != nil {
			t.Fatal(err)
		}

		if _, err := Map(f); !errors.Is(err, ErrTooSmall) {
			t.Errorf("expected ErrTooSmall, got %v", err)
		}
	})
}

func TestCreateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero frame size", Config{FrameSize: 0, Capacity: 8, Period: 4}},
		{"zero capacity", Config{FrameSize: 4, Capacity: 0, Period: 4}},
		{"period too large", Config{FrameSize: 4, Capacity: 4, Period: 8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Create(tt.cfg); !errors.Is(err, ErrBadHeader) {
				t.Errorf("expected ErrBadHeader, got %v", err)
			}
		})
	}
}

func TestWindowsStayInsideRing(t *testing.T) {
	cfg := Config{FrameSize: 4, Capacity: 10, Period: 4}
	writer, f := createRegion(t, cfg)

	reader, err := Map(f)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	defer reader.Close()

	capacityBytes := int(cfg.Capacity * cfg.FrameSize)

	for i := 0; i < 25; i++ {
		off, length := writer.WritableWindow()
		if off < 0 || off+length > capacityBytes {
			t.Fatalf("iteration %d: window [%d,%d) outside ring of %d bytes", i, off, off+length, capacityBytes)
		}
		if length%int(cfg.FrameSize) != 0 {
			t.Fatalf("iteration %d: length %d not a whole number of frames", i, length)
		}
		if length == 0 {
			t.Fatalf("iteration %d: empty window with a drained ring", i)
		}

		frames := uint32(length) / cfg.FrameSize
		if err := writer.CommitWrittenFrames(frames); err != nil {
			t.Fatalf("iteration %d: commit: %v", i, err)
		}

		roff, rlen := reader.ReadableWindow()
		if roff != off || rlen != length {
			t.Fatalf("iteration %d: expected readable [%d,%d), got [%d,%d)", i, off, length, roff, rlen)
		}
		if err := reader.CommitReadFrames(frames); err != nil {
			t.Fatalf("iteration %d: consume: %v", i, err)
		}
	}
}

func TestWritableWindowWrapsAtRingEnd(t *testing.T) {
	r, _ := createRegion(t, Config{FrameSize: 2, Capacity: 10, Period: 4})

	steps := []struct {
		offset int
		length int
	}{
		{0, 8},  // frames 0-3
		{8, 8},  // frames 4-7
		{16, 4}, // frames 8-9, clipped at ring end
		{0, 8},  // wrapped
	}

	for i, step := range steps {
		off, length := r.WritableWindow()
		if off != step.offset || length != step.length {
			t.Fatalf("step %d: expected [%d,+%d), got [%d,+%d)", i, step.offset, step.length, off, length)
		}
		frames := uint32(length / 2)
		if err := r.CommitWrittenFrames(frames); err != nil {
			t.Fatalf("step %d: commit: %v", i, err)
		}
		if err := r.CommitReadFrames(frames); err != nil {
			t.Fatalf("step %d: consume: %v", i, err)
		}
	}
}

func TestWritableWindowRespectsUnreadFrames(t *testing.T) {
	r, _ := createRegion(t, Config{FrameSize: 2, Capacity: 6, Period: 4})

	if err := r.CommitWrittenFrames(4); err != nil {
		t.Fatalf("commit: %v", err)
	}

	_, length := r.WritableWindow()
	if length != 4 {
		t.Errorf("expected 2 free frames (4 bytes), got %d bytes", length)
	}

	if err := r.CommitWrittenFrames(2); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if _, length := r.WritableWindow(); length != 0 {
		t.Errorf("expected full ring to have an empty window, got %d bytes", length)
	}
	if err := r.CommitWrittenFrames(1); !errors.Is(err, ErrInvalidFrames) {
		t.Errorf("expected ErrInvalidFrames, got %v", err)
	}
}

func TestCommitBeyondWindowFails(t *testing.T) {
	r, _ := createRegion(t, Config{FrameSize: 4, Capacity: 1920, Period: 480})

	if err := r.CommitWrittenFrames(481); !errors.Is(err, ErrInvalidFrames) {
		t.Errorf("expected ErrInvalidFrames, got %v", err)
	}
	if err := r.CommitReadFrames(1); !errors.Is(err, ErrInvalidFrames) {
		t.Errorf("expected ErrInvalidFrames reading an empty ring, got %v", err)
	}
}

func TestSharedCursorsAcrossMappings(t *testing.T) {
	server, f := createRegion(t, Config{FrameSize: 4, Capacity: 16, Period: 8})

	client, err := Map(f)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	defer client.Close()

	off, length := client.WritableWindow()
	copy(client.Data()[off:off+length], []byte{1, 2, 3, 4})
	if err := client.CommitWrittenFrames(1); err != nil {
		t.Fatalf("commit: %v", err)
	}

	roff, rlen := server.ReadableWindow()
	if rlen != 4 {
		t.Fatalf("expected 4 readable bytes, got %d", rlen)
	}
	if got := server.Data()[roff]; got != 1 {
		t.Errorf("expected first byte 1, got %d", got)
	}

	server.AddOverrun()
	if client.NumOverruns() != 1 {
		t.Errorf("expected 1 overrun, got %d", client.NumOverruns())
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	r, _ := createRegion(t, Config{FrameSize: 4, Capacity: 8, Period: 4})

	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	if _, length := r.WritableWindow(); length != 0 {
		t.Errorf("expected empty window after close, got %d", length)
	}
	if err := r.CommitWrittenFrames(1); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
