// ABOUTME: Shared audio region mapped from a descriptor handed over by the server
// ABOUTME: A fixed header of cursors followed by the sample ring, accessed without locks
package shm

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

const (
	// Magic identifies a region header ("CRSH")
	Magic = 0x48535243

	// Version is the header layout version
	Version = 1

	// HeaderSize is the size of the header preceding the sample data
	HeaderSize = 64
)

// Header word offsets. Counters are 8-byte aligned for atomic access.
const (
	offMagic       = 0
	offVersion     = 4
	offFrameSize   = 8
	offCapacity    = 12
	offPeriod      = 16
	offWriteIdx    = 24
	offReadIdx     = 32
	offNumOverruns = 40
)

var (
	// ErrBadHeader is returned when a mapped header fails validation
	ErrBadHeader = errors.New("invalid shared memory header")

	// ErrTooSmall is returned when the descriptor cannot hold the header and samples
	ErrTooSmall = errors.New("shared memory area too small")

	// ErrInvalidFrames is returned when a commit exceeds the current window
	ErrInvalidFrames = errors.New("frame count exceeds current window")

	// ErrClosed is returned when the region has been unmapped
	ErrClosed = errors.New("shared memory region closed")
)

// Config describes a region to create
type Config struct {
	FrameSize uint32 // bytes per frame
	Capacity  uint32 // frames in the ring
	Period    uint32 // frames per writable window
}

// Size returns the total number of bytes the region occupies
func (c Config) Size() int {
	return HeaderSize + int(c.Capacity)*int(c.FrameSize)
}

func (c Config) validate() error {
	if c.FrameSize == 0 || c.Capacity == 0 || c.Period == 0 {
		return fmt.Errorf("%w: frame_size=%d capacity=%d period=%d", ErrBadHeader, c.FrameSize, c.Capacity, c.Period)
	}
	if c.Period > c.Capacity {
		return fmt.Errorf("%w: period %d exceeds capacity %d", ErrBadHeader, c.Period, c.Capacity)
	}
	return nil
}

// Region is a mapped shared audio area. The writer side uses WritableWindow
// and CommitWrittenFrames, the reader side ReadableWindow and
// CommitReadFrames. Cursors are monotonic frame counters; the control
// channel handshake decides whose turn it is to move them.
type Region struct {
	mem       []byte
	frameSize uint32
	capacity  uint32
	period    uint32
	closeOnce sync.Once
	closeErr  error
}

// Map maps the region held by f. The mapping stays valid after f is closed.
func Map(f *os.File) (*Region, error) {
	fd := int(f.Fd())

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, fmt.Errorf("stat shm fd: %w", err)
	}
	size := int(st.Size)
	if size < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooSmall, size)
	}

	mem, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap shm fd: %w", err)
	}

	r := &Region{mem: mem}
	if err := r.load(); err != nil {
		unix.Munmap(mem)
		return nil, err
	}
	return r, nil
}

// Create allocates a new anonymous region and initialises its header. The
// returned file can be passed to the peer; the caller must close it.
func Create(cfg Config) (*Region, *os.File, error) {
	if err := cfg.validate(); err != nil {
		return nil, nil, err
	}

	name := "cras-shm-" + uuid.NewString()
	fd, err := unix.MemfdCreate(name, unix.MFD_CLOEXEC)
	if err != nil {
		return nil, nil, fmt.Errorf("memfd_create: %w", err)
	}
	f := os.NewFile(uintptr(fd), name)

	if err := unix.Ftruncate(fd, int64(cfg.Size())); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("truncate shm: %w", err)
	}

	mem, err := unix.Mmap(fd, 0, cfg.Size(), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("mmap shm: %w", err)
	}

	r := &Region{
		mem:       mem,
		frameSize: cfg.FrameSize,
		capacity:  cfg.Capacity,
		period:    cfg.Period,
	}
	atomic.StoreUint32(r.word(offFrameSize), cfg.FrameSize)
	atomic.StoreUint32(r.word(offCapacity), cfg.Capacity)
	atomic.StoreUint32(r.word(offPeriod), cfg.Period)
	atomic.StoreUint32(r.word(offVersion), Version)
	atomic.StoreUint32(r.word(offMagic), Magic)

	return r, f, nil
}

func (r *Region) load() error {
	if m := atomic.LoadUint32(r.word(offMagic)); m != Magic {
		return fmt.Errorf("%w: magic %#x", ErrBadHeader, m)
	}
	if v := atomic.LoadUint32(r.word(offVersion)); v != Version {
		return fmt.Errorf("%w: version %d", ErrBadHeader, v)
	}

	cfg := Config{
		FrameSize: atomic.LoadUint32(r.word(offFrameSize)),
		Capacity:  atomic.LoadUint32(r.word(offCapacity)),
		Period:    atomic.LoadUint32(r.word(offPeriod)),
	}
	if err := cfg.validate(); err != nil {
		return err
	}
	if uint64(HeaderSize)+uint64(cfg.Capacity)*uint64(cfg.FrameSize) > uint64(len(r.mem)) {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrTooSmall, cfg.Size(), len(r.mem))
	}

	r.frameSize = cfg.FrameSize
	r.capacity = cfg.Capacity
	r.period = cfg.Period
	return nil
}

func (r *Region) word(off int) *uint32 {
	return (*uint32)(unsafe.Pointer(&r.mem[off]))
}

func (r *Region) counter(off int) *uint64 {
	return (*uint64)(unsafe.Pointer(&r.mem[off]))
}

// FrameSize returns the size of one frame in bytes
func (r *Region) FrameSize() uint32 {
	return r.frameSize
}

// Capacity returns the size of the ring in frames
func (r *Region) Capacity() uint32 {
	return r.capacity
}

// Period returns the maximum size of a writable window in frames
func (r *Region) Period() uint32 {
	return r.period
}

// Data returns the sample ring. Window offsets index into it.
func (r *Region) Data() []byte {
	if r.mem == nil {
		return nil
	}
	return r.mem[HeaderSize : HeaderSize+int(r.capacity)*int(r.frameSize)]
}

// WritableWindow returns the byte offset and length of the next area the
// writer may fill: at most one period, never past the end of the ring and
// never over frames the reader has not consumed.
func (r *Region) WritableWindow() (offset, length int) {
	pos, frames := r.writable()
	return int(pos) * int(r.frameSize), int(frames) * int(r.frameSize)
}

func (r *Region) writable() (pos, frames uint64) {
	if r.mem == nil {
		return 0, 0
	}
	w := atomic.LoadUint64(r.counter(offWriteIdx))
	rd := atomic.LoadUint64(r.counter(offReadIdx))

	capacity := uint64(r.capacity)
	var free uint64
	if used := w - rd; used < capacity {
		free = capacity - used
	}

	pos = w % capacity
	frames = min(uint64(r.period), capacity-pos, free)
	return pos, frames
}

// CommitWrittenFrames advances the write cursor past frames the writer filled
func (r *Region) CommitWrittenFrames(frames uint32) error {
	if r.mem == nil {
		return ErrClosed
	}
	if _, avail := r.writable(); uint64(frames) > avail {
		return fmt.Errorf("%w: commit %d, window %d", ErrInvalidFrames, frames, avail)
	}
	atomic.AddUint64(r.counter(offWriteIdx), uint64(frames))
	return nil
}

// ReadableWindow returns the byte offset and length of committed frames the
// reader has not consumed, up to the end of the ring.
func (r *Region) ReadableWindow() (offset, length int) {
	pos, frames := r.readable()
	return int(pos) * int(r.frameSize), int(frames) * int(r.frameSize)
}

func (r *Region) readable() (pos, frames uint64) {
	if r.mem == nil {
		return 0, 0
	}
	w := atomic.LoadUint64(r.counter(offWriteIdx))
	rd := atomic.LoadUint64(r.counter(offReadIdx))

	capacity := uint64(r.capacity)
	pos = rd % capacity
	frames = min(w-rd, capacity-pos)
	return pos, frames
}

// CommitReadFrames advances the read cursor past frames the reader consumed
func (r *Region) CommitReadFrames(frames uint32) error {
	if r.mem == nil {
		return ErrClosed
	}
	if _, avail := r.readable(); uint64(frames) > avail {
		return fmt.Errorf("%w: consume %d, window %d", ErrInvalidFrames, frames, avail)
	}
	atomic.AddUint64(r.counter(offReadIdx), uint64(frames))
	return nil
}

// NumOverruns returns how many times the writer found no room
func (r *Region) NumOverruns() uint32 {
	if r.mem == nil {
		return 0
	}
	return atomic.LoadUint32(r.word(offNumOverruns))
}

// AddOverrun records one overrun
func (r *Region) AddOverrun() {
	if r.mem == nil {
		return
	}
	atomic.AddUint32(r.word(offNumOverruns), 1)
}

// Close unmaps the region. It is safe to call more than once.
func (r *Region) Close() error {
	r.closeOnce.Do(func() {
		if r.mem == nil {
			return
		}
		r.closeErr = unix.Munmap(r.mem)
		r.mem = nil
	})
	return r.closeErr
}
