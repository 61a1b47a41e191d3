// ABOUTME: Sample plumbing between audio files and stream memory
// ABOUTME: Turns a decoded source into stream-format bytes and stream bytes into a WAV file
package app

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Resonate-Protocol/cras-go/pkg/audio"
	"github.com/Resonate-Protocol/cras-go/pkg/audio/decode"
	"github.com/Resonate-Protocol/cras-go/pkg/audio/encode"
	"github.com/Resonate-Protocol/cras-go/pkg/audio/resample"
)

// pcmReader produces bytes in the stream's format from a decoded source
type pcmReader struct {
	source    decode.Source
	srcCh     int
	dstCh     int
	resampler *resample.Resampler
	encoder   *encode.PCMEncoder
	width     int

	in      []int32
	mapped  []int32
	out     []int32
	buf     []byte
	pending []byte
	eof     bool
}

func newPCMReader(source decode.Source, format audio.Format, blockFrames int) (*pcmReader, error) {
	if source.Channels() < 1 || source.SampleRate() <= 0 {
		return nil, fmt.Errorf("invalid source: %dHz %dch", source.SampleRate(), source.Channels())
	}

	encoder, err := encode.NewPCM(format.SampleFormat)
	if err != nil {
		return nil, err
	}

	r := &pcmReader{
		source:    source,
		srcCh:     source.Channels(),
		dstCh:     format.Channels,
		resampler: resample.New(source.SampleRate(), format.Rate, format.Channels),
		encoder:   encoder,
		width:     format.SampleFormat.Bytes(),
		in:        make([]int32, blockFrames*source.Channels()),
		mapped:    make([]int32, blockFrames*format.Channels),
	}
	r.out = make([]int32, r.resampler.OutputSamplesNeeded(len(r.mapped))+2*format.Channels)
	r.buf = make([]byte, len(r.out)*format.SampleFormat.Bytes())
	return r, nil
}

// Read implements io.Reader. It only returns whole samples.
func (r *pcmReader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		if r.eof {
			return 0, io.EOF
		}
		if err := r.refill(); err != nil {
			return 0, err
		}
	}

	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func (r *pcmReader) refill() error {
	n, err := r.source.Read(r.in)
	if frames := n / r.srcCh; frames > 0 {
		samples := remapChannels(r.mapped[:frames*r.dstCh], r.in[:frames*r.srcCh], r.srcCh, r.dstCh)
		if !r.resampler.Passthrough() {
			samples = r.out[:r.resampler.Resample(samples, r.out)]
		}
		if len(samples)*r.width > len(r.buf) {
			r.buf = make([]byte, len(samples)*r.width)
		}
		r.pending = r.buf[:r.encoder.EncodeTo(r.buf, samples)]
	}

	if errors.Is(err, io.EOF) {
		r.eof = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	return nil
}

// remapChannels copies src into dst converting the channel count. Missing
// channels repeat the last source channel, so mono is duplicated.
func remapChannels(dst, src []int32, srcCh, dstCh int) []int32 {
	if srcCh == dstCh {
		return dst[:copy(dst, src)]
	}

	frames := len(src) / srcCh
	for f := 0; f < frames; f++ {
		for ch := 0; ch < dstCh; ch++ {
			dst[f*dstCh+ch] = src[f*srcCh+min(ch, srcCh-1)]
		}
	}
	return dst[:frames*dstCh]
}

// wavSink writes stream-format bytes to a WAV file
type wavSink struct {
	file    *os.File
	decoder decode.Decoder
	writer  *encode.WAVWriter
}

func newWAVSink(path string, format audio.Format) (*wavSink, error) {
	decoder, err := decode.NewPCM(format.SampleFormat)
	if err != nil {
		return nil, err
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	writer, err := encode.NewWAVWriter(f, format.Rate, format.Channels, wavBitDepth(format.SampleFormat))
	if err != nil {
		f.Close()
		return nil, err
	}

	return &wavSink{file: f, decoder: decoder, writer: writer}, nil
}

// Write implements io.Writer. p must hold whole samples.
func (s *wavSink) Write(p []byte) (int, error) {
	samples, err := s.decoder.Decode(p)
	if err != nil {
		return 0, err
	}
	if err := s.writer.Write(samples); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Samples returns the number of samples written so far
func (s *wavSink) Samples() int64 {
	return s.writer.Samples()
}

// Close finalizes the WAV header and closes the file
func (s *wavSink) Close() error {
	werr := s.writer.Close()
	ferr := s.file.Close()
	if werr != nil {
		return werr
	}
	return ferr
}

type discardSink struct{}

func (discardSink) Write(p []byte) (int, error) { return len(p), nil }
func (discardSink) Close() error                { return nil }

// wavBitDepth maps a stream sample format onto a WAV container depth
func wavBitDepth(format audio.SampleFormat) int {
	switch format {
	case audio.FormatU8:
		return 8
	case audio.FormatS16LE:
		return 16
	case audio.FormatS32LE:
		return 32
	default:
		return 24
	}
}
