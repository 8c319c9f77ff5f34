package probe

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-flac/go-flac"

	"github.com/cesargomez89/recshelf/internal/constants"
	"github.com/cesargomez89/recshelf/internal/tagging"
)

// Native probes FLAC, WAV and MP3 without external processes.
type Native struct{}

func NewNative() *Native {
	return &Native{}
}

func (n *Native) Probe(ctx context.Context, path string) (*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case constants.ExtFLAC, constants.ExtWAV, constants.ExtMP3:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	size, err := statFile(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	var meta *Metadata
	switch ext {
	case constants.ExtFLAC:
		meta, err = probeFLAC(f)
	case constants.ExtWAV:
		meta, err = probeWAV(f)
	case constants.ExtMP3:
		meta, err = probeMP3(f, path, size)
	}
	if err != nil {
		return nil, err
	}

	meta.SizeBytes = size
	if meta.DurationSeconds <= 0 {
		return nil, fmt.Errorf("%w: invalid duration %v", ErrUnreadable, meta.DurationSeconds)
	}
	return meta, nil
}

func probeFLAC(r io.Reader) (*Metadata, error) {
	stream, err := flac.ParseMetadata(r)
	if err != nil {
		return nil, fmt.Errorf("%w: flac: %w", ErrUnreadable, err)
	}
	if len(stream.Meta) == 0 {
		return nil, fmt.Errorf("%w: flac has no metadata blocks", ErrUnreadable)
	}
	info, err := stream.GetStreamInfo()
	if err != nil {
		return nil, fmt.Errorf("%w: flac streaminfo: %w", ErrUnreadable, err)
	}
	if info.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: flac sample rate %d", ErrUnreadable, info.SampleRate)
	}

	tags := tagging.FromFLAC(stream)
	return &Metadata{
		DurationSeconds: float64(info.SampleCount) / float64(info.SampleRate),
		SampleRate:      info.SampleRate,
		Channels:        info.ChannelCount,
		Format:          "flac",
		Title:           tags.Title,
		Artist:          tags.Artist,
		HasCoverArt:     tags.HasCoverArt,
	}, nil
}

// probeWAV walks RIFF chunks until both "fmt " and "data" have been seen.
func probeWAV(r io.Reader) (*Metadata, error) {
	br := bufio.NewReader(r)

	var header [12]byte
	if _, err := io.ReadFull(br, header[:]); err != nil {
		return nil, fmt.Errorf("%w: wav header: %w", ErrUnreadable, err)
	}
	if !bytes.Equal(header[0:4], []byte("RIFF")) || !bytes.Equal(header[8:12], []byte("WAVE")) {
		return nil, fmt.Errorf("%w: not a RIFF/WAVE file", ErrUnreadable)
	}

	var (
		channels   int
		sampleRate int
		byteRate   int
		dataSize   int64
		haveFmt    bool
		haveData   bool
	)
	for !haveFmt || !haveData {
		var chunk [8]byte
		if _, err := io.ReadFull(br, chunk[:]); err != nil {
			return nil, fmt.Errorf("%w: wav chunk: %w", ErrUnreadable, err)
		}
		id := string(chunk[0:4])
		size := int64(binary.LittleEndian.Uint32(chunk[4:8]))

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("%w: wav fmt chunk too short", ErrUnreadable)
			}
			var fmtChunk [16]byte
			if _, err := io.ReadFull(br, fmtChunk[:]); err != nil {
				return nil, fmt.Errorf("%w: wav fmt: %w", ErrUnreadable, err)
			}
			channels = int(binary.LittleEndian.Uint16(fmtChunk[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(fmtChunk[4:8]))
			byteRate = int(binary.LittleEndian.Uint32(fmtChunk[8:12]))
			haveFmt = true
			if err := skip(br, size-16+size%2); err != nil {
				return nil, err
			}
		case "data":
			dataSize = size
			haveData = true
			if !haveFmt {
				if err := skip(br, size+size%2); err != nil {
					return nil, err
				}
			}
		default:
			if err := skip(br, size+size%2); err != nil {
				return nil, err
			}
		}
	}

	if byteRate <= 0 {
		return nil, fmt.Errorf("%w: wav byte rate %d", ErrUnreadable, byteRate)
	}
	return &Metadata{
		DurationSeconds: float64(dataSize) / float64(byteRate),
		SampleRate:      sampleRate,
		Channels:        channels,
		Format:          "wav",
	}, nil
}

func skip(r io.Reader, n int64) error {
	if n <= 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, r, n); err != nil {
		return fmt.Errorf("%w: truncated chunk: %w", ErrUnreadable, err)
	}
	return nil
}

// mp3SyncWindow bounds how far past the ID3 tag the first frame is searched.
const mp3SyncWindow = 64 << 10

var (
	mp3SampleRates = map[byte][3]int{
		3: {44100, 48000, 32000}, // MPEG-1
		2: {22050, 24000, 16000}, // MPEG-2
		0: {11025, 12000, 8000},  // MPEG-2.5
	}
	mp3Bitrates = map[[2]byte][15]int{
		{3, 3}: {0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448},
		{3, 2}: {0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384},
		{3, 1}: {0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320},
		{2, 3}: {0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256},
		{2, 2}: {0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160},
		{2, 1}: {0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160},
	}
)

type mp3Frame struct {
	version    byte // 3 MPEG-1, 2 MPEG-2, 0 MPEG-2.5
	layer      byte // 3 Layer I, 2 Layer II, 1 Layer III
	bitrate    int  // kbit/s
	sampleRate int
	channels   int
}

func (f mp3Frame) samplesPerFrame() int {
	switch {
	case f.layer == 3:
		return 384
	case f.layer == 1 && f.version != 3:
		return 576
	default:
		return 1152
	}
}

// xingOffset is where a Xing/Info header would start, counted from the frame
// header.
func (f mp3Frame) xingOffset() int {
	mono := f.channels == 1
	switch {
	case f.version == 3 && !mono:
		return 4 + 32
	case f.version == 3 && mono:
		return 4 + 17
	case !mono:
		return 4 + 17
	default:
		return 4 + 9
	}
}

func parseMP3Header(h []byte) (mp3Frame, bool) {
	if len(h) < 4 || h[0] != 0xFF || h[1]&0xE0 != 0xE0 {
		return mp3Frame{}, false
	}
	version := (h[1] >> 3) & 0x03
	layer := (h[1] >> 1) & 0x03
	bitrateIdx := h[2] >> 4
	rateIdx := (h[2] >> 2) & 0x03
	if version == 1 || layer == 0 || bitrateIdx == 0 || bitrateIdx == 15 || rateIdx == 3 {
		return mp3Frame{}, false
	}

	tableVersion := version
	if tableVersion == 0 {
		tableVersion = 2
	}
	channels := 2
	if h[3]>>6 == 3 {
		channels = 1
	}
	return mp3Frame{
		version:    version,
		layer:      layer,
		bitrate:    mp3Bitrates[[2]byte{tableVersion, layer}][bitrateIdx],
		sampleRate: mp3SampleRates[version][rateIdx],
		channels:   channels,
	}, true
}

// id3v2Size returns the full length of a leading ID3v2 tag, or 0 if absent.
func id3v2Size(h []byte) int64 {
	if len(h) < 10 || !bytes.Equal(h[0:3], []byte("ID3")) {
		return 0
	}
	size := int64(h[6]&0x7F)<<21 | int64(h[7]&0x7F)<<14 | int64(h[8]&0x7F)<<7 | int64(h[9]&0x7F)
	size += 10
	if h[5]&0x10 != 0 {
		size += 10
	}
	return size
}

func probeMP3(f io.ReadSeeker, path string, fileSize int64) (*Metadata, error) {
	var head [10]byte
	if _, err := io.ReadFull(f, head[:]); err != nil {
		return nil, fmt.Errorf("%w: mp3 header: %w", ErrUnreadable, err)
	}
	tagSize := id3v2Size(head[:])
	if _, err := f.Seek(tagSize, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}

	buf := make([]byte, mp3SyncWindow)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	buf = buf[:n]

	offset := -1
	var frame mp3Frame
	for i := 0; i+4 <= len(buf); i++ {
		if fr, ok := parseMP3Header(buf[i : i+4]); ok {
			frame, offset = fr, i
			break
		}
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: no MPEG audio frame found", ErrUnreadable)
	}

	duration := 0.0
	if x := offset + frame.xingOffset(); x+12 <= len(buf) {
		tag := string(buf[x : x+4])
		flags := binary.BigEndian.Uint32(buf[x+4 : x+8])
		if (tag == "Xing" || tag == "Info") && flags&0x1 != 0 {
			frames := binary.BigEndian.Uint32(buf[x+8 : x+12])
			duration = float64(frames) * float64(frame.samplesPerFrame()) / float64(frame.sampleRate)
		}
	}

	var tags tagging.Tags
	if tagSize > 0 {
		if t, err := tagging.ReadTags(path); err == nil {
			tags = t
		}
	}
	if duration <= 0 && tags.LengthMillis > 0 {
		duration = float64(tags.LengthMillis) / 1000
	}
	if duration <= 0 && frame.bitrate > 0 {
		audioBytes := fileSize - tagSize - int64(offset)
		duration = float64(audioBytes*8) / float64(frame.bitrate*1000)
	}

	return &Metadata{
		DurationSeconds: duration,
		SampleRate:      frame.sampleRate,
		Channels:        frame.channels,
		Format:          "mp3",
		Title:           tags.Title,
		Artist:          tags.Artist,
		HasCoverArt:     tags.HasCoverArt,
	}, nil
}
