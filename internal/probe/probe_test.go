package probe

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/cesargomez89/recshelf/internal/constants"
	"github.com/cesargomez89/recshelf/internal/logger"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestNative_WAV(t *testing.T) {
	dir := t.TempDir()
	path := writeWAV(t, dir, "take.wav", 44100, 2, 2.0)

	meta, err := NewNative().Probe(context.Background(), path)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if !approx(meta.DurationSeconds, 2.0) {
		t.Errorf("duration = %v, want 2.0", meta.DurationSeconds)
	}
	if meta.SampleRate != 44100 || meta.Channels != 2 || meta.Format != "wav" {
		t.Errorf("unexpected metadata: %+v", meta)
	}
	info, _ := os.Stat(path)
	if meta.SizeBytes != info.Size() {
		t.Errorf("size = %d, want %d", meta.SizeBytes, info.Size())
	}
}

func TestNative_FLAC(t *testing.T) {
	dir := t.TempDir()
	path := writeFLAC(t, dir, "take.flac", 48000, 2, 96000, "Morning Take")

	meta, err := NewNative().Probe(context.Background(), path)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if !approx(meta.DurationSeconds, 2.0) {
		t.Errorf("duration = %v, want 2.0", meta.DurationSeconds)
	}
	if meta.SampleRate != 48000 || meta.Channels != 2 || meta.Format != "flac" {
		t.Errorf("unexpected metadata: %+v", meta)
	}
	if meta.Title != "Morning Take" {
		t.Errorf("title = %q, want %q", meta.Title, "Morning Take")
	}
}

func TestNative_FLAC_ZeroSamples(t *testing.T) {
	dir := t.TempDir()
	path := writeFLAC(t, dir, "empty.flac", 48000, 1, 0, "")

	_, err := NewNative().Probe(context.Background(), path)
	if !errors.Is(err, ErrUnreadable) {
		t.Errorf("Expected ErrUnreadable for zero duration, got %v", err)
	}
}

func TestNative_MP3(t *testing.T) {
	dir := t.TempDir()

	t.Run("cbr estimate", func(t *testing.T) {
		path := writeMP3(t, dir, "plain.mp3", 100, "", "")
		meta, err := NewNative().Probe(context.Background(), path)
		if err != nil {
			t.Fatalf("Probe failed: %v", err)
		}
		want := float64(100*417*8) / 128000
		if !approx(meta.DurationSeconds, want) {
			t.Errorf("duration = %v, want %v", meta.DurationSeconds, want)
		}
		if meta.SampleRate != 44100 || meta.Channels != 2 || meta.Format != "mp3" {
			t.Errorf("unexpected metadata: %+v", meta)
		}
	})

	t.Run("tlen and tags", func(t *testing.T) {
		path := writeMP3(t, dir, "tagged.mp3", 10, "Demo", "5000")
		meta, err := NewNative().Probe(context.Background(), path)
		if err != nil {
			t.Fatalf("Probe failed: %v", err)
		}
		if !approx(meta.DurationSeconds, 5.0) {
			t.Errorf("duration = %v, want 5.0 from TLEN", meta.DurationSeconds)
		}
		if meta.Title != "Demo" || meta.Artist != "Tester" {
			t.Errorf("tags not read: %+v", meta)
		}
	})

	t.Run("no frames", func(t *testing.T) {
		path := writeFile(t, dir, "garbage.mp3", make([]byte, 2048))
		if _, err := NewNative().Probe(context.Background(), path); !errors.Is(err, ErrUnreadable) {
			t.Errorf("Expected ErrUnreadable, got %v", err)
		}
	})
}

func TestNative_Errors(t *testing.T) {
	dir := t.TempDir()
	p := NewNative()

	ogg := writeFile(t, dir, "voice.ogg", []byte("OggS"))
	if _, err := p.Probe(context.Background(), ogg); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat for .ogg, got %v", err)
	}

	corrupt := writeFile(t, dir, "corrupt.wav", []byte("not a riff file at all"))
	if _, err := p.Probe(context.Background(), corrupt); !errors.Is(err, ErrUnreadable) {
		t.Errorf("Expected ErrUnreadable for corrupt wav, got %v", err)
	}

	if _, err := p.Probe(context.Background(), filepath.Join(dir, "gone.wav")); !errors.Is(err, ErrUnreadable) {
		t.Errorf("Expected ErrUnreadable for missing file, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	wav := writeWAV(t, dir, "ok.wav", 8000, 1, 1)
	if _, err := p.Probe(ctx, wav); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestFFProbe_MissingBinary(t *testing.T) {
	dir := t.TempDir()
	wav := writeWAV(t, dir, "a.wav", 8000, 1, 1)

	p := NewFFProbe(filepath.Join(dir, "no-such-ffprobe"))
	_, err := p.Probe(context.Background(), wav)
	if !errors.Is(err, ErrProberUnavailable) {
		t.Fatalf("Expected ErrProberUnavailable, got %v", err)
	}
	if !IsInfrastructure(err) {
		t.Error("IsInfrastructure should be true for a missing binary")
	}
	if IsInfrastructure(ErrUnreadable) {
		t.Error("IsInfrastructure should be false for per-file errors")
	}
}

func TestFFProbe_DefaultBinary(t *testing.T) {
	if got := NewFFProbe("  ").Binary; got != "ffprobe" {
		t.Errorf("Binary = %q, want ffprobe", got)
	}
}

func TestMetadataFromResult(t *testing.T) {
	result := ffprobeResult{
		Streams: []ffprobeStream{
			{Index: 0, CodecType: "audio", CodecName: "aac", SampleRate: "44100", Channels: 2, Duration: "3.5"},
			{Index: 1, CodecType: "video", CodecName: "mjpeg"},
		},
		Format: ffprobeFormat{
			Duration:   "3.500000",
			Size:       "56000",
			FormatName: "mov,mp4,m4a,3gp,3g2,mj2",
			Tags:       map[string]string{"TITLE": "Interview", "artist": "Host"},
		},
	}
	result.Streams[1].Disposition.AttachedPic = 1

	meta, err := metadataFromResult(result, 1)
	if err != nil {
		t.Fatalf("metadataFromResult failed: %v", err)
	}
	if !approx(meta.DurationSeconds, 3.5) || meta.SampleRate != 44100 || meta.Channels != 2 {
		t.Errorf("unexpected stream values: %+v", meta)
	}
	if meta.Format != "mov" || meta.SizeBytes != 56000 {
		t.Errorf("unexpected format values: %+v", meta)
	}
	if meta.Title != "Interview" || meta.Artist != "Host" || !meta.HasCoverArt {
		t.Errorf("unexpected tag values: %+v", meta)
	}

	noAudio := ffprobeResult{Streams: []ffprobeStream{{CodecType: "video"}}, Format: ffprobeFormat{Duration: "1"}}
	if _, err := metadataFromResult(noAudio, 1); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}

	zero := ffprobeResult{Streams: []ffprobeStream{{CodecType: "audio"}}, Format: ffprobeFormat{Duration: "0"}}
	if _, err := metadataFromResult(zero, 1); !errors.Is(err, ErrUnreadable) {
		t.Errorf("Expected ErrUnreadable for zero duration, got %v", err)
	}

	streamOnly := ffprobeResult{Streams: []ffprobeStream{{CodecType: "audio", Duration: "2"}}}
	meta, err = metadataFromResult(streamOnly, 99)
	if err != nil {
		t.Fatalf("stream duration fallback failed: %v", err)
	}
	if !approx(meta.DurationSeconds, 2) || meta.SizeBytes != 99 {
		t.Errorf("fallbacks not applied: %+v", meta)
	}
}

type stubProber struct {
	meta  *Metadata
	err   error
	calls int
}

func (s *stubProber) Probe(ctx context.Context, path string) (*Metadata, error) {
	s.calls++
	return s.meta, s.err
}

func TestAuto_Fallback(t *testing.T) {
	primary := &stubProber{err: ErrUnsupportedFormat}
	fallback := &stubProber{meta: &Metadata{Format: "ogg", DurationSeconds: 1}}
	auto := NewAuto(primary, fallback, logger.Discard())

	meta, err := auto.Probe(context.Background(), "/x/a.ogg")
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if meta.Format != "ogg" || fallback.calls != 1 {
		t.Errorf("Expected fallback to answer, got %+v (calls=%d)", meta, fallback.calls)
	}

	primary.err = ErrUnreadable
	if _, err := auto.Probe(context.Background(), "/x/a.wav"); !errors.Is(err, ErrUnreadable) {
		t.Errorf("Expected ErrUnreadable to pass through, got %v", err)
	}
	if fallback.calls != 1 {
		t.Errorf("fallback must not run for unreadable files, calls=%d", fallback.calls)
	}
}

func TestNew(t *testing.T) {
	for _, kind := range []string{constants.ProberAuto, constants.ProberFFProbe, constants.ProberNative, ""} {
		if _, err := New(kind, "ffprobe", logger.Discard()); err != nil {
			t.Errorf("New(%q) failed: %v", kind, err)
		}
	}
	if _, err := New("sox", "", nil); err == nil {
		t.Error("Expected error for unknown prober kind")
	}
}
