package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// FFProbe probes files with the ffprobe binary.
type FFProbe struct {
	Binary string
}

func NewFFProbe(binary string) *FFProbe {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	return &FFProbe{Binary: binary}
}

type ffprobeResult struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	Index       int    `json:"index"`
	CodecName   string `json:"codec_name"`
	CodecType   string `json:"codec_type"`
	Duration    string `json:"duration"`
	SampleRate  string `json:"sample_rate"`
	Channels    int    `json:"channels"`
	Disposition struct {
		AttachedPic int `json:"attached_pic"`
	} `json:"disposition"`
}

type ffprobeFormat struct {
	Filename   string            `json:"filename"`
	Duration   string            `json:"duration"`
	Size       string            `json:"size"`
	FormatName string            `json:"format_name"`
	Tags       map[string]string `json:"tags"`
}

func (p *FFProbe) Probe(ctx context.Context, path string) (*Metadata, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("ffprobe: empty path")
	}

	size, err := statFile(path)
	if err != nil {
		return nil, err
	}

	output, err := p.run(ctx, path)
	if err != nil {
		return nil, err
	}

	var result ffprobeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("%w: ffprobe parse: %w", ErrUnreadable, err)
	}
	return metadataFromResult(result, size)
}

func (p *FFProbe) run(ctx context.Context, path string) ([]byte, error) {
	if _, err := exec.LookPath(p.Binary); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrProberUnavailable, p.Binary, err)
	}

	cmd := exec.CommandContext(ctx, p.Binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err == nil {
		return output, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if errors.Is(err, exec.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrProberUnavailable, err)
	}
	msg := strings.TrimSpace(stderr.String())
	if msg == "" {
		msg = "ffprobe failed"
	}
	return nil, fmt.Errorf("%w: %s: %s", ErrUnreadable, path, msg)
}

func metadataFromResult(result ffprobeResult, statSize int64) (*Metadata, error) {
	var audio *ffprobeStream
	hasCover := false
	for i := range result.Streams {
		s := &result.Streams[i]
		switch {
		case strings.EqualFold(s.CodecType, "audio") && audio == nil:
			audio = s
		case strings.EqualFold(s.CodecType, "video") && s.Disposition.AttachedPic == 1:
			hasCover = true
		}
	}
	if audio == nil {
		return nil, fmt.Errorf("%w: no audio stream", ErrUnsupportedFormat)
	}

	duration := parseFloat(result.Format.Duration)
	if duration <= 0 || math.IsNaN(duration) {
		duration = parseFloat(audio.Duration)
	}
	if duration <= 0 || math.IsNaN(duration) {
		return nil, fmt.Errorf("%w: invalid duration %q", ErrUnreadable, result.Format.Duration)
	}

	size := int64(0)
	if s := parseFloat(result.Format.Size); s > 0 && !math.IsNaN(s) {
		size = int64(s)
	}
	if size == 0 {
		size = statSize
	}

	sampleRate, _ := strconv.Atoi(strings.TrimSpace(audio.SampleRate))

	format := result.Format.FormatName
	if i := strings.IndexByte(format, ','); i >= 0 {
		format = format[:i]
	}

	return &Metadata{
		DurationSeconds: duration,
		SampleRate:      sampleRate,
		Channels:        audio.Channels,
		Format:          format,
		SizeBytes:       size,
		Title:           tagValue(result.Format.Tags, "title"),
		Artist:          tagValue(result.Format.Tags, "artist"),
		HasCoverArt:     hasCover,
	}, nil
}

// tagValue looks a tag up ignoring case; containers disagree on TITLE vs title.
func tagValue(tags map[string]string, key string) string {
	for k, v := range tags {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
