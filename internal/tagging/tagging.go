package tagging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"

	"github.com/cesargomez89/recshelf/internal/constants"
)

// Tags is the descriptive metadata embedded in an audio file.
type Tags struct {
	Title       string
	Artist      string
	HasCoverArt bool
	// LengthMillis is the ID3 TLEN value, 0 when absent.
	LengthMillis int64
}

// ReadTags reads embedded tags from the audio file at filePath. Formats
// without tag support yield empty Tags and no error.
func ReadTags(filePath string) (Tags, error) {
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case constants.ExtFLAC:
		return readFLAC(filePath)
	case constants.ExtMP3:
		return readMP3(filePath)
	default:
		return Tags{}, nil
	}
}

// readFLAC parses only the metadata blocks; audio frames are never loaded.
func readFLAC(filePath string) (Tags, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return Tags{}, fmt.Errorf("failed to open FLAC file: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	stream, err := flac.ParseMetadata(f)
	if err != nil {
		return Tags{}, fmt.Errorf("failed to parse FLAC metadata: %w", err)
	}
	return FromFLAC(stream), nil
}

// FromFLAC extracts tags from already parsed FLAC metadata.
func FromFLAC(stream *flac.File) Tags {
	var tags Tags
	for _, block := range stream.Meta {
		switch block.Type {
		case flac.VorbisComment:
			cmt, err := flacvorbis.ParseFromMetaDataBlock(*block)
			if err != nil {
				continue
			}
			tags.Title = firstComment(cmt, flacvorbis.FIELD_TITLE)
			tags.Artist = firstComment(cmt, flacvorbis.FIELD_ARTIST)
		case flac.Picture:
			pic, err := flacpicture.ParseFromMetaDataBlock(*block)
			if err != nil {
				continue
			}
			if len(pic.ImageData) > 0 {
				tags.HasCoverArt = true
			}
		}
	}
	return tags
}

func firstComment(cmt *flacvorbis.MetaDataBlockVorbisComment, field string) string {
	values, err := cmt.Get(field)
	if err != nil || len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func readMP3(filePath string) (Tags, error) {
	tag, err := id3v2.Open(filePath, id3v2.Options{Parse: true})
	if err != nil {
		if errors.Is(err, id3v2.ErrUnsupportedVersion) {
			return Tags{}, nil
		}
		return Tags{}, fmt.Errorf("failed to read ID3 tag: %w", err)
	}
	defer tag.Close() //nolint:errcheck // read-only handle

	tags := Tags{
		Title:  strings.TrimSpace(tag.Title()),
		Artist: strings.TrimSpace(tag.Artist()),
	}

	if pictures := tag.GetFrames(tag.CommonID("Attached picture")); len(pictures) > 0 {
		tags.HasCoverArt = true
	}

	if length := tag.GetTextFrame(tag.CommonID("Length")); length.Text != "" {
		if ms, err := strconv.ParseInt(strings.TrimSpace(length.Text), 10, 64); err == nil && ms > 0 {
			tags.LengthMillis = ms
		}
	}

	return tags, nil
}
