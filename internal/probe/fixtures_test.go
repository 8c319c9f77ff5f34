package probe

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"
)

// writeWAV writes a PCM WAV file with seconds of silence.
func writeWAV(t *testing.T, dir, name string, sampleRate, channels int, seconds float64) string {
	t.Helper()
	const bitsPerSample = 16
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign
	dataSize := int(float64(byteRate) * seconds)

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize+10))
	buf.WriteString("WAVE")

	// An unknown chunk with odd size checks padding handling.
	buf.WriteString("junk")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(1))
	buf.Write([]byte{0, 0})

	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(make([]byte, dataSize))

	return writeFile(t, dir, name, buf.Bytes())
}

// writeFLAC writes a metadata-only FLAC file with the given stream info.
func writeFLAC(t *testing.T, dir, name string, sampleRate, channels int, samples int64, title string) string {
	t.Helper()

	info := make([]byte, 34)
	binary.BigEndian.PutUint16(info[0:2], 4096)
	binary.BigEndian.PutUint16(info[2:4], 4096)
	packed := uint64(sampleRate)<<44 | uint64(channels-1)<<41 | uint64(16-1)<<36 | uint64(samples)
	binary.BigEndian.PutUint64(info[10:18], packed)

	file := &flac.File{
		Meta: []*flac.MetaDataBlock{{Type: flac.StreamInfo, Data: info}},
	}
	if title != "" {
		cmt := flacvorbis.New()
		if err := cmt.Add(flacvorbis.FIELD_TITLE, title); err != nil {
			t.Fatalf("vorbis add: %v", err)
		}
		block := cmt.Marshal()
		file.Meta = append(file.Meta, &block)
	}
	return writeFile(t, dir, name, file.Marshal())
}

// mp3Frame128 is an MPEG-1 Layer III, 128 kbit/s, 44.1 kHz joint-stereo frame.
func mp3Frame128() []byte {
	frame := make([]byte, 417)
	copy(frame, []byte{0xFF, 0xFB, 0x90, 0x64})
	return frame
}

// writeMP3 writes frames CBR frames, preceded by an ID3v2 tag when title or
// lengthMillis is set.
func writeMP3(t *testing.T, dir, name string, frames int, title, lengthMillis string) string {
	t.Helper()

	var buf bytes.Buffer
	if title != "" || lengthMillis != "" {
		tag := id3v2.NewEmptyTag()
		tag.SetTitle(title)
		tag.SetArtist("Tester")
		if lengthMillis != "" {
			tag.AddTextFrame(tag.CommonID("Length"), tag.DefaultEncoding(), lengthMillis)
		}
		if _, err := tag.WriteTo(&buf); err != nil {
			t.Fatalf("write id3 tag: %v", err)
		}
	}
	for i := 0; i < frames; i++ {
		buf.Write(mp3Frame128())
	}
	return writeFile(t, dir, name, buf.Bytes())
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
