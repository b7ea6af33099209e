package record

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildRecord(typ ContentType, version uint16, payload []byte) []byte {
	buf := make([]byte, 0, headerLen+len(payload))
	buf = append(buf, byte(typ), byte(version>>8), byte(version))
	buf = append(buf, byte(len(payload)>>8), byte(len(payload)))
	buf = append(buf, payload...)
	return buf
}

func TestReadNext_WellFormed(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 16)
	wire := buildRecord(ContentTypeHandshake, 0x0303, payload)

	r := NewReader(bytes.NewReader(wire))
	rec, err := r.ReadNext()
	require.NoError(t, err)
	assert.Equal(t, ContentTypeHandshake, rec.Type)
	assert.Equal(t, uint16(0x0303), rec.Version)
	assert.Equal(t, payload, rec.Payload)
	assert.Equal(t, wire, rec.Raw)
}

func TestReadNextAndCopy_PreservesPrefix(t *testing.T) {
	var wire []byte
	wire = append(wire, buildRecord(ContentTypeHandshake, 0x0303, []byte("hello"))...)
	wire = append(wire, buildRecord(ContentTypeApplicationData, 0x0303, []byte("world!!"))...)

	r := NewReader(bytes.NewReader(wire))
	var sink bytes.Buffer
	_, err := r.ReadNextAndCopy(&sink)
	require.NoError(t, err)
	_, err = r.ReadNextAndCopy(&sink)
	require.NoError(t, err)

	assert.Equal(t, wire, sink.Bytes())
}

func TestReadNext_MaxPayloadBoundary(t *testing.T) {
	payload := make([]byte, MaxPayload)
	wire := buildRecord(ContentTypeApplicationData, 0x0303, payload)
	r := NewReader(bytes.NewReader(wire))
	_, err := r.ReadNext()
	require.NoError(t, err)
}

func TestReadNext_OversizedRecord(t *testing.T) {
	hdr := []byte{byte(ContentTypeApplicationData), 0x03, 0x03, 0x48, 0x01} // length = 0x4801 = 18433 = MaxPayload+1
	r := NewReader(bytes.NewReader(hdr))
	_, err := r.ReadNext()
	require.Error(t, err)
	var rerr *ReadError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, ErrOversizedRecord, rerr.Kind)
}

func TestReadNext_UnexpectedEOF(t *testing.T) {
	wire := []byte{byte(ContentTypeHandshake), 0x03, 0x03, 0x00, 0x10} // declares 16 bytes, supplies none
	r := NewReader(bytes.NewReader(wire))
	_, err := r.ReadNext()
	require.Error(t, err)
	var rerr *ReadError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, ErrUnexpectedEOF, rerr.Kind)
}

func TestReadNext_UnknownTypePassedThroughVerbatim(t *testing.T) {
	wire := buildRecord(ContentType(0x42), 0x0303, []byte("opaque"))
	r := NewReader(bytes.NewReader(wire))
	rec, err := r.ReadNext()
	require.NoError(t, err)
	assert.Equal(t, ContentType(0x42), rec.Type)
	assert.Equal(t, []byte("opaque"), rec.Payload)
}

func TestWriteRecord_RoundTripsThroughReader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRecord(&buf, ContentTypeApplicationData, 0x0303, []byte("payload")))

	r := NewReader(&buf)
	rec, err := r.ReadNext()
	require.NoError(t, err)
	assert.Equal(t, ContentTypeApplicationData, rec.Type)
	assert.Equal(t, uint16(0x0303), rec.Version)
	assert.Equal(t, []byte("payload"), rec.Payload)
}

func TestWriteRecord_RejectsOversizedFragment(t *testing.T) {
	var buf bytes.Buffer
	err := WriteRecord(&buf, ContentTypeApplicationData, 0x0303, make([]byte, MaxFragment+1))
	require.Error(t, err)
	assert.Equal(t, 0, buf.Len())
}

func TestReadNext_NoBufferingAcrossRecords(t *testing.T) {
	wire := append(buildRecord(ContentTypeHandshake, 0x0303, []byte("one")),
		buildRecord(ContentTypeHandshake, 0x0303, []byte("two"))...)
	r := NewReader(bytes.NewReader(wire))
	first, err := r.ReadNext()
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), first.Payload)
	second, err := r.ReadNext()
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), second.Payload)
}
