package protocol

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-meshlink/pkg/types"
)

func sampleEnvelope() types.Envelope {
	return types.Envelope{
		Timestamp: uint64(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC).UnixNano()),
		Sender:    "16Uiu2HAmSender",
		FileName:  "report.pdf",
		FileSize:  1048576,
		FileType:  "application/pdf",
		FileID:    "zDvZRwzkvvqvKp24",
	}
}

// TestBinaryCodec_RoundTrip 测试 decode(encode(m)) 结构等价
func TestBinaryCodec_RoundTrip(t *testing.T) {
	codec := NewBinaryCodec()

	encrypted := true
	cond := "erc721:0xabc"

	tests := []struct {
		name string
		msg  types.Envelope
	}{
		{"minimal", sampleEnvelope()},
		{
			"with optional fields",
			func() types.Envelope {
				m := sampleEnvelope()
				m.Encrypted = &encrypted
				m.AccessCondition = &cond
				return m
			}(),
		},
		{
			"encrypted false",
			func() types.Envelope {
				m := sampleEnvelope()
				f := false
				m.Encrypted = &f
				return m
			}(),
		},
		{
			"empty file name",
			func() types.Envelope {
				m := sampleEnvelope()
				m.FileName = ""
				return m
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.True(t, codec.Validate(tt.msg))

			data, err := codec.Encode(tt.msg)
			require.NoError(t, err)

			got, err := codec.Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tt.msg, got)
		})
	}
}

// TestBinaryCodec_EncodeInvalid 测试不符合 schema 的消息编码失败
func TestBinaryCodec_EncodeInvalid(t *testing.T) {
	codec := NewBinaryCodec()

	tests := []struct {
		name string
		msg  types.Envelope
	}{
		{"zero timestamp", func() types.Envelope { m := sampleEnvelope(); m.Timestamp = 0; return m }()},
		{"empty sender", func() types.Envelope { m := sampleEnvelope(); m.Sender = ""; return m }()},
		{"empty fileID", func() types.Envelope { m := sampleEnvelope(); m.FileID = ""; return m }()},
		{"negative size", func() types.Envelope { m := sampleEnvelope(); m.FileSize = -1; return m }()},
		{"nan size", func() types.Envelope { m := sampleEnvelope(); m.FileSize = math.NaN(); return m }()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Encode(tt.msg)
			require.Error(t, err)

			var encErr *types.EncodingError
			assert.ErrorAs(t, err, &encErr)
		})
	}
}

// TestBinaryCodec_DecodeCorrupt 测试损坏输入返回 DecodingError 而非 panic
func TestBinaryCodec_DecodeCorrupt(t *testing.T) {
	codec := NewBinaryCodec()

	valid, err := codec.Encode(sampleEnvelope())
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short timestamp", valid[:4]},
		{"truncated mid-string", valid[:12]},
		{"truncated before flags", valid[:len(valid)-1]},
		{"trailing garbage", append(append([]byte{}, valid...), 0xff)},
		{"huge length prefix", append(append([]byte{}, valid[:8]...), 0xff, 0xff, 0xff, 0xff, 0xff, 0x0f)},
		{"random bytes", []byte{0xde, 0xad, 0xbe, 0xef, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotPanics(t, func() {
				_, err := codec.Decode(tt.data)
				require.Error(t, err)

				var decErr *types.DecodingError
				assert.ErrorAs(t, err, &decErr)
			})
		})
	}
}

// TestBinaryCodec_OptionalFieldAbsence 测试可选字段缺席时解码为 nil
func TestBinaryCodec_OptionalFieldAbsence(t *testing.T) {
	codec := NewBinaryCodec()

	data, err := codec.Encode(sampleEnvelope())
	require.NoError(t, err)

	got, err := codec.Decode(data)
	require.NoError(t, err)

	assert.Nil(t, got.Encrypted)
	assert.Nil(t, got.AccessCondition)
}

// TestProtocol_Binding 测试主题绑定
func TestProtocol_Binding(t *testing.T) {
	p := New("files/announce", nil)

	assert.Equal(t, "files/announce", p.Topic())
	assert.NotNil(t, p.Codec())
}
