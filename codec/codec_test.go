package codec

import (
	"encoding/json"
	"testing"

	"torrent-rpc/message"
)

func sampleMessage() *message.RPCMessage {
	return &message.RPCMessage{
		Method:    "torrent-set",
		Arguments: json.RawMessage(`{"ids":[1,2],"downloadLimit":5000}`),
		Tag:       42,
	}
}

func checkSame(t *testing.T, got, want *message.RPCMessage) {
	t.Helper()
	if got.Method != want.Method {
		t.Errorf("Method mismatch: got %s, want %s", got.Method, want.Method)
	}
	if string(got.Arguments) != string(want.Arguments) {
		t.Errorf("Arguments mismatch: got %s, want %s", got.Arguments, want.Arguments)
	}
	if got.Result != want.Result {
		t.Errorf("Result mismatch: got %s, want %s", got.Result, want.Result)
	}
	if got.Tag != want.Tag {
		t.Errorf("Tag mismatch: got %d, want %d", got.Tag, want.Tag)
	}
}

func TestCodecs(t *testing.T) {
	reply := message.Success(sampleMessage(), json.RawMessage(`{}`))

	for _, cdc := range []Codec{&JSONCodec{}, &BinaryCodec{}} {
		for _, original := range []*message.RPCMessage{sampleMessage(), reply} {
			data, err := cdc.Encode(original)
			if err != nil {
				t.Fatalf("%s Encode failed: %v", cdc.Type(), err)
			}

			var decoded message.RPCMessage
			if err := cdc.Decode(data, &decoded); err != nil {
				t.Fatalf("%s Decode failed: %v", cdc.Type(), err)
			}
			checkSame(t, &decoded, original)
		}
	}
}

func TestBinaryCodecRejectsTruncatedBody(t *testing.T) {
	cdc := &BinaryCodec{}
	data, err := cdc.Encode(sampleMessage())
	if err != nil {
		t.Fatal(err)
	}

	for _, n := range []int{0, 1, 5, len(data) - 1} {
		var msg message.RPCMessage
		if err := cdc.Decode(data[:n], &msg); err == nil {
			t.Fatalf("expect error decoding %d of %d bytes", n, len(data))
		}
	}
}

func TestBinaryCodecRejectsOtherTypes(t *testing.T) {
	if _, err := (&BinaryCodec{}).Encode(struct{}{}); err == nil {
		t.Fatal("expect error encoding a non-envelope value")
	}
}

func TestParseCodecType(t *testing.T) {
	cases := map[string]CodecType{"": CodecTypeJSON, "json": CodecTypeJSON, "Binary": CodecTypeBinary}
	for name, want := range cases {
		got, err := ParseCodecType(name)
		if err != nil {
			t.Fatalf("expect %q to parse, got %v", name, err)
		}
		if got != want {
			t.Fatalf("expect %s, got %s", want, got)
		}
	}
	if _, err := ParseCodecType("gob"); err == nil {
		t.Fatal("expect error for unknown codec")
	}
}

func benchmarkCodec(b *testing.B, t CodecType) {
	cdc := GetCodec(t)
	msg := sampleMessage()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		data, _ := cdc.Encode(msg)
		var out message.RPCMessage
		cdc.Decode(data, &out)
	}
}

func BenchmarkCodecJSON(b *testing.B) {
	benchmarkCodec(b, CodecTypeJSON)
}

func BenchmarkCodecBinary(b *testing.B) {
	benchmarkCodec(b, CodecTypeBinary)
}
