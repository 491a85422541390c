package codec

import (
	"encoding/binary"
	"math"

	"github.com/juju/errors"

	"torrent-rpc/message"
)

// BinaryCodec lays an envelope out as length-prefixed fields:
//
//	method len (2) | method | arguments len (4) | arguments | result len (2) | result | tag (4)
type BinaryCodec struct{}

var errShortBody = errors.New("BinaryCodec: body too short")

func (c *BinaryCodec) Encode(v any) ([]byte, error) {
	msg, ok := v.(*message.RPCMessage)
	if !ok {
		return nil, errors.Errorf("BinaryCodec: v must be *RPCMessage, got %T", v)
	}
	if len(msg.Method) > math.MaxUint16 || len(msg.Result) > math.MaxUint16 {
		return nil, errors.NotValidf("BinaryCodec: method or result longer than %d bytes", math.MaxUint16)
	}

	total := 2 + len(msg.Method) + 4 + len(msg.Arguments) + 2 + len(msg.Result) + 4
	buf := make([]byte, 0, total)

	buf = binary.BigEndian.AppendUint16(buf, uint16(len(msg.Method)))
	buf = append(buf, msg.Method...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(msg.Arguments)))
	buf = append(buf, msg.Arguments...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(msg.Result)))
	buf = append(buf, msg.Result...)
	buf = binary.BigEndian.AppendUint32(buf, msg.Tag)
	return buf, nil
}

func (c *BinaryCodec) Decode(data []byte, v any) error {
	msg, ok := v.(*message.RPCMessage)
	if !ok {
		return errors.Errorf("BinaryCodec: v must be *RPCMessage, got %T", v)
	}

	r := reader{data: data}
	method := r.next(int(r.uint16()))
	args := r.next(int(r.uint32()))
	result := r.next(int(r.uint16()))
	tag := r.uint32()
	if r.err != nil {
		return r.err
	}

	msg.Method = string(method)
	msg.Arguments = nil
	if len(args) > 0 {
		msg.Arguments = append([]byte(nil), args...)
	}
	msg.Result = string(result)
	msg.Tag = tag
	return nil
}

func (c *BinaryCodec) Type() CodecType {
	return CodecTypeBinary
}

// reader walks a body, remembering the first short read.
type reader struct {
	data []byte
	off  int
	err  error
}

func (r *reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.data)-r.off < n {
		r.err = errShortBody
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) uint16() uint16 {
	b := r.next(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *reader) uint32() uint32 {
	b := r.next(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}
