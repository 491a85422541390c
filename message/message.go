// Package message defines the envelope exchanged with the torrent daemon.
//
// A request names a method and carries its argument object. The reply
// echoes the tag and reports "success" or the daemon's error string in
// Result, with any reply arguments alongside.
package message

import "encoding/json"

// ResultSuccess is the Result of a reply the daemon accepted.
const ResultSuccess = "success"

// RPCMessage carries a single request or reply.
//
//   - On request:  Method and Arguments are set, Result is empty.
//   - On reply:    Result is set; Arguments holds the reply object, if any.
type RPCMessage struct {
	Method    string          `json:"method,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Result    string          `json:"result,omitempty"`
	Tag       uint32          `json:"tag,omitempty"`

	// local marks failures raised on this side of the connection, such as
	// a broken transport or an expired deadline. It never crosses the wire.
	local bool
}

// Failed reports whether the message is a reply the daemon did not accept.
func (m *RPCMessage) Failed() bool {
	return m.Result != ResultSuccess
}

// Success builds the reply for req carrying args.
func Success(req *RPCMessage, args json.RawMessage) *RPCMessage {
	return &RPCMessage{Method: req.Method, Arguments: args, Result: ResultSuccess, Tag: req.Tag}
}

// Failure builds a reply reporting result as the error.
func Failure(req *RPCMessage, result string) *RPCMessage {
	reply := &RPCMessage{Result: result}
	if req != nil {
		reply.Method = req.Method
		reply.Tag = req.Tag
	}
	return reply
}

// LocalFailure builds a reply for a call that never reached the daemon or
// whose reply never arrived.
func LocalFailure(req *RPCMessage, err error) *RPCMessage {
	reply := Failure(req, err.Error())
	reply.local = true
	return reply
}

// Local reports whether the failure was raised locally rather than by the daemon.
func (m *RPCMessage) Local() bool {
	return m.local
}
