// Package request builds typed daemon requests and turns them into wire
// argument objects.
//
// Every request kind pairs a constant method name with the response type
// its reply decodes into:
//
//	req, err := request.NewTorrentSet().
//		IDs(1, 2).
//		SetDownloadLimit(5000).
//		SetSeedRatioLimit(1.5)
//	if err != nil {
//		return err
//	}
//	args := req.Arguments() // {"ids":[1,2],"downloadLimit":5000,"seedRatioLimit":1.5}
package request

// ArgumentsMarshaler produces the argument object sent with a request.
type ArgumentsMarshaler interface {
	Arguments() Arguments
}

// Request is a daemon call whose successful reply decodes into R.
type Request[R any] interface {
	ArgumentsMarshaler

	// MethodName identifies the request kind. It never depends on the
	// request's contents.
	MethodName() string

	// NewResponse returns a fresh value for the transport to decode into.
	NewResponse() *R
}
