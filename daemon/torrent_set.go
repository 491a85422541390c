package daemon

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/juju/errors"

	"torrent-rpc/request"
)

// torrentSetArgs is a decoded, validated torrent-set argument object.
type torrentSetArgs struct {
	ids     *[]uint64
	changes []func(*Torrent)
}

func (a *torrentSetArgs) apply(t *Torrent) {
	for _, change := range a.changes {
		change(t)
	}
}

func parseTorrentSet(raw json.RawMessage) (*torrentSetArgs, error) {
	var fields map[string]json.RawMessage
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, errors.NewNotValid(err, "torrent-set arguments")
		}
	}

	args := &torrentSetArgs{}
	for key, value := range fields {
		if key == request.IDsKey {
			var ids []uint64
			if err := decode(key, value, &ids); err != nil {
				return nil, err
			}
			args.ids = &ids
			continue
		}
		change, err := parseProperty(key, value)
		if err != nil {
			return nil, errors.Trace(err)
		}
		args.changes = append(args.changes, change)
	}
	return args, nil
}

func parseProperty(key string, value json.RawMessage) (func(*Torrent), error) {
	switch key {
	case request.KeyBandwidthPriority:
		var p int
		if err := decode(key, value, &p); err != nil {
			return nil, err
		}
		if p < math.MinInt8 || p > math.MaxInt8 {
			return nil, errors.NotValidf("%s %d", key, p)
		}
		if err := request.Priority(p).Validate(); err != nil {
			return nil, errors.Trace(err)
		}
		return func(t *Torrent) { t.BandwidthPriority = p }, nil
	case request.KeyDownloadLimit:
		return uint32Field(key, value, func(t *Torrent) *uint32 { return &t.DownloadLimit })
	case request.KeyDownloadLimited:
		return boolField(key, value, func(t *Torrent) *bool { return &t.DownloadLimited })
	case request.KeyHonorsSessionLimits:
		return boolField(key, value, func(t *Torrent) *bool { return &t.HonorsSessionLimits })
	case request.KeyLocation:
		var dir string
		if err := decode(key, value, &dir); err != nil {
			return nil, err
		}
		return func(t *Torrent) { t.DownloadDir = dir }, nil
	case request.KeyPeerLimit:
		return uint32Field(key, value, func(t *Torrent) *uint32 { return &t.PeerLimit })
	case request.KeyQueuePosition:
		return uint32Field(key, value, func(t *Torrent) *uint32 { return &t.QueuePosition })
	case request.KeySeedIdleLimit:
		return uint32Field(key, value, func(t *Torrent) *uint32 { return &t.SeedIdleLimit })
	case request.KeySeedRatioLimit:
		var ratio float64
		if err := decode(key, value, &ratio); err != nil {
			return nil, err
		}
		return func(t *Torrent) { t.SeedRatioLimit = ratio }, nil
	case request.KeyUploadLimit:
		return uint32Field(key, value, func(t *Torrent) *uint32 { return &t.UploadLimit })
	case request.KeyUploadLimited:
		return boolField(key, value, func(t *Torrent) *bool { return &t.UploadLimited })
	}
	return nil, errors.NotSupportedf("argument %q", key)
}

// decode rejects null, which would otherwise leave into at its zero value.
func decode(key string, value json.RawMessage, into any) error {
	if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
		return errors.NotValidf("%s null", key)
	}
	if err := json.Unmarshal(value, into); err != nil {
		return errors.NewNotValid(err, key)
	}
	return nil
}

func uint32Field(key string, value json.RawMessage, field func(*Torrent) *uint32) (func(*Torrent), error) {
	var n uint32
	if err := decode(key, value, &n); err != nil {
		return nil, err
	}
	return func(t *Torrent) { *field(t) = n }, nil
}

func boolField(key string, value json.RawMessage, field func(*Torrent) *bool) (func(*Torrent), error) {
	var b bool
	if err := decode(key, value, &b); err != nil {
		return nil, err
	}
	return func(t *Torrent) { *field(t) = b }, nil
}
