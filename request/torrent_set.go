package request

import (
	"maps"

	"github.com/juju/errors"
)

// TorrentSetMethod is the method name of a torrent-set request.
const TorrentSetMethod = "torrent-set"

// TorrentSet changes properties of one or more torrents.
//
// TorrentSet is a value: every method returns a new TorrentSet and leaves
// its receiver untouched, so a partially built request can be reused as a
// template. Properties that are never set are left unchanged by the daemon.
type TorrentSet struct {
	ids       []uint64
	overrides map[string]Value
}

// TorrentSetResponse acknowledges an accepted torrent-set request.
type TorrentSetResponse struct{}

var _ Request[TorrentSetResponse] = TorrentSet{}

func NewTorrentSet() TorrentSet {
	return TorrentSet{}
}

func (TorrentSet) MethodName() string { return TorrentSetMethod }

func (TorrentSet) NewResponse() *TorrentSetResponse { return &TorrentSetResponse{} }

// Arguments snapshots the target ids and every property set so far.
func (t TorrentSet) Arguments() Arguments {
	return Arguments{
		ids:       t.cloneIDs(0),
		overrides: maps.Clone(t.overrides),
	}
}

// ID appends id to the targets.
func (t TorrentSet) ID(id uint64) TorrentSet {
	ids := t.cloneIDs(1)
	t.ids = append(ids, id)
	return t
}

// IDs replaces the targets with ids.
func (t TorrentSet) IDs(ids ...uint64) TorrentSet {
	t.ids = make([]uint64, len(ids))
	copy(t.ids, ids)
	return t
}

// Set stores v under the wire key. Integer properties accept any Go
// integer type and reject values outside their range.
func (t TorrentSet) Set(key string, v any) (TorrentSet, error) {
	val, err := convert(key, v)
	if err != nil {
		return t, errors.Trace(err)
	}
	return t.with(key, val), nil
}

func (t TorrentSet) SetBandwidthPriority(p Priority) (TorrentSet, error) {
	if err := p.Validate(); err != nil {
		return t, errors.Trace(err)
	}
	return t.with(KeyBandwidthPriority, IntValue(int64(p))), nil
}

func (t TorrentSet) SetDownloadLimit(kbps uint32) TorrentSet {
	return t.with(KeyDownloadLimit, UintValue(uint64(kbps)))
}

func (t TorrentSet) SetDownloadLimited(limited bool) TorrentSet {
	return t.with(KeyDownloadLimited, BoolValue(limited))
}

func (t TorrentSet) SetHonorsSessionLimits(honors bool) TorrentSet {
	return t.with(KeyHonorsSessionLimits, BoolValue(honors))
}

// SetLocation moves the torrent data to dir on the daemon's host.
func (t TorrentSet) SetLocation(dir string) TorrentSet {
	return t.with(KeyLocation, StringValue(dir))
}

func (t TorrentSet) SetPeerLimit(peers uint32) TorrentSet {
	return t.with(KeyPeerLimit, UintValue(uint64(peers)))
}

func (t TorrentSet) SetQueuePosition(pos uint32) TorrentSet {
	return t.with(KeyQueuePosition, UintValue(uint64(pos)))
}

// SetSeedIdleLimit is in minutes.
func (t TorrentSet) SetSeedIdleLimit(minutes uint32) TorrentSet {
	return t.with(KeySeedIdleLimit, UintValue(uint64(minutes)))
}

// SetSeedRatioLimit fails for NaN and infinite ratios.
func (t TorrentSet) SetSeedRatioLimit(ratio float64) (TorrentSet, error) {
	val, err := FloatValue(ratio)
	if err != nil {
		return t, errors.Annotate(err, "seed ratio limit")
	}
	return t.with(KeySeedRatioLimit, val), nil
}

func (t TorrentSet) SetUploadLimit(kbps uint32) TorrentSet {
	return t.with(KeyUploadLimit, UintValue(uint64(kbps)))
}

func (t TorrentSet) SetUploadLimited(limited bool) TorrentSet {
	return t.with(KeyUploadLimited, BoolValue(limited))
}

func (t TorrentSet) with(key string, v Value) TorrentSet {
	overrides := make(map[string]Value, len(t.overrides)+1)
	maps.Copy(overrides, t.overrides)
	overrides[key] = v
	t.overrides = overrides
	return t
}

func (t TorrentSet) cloneIDs(extra int) []uint64 {
	ids := make([]uint64, len(t.ids), len(t.ids)+extra)
	copy(ids, t.ids)
	return ids
}
