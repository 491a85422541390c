package request

import (
	"cmp"
	"math"
	"slices"
	"strconv"

	"github.com/juju/errors"
)

// Wire keys understood by torrent-set.
const (
	KeyBandwidthPriority   = "bandwidthPriority"
	KeyDownloadLimit       = "downloadLimit"
	KeyDownloadLimited     = "downloadLimited"
	KeyHonorsSessionLimits = "honorsSessionLimits"
	KeyLocation            = "location"
	KeyPeerLimit           = "peer-limit"
	KeyQueuePosition       = "queuePosition"
	KeySeedIdleLimit       = "seedIdleLimit"
	KeySeedRatioLimit      = "seedRatioLimit"
	KeyUploadLimit         = "uploadLimit"
	KeyUploadLimited       = "uploadLimited"

	// List and mode properties are reserved; setting them is not implemented.
	KeyFilesWanted    = "files-wanted"
	KeyFilesUnwanted  = "files-unwanted"
	KeyTrackerAdd     = "trackerAdd"
	KeyTrackerRemove  = "trackerRemove"
	KeyTrackerReplace = "trackerReplace"
	KeySeedIdleMode   = "seedIdleMode"
	KeySeedRatioMode  = "seedRatioMode"
)

type propertyKind byte

const (
	propUnsupported propertyKind = iota
	propBool
	propString
	propUint32
	propPriority
	propFloat
)

var properties = map[string]propertyKind{
	KeyBandwidthPriority:   propPriority,
	KeyDownloadLimit:       propUint32,
	KeyDownloadLimited:     propBool,
	KeyHonorsSessionLimits: propBool,
	KeyLocation:            propString,
	KeyPeerLimit:           propUint32,
	KeyQueuePosition:       propUint32,
	KeySeedIdleLimit:       propUint32,
	KeySeedRatioLimit:      propFloat,
	KeyUploadLimit:         propUint32,
	KeyUploadLimited:       propBool,

	KeyFilesWanted:    propUnsupported,
	KeyFilesUnwanted:  propUnsupported,
	KeyTrackerAdd:     propUnsupported,
	KeyTrackerRemove:  propUnsupported,
	KeyTrackerReplace: propUnsupported,
	KeySeedIdleMode:   propUnsupported,
	KeySeedRatioMode:  propUnsupported,
}

// Property describes one settable torrent property.
type Property struct {
	Key       string
	Kind      Kind
	Supported bool
}

// Properties lists every known property, sorted by wire key.
func Properties() []Property {
	props := make([]Property, 0, len(properties))
	for key, pk := range properties {
		props = append(props, Property{Key: key, Kind: pk.valueKind(), Supported: pk != propUnsupported})
	}
	slices.SortFunc(props, func(a, b Property) int {
		return cmp.Compare(a.Key, b.Key)
	})
	return props
}

func (pk propertyKind) valueKind() Kind {
	switch pk {
	case propBool:
		return KindBool
	case propString:
		return KindString
	case propUint32:
		return KindUint
	case propPriority:
		return KindInt
	case propFloat:
		return KindFloat
	}
	return KindInvalid
}

// convert turns v into the wire value for the property stored under key.
func convert(key string, v any) (Value, error) {
	pk, ok := properties[key]
	if !ok {
		return Value{}, errors.NotFoundf("property %q", key)
	}
	switch pk {
	case propBool:
		if b, ok := v.(bool); ok {
			return BoolValue(b), nil
		}
	case propString:
		if s, ok := v.(string); ok {
			return StringValue(s), nil
		}
	case propUint32:
		if i, u, signed, ok := integer(v); ok {
			if (signed && (i < 0 || i > math.MaxUint32)) || (!signed && u > math.MaxUint32) {
				return Value{}, errors.NotValidf("%s %v out of uint32 range", key, v)
			}
			if signed {
				u = uint64(i)
			}
			return UintValue(u), nil
		}
	case propPriority:
		if p, ok := v.(Priority); ok {
			v = int8(p)
		}
		if i, u, signed, ok := integer(v); ok {
			if !signed {
				if u > math.MaxInt8 {
					return Value{}, errors.NotValidf("%s %v", key, v)
				}
				i = int64(u)
			}
			if i < math.MinInt8 || i > math.MaxInt8 {
				return Value{}, errors.NotValidf("%s %v", key, v)
			}
			if err := Priority(i).Validate(); err != nil {
				return Value{}, errors.Trace(err)
			}
			return IntValue(i), nil
		}
	case propFloat:
		switch f := v.(type) {
		case float64:
			val, err := FloatValue(f)
			return val, errors.Annotate(err, key)
		case float32:
			val, err := FloatValue(widen(f))
			return val, errors.Annotate(err, key)
		}
	case propUnsupported:
		return Value{}, errors.NotImplementedf("setting %q", key)
	}
	return Value{}, errors.NotValidf("%s value of type %T, want %s", key, v, pk.valueKind())
}

// widen converts f to the float64 with the same shortest decimal form, so
// float32(0.1) is sent as 0.1 rather than 0.10000000149011612.
func widen(f float32) float64 {
	if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
		return float64(f)
	}
	w, _ := strconv.ParseFloat(strconv.FormatFloat(float64(f), 'g', -1, 32), 64)
	return w
}

// integer unpacks any Go integer type. signed reports whether i or u holds it.
func integer(v any) (i int64, u uint64, signed, ok bool) {
	switch n := v.(type) {
	case int:
		return int64(n), 0, true, true
	case int8:
		return int64(n), 0, true, true
	case int16:
		return int64(n), 0, true, true
	case int32:
		return int64(n), 0, true, true
	case int64:
		return n, 0, true, true
	case uint:
		return 0, uint64(n), false, true
	case uint8:
		return 0, uint64(n), false, true
	case uint16:
		return 0, uint64(n), false, true
	case uint32:
		return 0, uint64(n), false, true
	case uint64:
		return 0, n, false, true
	}
	return 0, 0, false, false
}
