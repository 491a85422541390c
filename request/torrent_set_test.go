package request_test

import (
	"encoding/json"
	"math"

	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"torrent-rpc/request"
)

type torrentSetSuite struct{}

var _ = gc.Suite(&torrentSetSuite{})

// wire marshals the request's arguments and decodes them back into a
// generic object, the way the daemon sees them.
func wire(c *gc.C, req request.ArgumentsMarshaler) map[string]any {
	data, err := json.Marshal(req.Arguments())
	c.Assert(err, jc.ErrorIsNil)
	var obj map[string]any
	c.Assert(json.Unmarshal(data, &obj), jc.ErrorIsNil)
	return obj
}

func (s *torrentSetSuite) TestEmptyBuilder(c *gc.C) {
	data, err := json.Marshal(request.NewTorrentSet().Arguments())
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(string(data), gc.Equals, `{"ids":[]}`)
}

func (s *torrentSetSuite) TestIDsOnly(c *gc.C) {
	for _, ids := range [][]uint64{{}, {7}, {3, 1, 2}, {5, 5}, {math.MaxUint64}} {
		data, err := json.Marshal(request.NewTorrentSet().IDs(ids...).Arguments())
		c.Assert(err, jc.ErrorIsNil)

		var obj struct {
			IDs []uint64 `json:"ids"`
		}
		c.Assert(json.Unmarshal(data, &obj), jc.ErrorIsNil)
		c.Check(obj.IDs, jc.DeepEquals, ids)

		var keys map[string]json.RawMessage
		c.Assert(json.Unmarshal(data, &keys), jc.ErrorIsNil)
		c.Check(keys, gc.HasLen, 1)
	}
}

func (s *torrentSetSuite) TestIDAppendMatchesIDs(c *gc.C) {
	appended := request.NewTorrentSet().ID(1).ID(2).Arguments()
	replaced := request.NewTorrentSet().IDs(1, 2).Arguments()
	c.Assert(appended.IDs(), jc.DeepEquals, []uint64{1, 2})
	c.Assert(appended.IDs(), jc.DeepEquals, replaced.IDs())
}

func (s *torrentSetSuite) TestIDsReplaces(c *gc.C) {
	args := request.NewTorrentSet().ID(9).IDs(1, 2).ID(3).Arguments()
	c.Assert(args.IDs(), jc.DeepEquals, []uint64{1, 2, 3})
}

func (s *torrentSetSuite) TestDownloadLimit(c *gc.C) {
	req := request.NewTorrentSet().SetDownloadLimit(5000)
	data, err := json.Marshal(req.Arguments())
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(string(data), gc.Equals, `{"downloadLimit":5000,"ids":[]}`)

	v, ok := req.Arguments().Value(request.KeyDownloadLimit)
	c.Assert(ok, jc.IsTrue)
	c.Check(v.Kind(), gc.Equals, request.KindUint)
	c.Check(v.Uint(), gc.Equals, uint64(5000))
}

func (s *torrentSetSuite) TestSeedRatioLimit(c *gc.C) {
	req, err := request.NewTorrentSet().SetSeedRatioLimit(1.5)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(wire(c, req)["seedRatioLimit"], gc.Equals, 1.5)

	v, _ := req.Arguments().Value(request.KeySeedRatioLimit)
	c.Check(v.Kind(), gc.Equals, request.KindFloat)
}

func (s *torrentSetSuite) TestSeedRatioLimitNonFinite(c *gc.C) {
	base := request.NewTorrentSet().ID(1).SetUploadLimited(true)
	for _, ratio := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		got, err := base.SetSeedRatioLimit(ratio)
		c.Check(err, jc.ErrorIs, errors.NotValid)
		c.Check(err, gc.ErrorMatches, "seed ratio limit: non-finite float .* not valid")
		// The failed call leaves the builder as it was.
		c.Check(got.Arguments().Map(), jc.DeepEquals, base.Arguments().Map())
	}
}

func (s *torrentSetSuite) TestBandwidthPriority(c *gc.C) {
	req, err := request.NewTorrentSet().SetBandwidthPriority(request.PriorityLow)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(wire(c, req)["bandwidthPriority"], gc.Equals, float64(-1))

	_, err = req.SetBandwidthPriority(request.Priority(4))
	c.Check(err, jc.ErrorIs, errors.NotValid)
}

func (s *torrentSetSuite) TestAllSetters(c *gc.C) {
	req, err := request.NewTorrentSet().
		IDs(4).
		SetDownloadLimit(100).
		SetDownloadLimited(true).
		SetHonorsSessionLimits(false).
		SetLocation("/srv/torrents").
		SetPeerLimit(50).
		SetQueuePosition(2).
		SetSeedIdleLimit(30).
		SetUploadLimit(20).
		SetUploadLimited(false).
		SetBandwidthPriority(request.PriorityHigh)
	c.Assert(err, jc.ErrorIsNil)
	req, err = req.SetSeedRatioLimit(2.25)
	c.Assert(err, jc.ErrorIsNil)

	c.Assert(wire(c, req), jc.DeepEquals, map[string]any{
		"ids":                 []any{float64(4)},
		"bandwidthPriority":   float64(1),
		"downloadLimit":       float64(100),
		"downloadLimited":     true,
		"honorsSessionLimits": false,
		"location":            "/srv/torrents",
		"peer-limit":          float64(50),
		"queuePosition":       float64(2),
		"seedIdleLimit":       float64(30),
		"seedRatioLimit":      2.25,
		"uploadLimit":         float64(20),
		"uploadLimited":       false,
	})
}

func (s *torrentSetSuite) TestLastWriteWins(c *gc.C) {
	req := request.NewTorrentSet().
		SetDownloadLimit(1).
		ID(1).
		SetLocation("/a").
		SetDownloadLimit(2).
		IDs(2, 3).
		SetLocation("/b").
		SetDownloadLimit(3)
	c.Assert(wire(c, req), jc.DeepEquals, map[string]any{
		"ids":           []any{float64(2), float64(3)},
		"downloadLimit": float64(3),
		"location":      "/b",
	})
}

func (s *torrentSetSuite) TestBuildersDoNotAlias(c *gc.C) {
	base := request.NewTorrentSet().IDs(1, 2).SetPeerLimit(10)
	a := base.ID(3).SetPeerLimit(20)
	b := base.ID(4).SetLocation("/x")

	c.Check(base.Arguments().Map(), jc.DeepEquals, map[string]any{
		"ids": []uint64{1, 2}, "peer-limit": uint64(10),
	})
	c.Check(a.Arguments().Map(), jc.DeepEquals, map[string]any{
		"ids": []uint64{1, 2, 3}, "peer-limit": uint64(20),
	})
	c.Check(b.Arguments().Map(), jc.DeepEquals, map[string]any{
		"ids": []uint64{1, 2, 4}, "peer-limit": uint64(10), "location": "/x",
	})
}

func (s *torrentSetSuite) TestIDsCopiesInput(c *gc.C) {
	ids := []uint64{1, 2}
	req := request.NewTorrentSet().IDs(ids...)
	ids[0] = 99
	c.Assert(req.Arguments().IDs(), jc.DeepEquals, []uint64{1, 2})
}

func (s *torrentSetSuite) TestArgumentsSnapshot(c *gc.C) {
	req := request.NewTorrentSet().ID(1).SetUploadLimit(5)
	args := req.Arguments()
	_ = req.ID(2).SetUploadLimit(6)

	ids := args.IDs()
	ids[0] = 42
	c.Check(args.IDs(), jc.DeepEquals, []uint64{1})
	c.Check(args.Keys(), jc.DeepEquals, []string{"uploadLimit"})

	// Serializing does not consume the builder.
	c.Check(req.Arguments().Map(), jc.DeepEquals, args.Map())
}

func (s *torrentSetSuite) TestMethodName(c *gc.C) {
	c.Check(request.NewTorrentSet().MethodName(), gc.Equals, "torrent-set")
	c.Check(request.TorrentSet{}.MethodName(), gc.Equals, request.TorrentSetMethod)

	req, err := request.NewTorrentSet().IDs(1, 2, 3).SetLocation("/y").SetSeedRatioLimit(3)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(req.MethodName(), gc.Equals, request.TorrentSetMethod)
}

func (s *torrentSetSuite) TestResponseDecodesFromEmptyObject(c *gc.C) {
	resp := request.NewTorrentSet().NewResponse()
	c.Assert(json.Unmarshal([]byte(`{}`), resp), jc.ErrorIsNil)
	c.Check(*resp, gc.Equals, request.TorrentSetResponse{})
}

func (s *torrentSetSuite) TestSet(c *gc.C) {
	req := request.NewTorrentSet()
	var err error
	for _, step := range []struct {
		key string
		v   any
	}{
		{request.KeyDownloadLimit, 7},
		{request.KeyUploadLimit, uint16(8)},
		{request.KeyPeerLimit, int64(math.MaxUint32)},
		{request.KeyUploadLimited, true},
		{request.KeyLocation, "/z"},
		{request.KeySeedRatioLimit, float32(0.5)},
		{request.KeyBandwidthPriority, request.PriorityNormal},
		{request.KeyQueuePosition, uint64(0)},
	} {
		req, err = req.Set(step.key, step.v)
		c.Assert(err, jc.ErrorIsNil, gc.Commentf("%s=%v", step.key, step.v))
	}
	c.Assert(req.Arguments().Map(), jc.DeepEquals, map[string]any{
		"ids":               []uint64{},
		"downloadLimit":     uint64(7),
		"uploadLimit":       uint64(8),
		"peer-limit":        uint64(math.MaxUint32),
		"uploadLimited":     true,
		"location":          "/z",
		"seedRatioLimit":    0.5,
		"bandwidthPriority": int64(0),
		"queuePosition":     uint64(0),
	})
}

func (s *torrentSetSuite) TestSetFloat32KeepsDecimalForm(c *gc.C) {
	req, err := request.NewTorrentSet().Set(request.KeySeedRatioLimit, float32(0.1))
	c.Assert(err, jc.ErrorIsNil)
	data, err := json.Marshal(req.Arguments())
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(string(data), gc.Equals, `{"ids":[],"seedRatioLimit":0.1}`)

	_, err = request.NewTorrentSet().Set(request.KeySeedRatioLimit, float32(math.Inf(1)))
	c.Assert(err, jc.ErrorIs, errors.NotValid)
}

func (s *torrentSetSuite) TestSetErrors(c *gc.C) {
	base := request.NewTorrentSet().SetDownloadLimit(1)
	for i, t := range []struct {
		key  string
		v    any
		kind errors.ConstError
	}{
		{request.KeyDownloadLimit, -1, errors.NotValid},
		{request.KeyDownloadLimit, uint64(math.MaxUint32) + 1, errors.NotValid},
		{request.KeyPeerLimit, int64(math.MaxUint32) + 1, errors.NotValid},
		{request.KeyDownloadLimit, "5000", errors.NotValid},
		{request.KeyDownloadLimited, 1, errors.NotValid},
		{request.KeyLocation, []byte("/a"), errors.NotValid},
		{request.KeySeedRatioLimit, math.Inf(1), errors.NotValid},
		{request.KeySeedRatioLimit, 2, errors.NotValid},
		{request.KeyBandwidthPriority, 2, errors.NotValid},
		{request.KeyBandwidthPriority, 255, errors.NotValid},
		{request.KeyBandwidthPriority, uint8(200), errors.NotValid},
		{"downloadlimit", 1, errors.NotFound},
		{request.KeyTrackerAdd, []string{"udp://t"}, errors.NotImplemented},
		{request.KeySeedRatioMode, 1, errors.NotImplemented},
		{request.KeyFilesWanted, []int{0}, errors.NotImplemented},
	} {
		c.Logf("test %d: %s=%v", i, t.key, t.v)
		got, err := base.Set(t.key, t.v)
		c.Check(err, jc.ErrorIs, t.kind)
		c.Check(got.Arguments().Map(), jc.DeepEquals, base.Arguments().Map())
	}
}

func (s *torrentSetSuite) TestProperties(c *gc.C) {
	props := request.Properties()
	c.Assert(props, gc.HasLen, 18)

	supported := map[string]request.Kind{}
	for _, p := range props {
		if p.Supported {
			supported[p.Key] = p.Kind
		}
	}
	c.Assert(supported, jc.DeepEquals, map[string]request.Kind{
		"bandwidthPriority":   request.KindInt,
		"downloadLimit":       request.KindUint,
		"downloadLimited":     request.KindBool,
		"honorsSessionLimits": request.KindBool,
		"location":            request.KindString,
		"peer-limit":          request.KindUint,
		"queuePosition":       request.KindUint,
		"seedIdleLimit":       request.KindUint,
		"seedRatioLimit":      request.KindFloat,
		"uploadLimit":         request.KindUint,
		"uploadLimited":       request.KindBool,
	})
	c.Check(props[0].Key, gc.Equals, "bandwidthPriority")
}
