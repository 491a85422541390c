package request_test

import (
	"encoding/json"
	"math"

	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"torrent-rpc/request"
)

type valueSuite struct{}

var _ = gc.Suite(&valueSuite{})

func (s *valueSuite) TestMarshal(c *gc.C) {
	f, err := request.FloatValue(0.25)
	c.Assert(err, jc.ErrorIsNil)
	for _, t := range []struct {
		v    request.Value
		want string
	}{
		{request.BoolValue(true), `true`},
		{request.StringValue("a\"b"), `"a\"b"`},
		{request.IntValue(-1), `-1`},
		{request.UintValue(math.MaxUint64), `18446744073709551615`},
		{f, `0.25`},
	} {
		data, err := json.Marshal(t.v)
		c.Assert(err, jc.ErrorIsNil)
		c.Check(string(data), gc.Equals, t.want)
	}
}

func (s *valueSuite) TestZeroValueDoesNotMarshal(c *gc.C) {
	_, err := json.Marshal(request.Value{})
	c.Assert(err, gc.NotNil)
}

func (s *valueSuite) TestFloatValueRejectsNonFinite(c *gc.C) {
	_, err := request.FloatValue(math.NaN())
	c.Check(err, jc.ErrorIs, errors.NotValid)
	_, err = request.FloatValue(math.Inf(-1))
	c.Check(err, jc.ErrorIs, errors.NotValid)
}

func (s *valueSuite) TestKindString(c *gc.C) {
	c.Check(request.KindUint.String(), gc.Equals, "uint")
	c.Check(request.Kind(42).String(), gc.Equals, "Kind(42)")
	c.Check(request.PriorityHigh.String(), gc.Equals, "high")
	c.Check(request.Priority(3).String(), gc.Equals, "Priority(3)")
}
