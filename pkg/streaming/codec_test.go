package streaming

import (
	"testing"

	"github.com/OCAP2/helmsync/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecFor(t *testing.T) {
	c, err := CodecFor("")
	require.NoError(t, err)
	assert.Equal(t, "json", c.Name())
	assert.False(t, c.Binary())

	c, err = CodecFor("msgpack")
	require.NoError(t, err)
	assert.Equal(t, "msgpack", c.Name())
	assert.True(t, c.Binary())

	_, err = CodecFor("xml")
	assert.Error(t, err)
}

func TestJSONCodec_DecodeControl(t *testing.T) {
	c := JSONCodec{}
	env, err := c.Decode([]byte(`{"type":"vessel:control","payload":{"throttle":0.5}}`))
	require.NoError(t, err)
	assert.Equal(t, TypeVesselControl, env.Type)

	var p ControlPayload
	require.NoError(t, c.Unmarshal(env.Payload, &p))
	require.NotNil(t, p.Throttle)
	assert.Equal(t, 0.5, *p.Throttle)
	assert.Nil(t, p.RudderAngle)
	assert.False(t, p.Empty())
}

func TestJSONCodec_MissingPayload(t *testing.T) {
	c := JSONCodec{}
	env, err := c.Decode([]byte(`{"type":"vessel:helm"}`))
	require.NoError(t, err)

	var p HelmPayload
	require.NoError(t, c.Unmarshal(env.Payload, &p))
	assert.Empty(t, p.Action)
}

func TestJSONCodec_SimulationUpdateOmitsPartial(t *testing.T) {
	data, err := JSONCodec{}.Encode(Outbound{
		Type: TypeSimulationUpdate,
		Payload: SimulationUpdate{
			Vessels:   map[string]*core.Vessel{},
			Timestamp: 1,
		},
	})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "partial")
}

func TestJSONCodec_BadEnvelope(t *testing.T) {
	_, err := JSONCodec{}.Decode([]byte(`{not json`))
	assert.Error(t, err)
}

func TestMsgpackCodec_RoundTrip(t *testing.T) {
	c := MsgpackCodec{}
	rudder := -0.2
	data, err := c.Encode(Outbound{
		Type:    TypeVesselControl,
		Payload: ControlPayload{VesselID: "v1", RudderAngle: &rudder},
	})
	require.NoError(t, err)

	env, err := c.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, TypeVesselControl, env.Type)

	var p ControlPayload
	require.NoError(t, c.Unmarshal(env.Payload, &p))
	assert.Equal(t, "v1", p.VesselID)
	require.NotNil(t, p.RudderAngle)
	assert.Equal(t, -0.2, *p.RudderAngle)
	assert.Nil(t, p.Throttle)
}

func TestMsgpackCodec_ErrorPayload(t *testing.T) {
	c := MsgpackCodec{}
	data, err := c.Encode(Outbound{
		Type:    TypeError,
		Payload: ErrorPayload{Message: "station held", Code: CodeConflict, Holder: "alice"},
	})
	require.NoError(t, err)

	env, err := c.Decode(data)
	require.NoError(t, err)
	var p ErrorPayload
	require.NoError(t, c.Unmarshal(env.Payload, &p))
	assert.Equal(t, "alice", p.Holder)
	assert.Equal(t, CodeConflict, p.Code)
}
