package protocol

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridrealm/server/internal/cataclysm"
	"github.com/gridrealm/server/internal/command"
	"github.com/gridrealm/server/internal/world"
)

func codecs(t *testing.T) []Codec {
	t.Helper()
	var out []Codec
	for _, name := range []string{"json", "msgpack"} {
		c, err := NewCodec(name)
		require.NoError(t, err)
		out = append(out, c)
	}
	return out
}

func TestCommandsCrossTheWire(t *testing.T) {
	cmds := []command.Command{
		command.Move{Direction: command.Left},
		command.MoveTo{Target: world.Pos{X: 0, Y: 7}},
		command.Attack{Target: world.Pos{X: 3, Y: 4}},
		command.Pickup{ItemID: "item_1"},
		command.UseItem{ItemID: "item_2"},
		command.StartCataclysm{},
		command.InspectItem{ItemID: "item_3"},
		command.LootItem{ItemID: "item_4"},
	}
	for _, c := range codecs(t) {
		for _, cmd := range cmds {
			t.Run(c.Name()+"/"+cmd.Kind().String(), func(t *testing.T) {
				raw, err := c.Encode(CommandMessage(cmd))
				require.NoError(t, err)
				f, err := c.Decode(raw)
				require.NoError(t, err)
				assert.Equal(t, TypeCommand, f.Type)
				got, err := DecodeCommand(c, f.Payload)
				require.NoError(t, err)
				assert.Equal(t, cmd, got)
			})
		}
	}
}

func TestJoinPayload(t *testing.T) {
	for _, c := range codecs(t) {
		raw, err := c.Encode(Message{Type: TypeJoin, Payload: JoinRequest{Identity: "Alice", Class: "mage"}})
		require.NoError(t, err)
		f, err := c.Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, TypeJoin, f.Type)
		var req JoinRequest
		require.NoError(t, c.Unmarshal(f.Payload, &req))
		assert.Equal(t, "Alice", req.Identity)
		assert.Equal(t, "mage", req.Class)
	}
}

func TestBadRequests(t *testing.T) {
	j := JSON{}
	_, err := j.Decode([]byte("{not json"))
	assert.ErrorIs(t, err, ErrBadRequest)
	_, err = j.Decode([]byte(`{"payload":{}}`))
	assert.ErrorIs(t, err, ErrBadRequest)

	_, err = DecodeCommand(j, []byte(`{"type":"teleport","data":{}}`))
	assert.ErrorIs(t, err, ErrBadRequest)
	_, err = DecodeCommand(j, []byte(`{"type":"attack","data":{"x":1}}`))
	assert.ErrorIs(t, err, ErrBadRequest)

	_, err = Msgpack{}.Decode([]byte{0xc1})
	assert.ErrorIs(t, err, ErrBadRequest)

	_, err = NewCodec("xml")
	assert.Error(t, err)
}

func TestReason(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{world.ErrNotAuthenticated, ReasonNotAuthenticated},
		{world.ErrDuplicateJoin, ReasonDuplicateJoin},
		{world.ErrNoSpawnAvailable, ReasonNoSpawn},
		{fmt.Errorf("step: %w", world.ErrInvalidMove), ReasonInvalidMove},
		{world.ErrTargetTooFar, ReasonTargetTooFar},
		{world.ErrPathNotFound, ReasonPathNotFound},
		{world.ErrPositionOccupied, ReasonPositionOccupied},
		{cataclysm.ErrAlreadyActive, ReasonCataclysmActive},
		{fmt.Errorf("decode: %w", ErrBadRequest), ReasonBadRequest},
		{ErrInactive, ReasonInactive},
		{fmt.Errorf("something else"), ReasonInternal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Reason(tc.err), tc.err.Error())
	}

	msg := Error(world.ErrDuplicateJoin)
	assert.Equal(t, TypeError, msg.Type)
	assert.Equal(t, ErrorPayload{Reason: ReasonDuplicateJoin, Message: world.ErrDuplicateJoin.Error()}, msg.Payload)
}

func TestResult(t *testing.T) {
	ok := Result(command.OK("Moved up"))
	assert.Equal(t, TypeCommandResult, ok.Type)
	assert.Equal(t, CommandResult{Success: true, Message: "Moved up"}, ok.Payload)

	failed := Result(command.Fail(fmt.Errorf("step: %w", world.ErrPositionOccupied)))
	assert.Equal(t, CommandResult{Message: "step: position occupied", Reason: ReasonPositionOccupied}, failed.Payload)
}
