package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flagrush/internal/mapgen"
	"flagrush/pkg/protocol"
)

func matchWorld(t *testing.T, localID string) *World {
	t.Helper()
	w := NewWorld(localID)
	w.StartMatch(42, 1, 1, 0)
	require.NotNil(t, w.Local)
	require.NotNil(t, w.Map)
	return w
}

func TestStartMatchIsDeterministicAcrossClients(t *testing.T) {
	a := matchWorld(t, "me")
	b := matchWorld(t, "you")
	assert.Equal(t, a.Map, b.Map, "all clients must derive the identical map from the seed")
	assert.True(t, a.Flags[0].AtBase)
	assert.Equal(t, a.Flags[1].BaseX, a.Flags[1].X)
}

func TestApplyGameState_SynthesizesUnknownRemote(t *testing.T) {
	w := matchWorld(t, "me")

	w.ApplyGameState(protocol.VehicleState{
		PlayerID: "r1", Name: "Bob", VehicleType: 2, Team: 2,
		X: 30, Y: 12, HP: 80, Alive: true,
	})

	v := w.Remotes["r1"]
	require.NotNil(t, v)
	assert.Equal(t, 2, v.Type)
	assert.Equal(t, 30.0, v.X)
	assert.Equal(t, 80, v.HP)
	assert.Equal(t, "Bob", w.Names["r1"])
}

func TestApplyGameState_DeadUnknownIgnored(t *testing.T) {
	w := matchWorld(t, "me")

	w.ApplyGameState(protocol.VehicleState{PlayerID: "ghost", Alive: false, X: 5})
	assert.NotContains(t, w.Remotes, "ghost")
}

func TestApplyGameState_RedeployRecreatesMirror(t *testing.T) {
	w := matchWorld(t, "me")

	w.ApplyGameState(protocol.VehicleState{PlayerID: "r1", VehicleType: 1, Alive: true, HP: 40})
	old := w.Remotes["r1"]
	old.HasFlag = true // local-only residue that must not survive a redeploy

	w.ApplyGameState(protocol.VehicleState{PlayerID: "r1", VehicleType: 3, Alive: true, HP: 100})
	fresh := w.Remotes["r1"]
	require.NotSame(t, old, fresh)
	assert.Equal(t, 3, fresh.Type)
	assert.Equal(t, 100, fresh.HP)
	assert.False(t, fresh.HasFlag)
}

func TestApplyGameState_IgnoresSelfAndBlank(t *testing.T) {
	w := matchWorld(t, "me")
	w.ApplyGameState(protocol.VehicleState{PlayerID: "me", Alive: true})
	w.ApplyGameState(protocol.VehicleState{Alive: true})
	assert.Empty(t, w.Remotes)
}

func TestApplyDamage(t *testing.T) {
	w := matchWorld(t, "me")
	w.ApplyGameState(protocol.VehicleState{PlayerID: "r1", Alive: true, HP: 25})

	w.ApplyDamage("me", 10)
	assert.Equal(t, MaxHP-10, w.Local.HP, "local vehicle trusts relayed damage")

	w.ApplyDamage("r1", 30)
	assert.Equal(t, 0, w.Remotes["r1"].HP)
	assert.False(t, w.Remotes["r1"].Alive, "overkill clamps to zero and kills")

	w.ApplyDamage("nobody", 10) // unknown target is a no-op
}

func TestApplyRespawn(t *testing.T) {
	w := matchWorld(t, "me")
	w.ApplyGameState(protocol.VehicleState{PlayerID: "r1", Team: 2, Alive: true, HP: 1})
	w.ApplyDamage("r1", 5)

	w.ApplyRespawn("r1", 2, 50, 9)
	v := w.Remotes["r1"]
	assert.True(t, v.Alive)
	assert.Equal(t, MaxHP, v.HP)
	assert.Equal(t, 2, v.Type)
	assert.Equal(t, 2, v.Team, "team survives the respawn")
	assert.Equal(t, 50.0, v.X)
}

func TestFlagLifecycle(t *testing.T) {
	w := matchWorld(t, "me")
	f := w.Flags[1] // team 2's flag

	w.ApplyFlagEvent(protocol.FlagPickup, 2, "me", 0, 0)
	assert.True(t, f.Carried)
	assert.False(t, f.AtBase)
	assert.Equal(t, "me", f.CarrierID)

	w.ApplyFlagEvent(protocol.FlagDrop, 2, "me", 33, 7)
	assert.False(t, f.Carried)
	assert.Equal(t, 33.0, f.X)
	assert.False(t, f.AtBase)

	w.ApplyFlagEvent(protocol.FlagReturn, 2, "", 0, 0)
	assert.True(t, f.AtBase)
	assert.Equal(t, f.BaseX, f.X)

	w.ApplyFlagEvent(protocol.FlagPickup, 2, "me", 0, 0)
	w.ApplyFlagEvent(protocol.FlagCapture, 2, "me", 0, 0)
	assert.Equal(t, 1, w.Scores[0], "team 1 scores by capturing team 2's flag")
	assert.True(t, f.AtBase)
	assert.Empty(t, f.CarrierID)
}

func TestFlagCaptureReplayDoubleCounts(t *testing.T) {
	// Captures increment the counter with no idempotency key; a replayed
	// event counts twice. This pins the known trust-model limitation.
	w := matchWorld(t, "me")
	w.ApplyFlagEvent(protocol.FlagCapture, 2, "me", 0, 0)
	w.ApplyFlagEvent(protocol.FlagCapture, 2, "me", 0, 0)
	assert.Equal(t, 2, w.Scores[0])
}

func TestRemovePlayer(t *testing.T) {
	w := matchWorld(t, "me")
	w.ApplyGameState(protocol.VehicleState{PlayerID: "r1", Name: "Bob", Alive: true})

	w.RemovePlayer("r1")
	assert.NotContains(t, w.Remotes, "r1")
	assert.NotContains(t, w.Names, "r1")
}

func TestDestroyTile(t *testing.T) {
	w := matchWorld(t, "me")

	// Find a destructible tile to knock out.
	var tx, ty int
	found := false
	for y := range w.Map.Tiles {
		for x := range w.Map.Tiles[y] {
			if w.Map.Tiles[y][x] == mapgen.TileDestructible {
				tx, ty, found = x, y, true
			}
		}
	}
	require.True(t, found)

	w.DestroyTile(tx, ty)
	assert.Equal(t, mapgen.TileEmpty, w.Map.Tiles[ty][tx])

	w.DestroyTile(0, 0) // border wall is not destructible
	assert.Equal(t, mapgen.TileWall, w.Map.Tiles[0][0])
	w.DestroyTile(-1, 9999) // out of range is a no-op
}
