package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testGuard() *Guard {
	return NewGuard([]string{"users.manage", "admin.access"})
}

func TestGuardNonCriticalAllows(t *testing.T) {
	g := testGuard()

	d := g.Evaluate(Intent{
		ActingUserID: 1, TargetUserID: 1,
		Permission: "members.view", Op: OpDenyOverride,
	}, EffectivePermissions{})

	assert.Equal(t, VerdictAllow, d.Verdict)
}

func TestGuardSelfDenyCriticalBlocks(t *testing.T) {
	g := testGuard()

	d := g.Evaluate(Intent{
		ActingUserID: 1, TargetUserID: 1,
		Permission: "users.manage", Op: OpDenyOverride,
	}, EffectivePermissions{Effective: []string{"members.view"}})

	assert.Equal(t, VerdictBlock, d.Verdict)
	assert.NotEmpty(t, d.Reason)
}

func TestGuardSelfRemoveGrantCriticalWarnsOnly(t *testing.T) {
	g := testGuard()

	// Same lost permission, same actor, but via grant removal: warn, not block.
	d := g.Evaluate(Intent{
		ActingUserID: 1, TargetUserID: 1,
		Permission: "users.manage", Op: OpRemoveGrantOverride,
	}, EffectivePermissions{Effective: []string{"members.view"}})

	assert.Equal(t, VerdictWarn, d.Verdict)
}

func TestGuardSelfRemoveRoleCriticalWarnsOnly(t *testing.T) {
	g := testGuard()

	d := g.Evaluate(Intent{
		ActingUserID: 1, TargetUserID: 1,
		Permission: "admin.access", Op: OpRemoveRole,
	}, EffectivePermissions{})

	assert.Equal(t, VerdictWarn, d.Verdict)
}

func TestGuardOtherUserLosingCriticalWarns(t *testing.T) {
	g := testGuard()

	d := g.Evaluate(Intent{
		ActingUserID: 1, TargetUserID: 2,
		Permission: "users.manage", Op: OpDenyOverride,
	}, EffectivePermissions{})

	assert.Equal(t, VerdictWarn, d.Verdict)
}

func TestGuardCriticalKeptElsewhereStillWarns(t *testing.T) {
	g := testGuard()

	// The permission survives the mutation through another source, yet
	// touching a critical permission always asks for confirmation.
	d := g.Evaluate(Intent{
		ActingUserID: 1, TargetUserID: 2,
		Permission: "admin.access", Op: OpRemoveGrantOverride,
	}, EffectivePermissions{Effective: []string{"admin.access"}})

	assert.Equal(t, VerdictWarn, d.Verdict)
}

func TestGuardCriticalSetIsCaseInsensitive(t *testing.T) {
	g := NewGuard([]string{" Users.Manage ", ""})

	assert.True(t, g.IsCritical("users.manage"))
	assert.True(t, g.IsCritical("USERS.MANAGE"))
	assert.False(t, g.IsCritical(""))
}

func TestWorstPicksSeverest(t *testing.T) {
	allow := Decision{Verdict: VerdictAllow}
	warn := Decision{Verdict: VerdictWarn, Reason: "w"}
	block := Decision{Verdict: VerdictBlock, Reason: "b"}

	assert.Equal(t, warn, Worst(allow, warn))
	assert.Equal(t, block, Worst(warn, block))
	assert.Equal(t, block, Worst(block, warn))
	assert.Equal(t, allow, Worst(allow, allow))
}
