package entity

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/lagcomp/internal/lagcomp"
	"github.com/banshee-data/lagcomp/internal/monitoring"
)

func TestNew(t *testing.T) {
	t.Parallel()
	e, err := New("Lander", "MoonCentricFixed", true)
	require.NoError(t, err)
	assert.Equal(t, "Lander", e.Name())
	assert.Equal(t, "MoonCentricFixed", e.ParentFrame())
	assert.Len(t, e.InstanceID, 36)
	assert.Equal(t, lagcomp.IdentityQuaternion(), e.State.Attitude)
	assert.Equal(t, AttributeNames, e.Attributes().Names())

	a, err := e.Attributes().Lookup(AttrState)
	require.NoError(t, err)
	assert.True(t, a.Publish)
	assert.False(t, a.Subscribe)
	assert.True(t, a.LocallyOwned)

	other, err := New("Lander", "", false)
	require.NoError(t, err)
	assert.NotEqual(t, e.InstanceID, other.InstanceID)

	_, err = New("", "", true)
	assert.ErrorIs(t, err, ErrMissingName)
}

func TestInitialize_SubstitutesEmptyIdentity(t *testing.T) {
	var logs []string
	prev := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) {
		logs = append(logs, format)
	})
	t.Cleanup(func() { monitoring.SetLogger(prev) })

	e, err := New("Rover", "", false)
	require.NoError(t, err)
	e.SetStatus("active")
	e.Initialize()

	assert.True(t, e.Initialized())
	assert.Equal(t, "", e.Type())
	assert.Equal(t, "active", e.Status())
	assert.Equal(t, "", e.ParentFrame())
	require.Len(t, logs, 1, "only the unset type warns")
	assert.True(t, strings.HasPrefix(logs[0], "WARNING: "))
}

func TestResolveAttributes(t *testing.T) {
	t.Parallel()
	e, err := New("Rover", "", false)
	require.NoError(t, err)
	assert.Nil(t, e.Attribute(AttrState))
	require.NoError(t, e.ResolveAttributes())
	assert.NotNil(t, e.Attribute(AttrState))
	assert.NotNil(t, e.Attribute(AttrBodyWrtStructural))

	partial, err := NewWithAttributes("Probe", "", false, AttrName, AttrState)
	require.NoError(t, err)
	err = partial.ResolveAttributes()
	require.ErrorIs(t, err, ErrUnknownAttribute)
	assert.Contains(t, err.Error(), `"type"`)
}

func TestRegistry(t *testing.T) {
	t.Parallel()
	r := NewRegistry("obj", false, "a", "b", "a")
	assert.Equal(t, []string{"a", "b"}, r.Names())

	_, err := r.Lookup("")
	assert.ErrorIs(t, err, ErrNilAttributeName)
	_, err = r.Lookup("c")
	assert.ErrorIs(t, err, ErrUnknownAttribute)

	b, err := r.Lookup("b")
	require.NoError(t, err)
	b.MarkReceived()
	assert.Equal(t, []string{"b"}, r.Received())
	r.ClearReceived()
	assert.Empty(t, r.Received())

	var missing *Attribute
	assert.False(t, missing.IsReceived())
}

func TestApply(t *testing.T) {
	t.Parallel()
	pub, err := New("Lander", "MoonCentricFixed", true)
	require.NoError(t, err)
	pub.SetType("lander")
	pub.State.Time = 4
	pub.State.Position = r3.Vec{X: 10}
	pub.State.Acceleration = r3.Vec{Z: -1.62}
	pub.CenterOfMass = r3.Vec{Y: 0.5}

	sub, err := New("Lander", "", false)
	require.NoError(t, err)
	sub.Apply(pub.Snapshot())

	assert.ElementsMatch(t, AttributeNames, sub.Attributes().Received())
	assert.Equal(t, "lander", sub.Type())
	assert.Equal(t, "MoonCentricFixed", sub.ParentFrame())
	if diff := cmp.Diff(pub.State, sub.State); diff != "" {
		t.Errorf("state mismatch (-pub +sub):\n%s", diff)
	}
	assert.Equal(t, pub.CenterOfMass, sub.CenterOfMass)

	// A partial update only flags what it carries.
	st := pub.State
	st.Time = 5
	sub.Apply(Update{State: &st})
	assert.Equal(t, []string{AttrState}, sub.Attributes().Received())
	assert.Equal(t, 5.0, sub.Time())
}

func TestStoreStateKeepsAccelerations(t *testing.T) {
	t.Parallel()
	e, err := New("Lander", "", true)
	require.NoError(t, err)
	e.State.Acceleration = r3.Vec{X: 1}

	src := lagcomp.NewKinematicState()
	src.Time = 2
	src.Position = r3.Vec{Y: 3}
	src.Acceleration = r3.Vec{Z: 9}
	e.StoreState(&src)

	assert.Equal(t, 2.0, e.State.Time)
	assert.Equal(t, r3.Vec{Y: 3}, e.State.Position)
	assert.Equal(t, r3.Vec{X: 1}, e.State.Acceleration)
}
