package unify_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"hlsched/internal/unify"
)

// seed declares inputs a and b and one call-shaped node per name in calls,
// each over ($a, $b).
func seed(t *testing.T, calls ...string) *unify.Env {
	t.Helper()
	env := unify.NewEnv()
	require.NoError(t, env.SetInputs("a", "b"))
	for _, c := range calls {
		require.NoError(t, env.AddClassConstraint(c, unify.Call("foo", "$a", "$b")))
	}
	env.SetOutputs(calls...)
	return env
}

func TestUniqueStructuralMatchResolves(t *testing.T) {
	env := seed(t, "f")
	require.NoError(t, env.AddNodeEquality("x", "a"))
	require.NoError(t, env.AddNodeEquality("y", "b"))
	require.NoError(t, env.AddConstraint("v", unify.Call("foo", "x", "y")))

	name, ok := env.NodeName("v")
	require.True(t, ok)
	require.Equal(t, "f", name)
}

func TestAmbiguousStructuralMatchStaysUndetermined(t *testing.T) {
	env := seed(t, "g1", "g2")
	require.NoError(t, env.AddNodeEquality("x", "a"))
	require.NoError(t, env.AddNodeEquality("y", "b"))
	require.NoError(t, env.AddConstraint("v", unify.Call("foo", "x", "y")))

	_, ok := env.NodeName("v")
	require.False(t, ok)
	require.Equal(t, []string{"g1", "g2"}, env.Matches(unify.Call("foo", "x", "y")))

	// an explicit annotation narrows it
	require.NoError(t, env.AddNodeEquality("v", "g2"))
	name, ok := env.NodeName("v")
	require.True(t, ok)
	require.Equal(t, "g2", name)
}

func TestResolveUsesLaterFacts(t *testing.T) {
	env := unify.NewEnv()
	require.NoError(t, env.SetInputs("a", "b"))
	require.NoError(t, env.AddClassConstraint("ab", unify.Call("foo", "$a", "$b")))
	require.NoError(t, env.AddClassConstraint("ba", unify.Call("foo", "$b", "$a")))

	require.NoError(t, env.AddConstraint("v", unify.Call("foo", "x", "y")))
	_, ok := env.NodeName("v")
	require.False(t, ok, "both shapes match while x and y are unknown")

	require.NoError(t, env.AddNodeEquality("x", "b"))
	require.NoError(t, env.Resolve())
	name, ok := env.NodeName("v")
	require.True(t, ok)
	require.Equal(t, "ba", name)
	name, ok = env.NodeName("y")
	require.True(t, ok)
	require.Equal(t, "a", name)
}

func TestStructuredArgumentIsNotAWildcard(t *testing.T) {
	env := unify.NewEnv()
	require.NoError(t, env.SetInputs("a"))
	require.NoError(t, env.AddClassConstraint("p", unify.Call("f", "$a")))
	require.NoError(t, env.AddConstraint("t", unify.Literal("7")))

	// t has no node yet, but its literal shape cannot be the input a
	require.NoError(t, env.AddConstraint("v", unify.Call("f", "t")))
	_, ok := env.NodeName("v")
	require.False(t, ok)
	require.Empty(t, env.Matches(unify.Call("f", "t")))
	require.NoError(t, env.Resolve())
	_, ok = env.NodeName("v")
	require.False(t, ok)

	// the trial unification left nothing behind
	require.False(t, env.Equal("t", "$a"))
	_, ok = env.NodeName("t")
	require.False(t, ok)
}

func TestRepeatedArgumentMatchesOnlyEqualNodes(t *testing.T) {
	env := seed(t, "f")
	require.NoError(t, env.AddClassConstraint("d", unify.Call("foo", "$a", "$a")))

	require.Equal(t, []string{"d"}, env.Matches(unify.Call("foo", "x", "x")))
	require.NoError(t, env.AddConstraint("v", unify.Call("foo", "x", "x")))
	name, ok := env.NodeName("v")
	require.True(t, ok)
	require.Equal(t, "d", name)
	name, ok = env.NodeName("x")
	require.True(t, ok)
	require.Equal(t, "a", name)
}

func TestSameTermSameAnswer(t *testing.T) {
	for _, calls := range [][]string{{"f"}, {"g1", "g2"}} {
		env := seed(t, calls...)
		require.NoError(t, env.AddNodeEquality("x", "a"))
		require.NoError(t, env.AddNodeEquality("y", "b"))
		require.NoError(t, env.AddConstraint("A", unify.Call("foo", "x", "y")))
		require.NoError(t, env.AddConstraint("B", unify.Call("foo", "x", "y")))

		na, okA := env.NodeName("A")
		nb, okB := env.NodeName("B")
		require.Equal(t, okA, okB, "specs %v", calls)
		require.Equal(t, na, nb, "specs %v", calls)
	}
}

func TestShapeConflict(t *testing.T) {
	env := unify.NewEnv()
	require.NoError(t, env.AddConstraint("v", unify.Call("add", "x", "y")))
	err := env.AddConstraint("v", unify.Binop("add", "x", "z"))
	require.Error(t, err)
	require.True(t, errors.Is(err, unify.ErrConflict))

	var ce *unify.ConflictError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, "different shapes", ce.Reason)
	require.False(t, env.Has("z"), "names minted by a failed constraint must be dropped")
}

func TestDistinctNodesConflict(t *testing.T) {
	env := seed(t)
	require.NoError(t, env.AddNodeEquality("x", "a"))
	err := env.AddNodeEquality("x", "b")
	require.ErrorIs(t, err, unify.ErrConflict)
	require.ErrorIs(t, env.AddVarEquality("$a", "$b"), unify.ErrConflict)

	name, ok := env.NodeName("x")
	require.True(t, ok)
	require.Equal(t, "a", name)
}

func TestFailedUnificationLeavesNoPartialMerge(t *testing.T) {
	env := unify.NewEnv()
	require.NoError(t, env.SetInputs("b", "c"))
	require.NoError(t, env.AddConstraint("s", unify.Literal("1")))
	require.NoError(t, env.AddNodeEquality("r", "b"))
	require.NoError(t, env.AddNodeEquality("p", "c"))
	require.NoError(t, env.AddConstraint("w", unify.Call("f", "q", "r")))

	// q and s merge before r and p clash
	err := env.AddConstraint("w", unify.Call("f", "s", "p"))
	require.ErrorIs(t, err, unify.ErrConflict)

	require.False(t, env.Equal("q", "s"))
	require.False(t, env.Equal("r", "p"))
	name, ok := env.NodeName("p")
	require.True(t, ok)
	require.Equal(t, "c", name)

	// the environment is still usable
	require.NoError(t, env.AddConstraint("w", unify.Call("f", "s", "r")))
	require.True(t, env.Equal("q", "s"))
}

func TestCloneIsIndependent(t *testing.T) {
	env := seed(t, "f")
	c := env.Clone()
	require.NoError(t, c.AddNodeEquality("x", "a"))
	require.False(t, env.Has("x"))

	name, ok := c.NodeName("x")
	require.True(t, ok)
	require.Equal(t, "a", name)
	require.True(t, c.IsInput("a"))
	require.Equal(t, []string{"f"}, c.Outputs())
}

func TestTemporaries(t *testing.T) {
	env := unify.NewEnv()
	t0 := env.NewTemp()
	t1 := env.NewTemp()
	require.NotEqual(t, t0, t1)
	require.True(t, unify.IsTemp(t0))
	require.False(t, unify.IsClass(t0))
	require.NoError(t, env.AddConstraint(t0, unify.Call("g", "x")))
	require.NoError(t, env.AddConstraint("r", unify.Extract(t0, 1)))
	require.True(t, env.Has("r"))
}

func TestSpecTermAndAlphaEquiv(t *testing.T) {
	env := seed(t, "f")
	term, ok := env.SpecTerm("f")
	require.True(t, ok)
	require.True(t, term.AlphaEquiv(unify.Call("foo", "p", "q")))
	require.False(t, term.AlphaEquiv(unify.Call("foo", "p")))
	require.False(t, term.AlphaEquiv(unify.Binop("foo", "p", "q")))
	require.Equal(t, "call foo($a, $b)", term.String())
}
