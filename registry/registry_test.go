package registry

import (
	"errors"
	"testing"

	"github.com/skeinforge/actorkit/actor"
	"github.com/stretchr/testify/require"
)

type fakeResource struct {
	name string
	rec  *[]string
	err  error
}

func (f *fakeResource) Close() error {
	*f.rec = append(*f.rec, f.name)
	return f.err
}

func TestRegistryRegisterAndResolve(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.Register("a", 1))
	require.NoError(t, r.Register("b", "two"))

	v, err := r.Resolve("a")
	require.NoError(t, err)
	require.Equal(t, 1, v)

	v, err = r.Resolve("b")
	require.NoError(t, err)
	require.Equal(t, "two", v)
}

func TestRegistryResolveUnknown(t *testing.T) {
	t.Parallel()

	r := New()
	_, err := r.Resolve("missing")
	require.ErrorIs(t, err, actor.ErrUnknownResource)
}

func TestRegistryRegisterDuplicate(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.Register("a", 1))
	err := r.Register("a", 2)
	require.ErrorIs(t, err, actor.ErrDuplicateResource)
}

// TestRegistryDestroyAllReverseOrder asserts resources close in the reverse
// of their registration order, and that a failure from one doesn't stop the
// rest from being torn down.
func TestRegistryDestroyAllReverseOrder(t *testing.T) {
	t.Parallel()

	var closed []string
	boom := errors.New("boom")

	r := New()
	require.NoError(t, r.Register("first", &fakeResource{name: "first", rec: &closed}))
	require.NoError(t, r.Register("second", &fakeResource{name: "second", rec: &closed, err: boom}))
	require.NoError(t, r.Register("third", &fakeResource{name: "third", rec: &closed}))
	require.NoError(t, r.Register("not-a-closer", 42))

	err := r.DestroyAll()
	require.ErrorIs(t, err, boom)
	require.Equal(t, []string{"third", "second", "first"}, closed)
}

func TestRegistryDestroyAllEmpty(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.DestroyAll())
}
