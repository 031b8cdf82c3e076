package permission_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionkit/core/permission"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Resolve(ctx context.Context, groupIDs []uint32) (permission.Mapping, error) {
	args := m.Called(ctx, groupIDs)
	return args.Get(0).(permission.Mapping), args.Error(1)
}

func TestMapping_Value(t *testing.T) {
	t.Parallel()

	mapping := permission.Mapping{
		Values: map[string]any{
			"user.board.canReply": true,
			"user.attachment.maxSize": int64(
				2 << 20,
			),
		},
	}

	assert.Equal(t, true, mapping.Value("user.board.canReply"))
	assert.Equal(t, false, mapping.Value("user.board.canStartThread"), "absent names resolve to false")
}

func TestMapping_Granted(t *testing.T) {
	t.Parallel()

	mapping := permission.Mapping{
		Values: map[string]any{
			"bool true":    true,
			"bool false":   false,
			"int nonzero":  3,
			"int zero":     0,
			"float":        float64(1),
			"string":       "yes",
			"empty string": "",
		},
	}

	assert.True(t, mapping.Granted("bool true"))
	assert.False(t, mapping.Granted("bool false"))
	assert.True(t, mapping.Granted("int nonzero"))
	assert.False(t, mapping.Granted("int zero"))
	assert.True(t, mapping.Granted("float"))
	assert.True(t, mapping.Granted("string"))
	assert.False(t, mapping.Granted("empty string"))
	assert.False(t, mapping.Granted("missing"))
}

func TestCache_UsersOnlyGuard(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{}
	cache := permission.NewCache(provider, []string{"user.profile.canEdit"})

	// Group data grants the permission, but the guest guard must win.
	mapping := permission.Mapping{
		Values: map[string]any{"user.profile.canEdit": true},
	}

	got := cache.Get(context.Background(), true, mapping, "user.profile.canEdit")
	assert.Equal(t, false, got, "users-only permission must be false for guests even if a group grants it")

	got = cache.Get(context.Background(), false, mapping, "user.profile.canEdit")
	assert.Equal(t, true, got, "registered users get the group value")
}

func TestCache_Never(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{}
	cache := permission.NewCache(provider, nil)

	mapping := permission.Mapping{
		Values: map[string]any{"mod.board.canDelete": true},
		Never:  map[string]bool{"mod.board.canDelete": true},
	}

	assert.True(t, cache.Never(mapping, "mod.board.canDelete"))
	assert.False(t, cache.Never(mapping, "mod.board.canPin"))
}

func TestCache_Resolve(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{}
	cache := permission.NewCache(provider, nil)

	want := permission.Mapping{Values: map[string]any{"x": true}}
	provider.On("Resolve", mock.Anything, []uint32{1, 3}).Return(want, nil)

	got, err := cache.Resolve(context.Background(), []uint32{1, 3})
	require.NoError(t, err)
	assert.Equal(t, want, got)
	provider.AssertExpectations(t)
}
