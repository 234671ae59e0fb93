package sdk

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustmesh/backend/internal/api"
	"github.com/trustmesh/backend/internal/engine"
	"github.com/trustmesh/backend/internal/events"
)

// startGateway runs a real gateway over httptest and returns a client bound
// to the given identity.
func startGateway(t *testing.T) (func(identity string) *Client, *engine.MemoryVault) {
	t.Helper()
	bus := events.NewBus()
	vault := engine.NewMemoryVault()
	eng := engine.New(vault, engine.DefaultParams(), engine.WithEmitter(bus))
	srv := httptest.NewServer(api.NewServer(eng, bus, "test", api.WithFaucet(vault)).Router())
	t.Cleanup(srv.Close)

	return func(identity string) *Client {
		return NewClient(Config{GatewayURL: srv.URL, AgentID: identity})
	}, vault
}

func TestClientRegisterAndFetch(t *testing.T) {
	clientFor, _ := startGateway(t)
	ctx := context.Background()
	alice := clientFor("alice")

	a, err := alice.Register(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", a.Identity)
	assert.Equal(t, "Alice", a.Name)

	fetched, err := alice.Agent(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, a.Identity, fetched.Identity)

	all, err := alice.Agents(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestClientDealRoundTrip(t *testing.T) {
	clientFor, _ := startGateway(t)
	ctx := context.Background()
	alice := clientFor("alice")
	bob := clientFor("bob")

	_, err := alice.Register(ctx, "Alice")
	require.NoError(t, err)
	_, err = bob.Register(ctx, "Bob")
	require.NoError(t, err)

	require.NoError(t, alice.Fund(ctx, "alice", 1000))
	require.NoError(t, alice.Fund(ctx, "bob", 1000))

	_, err = alice.Stake(ctx, 10)
	require.NoError(t, err)

	d, err := alice.CreateDeal(ctx, "bob", 50, "translate corpus", 0)
	require.NoError(t, err)
	assert.Equal(t, "active", d.StatusString())

	d, err = alice.ConfirmDeal(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "active", d.StatusString())

	d, err = bob.ConfirmDeal(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", d.StatusString())

	score, err := alice.Reputation(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 600, score)

	st, err := alice.Stats(ctx)
	require.NoError(t, err)
	assert.True(t, st.Conserved)
	assert.Equal(t, 2, st.Agents)
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	clientFor, _ := startGateway(t)
	ctx := context.Background()
	alice := clientFor("alice")

	_, err := alice.Stake(ctx, 10)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "NOT_REGISTERED", apiErr.Code)
	assert.Equal(t, 404, apiErr.Status)
	assert.Contains(t, apiErr.Error(), "NOT_REGISTERED")
}

func TestClientLeaderboardOrdering(t *testing.T) {
	clientFor, vault := startGateway(t)
	ctx := context.Background()

	for _, id := range []string{"alice", "bob"} {
		_, err := clientFor(id).Register(ctx, "Agent "+id)
		require.NoError(t, err)
		vault.Credit(id, 100)
	}
	_, err := clientFor("bob").Stake(ctx, 20)
	require.NoError(t, err)

	board, err := clientFor("alice").Leaderboard(ctx)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "bob", board[0].Identity)
	assert.Equal(t, 200, board[0].Reputation)
}
