package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// recordingEmitter captures emitted events for assertions.
type recordingEmitter struct {
	mu     sync.Mutex
	types  []string
	events []map[string]interface{}
}

func (r *recordingEmitter) Emit(eventType, source, subject string, data map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, eventType)
	r.events = append(r.events, data)
}

func (r *recordingEmitter) typesSeen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.types))
	copy(out, r.types)
	return out
}

type testEnv struct {
	engine  *Engine
	vault   *MemoryVault
	clock   *fakeClock
	emitter *recordingEmitter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := newFakeClock()
	vault := NewMemoryVault()
	emitter := &recordingEmitter{}
	eng := New(vault, DefaultParams(),
		WithEmitter(emitter),
		WithClock(clock.now),
	)
	return &testEnv{engine: eng, vault: vault, clock: clock, emitter: emitter}
}

// registerFunded registers an identity and credits its free balance.
func (env *testEnv) registerFunded(t *testing.T, identity, name string, balance uint64) {
	t.Helper()
	require.NoError(t, env.engine.Register(identity, name))
	env.vault.Credit(identity, balance)
}

// assertConserved checks that vault custody equals staked + active escrow.
func (env *testEnv) assertConserved(t *testing.T) {
	t.Helper()
	held, expected := env.engine.Conservation()
	assert.Equal(t, expected, held, "vault held must equal staked + active escrow")
}

func TestConservationAcrossMixedOperations(t *testing.T) {
	env := newTestEnv(t)
	env.registerFunded(t, "alice", "Alice", 1000)
	env.registerFunded(t, "bob", "Bob", 1000)
	env.registerFunded(t, "carol", "Carol", 1000)
	env.assertConserved(t)

	require.NoError(t, env.engine.Stake("alice", 100))
	require.NoError(t, env.engine.Stake("bob", 100))
	env.assertConserved(t)

	d1, err := env.engine.CreateDeal("alice", "bob", 50, "batch inference", 0)
	require.NoError(t, err)
	d2, err := env.engine.CreateDeal("bob", "carol", 30, "data labeling", time.Hour)
	require.NoError(t, err)
	env.assertConserved(t)

	require.NoError(t, env.engine.ConfirmDeal(d1, "alice"))
	require.NoError(t, env.engine.ConfirmDeal(d1, "bob"))
	env.assertConserved(t)

	require.NoError(t, env.engine.DisputeDeal(d2, "carol"))
	env.assertConserved(t)

	require.NoError(t, env.engine.RequestUnstake("alice"))
	env.clock.advance(25 * time.Hour)
	require.NoError(t, env.engine.Unstake("alice", 40))
	env.assertConserved(t)
}

func TestIndependentDealsProceedConcurrently(t *testing.T) {
	env := newTestEnv(t)
	const pairs = 8
	ids := make([]string, 0, pairs*2)
	for i := 0; i < pairs*2; i++ {
		id := string(rune('a'+i)) + "-agent"
		env.registerFunded(t, id, "Agent", 1000)
		require.NoError(t, env.engine.Stake(id, 10))
		ids = append(ids, id)
	}

	dealIDs := make([]uint64, pairs)
	for i := 0; i < pairs; i++ {
		id, err := env.engine.CreateDeal(ids[2*i], ids[2*i+1], 5, "parallel", 0)
		require.NoError(t, err)
		dealIDs[i] = id
	}

	var wg sync.WaitGroup
	for i := 0; i < pairs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, env.engine.ConfirmDeal(dealIDs[i], ids[2*i]))
			assert.NoError(t, env.engine.ConfirmDeal(dealIDs[i], ids[2*i+1]))
		}(i)
	}
	wg.Wait()

	for i := 0; i < pairs; i++ {
		d, ok := env.engine.GetDeal(dealIDs[i])
		require.True(t, ok)
		assert.Equal(t, StatusCompleted, d.Status)
	}
	env.assertConserved(t)
}

func TestEventEmissionPerOperation(t *testing.T) {
	env := newTestEnv(t)
	env.registerFunded(t, "alice", "Alice", 1000)
	env.registerFunded(t, "bob", "Bob", 1000)
	require.NoError(t, env.engine.Stake("alice", 10))
	require.NoError(t, env.engine.Stake("bob", 10))

	d1, err := env.engine.CreateDeal("alice", "bob", 50, "", 0)
	require.NoError(t, err)
	require.NoError(t, env.engine.ConfirmDeal(d1, "alice"))
	require.NoError(t, env.engine.ConfirmDeal(d1, "bob"))

	d2, err := env.engine.CreateDeal("alice", "bob", 20, "", 0)
	require.NoError(t, err)
	require.NoError(t, env.engine.DisputeDeal(d2, "alice"))

	d3, err := env.engine.CreateDeal("alice", "bob", 20, "", time.Minute)
	require.NoError(t, err)
	env.clock.advance(2 * time.Minute)
	require.NoError(t, env.engine.CancelExpiredDeal(d3, "carol"))

	require.NoError(t, env.engine.RequestUnstake("alice"))
	env.clock.advance(25 * time.Hour)
	require.NoError(t, env.engine.Unstake("alice", 5))

	assert.Equal(t, []string{
		EventAgentRegistered,
		EventAgentRegistered,
		EventStaked,
		EventStaked,
		EventDealCreated,
		EventDealCompleted,
		EventDealCreated,
		EventDealDisputed,
		EventSlashed,
		EventDealCreated,
		EventDealExpired,
		EventUnstakeRequested,
		EventUnstaked,
	}, env.emitter.typesSeen())
}

func TestAgentAndDealCounts(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, 0, env.engine.AgentCount())
	assert.Equal(t, 0, env.engine.DealCount())

	env.registerFunded(t, "alice", "Alice", 100)
	env.registerFunded(t, "bob", "Bob", 100)
	assert.Equal(t, 2, env.engine.AgentCount())

	_, err := env.engine.CreateDeal("alice", "bob", 10, "", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, env.engine.DealCount())
}
