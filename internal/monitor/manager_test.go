package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuomag9/webstatus/internal/config"
	"github.com/fuomag9/webstatus/internal/models"
	"github.com/fuomag9/webstatus/internal/probe"
	"github.com/fuomag9/webstatus/internal/store"
)

type fakeStore struct {
	mu            sync.Mutex
	targets       map[string]*models.Target
	statusUpdates int
	alertLogs     []string
}

func newFakeStore(targets ...*models.Target) *fakeStore {
	fs := &fakeStore{targets: make(map[string]*models.Target)}
	for _, t := range targets {
		fs.targets[t.ID] = t
	}
	return fs
}

func (f *fakeStore) GetTarget(ctx context.Context, id string) (*models.Target, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.targets[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) GetEnabledTargets(ctx context.Context) ([]models.Target, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Target
	for _, t := range f.targets {
		if t.Enabled {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateTargetStatus(ctx context.Context, id, status string, failures int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.targets[id]; ok {
		t.Status = status
		t.CurrentFailures = failures
	}
	f.statusUpdates++
	return nil
}

func (f *fakeStore) AddCheckHistory(ctx context.Context, targetID, status string, responseTime *float64, errMsg string) error {
	return nil
}

func (f *fakeStore) AddAlertLog(ctx context.Context, targetID, eventType, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alertLogs = append(f.alertLogs, eventType)
	return nil
}

func (f *fakeStore) updates() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusUpdates
}

type fakeProber struct {
	mu      sync.Mutex
	success bool
	errMsg  string
}

func (p *fakeProber) set(success bool, errMsg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.success = success
	p.errMsg = errMsg
}

func (p *fakeProber) Check(ctx context.Context, target *models.Target) *probe.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	rt := 0.01
	res := &probe.Result{Timestamp: time.Now().UTC(), Success: p.success, ResponseTime: &rt}
	if !p.success {
		res.Err = p.errMsg
	}
	return res
}

func (p *fakeProber) Timeout(kind string) time.Duration {
	return time.Second
}

func testConfig() config.MonitoringConfig {
	return config.MonitoringConfig{
		PingTimeout:         1,
		HTTPTimeout:         1,
		PingPacketCount:     1,
		PingMinSuccess:      1,
		AlertRepeatInterval: 300,
		ConfigRefreshChecks: 10,
	}
}

func testTarget(id string, threshold int) *models.Target {
	return &models.Target{
		ID:               id,
		Name:             "target-" + id,
		Type:             models.KindPing,
		Address:          "192.0.2.1",
		CheckInterval:    60,
		FailureThreshold: threshold,
		Status:           models.StatusUnknown,
		Enabled:          true,
	}
}

func TestManager_RestoreAlertStateOnStart(t *testing.T) {
	alerting := testTarget("a", 3)
	alerting.CurrentFailures = 5
	alerting.Status = models.StatusDown

	acked := testTarget("b", 3)
	acked.CurrentFailures = 5
	acked.Status = models.StatusDown
	acked.Acknowledged = true

	healthy := testTarget("c", 3)

	fs := newFakeStore(alerting, acked, healthy)
	m := NewManager(fs, &fakeProber{success: true}, testConfig(), zerolog.Nop())

	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	// Only the unacknowledged over-threshold target is restored, so its
	// next success emits a recovery instead of a silent reset.
	assert.Equal(t, []string{"a"}, m.ActiveAlerts())
}

func TestManager_StopTargetJoins(t *testing.T) {
	target := testTarget("a", 3)
	fs := newFakeStore(target)
	m := NewManager(fs, &fakeProber{success: true}, testConfig(), zerolog.Nop())

	m.StartTarget(target)
	assert.True(t, m.Running("a"))

	// The first check runs immediately.
	require.Eventually(t, func() bool { return fs.updates() >= 1 }, 2*time.Second, 10*time.Millisecond)

	m.StopTarget("a")
	assert.False(t, m.Running("a"))

	// StopTarget returned, so the loop has fully exited; no further checks
	// may land.
	n := fs.updates()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, fs.updates())
}

func TestManager_ThresholdAndRecoveryEvents(t *testing.T) {
	target := testTarget("a", 2)
	fs := newFakeStore(target)
	prober := &fakeProber{success: false, errMsg: "connection refused"}
	m := NewManager(fs, prober, testConfig(), zerolog.Nop())

	var mu sync.Mutex
	var events []Event
	m.RegisterListener(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	})

	ctx := context.Background()

	// Failure 1: down, below threshold, no event.
	require.NoError(t, m.CheckNow(ctx, "a"))
	mu.Lock()
	assert.Empty(t, events)
	mu.Unlock()

	// Failure 2: threshold reached.
	require.NoError(t, m.CheckNow(ctx, "a"))
	mu.Lock()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventThresholdReached, events[0].Type)
	assert.Equal(t, 2, events[0].CurrentFailures)
	assert.Contains(t, events[0].Message, "connection refused")
	mu.Unlock()
	assert.Equal(t, []string{"a"}, m.ActiveAlerts())

	// Success: recovered.
	prober.set(true, "")
	require.NoError(t, m.CheckNow(ctx, "a"))
	mu.Lock()
	require.Len(t, events, 2)
	assert.Equal(t, models.EventRecovered, events[1].Type)
	mu.Unlock()
	assert.Empty(t, m.ActiveAlerts())

	// Alert log mirrors the transitions.
	fs.mu.Lock()
	assert.Equal(t, []string{models.EventThresholdReached, models.EventRecovered}, fs.alertLogs)
	fs.mu.Unlock()
}

func TestManager_ListenerPanicContained(t *testing.T) {
	target := testTarget("a", 1)
	fs := newFakeStore(target)
	m := NewManager(fs, &fakeProber{success: false, errMsg: "down"}, testConfig(), zerolog.Nop())

	var delivered bool
	m.RegisterListener(func(Event) { panic("listener bug") })
	m.RegisterListener(func(Event) { delivered = true })

	require.NoError(t, m.CheckNow(context.Background(), "a"))
	assert.True(t, delivered, "a panicking listener must not block later listeners")
}

func TestManager_ReloadStopsRemovedTargets(t *testing.T) {
	a := testTarget("a", 3)
	b := testTarget("b", 3)
	fs := newFakeStore(a, b)
	m := NewManager(fs, &fakeProber{success: true}, testConfig(), zerolog.Nop())

	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()
	assert.True(t, m.Running("a"))
	assert.True(t, m.Running("b"))

	fs.mu.Lock()
	fs.targets["b"].Enabled = false
	fs.mu.Unlock()

	require.NoError(t, m.Reload(context.Background()))
	assert.True(t, m.Running("a"))
	assert.False(t, m.Running("b"))
}
