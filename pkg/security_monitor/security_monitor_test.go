package security_monitor

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TrustWeave/LogArmor/pkg/content_sanitizer"
	"github.com/TrustWeave/LogArmor/pkg/security_analyzer"
	"github.com/TrustWeave/LogArmor/pkg/types"
)

const hostileText = "$(rm -rf /)"

// fakeClock drives the monitor's window arithmetic without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestMonitor(t *testing.T, opts Options, clock *fakeClock) *Monitor {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	analyzer, err := security_analyzer.NewAnalyzer(logger, content_sanitizer.Options{})
	require.NoError(t, err)

	providers := &ProviderOpts{
		UuidProvider: func() uuid.UUID {
			return uuid.MustParse("11111111-2222-3333-4444-555555555555")
		},
	}
	if clock != nil {
		providers.TimeProvider = clock.Now
	}
	return NewMonitor(logger, analyzer, opts, providers)
}

func TestObserve_CleanTextNeverCounts(t *testing.T) {
	m := newTestMonitor(t, Options{AlertThreshold: 1}, nil)

	analysis, alert := m.Observe("request completed", "svc-a")

	assert.Equal(t, types.RiskLow, analysis.RiskLevel)
	assert.Nil(t, alert)
	assert.Equal(t, 0, m.ViolationCount("svc-a"))
}

func TestObserve_AlertAtThreshold(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	m := newTestMonitor(t, Options{AlertThreshold: 3, WindowSize: time.Minute}, clock)

	_, alert := m.Observe(hostileText, "svc-a")
	assert.Nil(t, alert)
	_, alert = m.Observe(hostileText, "svc-a")
	assert.Nil(t, alert)
	assert.Equal(t, 2, m.ViolationCount("svc-a"))

	_, alert = m.Observe(hostileText, "svc-a")
	require.NotNil(t, alert)
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", alert.ID)
	assert.Equal(t, "svc-a", alert.Source)
	assert.Equal(t, 3, alert.ViolationCount)
	assert.Len(t, alert.RecentViolations, 3)
	assert.Equal(t, clock.Now(), alert.RaisedAt)

	// the alert resets the source window
	assert.Equal(t, 0, m.ViolationCount("svc-a"))
}

func TestObserve_WindowExpiryResetsCount(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	m := newTestMonitor(t, Options{AlertThreshold: 5, WindowSize: time.Minute}, clock)

	m.Observe(hostileText, "svc-a")
	m.Observe(hostileText, "svc-a")
	assert.Equal(t, 2, m.ViolationCount("svc-a"))

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 0, m.ViolationCount("svc-a"))

	// the next observation starts a fresh window
	m.Observe(hostileText, "svc-a")
	assert.Equal(t, 1, m.ViolationCount("svc-a"))
}

func TestObserve_SourcesAreIndependent(t *testing.T) {
	m := newTestMonitor(t, Options{AlertThreshold: 2}, nil)

	_, alert := m.Observe(hostileText, "svc-a")
	assert.Nil(t, alert)
	_, alert = m.Observe(hostileText, "svc-b")
	assert.Nil(t, alert)

	assert.Equal(t, 1, m.ViolationCount("svc-a"))
	assert.Equal(t, 1, m.ViolationCount("svc-b"))

	_, alert = m.Observe(hostileText, "svc-b")
	require.NotNil(t, alert)
	assert.Equal(t, "svc-b", alert.Source)
	assert.Equal(t, 1, m.ViolationCount("svc-a"), "svc-a must be untouched by svc-b's alert")
}

func TestObserve_EmptySourceFallsBack(t *testing.T) {
	m := newTestMonitor(t, Options{AlertThreshold: 5}, nil)

	m.Observe(hostileText, "")

	assert.Equal(t, 1, m.ViolationCount("unknown"))
	assert.Equal(t, 1, m.ViolationCount(""))
}

func TestObserve_RecentViolationsTrimmed(t *testing.T) {
	m := newTestMonitor(t, Options{AlertThreshold: 4, MaxRecent: 2}, nil)

	for i := 0; i < 3; i++ {
		_, alert := m.Observe(hostileText, "svc-a")
		assert.Nil(t, alert)
	}
	_, alert := m.Observe(hostileText, "svc-a")

	require.NotNil(t, alert)
	assert.Equal(t, 4, alert.ViolationCount)
	assert.Len(t, alert.RecentViolations, 2)
}

func TestRecord_PrecomputedViolations(t *testing.T) {
	m := newTestMonitor(t, Options{AlertThreshold: 2}, nil)

	violations := []types.Violation{
		{Type: types.ViolationPrototypePollution, Severity: types.SeverityCritical},
	}

	alert := m.Record("svc-obj", violations)
	assert.Nil(t, alert)
	assert.Equal(t, 1, m.ViolationCount("svc-obj"))

	alert = m.Record("svc-obj", violations)
	require.NotNil(t, alert)
	assert.Equal(t, 2, alert.ViolationCount)

	assert.Nil(t, m.Record("svc-obj", nil), "empty violation sets never count")
	assert.Equal(t, 0, m.ViolationCount("svc-obj"))
}

func TestOnAlertHook(t *testing.T) {
	var got []types.Alert
	m := newTestMonitor(t, Options{
		AlertThreshold: 1,
		OnAlert:        func(a types.Alert) { got = append(got, a) },
	}, nil)

	m.Observe(hostileText, "svc-a")

	require.Len(t, got, 1)
	assert.Equal(t, "svc-a", got[0].Source)
}

func TestAllow_WithoutBlockingAlwaysTrue(t *testing.T) {
	m := newTestMonitor(t, Options{AlertThreshold: 1}, nil)

	m.Observe(hostileText, "svc-a")

	assert.True(t, m.Allow("svc-a"))
	assert.True(t, m.Allow("never-seen"))
}

func TestAllow_BlockingTripsOnAlert(t *testing.T) {
	m := newTestMonitor(t, Options{
		AlertThreshold: 1,
		EnableBlocking: true,
		BlockDuration:  50 * time.Millisecond,
	}, nil)

	assert.True(t, m.Allow("svc-a"), "unseen sources start open")

	_, alert := m.Observe(hostileText, "svc-a")
	require.NotNil(t, alert)

	assert.False(t, m.Allow("svc-a"))
	assert.True(t, m.Allow("svc-b"), "other sources stay open")

	// the breaker goes half-open after the block duration and probes pass
	time.Sleep(80 * time.Millisecond)
	assert.True(t, m.Allow("svc-a"))
}

func TestReset(t *testing.T) {
	m := newTestMonitor(t, Options{
		AlertThreshold: 1,
		EnableBlocking: true,
		BlockDuration:  time.Hour,
	}, nil)

	m.Observe(hostileText, "svc-a")
	assert.False(t, m.Allow("svc-a"))

	m.Reset("svc-a")

	assert.Equal(t, 0, m.ViolationCount("svc-a"))
	assert.True(t, m.Allow("svc-a"))
}

func TestObserve_ConcurrentSources(t *testing.T) {
	m := newTestMonitor(t, Options{AlertThreshold: 1000}, nil)

	var wg sync.WaitGroup
	sources := []string{"svc-a", "svc-b", "svc-c", "svc-d"}
	for _, source := range sources {
		source := source
		for i := 0; i < 25; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				m.Observe(hostileText, source)
			}()
		}
	}
	wg.Wait()

	for _, source := range sources {
		assert.Equal(t, 25, m.ViolationCount(source))
	}
}

func TestOptionsNormalization(t *testing.T) {
	m := newTestMonitor(t, Options{}, nil)

	assert.Equal(t, time.Minute, m.opts.WindowSize)
	assert.Equal(t, 5, m.opts.AlertThreshold)
	assert.Equal(t, 20, m.opts.MaxRecent)
	assert.Equal(t, 5*time.Minute, m.opts.BlockDuration)
}
