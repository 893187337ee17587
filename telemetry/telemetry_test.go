package telemetry_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/workforce-engine/telemetry"
	"github.com/warp/workforce-engine/workforce"
)

func kpiEvent(tick int64, depth int) workforce.Event {
	return workforce.Event{
		Topic:   workforce.TopicKPI,
		Tick:    tick,
		Payload: workforce.KPIPayload{Snapshot: workforce.KpiSnapshot{QueueDepth: depth}},
	}
}

func warningEvent(tick int64) workforce.Event {
	return workforce.Event{
		Topic: workforce.TopicWarning,
		Tick:  tick,
		Payload: workforce.WarningPayload{Warnings: []workforce.Warning{
			{Code: workforce.WarnQueueBacklog, Severity: workforce.SeverityInfo},
		}},
	}
}

// =============================================================================
// FANOUT / BUFFER
// =============================================================================

func TestFanout_PublishesToAllAndJoinsErrors(t *testing.T) {
	// GIVEN: Two buffers with a failing sink between them
	// WHEN: Events are published
	// THEN: Both buffers receive them and the failure is reported

	ctx := context.Background()
	a, b := telemetry.NewBuffer(0), telemetry.NewBuffer(0)
	boom := errors.New("disk full")
	f := telemetry.NewFanout(a, telemetry.SinkFunc(func(context.Context, []workforce.Event) error { return boom }), nil, b)

	err := f.Publish(ctx, []workforce.Event{kpiEvent(1, 0), warningEvent(1)})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, a.Len())
	assert.Equal(t, 2, b.Len())
	assert.NoError(t, f.Publish(ctx, nil))
}

func TestBuffer_TrimsAndFilters(t *testing.T) {
	ctx := context.Background()
	buf := telemetry.NewBuffer(3)

	for tick := int64(1); tick <= 4; tick++ {
		require.NoError(t, buf.Publish(ctx, []workforce.Event{kpiEvent(tick, int(tick))}))
	}
	require.NoError(t, buf.Publish(ctx, []workforce.Event{warningEvent(4)}))

	assert.Equal(t, 3, buf.Len())
	assert.Len(t, buf.Since(0, ""), 3)
	assert.Len(t, buf.Since(4, ""), 2)
	kpis := buf.Since(0, workforce.TopicKPI)
	require.Len(t, kpis, 2)
	assert.Equal(t, int64(3), kpis[0].Tick)

	buf.Reset()
	assert.Zero(t, buf.Len())
}

// =============================================================================
// JSONL WRITER
// =============================================================================

func TestJSONLWriter_RotatesBySimDayAndAppendsFrames(t *testing.T) {
	// GIVEN: One-hour ticks
	// WHEN: Ticks 1 and 23 (day 0) and 24 (day 1) are written, then a new
	//       writer appends tick 2
	// THEN: Day 0 holds three records across two zstd frames, day 1 holds one

	ctx := context.Background()
	dir := t.TempDir()

	w := telemetry.NewJSONLWriter(dir, "events", 1)
	require.NoError(t, w.Publish(ctx, []workforce.Event{kpiEvent(1, 1), kpiEvent(23, 2)}))
	require.NoError(t, w.Publish(ctx, []workforce.Event{warningEvent(24)}))
	require.NoError(t, w.Close())

	w2 := telemetry.NewJSONLWriter(dir, "events", 1)
	require.NoError(t, w2.Publish(ctx, []workforce.Event{kpiEvent(2, 3)}))
	require.NoError(t, w2.Close())

	assert.Equal(t, filepath.Join(dir, "events-day-0000.jsonl.zst"), w.PathForDay(0))

	day0, err := telemetry.ReadJSONL(w.PathForDay(0))
	require.NoError(t, err)
	require.Len(t, day0, 3)
	assert.Equal(t, []int64{1, 23, 2}, []int64{day0[0].Tick, day0[1].Tick, day0[2].Tick})

	var p workforce.KPIPayload
	require.NoError(t, json.Unmarshal(day0[1].Payload, &p))
	assert.Equal(t, 2, p.Snapshot.QueueDepth)

	day1, err := telemetry.ReadJSONL(w.PathForDay(1))
	require.NoError(t, err)
	require.Len(t, day1, 1)
	assert.Equal(t, workforce.TopicWarning, day1[0].Topic)
}

func TestReadJSONL_MissingFile(t *testing.T) {
	_, err := telemetry.ReadJSONL(filepath.Join(t.TempDir(), "nope.jsonl.zst"))
	assert.Error(t, err)
}

// =============================================================================
// WEBSOCKET HUB
// =============================================================================

func TestHub_StreamsSubscribedTopics(t *testing.T) {
	// GIVEN: A subscriber filtering on the KPI topic
	// WHEN: A warning and a KPI event are published
	// THEN: Only the KPI event arrives

	hub := telemetry.NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?topic=" + workforce.TopicKPI
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(context.Background(), []workforce.Event{warningEvent(5), kpiEvent(5, 7)}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var got struct {
		Topic   string               `json:"topic"`
		Tick    int64                `json:"tick"`
		Payload workforce.KPIPayload `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, workforce.TopicKPI, got.Topic)
	assert.Equal(t, int64(5), got.Tick)
	assert.Equal(t, 7, got.Payload.Snapshot.QueueDepth)
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub := telemetry.NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()

	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

// =============================================================================
// PROMETHEUS COLLECTOR
// =============================================================================

func TestCollector_ExposesTickMetrics(t *testing.T) {
	c := telemetry.NewCollector()
	state := workforce.NewState("seed", workforce.Catalog{})
	state.Tick = 12
	res := &workforce.TickResult{
		State: state,
		KPI:   workforce.KpiSnapshot{TasksCompleted: 3, QueueDepth: 4, Utilization: 0.5},
		Warnings: []workforce.Warning{
			{Code: workforce.WarnLowMorale, Severity: workforce.SeverityCritical},
		},
		Rejected: []workforce.RejectedIntent{{Index: 0}},
	}

	c.ObserveTick(res, 20*time.Millisecond)
	require.NoError(t, c.Publish(context.Background(), []workforce.Event{kpiEvent(12, 4), kpiEvent(13, 4)}))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	assert.Contains(t, body, "workforce_ticks_total 1")
	assert.Contains(t, body, "workforce_tick 12")
	assert.Contains(t, body, "workforce_tasks_completed_total 3")
	assert.Contains(t, body, "workforce_queue_depth 4")
	assert.Contains(t, body, "workforce_utilization 0.5")
	assert.Contains(t, body, "workforce_intents_rejected_total 1")
	assert.Contains(t, body, `workforce_warnings_total{severity="critical"} 1`)
	assert.Contains(t, body, `workforce_events_total{topic="telemetry.workforce.kpi.v1"} 2`)
	assert.Contains(t, body, "workforce_tick_duration_seconds_count 1")
}

func TestCollector_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		telemetry.NewCollector()
		telemetry.NewCollector()
	})
}
