package griot_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/griotdb/griot"
)

// --- test doubles ---

// mockAppender captures appended records and returns a preconfigured error.
type mockAppender struct {
	records   []*griot.Record
	appendErr error
}

func (m *mockAppender) Append(_ context.Context, rec *griot.Record) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.records = append(m.records, rec)
	return nil
}

// fixedClock always reports the same instant.
type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

// mockObserver counts capture outcomes.
type mockObserver struct {
	recorded   []griot.Action
	suppressed int
	failures   []string
	latencies  []time.Duration
}

func (m *mockObserver) CaptureRecorded(action griot.Action) { m.recorded = append(m.recorded, action) }
func (m *mockObserver) CaptureSuppressed()                  { m.suppressed++ }
func (m *mockObserver) CaptureFailed(reason string)         { m.failures = append(m.failures, reason) }
func (m *mockObserver) CaptureLatency(d time.Duration)      { m.latencies = append(m.latencies, d) }

// --- fixtures ---

var (
	testClockTime = time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC)
	testTxTime    = time.Date(2025, time.March, 10, 9, 29, 58, 0, time.UTC)
	testStmtTime  = time.Date(2025, time.March, 10, 9, 29, 59, 0, time.UTC)
)

func testTable(cfg griot.TableConfig) *griot.InstrumentedTable {
	return &griot.InstrumentedTable{
		ID:         uuid.New(),
		SchemaName: "public",
		TableName:  "accounts",
		RelationID: 16384,
		Config:     cfg,
		Active:     true,
	}
}

func testSession() griot.SessionInfo {
	return griot.SessionInfo{
		Actor:         "svc:billing",
		TransactionID: 812,
		Client: griot.ClientContext{
			ApplicationName: "billing-worker",
			ClientAddr:      "10.0.0.8",
			ClientPort:      52114,
		},
	}
}

func rowEvent(tbl *griot.InstrumentedTable, action griot.Action, oldImage, newImage griot.RowImage) griot.Event {
	return griot.Event{
		Table:         tbl,
		Action:        action,
		OldImage:      oldImage,
		NewImage:      newImage,
		StatementText: "UPDATE accounts SET balance = balance + 1",
		Session:       testSession(),
		TxTime:        testTxTime,
		StatementTime: testStmtTime,
	}
}

// --- record shell ---

func TestHook_Capture_RecordShell(t *testing.T) {
	t.Parallel()

	appender := &mockAppender{}
	hook := griot.NewHook(appender, fixedClock{at: testClockTime}, nil)
	tbl := testTable(griot.DefaultTableConfig())

	err := hook.Capture(context.Background(), rowEvent(tbl, griot.ActionInsert, nil, griot.RowImage{"id": int64(1)}))
	require.NoError(t, err)
	require.Len(t, appender.records, 1)

	rec := appender.records[0]
	assert.Equal(t, "public", rec.SchemaName)
	assert.Equal(t, "accounts", rec.TableName)
	assert.Equal(t, int64(16384), rec.RelationID)
	assert.Equal(t, "svc:billing", rec.Actor)
	assert.Equal(t, testTxTime, rec.TxTime)
	assert.Equal(t, testStmtTime, rec.StatementTime)
	assert.Equal(t, testClockTime, rec.ClockTime)
	assert.Equal(t, int64(812), rec.TransactionID)
	assert.Equal(t, "billing-worker", rec.Client.ApplicationName)
	assert.Equal(t, "10.0.0.8", rec.Client.ClientAddr)
	assert.Equal(t, int32(52114), rec.Client.ClientPort)
	assert.Equal(t, "UPDATE accounts SET balance = balance + 1", rec.StatementText)
	assert.False(t, rec.StatementLevel)
}

func TestHook_Capture_StatementTextCleared(t *testing.T) {
	t.Parallel()

	appender := &mockAppender{}
	hook := griot.NewHook(appender, fixedClock{at: testClockTime}, nil)

	cfg := griot.DefaultTableConfig()
	cfg.CaptureStatementText = false
	tbl := testTable(cfg)

	err := hook.Capture(context.Background(), rowEvent(tbl, griot.ActionInsert, nil, griot.RowImage{"id": int64(1)}))
	require.NoError(t, err)
	require.Len(t, appender.records, 1)

	assert.Empty(t, appender.records[0].StatementText)
}

// --- row-level payloads ---

func TestHook_Capture_RowLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		action      griot.Action
		oldImage    griot.RowImage
		newImage    griot.RowImage
		wantImage   griot.RowImage
		wantChanged griot.RowImage
	}{
		{
			name:      "insert keeps new image",
			action:    griot.ActionInsert,
			newImage:  griot.RowImage{"id": int64(1), "name": "alice"},
			wantImage: griot.RowImage{"id": int64(1), "name": "alice"},
		},
		{
			name:      "delete keeps old image",
			action:    griot.ActionDelete,
			oldImage:  griot.RowImage{"id": int64(2), "name": "bob"},
			wantImage: griot.RowImage{"id": int64(2), "name": "bob"},
		},
		{
			name:        "update keeps old image and changed fields",
			action:      griot.ActionUpdate,
			oldImage:    griot.RowImage{"id": int64(3), "name": "carol"},
			newImage:    griot.RowImage{"id": int64(3), "name": "caroline"},
			wantImage:   griot.RowImage{"id": int64(3), "name": "carol"},
			wantChanged: griot.RowImage{"name": "caroline"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			appender := &mockAppender{}
			obs := &mockObserver{}
			hook := griot.NewHook(appender, fixedClock{at: testClockTime}, obs)
			tbl := testTable(griot.DefaultTableConfig())

			err := hook.Capture(context.Background(), rowEvent(tbl, tt.action, tt.oldImage, tt.newImage))
			require.NoError(t, err)
			require.Len(t, appender.records, 1)

			rec := appender.records[0]
			assert.Equal(t, tt.action, rec.Action)
			assert.Equal(t, tt.wantImage, rec.RowImage)
			assert.Equal(t, tt.wantChanged, rec.ChangedFields)
			assert.False(t, rec.StatementLevel)
			assert.Equal(t, []griot.Action{tt.action}, obs.recorded)
		})
	}
}

func TestHook_Capture_UpdateSuppressed(t *testing.T) {
	t.Parallel()

	appender := &mockAppender{}
	obs := &mockObserver{}
	hook := griot.NewHook(appender, fixedClock{at: testClockTime}, obs)

	cfg := griot.DefaultTableConfig()
	cfg.IgnoredColumns = []string{"updated_at"}
	tbl := testTable(cfg)

	oldImage := griot.RowImage{"id": int64(1), "updated_at": "t0"}
	newImage := griot.RowImage{"id": int64(1), "updated_at": "t1"}

	err := hook.Capture(context.Background(), rowEvent(tbl, griot.ActionUpdate, oldImage, newImage))
	require.NoError(t, err)

	assert.Empty(t, appender.records)
	assert.Equal(t, 1, obs.suppressed)
	assert.Empty(t, obs.recorded)
}

// --- statement-level payloads ---

func TestHook_Capture_StatementLevel(t *testing.T) {
	t.Parallel()

	for _, action := range []griot.Action{
		griot.ActionInsert, griot.ActionUpdate, griot.ActionDelete, griot.ActionBulkClear,
	} {
		action := action
		t.Run(string(action), func(t *testing.T) {
			t.Parallel()

			appender := &mockAppender{}
			hook := griot.NewHook(appender, fixedClock{at: testClockTime}, nil)
			tbl := testTable(griot.DefaultTableConfig())

			ev := rowEvent(tbl, action, griot.RowImage{"id": int64(1)}, griot.RowImage{"id": int64(2)})
			ev.StatementLevel = true

			err := hook.Capture(context.Background(), ev)
			require.NoError(t, err)
			require.Len(t, appender.records, 1)

			rec := appender.records[0]
			assert.True(t, rec.StatementLevel)
			assert.Nil(t, rec.RowImage)
			assert.Nil(t, rec.ChangedFields)
		})
	}
}

// --- failure paths ---

func TestHook_Capture_UnknownPairIsConfigError(t *testing.T) {
	t.Parallel()

	appender := &mockAppender{}
	obs := &mockObserver{}
	hook := griot.NewHook(appender, fixedClock{at: testClockTime}, obs)
	tbl := testTable(griot.DefaultTableConfig())

	// Row-level bulk-clear has no capture path.
	err := hook.Capture(context.Background(), rowEvent(tbl, griot.ActionBulkClear, nil, nil))
	require.Error(t, err)

	var cfgErr *griot.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, griot.ActionBulkClear, cfgErr.Action)
	assert.False(t, cfgErr.StatementLevel)

	assert.Empty(t, appender.records)
	assert.Equal(t, []string{"config"}, obs.failures)
}

func TestHook_Capture_AppendFailure(t *testing.T) {
	t.Parallel()

	appendErr := errors.New("partition gone")
	appender := &mockAppender{appendErr: appendErr}
	obs := &mockObserver{}
	hook := griot.NewHook(appender, fixedClock{at: testClockTime}, obs)
	tbl := testTable(griot.DefaultTableConfig())

	err := hook.Capture(context.Background(), rowEvent(tbl, griot.ActionInsert, nil, griot.RowImage{"id": int64(1)}))
	require.Error(t, err)
	assert.ErrorIs(t, err, appendErr)
	assert.Equal(t, []string{"append"}, obs.failures)
	assert.Empty(t, obs.recorded)
}
