package metrics

import (
	"encoding/json"
	"testing"
	"time"

	"cogscreen-go/internal/layout"
	"cogscreen-go/internal/tmt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func label(n int) *layout.Label {
	l := layout.Num(n)
	return &l
}

func completion() tmt.Completion {
	nodes := []layout.Node{
		{ID: 0, Label: layout.Num(1), X: 0, Y: 0},
		{ID: 1, Label: layout.Num(2), X: 100, Y: 0},
		{ID: 2, Label: layout.Num(3), X: 100, Y: 100},
	}
	return tmt.Completion{
		Variant: "A",
		Radius:  20,
		Result:  tmt.Result{Duration: 6.5, Errors: 1},
		Nodes:   nodes,
		Connections: []tmt.Connection{
			{From: nodes[0], To: nodes[1]},
			{From: nodes[1], To: nodes[2]},
		},
		Attempts: []tmt.Attempt{
			{From: layout.Num(1), To: label(2), X: 110, Y: 0, Path: 125, Elapsed: 1.5, Valid: true},
			{From: layout.Num(2), To: label(1), X: 0, Y: 0, Path: 100, Elapsed: 3.0},
			{From: layout.Num(2), To: label(3), X: 100, Y: 100, Path: 100, Elapsed: 6.5, Valid: true},
		},
		StartedAt:   time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		CompletedAt: time.Date(2024, 5, 1, 9, 0, 6, 500_000_000, time.UTC),
	}
}

func TestDragMetrics(t *testing.T) {
	m := CalculateDragMetrics(completion())

	precision := m[KeyReleasePrecision]
	require.True(t, precision.Calculated)
	assert.Equal(t, 2, precision.SampleSize)
	assert.InDelta(t, 1-(0.5+0)/2, precision.Value, 1e-9)

	efficiency := m[KeyPathEfficiency]
	require.True(t, efficiency.Calculated)
	assert.InDelta(t, (100.0/125+1)/2, efficiency.Value, 1e-9)

	assert.False(t, m[KeyPaceVariability].Calculated, "needs at least four connections")
}

func TestPaceVariability(t *testing.T) {
	c := tmt.Completion{}
	for i, at := range []float64{1, 2, 3, 4, 5} {
		c.Attempts = append(c.Attempts, tmt.Attempt{From: layout.Num(i + 1), To: label(i + 2), Elapsed: at, Valid: true})
	}
	steady := calculatePaceVariability(c)
	require.True(t, steady.Calculated)
	assert.InDelta(t, 0, steady.Value, 1e-9)

	c.Attempts[4].Elapsed = 9
	uneven := calculatePaceVariability(c)
	assert.Greater(t, uneven.Value, 0.5)
}

func TestBuildTMTResult(t *testing.T) {
	row := BuildTMTResult("user-1", completion())
	assert.Equal(t, "user-1", row.OwnerID)
	assert.Equal(t, "A", row.Variant)
	assert.Equal(t, 6.5, row.DurationSeconds)
	assert.Equal(t, 1, row.Errors)
	assert.Equal(t, []string{"1", "2", "3"}, []string(row.Path))
	require.Len(t, row.Attempts, 3)
	assert.Equal(t, "1", row.Attempts[1].ToLabel)
	assert.False(t, row.Attempts[1].Valid)

	var raw TrailRawData
	require.NoError(t, json.Unmarshal(row.RawData, &raw))
	assert.Contains(t, raw.Metrics, KeyPathEfficiency)
}

func TestSummarize(t *testing.T) {
	s := Summarize(&tmt.Result{Duration: 30, Errors: 1}, &tmt.Result{Duration: 75, Errors: 3})
	assert.True(t, s.Complete)
	assert.Equal(t, 2.5, s.BToARatio)

	partial := Summarize(nil, &tmt.Result{Duration: 75})
	assert.False(t, partial.Complete)
	assert.Zero(t, partial.BToARatio)
}
