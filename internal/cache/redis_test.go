package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/booth-access/internal/service"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ service.FailureCounter = (*FailureWindow)(nil)

var now = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

// sequentialIDs returns a generator yielding id-1, id-2, ...
func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return "id-" + strconv.Itoa(n)
	}
}

func TestFailureWindow_RecordFailure(t *testing.T) {
	db, mock := redismock.NewClientMock()
	w := NewFailureWindow(db, time.Hour)
	w.newID = sequentialIDs()

	mock.ExpectTxPipeline()
	mock.ExpectZAdd("code_failures:10.0.0.1", redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: strconv.FormatInt(now.UnixNano(), 10) + ":id-1",
	}).SetVal(1)
	mock.ExpectExpire("code_failures:10.0.0.1", time.Hour).SetVal(true)
	mock.ExpectTxPipelineExec()

	err := w.RecordFailure(context.Background(), "10.0.0.1", now)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFailureWindow_SameInstantFailuresStayDistinct(t *testing.T) {
	db, mock := redismock.NewClientMock()
	w := NewFailureWindow(db, time.Hour)
	w.newID = sequentialIDs()
	stamp := strconv.FormatInt(now.UnixNano(), 10)

	for _, member := range []string{stamp + ":id-1", stamp + ":id-2"} {
		mock.ExpectTxPipeline()
		mock.ExpectZAdd("code_failures:10.0.0.1", redis.Z{
			Score:  float64(now.UnixMilli()),
			Member: member,
		}).SetVal(1)
		mock.ExpectExpire("code_failures:10.0.0.1", time.Hour).SetVal(true)
		mock.ExpectTxPipelineExec()
	}

	require.NoError(t, w.RecordFailure(context.Background(), "10.0.0.1", now))
	require.NoError(t, w.RecordFailure(context.Background(), "10.0.0.1", now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFailureWindow_DefaultMembersAreUnique(t *testing.T) {
	w := NewFailureWindow(nil, time.Hour)
	assert.NotEqual(t, w.failureMember(now), w.failureMember(now))
}

func TestFailureWindow_Failures(t *testing.T) {
	db, mock := redismock.NewClientMock()
	w := NewFailureWindow(db, time.Hour)
	since := now.Add(-time.Hour)
	pivot := now.Add(-40 * time.Minute)

	mock.ExpectTxPipeline()
	mock.ExpectZRemRangeByScore("code_failures:10.0.0.1", "-inf", strconv.FormatInt(since.UnixMilli(), 10)).SetVal(2)
	mock.ExpectZCard("code_failures:10.0.0.1").SetVal(5)
	mock.ExpectZRevRangeWithScores("code_failures:10.0.0.1", 3, 3).SetVal([]redis.Z{
		{Score: float64(pivot.UnixMilli()), Member: strconv.FormatInt(pivot.UnixNano(), 10) + ":x"},
	})
	mock.ExpectTxPipelineExec()

	count, got, err := w.Failures(context.Background(), "10.0.0.1", since, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
	assert.True(t, pivot.Equal(got), "pivot = %s", got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFailureWindow_NoFailures(t *testing.T) {
	db, mock := redismock.NewClientMock()
	w := NewFailureWindow(db, time.Hour)
	since := now.Add(-time.Hour)

	mock.ExpectTxPipeline()
	mock.ExpectZRemRangeByScore("code_failures:10.0.0.2", "-inf", strconv.FormatInt(since.UnixMilli(), 10)).SetVal(0)
	mock.ExpectZCard("code_failures:10.0.0.2").SetVal(0)
	mock.ExpectZRevRangeWithScores("code_failures:10.0.0.2", 0, 0).SetVal([]redis.Z{})
	mock.ExpectTxPipelineExec()

	count, got, err := w.Failures(context.Background(), "10.0.0.2", since, 0)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.True(t, got.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFailureWindow_PropagatesRedisErrors(t *testing.T) {
	db, _ := redismock.NewClientMock()
	w := NewFailureWindow(db, time.Hour)

	// No expectations: every command fails.
	err := w.RecordFailure(context.Background(), "10.0.0.1", now)
	assert.Error(t, err)

	_, _, err = w.Failures(context.Background(), "10.0.0.1", now.Add(-time.Hour), 0)
	assert.Error(t, err)
}
