package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/SergeiKhy/routeforge/internal/models"
	"github.com/SergeiKhy/routeforge/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newQueue(t *testing.T, maxQueue int) *worker.Queue {
	t.Helper()
	q := worker.NewQueue(worker.Config{MaxQueue: maxQueue}, zap.NewNop())
	q.Start()
	t.Cleanup(q.Stop)
	return q
}

func waitStatus(t *testing.T, q *worker.Queue, id string, want models.TaskStatus) models.TaskRecord {
	t.Helper()
	var rec models.TaskRecord
	require.Eventually(t, func() bool {
		var ok bool
		rec, ok = q.Status(id)
		return ok && rec.Status == want
	}, 2*time.Second, 5*time.Millisecond, "задача %s не перешла в %s", id, want)
	return rec
}

func noop(context.Context, any) error { return nil }

func TestQueue_RunsTaskToDone(t *testing.T) {
	q := newQueue(t, 4)

	got := make(chan any, 1)
	ok := q.Submit("t1", "test", func(_ context.Context, arg any) error {
		got <- arg
		return nil
	}, "payload")
	require.True(t, ok)

	rec := waitStatus(t, q, "t1", models.TaskDone)
	assert.Equal(t, "payload", <-got)
	assert.Equal(t, "test", rec.Kind)
	require.NotNil(t, rec.StartedAt)
	require.NotNil(t, rec.FinishedAt)
	assert.False(t, rec.FinishedAt.Before(*rec.StartedAt))
	assert.Empty(t, rec.Error)
}

func TestQueue_CapturesErrorAndPanic(t *testing.T) {
	q := newQueue(t, 4)

	require.True(t, q.Submit("fail", "test", func(context.Context, any) error {
		return errors.New("boom")
	}, nil))
	require.True(t, q.Submit("panic", "test", func(context.Context, any) error {
		panic("kaboom")
	}, nil))
	require.True(t, q.Submit("after", "test", noop, nil))

	assert.Equal(t, "boom", waitStatus(t, q, "fail", models.TaskError).Error)
	assert.Contains(t, waitStatus(t, q, "panic", models.TaskError).Error, "kaboom")

	// Ошибки предыдущих задач не мешают следующим
	waitStatus(t, q, "after", models.TaskDone)
}

func TestQueue_RejectsWhenFull(t *testing.T) {
	q := newQueue(t, 2)

	started := make(chan struct{})
	release := make(chan struct{})
	require.True(t, q.Submit("blocker", "test", func(context.Context, any) error {
		close(started)
		<-release
		return nil
	}, nil))
	<-started

	// Потребитель занят: буфер вмещает ровно две задачи
	assert.True(t, q.Submit("a", "test", noop, nil))
	assert.True(t, q.Submit("b", "test", noop, nil))
	assert.False(t, q.Submit("c", "test", noop, nil))

	// Отклонённая задача не оставляет записи
	_, exists := q.Status("c")
	assert.False(t, exists)
	assert.Equal(t, 2, q.Stats().Depth)
	assert.Equal(t, 2, q.Stats().Capacity)

	close(release)
	waitStatus(t, q, "a", models.TaskDone)
	waitStatus(t, q, "b", models.TaskDone)

	// После разгрузки очередь снова принимает задачи
	assert.True(t, q.Submit("c", "test", noop, nil))
	waitStatus(t, q, "c", models.TaskDone)
}

func TestQueue_FIFO(t *testing.T) {
	q := newQueue(t, 16)

	var mu sync.Mutex
	var order []int
	for i := 0; i < 10; i++ {
		i := i
		require.True(t, q.Submit(fmt.Sprintf("t%d", i), "test", func(context.Context, any) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		}, nil))
	}

	waitStatus(t, q, "t9", models.TaskDone)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestQueue_GeneratesIDAndRejectsDuplicates(t *testing.T) {
	q := newQueue(t, 4)

	started := make(chan struct{})
	release := make(chan struct{})
	require.True(t, q.Submit("dup", "test", func(context.Context, any) error {
		close(started)
		<-release
		return nil
	}, nil))
	<-started

	assert.False(t, q.Submit("dup", "test", noop, nil), "незавершённая задача с тем же id")
	assert.True(t, q.Submit("", "test", noop, nil))
	close(release)

	waitStatus(t, q, "dup", models.TaskDone)
	assert.True(t, q.Submit("dup", "test", noop, nil), "завершённую запись можно заменить")
}

func TestQueue_StatusUnknown(t *testing.T) {
	q := newQueue(t, 1)
	_, ok := q.Status("missing")
	assert.False(t, ok)
}

func TestQueue_StopRejectsNewTasks(t *testing.T) {
	q := worker.NewQueue(worker.Config{MaxQueue: 4}, zap.NewNop())
	q.Start()
	q.Stop()
	q.Stop()

	assert.False(t, q.Submit("late", "test", noop, nil))
}

func TestQueue_Sweep(t *testing.T) {
	q := newQueue(t, 4)

	require.True(t, q.Submit("old", "test", noop, nil))
	waitStatus(t, q, "old", models.TaskDone)

	assert.Equal(t, 0, q.Sweep(time.Hour), "свежая запись остаётся")
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, q.Sweep(time.Millisecond))

	_, ok := q.Status("old")
	assert.False(t, ok)
}
