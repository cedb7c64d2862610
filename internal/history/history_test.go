// Package history 审计存储测试
package history

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// TestAppendAndRecent 写入后按时间倒序读出
func TestAppendAndRecent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := &Record{Pool: "ci", Label: "docker/ubuntu && linux", Result: "provisioned",
		Image: "ubuntu", Host: "10.0.0.5", Slave: "buildpool-ci-ubuntu-1", DurationMS: 120}
	require.NoError(t, store.Append(ctx, first))
	assert.NotZero(t, first.ID)

	second := &Record{Pool: "ci", Label: "windows", Result: "not_applicable"}
	require.NoError(t, store.Append(ctx, second))

	records, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "not_applicable", records[0].Result) // 最新在前
	assert.Equal(t, "provisioned", records[1].Result)
	assert.Equal(t, "ubuntu", records[1].Image)
	assert.False(t, records[1].CreatedAt.IsZero())
}

// TestRecent_Limit 限制返回条数
func TestRecent_Limit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, &Record{Pool: "ci", Result: "no_capacity"}))
	}

	records, err := store.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

// TestRecent_Empty 空库返回空列表
func TestRecent_Empty(t *testing.T) {
	store := openTestStore(t)

	records, err := store.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}
