package db

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/gopherchat/internal/chat"
	"github.com/suPer8Hu/gopherchat/internal/models"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestConnectSQLiteAndMigrate(t *testing.T) {
	gdb, err := Connect("sqlite", filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	require.NoError(t, Migrate(gdb))
	// idempotent
	require.NoError(t, Migrate(gdb))

	m := gdb.Migrator()
	assert.True(t, m.HasTable(&models.User{}))
	assert.True(t, m.HasTable(&chat.Message{}))
	assert.True(t, m.HasTable(&chat.Linkage{}))
	assert.True(t, m.HasIndex(&chat.Message{}, "idx_chat_msg_session"))
}

func TestConnectRejectsUnknownDriver(t *testing.T) {
	_, err := Connect("oracle", "whatever")
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestGormLoggerWritesZerolog(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)
	l := NewGormLogger(&base)
	ctx := context.Background()
	query := func() (string, int64) { return "SELECT 1", 0 }

	l.Trace(ctx, time.Now(), query, errors.New("disk I/O error"))
	l.Trace(ctx, time.Now(), query, gorm.ErrRecordNotFound)
	l.Trace(ctx, time.Now().Add(-time.Second), query, nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var failed, slow map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &failed))
	assert.Equal(t, "error", failed["level"])
	assert.Equal(t, "disk I/O error", failed["error"])
	assert.Equal(t, "SELECT 1", failed["sql"])

	require.NoError(t, json.Unmarshal([]byte(lines[1]), &slow))
	assert.Equal(t, "warn", slow["level"])
	assert.Equal(t, "slow sql query", slow["message"])

	buf.Reset()
	silent := l.LogMode(gormlogger.Silent)
	silent.Trace(ctx, time.Now(), query, errors.New("ignored"))
	silent.Error(ctx, "ignored %d", 1)
	assert.Empty(t, buf.String())
}

func TestGormLoggerPrefersRequestLogger(t *testing.T) {
	var baseBuf, reqBuf bytes.Buffer
	base := zerolog.New(&baseBuf)
	reqLogger := zerolog.New(&reqBuf).With().Str("request_id", "req-1").Logger()
	ctx := reqLogger.WithContext(context.Background())

	NewGormLogger(&base).Warn(ctx, "careful %s", "now")

	assert.Empty(t, baseBuf.String())
	assert.Contains(t, reqBuf.String(), `"request_id":"req-1"`)
	assert.Contains(t, reqBuf.String(), "careful now")
}
