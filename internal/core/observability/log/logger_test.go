package log

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, LevelSilent, ParseLevel("off"))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
}

func TestLoggerLevelSharedWithChildren(t *testing.T) {
	logger := New(LevelInfo)
	child := logger.Named("canvas").With(String("player", "p1"))

	require.Equal(t, LevelInfo, child.GetLevel())
	logger.SetLevel(LevelError)
	assert.Equal(t, LevelError, child.GetLevel())

	logger.SetLevel(LevelSilent)
	assert.Equal(t, LevelSilent, logger.GetLevel())
}

func TestProvideKeepsFirstLoggerUnderConcurrentNew(t *testing.T) {
	_ = New(LevelWarn)
	def := Provide()
	require.NotNil(t, def)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = New(LevelDebug)
		}()
		go func() {
			defer wg.Done()
			assert.Same(t, def, Provide())
		}()
	}
	wg.Wait()
	assert.Same(t, def, Provide())
}

func TestNopLoggerAcceptsAllFields(t *testing.T) {
	logger := NewNop()
	assert.NotPanics(t, func() {
		logger.Info("fields",
			Bool("b", true),
			Int("i", 1),
			Int64("i64", 2),
			Uint64("u64", 3),
			Uint32("u32", 4),
			Float64("f", 1.5),
			String("s", "x"),
			Error(errors.New("boom")),
			Error(nil),
			Stringer("lvl", LevelWarn),
			Any("any", []int{1}),
		)
	})
}
