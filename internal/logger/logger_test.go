package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput redirects logger output to a buffer and returns a cleanup
// that restores the previous writer.
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := new(bytes.Buffer)

	mu.Lock()
	prevOut, prevColor := output, useColor
	output, useColor = buf, false
	mu.Unlock()
	prevLevel := Level(currentLevel.Load())
	prevFormat, _ := currentFormat.Load().(string)
	reconfigure()

	t.Cleanup(func() {
		mu.Lock()
		output, useColor = prevOut, prevColor
		mu.Unlock()
		currentLevel.Store(int32(prevLevel))
		currentFormat.Store(prevFormat)
		reconfigure()
	})
	return buf
}

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		level   string
		visible []string
		hidden  []string
	}{
		{"DEBUG", []string{"d-msg", "i-msg", "w-msg", "e-msg"}, nil},
		{"INFO", []string{"i-msg", "w-msg", "e-msg"}, []string{"d-msg"}},
		{"WARN", []string{"w-msg", "e-msg"}, []string{"d-msg", "i-msg"}},
		{"ERROR", []string{"e-msg"}, []string{"d-msg", "i-msg", "w-msg"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf := captureOutput(t)
			SetLevel(tt.level)

			Debug("d-msg")
			Info("i-msg")
			Warn("w-msg")
			Error("e-msg")

			out := buf.String()
			for _, s := range tt.visible {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.hidden {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	l, ok := ParseLevel("warning")
	assert.True(t, ok)
	assert.Equal(t, LevelWarn, l)

	l, ok = ParseLevel(" debug ")
	assert.True(t, ok)
	assert.Equal(t, LevelDebug, l)

	_, ok = ParseLevel("verbose")
	assert.False(t, ok)

	assert.Equal(t, "UNKNOWN", Level(42).String())
	assert.Equal(t, "ERROR", LevelError.String())
}

func TestSetLevelIgnoresInvalidValues(t *testing.T) {
	buf := captureOutput(t)
	SetLevel("WARN")
	SetLevel("chatty")

	Info("hidden")
	Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestTextFormat(t *testing.T) {
	buf := captureOutput(t)
	SetLevel("INFO")

	Info("login accepted", KeyUsername, "alice", KeyStrategy, "Ldap", "note", "two words")

	out := buf.String()
	assert.Regexp(t, `^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] \[INFO\] login accepted`, out)
	assert.Contains(t, out, "username=alice")
	assert.Contains(t, out, "strategy=Ldap")
	assert.Contains(t, out, `note="two words"`)
}

func TestTextFormatRedactsSecrets(t *testing.T) {
	buf := captureOutput(t)

	Info("bind", "password", "hunter2", "userPassword", "{SSHA}x", KeyDN, "uid=alice")

	out := buf.String()
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "{SSHA}x")
	assert.Contains(t, out, "password=[REDACTED]")
	assert.Contains(t, out, "dn=uid=alice")
}

func TestWithAttrsAndGroups(t *testing.T) {
	buf := captureOutput(t)

	With(KeyStep, "HomeDirectory").WithGroup("script").Info("ran", "exit", 0)

	out := buf.String()
	assert.Contains(t, out, "step=HomeDirectory")
	assert.Contains(t, out, "script.exit=0")
}

func TestJSONFormat(t *testing.T) {
	buf := captureOutput(t)
	SetFormat("json")

	Warn("backend slow", KeyDurationMs, 12.5)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "backend slow", rec["msg"])
	assert.Equal(t, 12.5, rec[KeyDurationMs])
}

func TestContextFields(t *testing.T) {
	buf := captureOutput(t)

	lc := NewLogContext("req-1", "10.0.0.7").WithUser("uni", "bob")
	ctx := WithContext(context.Background(), lc)

	InfoCtx(ctx, "provisioned", KeyStep, "UserDetails")
	ErrorCtx(context.Background(), "no context", KeyError, errors.New("boom").Error())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "request_id=req-1")
	assert.Contains(t, lines[0], "client_ip=10.0.0.7")
	assert.Contains(t, lines[0], "namespace=uni")
	assert.Contains(t, lines[0], "username=bob")
	assert.Contains(t, lines[0], "step=UserDetails")
	assert.NotContains(t, lines[1], "request_id")
}

func TestLogContextClone(t *testing.T) {
	var nilCtx *LogContext
	assert.Nil(t, nilCtx.Clone())
	assert.Nil(t, nilCtx.WithUser("a", "b"))
	assert.Zero(t, nilCtx.DurationMs())

	orig := NewLogContext("r", "ip")
	traced := orig.WithTrace("t1", "s1")
	assert.Empty(t, orig.TraceID)
	assert.Equal(t, "t1", traced.TraceID)
	assert.Equal(t, "r", traced.RequestID)
}

func TestConcurrentLogging(t *testing.T) {
	buf := captureOutput(t)
	SetLevel("DEBUG")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				Debug("tick", "worker", n, "iter", j)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 200, strings.Count(buf.String(), "tick"))
}

func TestErrAttr(t *testing.T) {
	assert.Equal(t, "boom", Err(errors.New("boom")).Value.String())
	assert.Equal(t, "", Err(nil).Value.String())
}
