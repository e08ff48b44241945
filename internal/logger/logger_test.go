package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// snapshotGlobals records the package state and restores it when the test
// finishes, so tests can mutate level, format, and destination freely.
func snapshotGlobals(t *testing.T) {
	t.Helper()

	prevLevel := Level(currentLevel.Load())
	prevFormat, _ := currentFormat.Load().(string)
	mu.Lock()
	prevOutput := output
	prevColor := useColor
	mu.Unlock()

	t.Cleanup(func() {
		currentLevel.Store(int32(prevLevel))
		currentFormat.Store(prevFormat)
		mu.Lock()
		output = prevOutput
		useColor = prevColor
		mu.Unlock()
		rebuild()
	})
}

// captureOutput redirects logging into a buffer, with colors off.
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	snapshotGlobals(t)

	buf := new(bytes.Buffer)
	mu.Lock()
	output = buf
	useColor = false
	mu.Unlock()
	rebuild()
	return buf
}

func TestLevelFiltering(t *testing.T) {
	cases := []struct {
		level   string
		visible []string
		hidden  []string
	}{
		{"DEBUG", []string{"[DEBUG]", "[INFO]", "[WARN]", "[ERROR]"}, nil},
		{"INFO", []string{"[INFO]", "[WARN]", "[ERROR]"}, []string{"[DEBUG]"}},
		{"WARN", []string{"[WARN]", "[ERROR]"}, []string{"[DEBUG]", "[INFO]"}},
		{"ERROR", []string{"[ERROR]"}, []string{"[DEBUG]", "[INFO]", "[WARN]"}},
	}

	for _, tc := range cases {
		t.Run(tc.level, func(t *testing.T) {
			buf := captureOutput(t)
			SetLevel(tc.level)

			Debug("dispatch detail")
			Info("upload accepted")
			Warn("queue backlog growing")
			Error("job failed")

			out := buf.String()
			for _, want := range tc.visible {
				assert.Contains(t, out, want)
			}
			for _, not := range tc.hidden {
				assert.NotContains(t, out, not)
			}
		})
	}
}

func TestSetLevel(t *testing.T) {
	t.Run("ChangesTakeEffectImmediately", func(t *testing.T) {
		buf := captureOutput(t)

		SetLevel("ERROR")
		Info("suppressed")
		buf.Reset()

		SetLevel("INFO")
		Info("visible")

		assert.Contains(t, buf.String(), "visible")
		assert.NotContains(t, buf.String(), "suppressed")
	})

	t.Run("CaseInsensitive", func(t *testing.T) {
		buf := captureOutput(t)

		SetLevel("debug")
		Debug("first")
		SetLevel("DeBuG")
		Debug("second")

		assert.Contains(t, buf.String(), "first")
		assert.Contains(t, buf.String(), "second")
	})

	t.Run("InvalidNameKeepsCurrent", func(t *testing.T) {
		buf := captureOutput(t)

		SetLevel("INFO")
		SetLevel("VERBOSE")

		Debug("still filtered")
		Info("still visible")

		assert.NotContains(t, buf.String(), "still filtered")
		assert.Contains(t, buf.String(), "still visible")
	})
}

func TestSetFormat(t *testing.T) {
	t.Run("SwitchTextToJSON", func(t *testing.T) {
		buf := captureOutput(t)
		SetLevel("INFO")

		SetFormat("text")
		Info("text line")
		textOut := buf.String()
		buf.Reset()

		SetFormat("json")
		Info("json line")
		jsonOut := strings.TrimSpace(buf.String())

		assert.Contains(t, textOut, "[INFO]")
		assert.True(t, json.Valid([]byte(jsonOut)), "expected valid JSON, got %q", jsonOut)
	})

	t.Run("InvalidNameKeepsCurrent", func(t *testing.T) {
		buf := captureOutput(t)
		SetLevel("INFO")
		SetFormat("text")

		SetFormat("logfmt")
		Info("still text")

		assert.Contains(t, buf.String(), "[INFO]")
	})
}

func TestTextOutput(t *testing.T) {
	t.Run("TimestampLevelMessage", func(t *testing.T) {
		buf := captureOutput(t)
		SetLevel("INFO")
		SetFormat("text")

		Info("upload accepted")

		assert.Regexp(t, `^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] \[INFO\] upload accepted`, buf.String())
	})

	t.Run("KeyValueFields", func(t *testing.T) {
		buf := captureOutput(t)
		SetLevel("INFO")
		SetFormat("text")

		Info("job queued", "job_id", "j-1", "queue", "image_queue", "attempt", 3)

		out := buf.String()
		assert.Contains(t, out, "job_id=j-1")
		assert.Contains(t, out, "queue=image_queue")
		assert.Contains(t, out, "attempt=3")
	})

	t.Run("ValueKinds", func(t *testing.T) {
		buf := captureOutput(t)
		SetLevel("INFO")
		SetFormat("text")

		Info("delivery",
			"redelivered", true,
			"size", int64(4096),
			"elapsed", 1500*time.Millisecond,
			"ratio", 0.25,
		)

		out := buf.String()
		assert.Contains(t, out, "redelivered=true")
		assert.Contains(t, out, "size=4096")
		assert.Contains(t, out, "elapsed=1.5s")
		assert.Contains(t, out, "ratio=0.250")
	})

	t.Run("EmptyMessageStillTagged", func(t *testing.T) {
		buf := captureOutput(t)
		SetLevel("INFO")
		SetFormat("text")

		Info("")

		assert.Contains(t, buf.String(), "[INFO]")
	})
}

func TestColoredLevels(t *testing.T) {
	snapshotGlobals(t)
	buf := new(bytes.Buffer)
	InitWithWriter(buf, "DEBUG", "text", true)

	Debug("d")
	Info("i")
	Warn("w")
	Error("e")

	out := buf.String()
	assert.Contains(t, out, ansiGray+"DEBUG"+ansiReset)
	assert.Contains(t, out, ansiGreen+"INFO"+ansiReset)
	assert.Contains(t, out, ansiYellow+"WARN"+ansiReset)
	assert.Contains(t, out, ansiRed+"ERROR"+ansiReset)
}

func TestJSONOutput(t *testing.T) {
	buf := captureOutput(t)
	SetLevel("INFO")
	SetFormat("json")

	Info("file stored", "file_id", "f-1", "size", 2048)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))

	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "file stored", entry["msg"])
	assert.Equal(t, "f-1", entry["file_id"])
	assert.Equal(t, float64(2048), entry["size"])
	assert.Contains(t, entry, "time")
}

func TestWith(t *testing.T) {
	buf := captureOutput(t)
	SetLevel("INFO")
	SetFormat("text")

	l := With("component", "broker")
	l.Info("channel opened", "queue", "video_queue")

	out := buf.String()
	assert.Contains(t, out, "component=broker")
	assert.Contains(t, out, "queue=video_queue")
}

func TestInit(t *testing.T) {
	t.Run("FileOutput", func(t *testing.T) {
		snapshotGlobals(t)
		path := filepath.Join(t.TempDir(), "filemill.log")

		require.NoError(t, Init(Config{Level: "INFO", Format: "text", Output: path}))
		Info("upload accepted", "filename", "clip.mp4")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "upload accepted")
		assert.Contains(t, string(data), "filename=clip.mp4")
		assert.NotContains(t, string(data), "\033[", "log files must not carry ANSI escapes")
	})

	t.Run("FileOutputAppends", func(t *testing.T) {
		snapshotGlobals(t)
		path := filepath.Join(t.TempDir(), "filemill.log")
		require.NoError(t, os.WriteFile(path, []byte("previous run\n"), 0644))

		require.NoError(t, Init(Config{Output: path}))
		Info("fresh line")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "previous run")
		assert.Contains(t, string(data), "fresh line")
	})

	t.Run("UnwritablePath", func(t *testing.T) {
		snapshotGlobals(t)
		err := Init(Config{Output: filepath.Join(t.TempDir(), "missing", "out.log")})
		require.Error(t, err)
	})

	t.Run("EmptyConfig", func(t *testing.T) {
		snapshotGlobals(t)
		require.NoError(t, Init(Config{}))
	})
}

func TestContextFields(t *testing.T) {
	t.Run("JobFieldsOnEveryLine", func(t *testing.T) {
		buf := captureOutput(t)
		SetLevel("INFO")
		SetFormat("json")

		lc := &LogContext{
			TraceID:   "abc123",
			SpanID:    "xyz789",
			JobID:     "job-1",
			FileID:    "file-1",
			Action:    "THUMBNAIL",
			Queue:     "image_queue",
			Fleet:     "image",
			RequestID: "req-1",
			ClientIP:  "192.168.1.100",
		}
		ctx := WithContext(context.Background(), lc)

		InfoCtx(ctx, "job completed", "duration_ms", 42.5)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))

		assert.Equal(t, "abc123", entry["trace_id"])
		assert.Equal(t, "xyz789", entry["span_id"])
		assert.Equal(t, "job-1", entry["job_id"])
		assert.Equal(t, "file-1", entry["file_id"])
		assert.Equal(t, "THUMBNAIL", entry["action"])
		assert.Equal(t, "image_queue", entry["queue"])
		assert.Equal(t, "image", entry["fleet"])
		assert.Equal(t, "req-1", entry["request_id"])
		assert.Equal(t, "192.168.1.100", entry["client_ip"])
		assert.Equal(t, 42.5, entry["duration_ms"])
	})

	t.Run("EmptyFieldsOmitted", func(t *testing.T) {
		buf := captureOutput(t)
		SetLevel("INFO")
		SetFormat("json")

		ctx := WithContext(context.Background(), NewJobContext("job-2", "file-2", "ENCRYPT"))
		InfoCtx(ctx, "job started")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))

		assert.Equal(t, "job-2", entry["job_id"])
		assert.NotContains(t, entry, "queue")
		assert.NotContains(t, entry, "client_ip")
	})

	t.Run("NilContext", func(t *testing.T) {
		buf := captureOutput(t)
		SetLevel("INFO")

		require.NotPanics(t, func() {
			InfoCtx(nil, "no context")
		})
		assert.Contains(t, buf.String(), "no context")
	})

	t.Run("PlainContext", func(t *testing.T) {
		buf := captureOutput(t)
		SetLevel("INFO")

		require.NotPanics(t, func() {
			InfoCtx(context.Background(), "bare context")
		})
		assert.Contains(t, buf.String(), "bare context")
	})
}

func TestLogContext(t *testing.T) {
	t.Run("NewJobContext", func(t *testing.T) {
		lc := NewJobContext("job-1", "file-1", "THUMBNAIL")
		assert.Equal(t, "job-1", lc.JobID)
		assert.Equal(t, "file-1", lc.FileID)
		assert.Equal(t, "THUMBNAIL", lc.Action)
		assert.False(t, lc.StartTime.IsZero())
	})

	t.Run("NewRequestContext", func(t *testing.T) {
		lc := NewRequestContext("req-1", "192.168.1.100")
		assert.Equal(t, "req-1", lc.RequestID)
		assert.Equal(t, "192.168.1.100", lc.ClientIP)
		assert.False(t, lc.StartTime.IsZero())
	})

	t.Run("CopiesAreIndependent", func(t *testing.T) {
		lc := NewJobContext("job-1", "file-1", "ENCRYPT")

		withQ := lc.WithQueue("security_queue", "security")
		assert.Equal(t, "security_queue", withQ.Queue)
		assert.Equal(t, "security", withQ.Fleet)
		assert.Empty(t, lc.Queue)

		withU := lc.WithUser("user-1")
		assert.Equal(t, "user-1", withU.UserID)
		assert.Empty(t, lc.UserID)
		assert.Equal(t, lc.StartTime, withU.StartTime)

		withT := lc.WithTrace("t-1", "s-1")
		assert.Equal(t, "t-1", withT.TraceID)
		assert.Empty(t, lc.TraceID)
	})

	t.Run("NilReceiver", func(t *testing.T) {
		var lc *LogContext
		assert.Nil(t, lc.Clone())
		assert.Nil(t, lc.WithQueue("q", "f"))
		assert.Zero(t, lc.DurationMs())
	})

	t.Run("DurationMs", func(t *testing.T) {
		lc := NewJobContext("job-1", "file-1", "THUMBNAIL")
		assert.GreaterOrEqual(t, lc.DurationMs(), 0.0)

		zero := &LogContext{}
		assert.Zero(t, zero.DurationMs())
	})
}

func TestFieldHelpers(t *testing.T) {
	t.Run("Identifiers", func(t *testing.T) {
		attr := JobID("job-1")
		assert.Equal(t, KeyJobID, attr.Key)
		assert.Equal(t, "job-1", attr.Value.String())

		attr = Queue("image_queue")
		assert.Equal(t, KeyQueue, attr.Key)
		assert.Equal(t, "image_queue", attr.Value.String())
	})

	t.Run("DeliveryTag", func(t *testing.T) {
		attr := DeliveryTag(7)
		assert.Equal(t, KeyDeliveryTag, attr.Key)
		assert.Equal(t, uint64(7), attr.Value.Uint64())
	})

	t.Run("ErrNil", func(t *testing.T) {
		assert.Empty(t, Err(nil).Key)
	})

	t.Run("ErrMessage", func(t *testing.T) {
		attr := Err(errors.New("bucket unreachable"))
		assert.Equal(t, KeyError, attr.Key)
		assert.Equal(t, "bucket unreachable", attr.Value.String())
	})
}

func TestLevelString(t *testing.T) {
	cases := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.level.String())
	}
}

func TestConcurrentLogging(t *testing.T) {
	t.Run("LinesStayWhole", func(t *testing.T) {
		buf := captureOutput(t)
		SetLevel("INFO")
		SetFormat("text")

		const goroutines = 10
		const perGoroutine = 100

		var wg sync.WaitGroup
		wg.Add(goroutines)
		for i := 0; i < goroutines; i++ {
			go func(id int) {
				defer wg.Done()
				for j := 0; j < perGoroutine; j++ {
					Info("job handled", "worker", id, "iteration", j)
				}
			}(i)
		}
		wg.Wait()

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		assert.Len(t, lines, goroutines*perGoroutine)
		for _, line := range lines {
			assert.Contains(t, line, "job handled")
		}
	})

	t.Run("LevelChangesDoNotRace", func(t *testing.T) {
		// Level changes swap the handler, so the destination must tolerate
		// writes from both the old and new one.
		snapshotGlobals(t)
		InitWithWriter(io.Discard, "DEBUG", "text", false)

		const goroutines = 5
		const iterations = 50

		var wg sync.WaitGroup
		wg.Add(goroutines * 2)
		for i := 0; i < goroutines; i++ {
			go func() {
				defer wg.Done()
				for j := 0; j < iterations; j++ {
					if j%2 == 0 {
						SetLevel("DEBUG")
					} else {
						SetLevel("ERROR")
					}
				}
			}()
			go func(id int) {
				defer wg.Done()
				for j := 0; j < iterations; j++ {
					Debug("d", "id", id)
					Info("i", "id", id)
					Warn("w", "id", id)
					Error("e", "id", id)
				}
			}(i)
		}

		require.NotPanics(t, wg.Wait)
	})
}

func BenchmarkLogFiltered(b *testing.B) {
	InitWithWriter(io.Discard, "ERROR", "text", false)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Debug("job handled", "job_id", "j-1")
	}
}

func BenchmarkLogText(b *testing.B) {
	InitWithWriter(io.Discard, "DEBUG", "text", false)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Info("job handled", "job_id", "j-1", "iteration", i)
	}
}

func BenchmarkLogJSON(b *testing.B) {
	InitWithWriter(io.Discard, "DEBUG", "json", false)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Info("job handled", "job_id", "j-1", "iteration", i)
	}
}

func BenchmarkLogCtx(b *testing.B) {
	InitWithWriter(io.Discard, "DEBUG", "json", false)
	ctx := WithContext(context.Background(), NewJobContext("job-1", "file-1", "THUMBNAIL"))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		InfoCtx(ctx, "job handled", "iteration", i)
	}
}
