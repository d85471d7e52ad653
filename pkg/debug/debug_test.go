package debug

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategories(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]bool
	}{
		{"empty", "", map[string]bool{}},
		{"single", "tenancy", map[string]bool{"tenancy": true}},
		{"multiple", "tenancy,auth", map[string]bool{"tenancy": true, "auth": true}},
		{"all", "all", map[string]bool{"all": true}},
		{"with spaces", " tenancy , auth ", map[string]bool{"tenancy": true, "auth": true}},
		{"uppercase normalized", "TENANCY,Auth", map[string]bool{"tenancy": true, "auth": true}},
		{"empty segments", "tenancy,,auth", map[string]bool{"tenancy": true, "auth": true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseCategories(tt.input))
		})
	}
}

func TestEnabled(t *testing.T) {
	defer Init("")
	Init("tenancy,auth")

	assert.True(t, Enabled("tenancy"))
	assert.True(t, Enabled("auth"))
	assert.False(t, Enabled("mcp"))
	assert.Equal(t, []string{"auth", "tenancy"}, Categories())
}

func TestEnabled_All(t *testing.T) {
	defer Init("")
	Init("all")

	for _, cat := range []string{"tenancy", "a2a", "anything"} {
		assert.True(t, Enabled(cat), "%s should be enabled via 'all'", cat)
	}
}

func TestEnabled_Empty(t *testing.T) {
	Init("")
	assert.False(t, Enabled("tenancy"))
	assert.Empty(t, Categories())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"TRACE", LevelTrace},
		{"trace", LevelTrace},
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "this is a ...", Truncate("this is a long string", 10))
}

func TestLog_Categories(t *testing.T) {
	orig := slog.Default()
	defer slog.SetDefault(orig)
	defer Init("")

	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: LevelTrace})))

	Init("")
	Log("tenancy", "hidden message")
	Trace("tenancy", "hidden trace")
	require.Zero(t, buf.Len(), "disabled category produced output: %s", buf.String())

	Init("tenancy")
	Log("tenancy", "tenant located", "tenant_id", "acme")
	Trace("tenancy", "trace detail")
	out := buf.String()
	assert.Contains(t, out, "tenant located")
	assert.Contains(t, out, "debug=tenancy")
	assert.Contains(t, out, "trace detail")
}
