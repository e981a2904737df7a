package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		DebugLevel: zapcore.DebugLevel,
		InfoLevel:  zapcore.InfoLevel,
		" WARN ":   zapcore.WarnLevel,
		ErrorLevel: zapcore.ErrorLevel,
		"verbose":  zapcore.DebugLevel,
		"":         zapcore.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in), "parseLevel(%q)", in)
	}
}

func TestNew_Levels(t *testing.T) {
	l := New(WarnLevel, FormatJSON)
	assert.False(t, l.Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Desugar().Core().Enabled(zapcore.WarnLevel))

	l = New(DebugLevel, FormatConsole)
	assert.True(t, l.Desugar().Core().Enabled(zapcore.DebugLevel))
}

func TestGet_IsSingleton(t *testing.T) {
	a := Get(InfoLevel, FormatConsole)
	b := Get(DebugLevel, FormatJSON)
	assert.Same(t, a, b)
}

func TestNopAndNamed(t *testing.T) {
	l := Nop().Named("executor")
	if l == nil || l.SugaredLogger == nil {
		t.Fatalf("expected usable logger")
	}
	l.Infow("discarded", "tick", 1)
}
