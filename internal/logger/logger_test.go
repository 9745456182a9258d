package logger

import (
	"bytes"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOutput(&buf, "debug", "json")

	l.WithField("outcome", "ok").Debug("analysis finished")

	var entry map[string]any
	require.NoError(t, sonic.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ok", entry["outcome"])
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "analysis finished", entry["msg"])
}

func TestNewWithOutputLevels(t *testing.T) {
	tests := map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		"WARN":    logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"":        logrus.InfoLevel,
		"verbose": logrus.InfoLevel,
	}
	for level, want := range tests {
		assert.Equal(t, want, NewWithOutput(&bytes.Buffer{}, level, "json").GetLevel(), level)
	}
}

func TestNewWithOutputText(t *testing.T) {
	var buf bytes.Buffer
	NewWithOutput(&buf, "info", "text").Info("started")

	assert.Contains(t, buf.String(), `msg=started`)
}
