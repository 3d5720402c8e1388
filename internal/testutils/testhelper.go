package testutils

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

type TestHelper struct {
	T      *testing.T
	Logger *logrus.Logger
}

// NewTestHelper creates a test helper whose logger writes through t.Log,
// so output only shows for failing tests or with -v.
func NewTestHelper(t *testing.T) *TestHelper {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel) // enable debug logs to track execution flow
	logger.SetOutput(&testWriter{t: t})
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return &TestHelper{
		T:      t,
		Logger: logger,
	}
}

// QuietLogger returns a logger that discards everything below panic
func QuietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

type testWriter struct {
	t *testing.T
}

func (w *testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
