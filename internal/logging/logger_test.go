package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, GetLevel("DEBUG"))
	assert.Equal(t, logrus.TraceLevel, GetLevel("trace"))
	assert.Equal(t, logrus.WarnLevel, GetLevel("warning"))
	assert.Equal(t, logrus.ErrorLevel, GetLevel("error"))
	assert.Equal(t, logrus.InfoLevel, GetLevel(""))
	assert.Equal(t, logrus.InfoLevel, GetLevel("nonsense"))
}

func TestSetup_FileOutput(t *testing.T) {
	defer func() {
		logrus.SetOutput(os.Stderr)
		logrus.SetLevel(logrus.InfoLevel)
	}()

	logFile := filepath.Join(t.TempDir(), "tracker")
	Setup(LoggerSetupParams{
		LogFileName: logFile,
		LogLevel:    "debug",
	})

	logrus.Debugf("hello from test")
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())

	content, err := os.ReadFile(logFile + ".log")
	require.NoError(t, err)
	assert.Contains(t, string(content), "hello from test")
}

type captureTransport struct {
	events []*sentry.Event
}

func (c *captureTransport) Flush(time.Duration) bool { return true }
func (c *captureTransport) Configure(sentry.ClientOptions) {}
func (c *captureTransport) SendEvent(event *sentry.Event) {
	c.events = append(c.events, event)
}

func TestSentryHook_Fire(t *testing.T) {
	transport := &captureTransport{}
	client, err := sentry.NewClient(sentry.ClientOptions{Transport: transport})
	require.NoError(t, err)

	hook := &SentryHook{
		levels: []logrus.Level{logrus.ErrorLevel},
		hub:    sentry.NewHub(client, sentry.NewScope()),
	}
	assert.Equal(t, []logrus.Level{logrus.ErrorLevel}, hook.Levels())

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.AddHook(hook)

	logger.WithField("user", "u-1").Errorf("save sets failed")
	logger.Warnf("ignored by hook")

	require.Len(t, transport.events, 1)
	event := transport.events[0]
	assert.Equal(t, "save sets failed", event.Message)
	assert.Equal(t, sentry.LevelError, event.Level)
	assert.Equal(t, "u-1", event.Extra["user"])
}
