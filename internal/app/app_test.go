package app

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhews/mhews/internal/conf"
	"github.com/mhews/mhews/internal/errors"
	"github.com/mhews/mhews/internal/risk"
)

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	s := &conf.Settings{Version: "test"}
	s.Database.Type = "sqlite"
	s.Database.SQLite.Path = filepath.Join(t.TempDir(), "mhews.db")
	s.Gateway.Type = "twilio"
	s.Gateway.Timeout = time.Second
	s.Classifier.Type = "none"
	s.Notification.DispatchTimeout = time.Second
	s.WebServer.Port = "0"
	return s
}

func TestBuild(t *testing.T) {
	svc, err := Build(testSettings(t))
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	assert.NotNil(t, svc.Store)
	assert.NotNil(t, svc.Metrics)
	assert.NotNil(t, svc.Dispatcher)
	assert.NotNil(t, svc.Engine)
	assert.NotNil(t, svc.Alerts)
	assert.Equal(t, "twilio", svc.Gateway.Name())
	assert.Equal(t, "none", svc.Classifier.Backend())

	days, err := svc.Weekly.Weekly(t.Context())
	require.NoError(t, err)
	require.Len(t, days, risk.Days)
	for _, d := range days {
		assert.Equal(t, risk.LabelNone, d.Label)
	}
}

func TestBuildReports_SkipsGatewayAndClassifier(t *testing.T) {
	s := testSettings(t)
	// Both would fail to build; reports must not touch them.
	s.Gateway.Type = "pager"
	s.Classifier.Type = "tflite"
	s.Classifier.ModelPath = filepath.Join(t.TempDir(), "missing.tflite")

	svc, err := BuildReports(s)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	assert.Nil(t, svc.Gateway)
	assert.Nil(t, svc.Classifier)
	assert.Nil(t, svc.Engine)
	days, err := svc.Weekly.Weekly(t.Context())
	require.NoError(t, err)
	assert.Len(t, days, risk.Days)
}

func TestBuildNotifier_SkipsModel(t *testing.T) {
	s := testSettings(t)
	s.Classifier.Type = "tflite"
	s.Classifier.ModelPath = filepath.Join(t.TempDir(), "missing.tflite")

	svc, err := BuildNotifier(s)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	assert.Equal(t, "twilio", svc.Gateway.Name())
	assert.Equal(t, "none", svc.Classifier.Backend())
	require.NotNil(t, svc.Engine)

	_, err = svc.Engine.ManualSend(t.Context(), "  ", nil)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	s.Gateway.Type = "pager"
	_, err = BuildNotifier(s)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestBuild_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*conf.Settings)
	}{
		{"database type", func(s *conf.Settings) { s.Database.Type = "oracle" }},
		{"gateway type", func(s *conf.Settings) { s.Gateway.Type = "pager" }},
		{"classifier type", func(s *conf.Settings) { s.Classifier.Type = "onnx" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSettings(t)
			tt.modify(s)
			svc, err := Build(s)
			require.Error(t, err)
			assert.Nil(t, svc)
			assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration), err.Error())
		})
	}
}

func TestRun_StopsOnQuit(t *testing.T) {
	s := testSettings(t)
	s.WebServer.Enabled = true
	svc, err := Build(s)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	quitChan := make(chan struct{})
	quit := sync.OnceFunc(func() { close(quitChan) })
	var wg sync.WaitGroup

	done := make(chan error, 1)
	go func() { done <- run(svc, quitChan, quit, &wg) }()

	quit()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(20 * time.Second):
		t.Fatal("run did not return after quit")
	}
}

func TestRun_InvalidBroker(t *testing.T) {
	s := testSettings(t)
	s.MQTT.Enabled = true
	s.MQTT.Broker = "tcp://"
	svc, err := Build(s)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	quitChan := make(chan struct{})
	var wg sync.WaitGroup
	err = run(svc, quitChan, sync.OnceFunc(func() { close(quitChan) }), &wg)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}
