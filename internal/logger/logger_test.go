package logger_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/sirupsen/logrus"

	"image-compress-go/internal/logger"
)

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		want    logrus.Level
		wantErr bool
	}{
		{name: "debug", level: "debug", want: logrus.DebugLevel},
		{name: "info", level: "info", want: logrus.InfoLevel},
		{name: "upper case warn", level: "WARN", want: logrus.WarnLevel},
		{name: "error", level: "error", want: logrus.ErrorLevel},
		{name: "invalid", level: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := logger.NewLogger(logger.LoggerConfig{
				Level:   tt.level,
				Console: true,
				Stream:  &bytes.Buffer{},
			})
			if tt.wantErr {
				gt.Error(t, err)
				return
			}
			gt.NoError(t, err)
			gt.Equal(t, log.GetLevel(), tt.want)
		})
	}
}

func TestNewLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	log, err := logger.NewLogger(logger.LoggerConfig{Level: "info", Console: true, Stream: &buf})
	gt.NoError(t, err)

	logger.WithFileOperation(log, "cat.png", "compress").Info("done")

	var entry map[string]any
	gt.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	gt.Equal(t, entry["message"], any("done"))
	gt.Equal(t, entry["file"], any("cat.png"))
	gt.Equal(t, entry["operation"], any("compress"))
	gt.Value(t, entry["timestamp"]).NotNil()
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	log, err := logger.NewLogger(logger.LoggerConfig{Level: "info", FilePath: path, MaxSize: 1})
	gt.NoError(t, err)

	logger.WithOperation(log, "cleanup").Info("removed")

	data, err := os.ReadFile(path)
	gt.NoError(t, err)
	gt.String(t, string(data)).Contains("removed")
}
