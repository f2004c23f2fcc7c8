// Copyright (c) 2023 The winsync Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestCreateLoggerAsLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "winsync.log")
	logger, flush, err := CreateLoggerAsLocalFile(path, zapcore.DebugLevel, WithMaxSize(1), WithMaxBackups(1))
	require.NoError(t, err)
	logger.Debugf("probe line %d", 1)
	require.NoError(t, flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "probe line 1")
}

func TestCreateLoggerRejectsEmptyPath(t *testing.T) {
	_, _, err := CreateLoggerAsLocalFile("", zapcore.InfoLevel)
	require.Error(t, err)
}

func TestLogLevelDefault(t *testing.T) {
	if os.Getenv("WINSYNC_LOGGING_LEVEL") != "" {
		t.Skip("level overridden by environment")
	}
	assert.Equal(t, zapcore.WarnLevel.String(), LogLevel())
}
