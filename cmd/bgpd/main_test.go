// Copyright (C) 2017 Nippon Telegraph and Telephone Corporation.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, parseLogLevel("debug"))
	assert.Equal(t, logrus.WarnLevel, parseLogLevel("warning"))
	assert.Equal(t, logrus.InfoLevel, parseLogLevel(""))
	assert.Equal(t, logrus.InfoLevel, parseLogLevel("bogus"))
}

func TestSetupLoggerFormat(t *testing.T) {
	l := logrus.New()
	setupLogger(l, &options{LogLevel: "debug"})
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, l.Formatter)

	var buf bytes.Buffer
	l.SetOutput(&buf)
	l.WithField("Topic", "Peer").Info("hello")
	assert.Contains(t, buf.String(), `"Topic":"Peer"`)

	l = logrus.New()
	setupLogger(l, &options{LogPlain: true, DisableStdlog: true})
	assert.IsType(t, &logrus.TextFormatter{}, l.Formatter)
}
