// Copyright (C) 2021 Nippon Telegraph and Telephone Corporation.
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

package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTestLogger(t *testing.T) {
	l := NewTestLogger()
	l.SetLevel(DebugLevel)
	assert.Equal(t, DebugLevel, l.GetLevel())
	assert.Equal(t, DebugLevel, l.Logger.GetLevel())

	l.Info("connected", Fields{"Topic": "Peer", "Key": "192.0.2.1"})
	l.Info("connected", Fields{"Topic": "Peer", "Key": "192.0.2.2"})
	l.Warn("dropped", nil)

	assert.Equal(t, 2, l.Count(InfoLevel, "connected"))
	assert.Equal(t, []string{"dropped"}, l.Messages(WarnLevel))
	assert.Empty(t, l.Messages(ErrorLevel))

	l.Reset()
	assert.Zero(t, l.Count(InfoLevel, "connected"))
}
