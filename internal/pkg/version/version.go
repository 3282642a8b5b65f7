// Copyright (C) 2018 Nippon Telegraph and Telephone Corporation.
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

package version

import (
	"fmt"
	"runtime/debug"
)

const MAJOR uint = 0
const MINOR uint = 1
const PATCH uint = 0

// set by -ldflags "-X"
var SHA string = ""
var TAG string = ""

func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			return s.Value[:7]
		}
	}
	return ""
}

func Version() string {
	var suffix string = ""
	if len(TAG) > 0 {
		suffix = fmt.Sprintf("-%s", TAG)
	}

	sha := SHA
	if len(sha) == 0 {
		sha = vcsRevision()
	}
	if len(sha) > 0 {
		suffix = fmt.Sprintf("%s+sha.%s", suffix, sha)
	}

	return fmt.Sprintf("%d.%d.%d%s", MAJOR, MINOR, PATCH, suffix)
}
