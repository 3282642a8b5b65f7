package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersion(t *testing.T) {
	defer func(tag, sha string) {
		TAG, SHA = tag, sha
	}(TAG, SHA)

	TAG, SHA = "", ""
	assert.True(t, strings.HasPrefix(Version(), "0.1.0"))

	TAG, SHA = "rc1", "abcdef0"
	assert.Equal(t, "0.1.0-rc1+sha.abcdef0", Version())
}
