// Copyright 2025 The corehttpd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tlsengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionCacheRotatesAndRetainsOldKeys(t *testing.T) {
	c, err := NewSessionCache(20*time.Millisecond, 2)
	require.NoError(t, err)
	defer c.Close()

	first := c.keys[0]
	require.NoError(t, c.rotate())
	assert.NotEqual(t, first, c.keys[0], "newest key changes after rotate")
	assert.Len(t, c.keys, 2, "retains up to keep keys")
}

func TestNewSessionCacheKeepsAtLeastOneKey(t *testing.T) {
	c, err := NewSessionCache(time.Second, 0)
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, 1, c.keep)
	assert.Len(t, c.keys, 1)
}
