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

package filecache

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return name
}

func TestGetSmallFileReturnsInMemoryBody(t *testing.T) {
	dir := t.TempDir()
	name := "/" + writeTempFile(t, dir, "small.txt", 100)

	c := New(dir)
	res, err := c.Get(name, false, 4096)
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.Size)
	require.NotNil(t, res.Bytes)
	assert.Nil(t, res.Reader)
}

func TestGetSmallFileCompressesOnceAndReusesBody(t *testing.T) {
	dir := t.TempDir()
	name := "/" + writeTempFile(t, dir, "small.txt", 500)

	c := New(dir)
	first, err := c.Get(name, true, 4096)
	require.NoError(t, err)

	second, err := c.Get(name, true, 4096)
	require.NoError(t, err)

	assert.Equal(t, first.Bytes, second.Bytes, "same compressed body instance reused")
}

func TestGetLargeFileReturnsPooledReaderAndRoundTripsContent(t *testing.T) {
	dir := t.TempDir()
	const size = 200 * 1024 // larger than NoCacheSize, forces tiered reader
	name := "/" + writeTempFile(t, dir, "large.bin", size)

	c := New(dir)
	res, err := c.Get(name, false, 4096)
	require.NoError(t, err)
	require.NotNil(t, res.Reader)
	assert.Equal(t, int64(size), res.Size)

	got, err := io.ReadAll(res.Reader)
	require.NoError(t, err)
	assert.Len(t, got, size)
	assert.Equal(t, byte(0), got[0])
	assert.Equal(t, byte(1), got[1])

	c.Release(name, res.Reader)
}

func TestReleaseAfterCookieDroppedClosesReader(t *testing.T) {
	dir := t.TempDir()
	const size = 200 * 1024
	name := "/" + writeTempFile(t, dir, "large.bin", size)

	c := New(dir)
	res, err := c.Get(name, false, 4096)
	require.NoError(t, err)

	delete(c.cookies, name) // simulate the cookie having been dropped
	c.Release(name, res.Reader)

	// A second read from a closed *os.File-backed reader returns an
	// error rather than panicking.
	_, err = res.Reader.Read(make([]byte, 1))
	assert.Error(t, err)
}

func TestAcquireReaderReusesFromFreelist(t *testing.T) {
	dir := t.TempDir()
	const size = 200 * 1024
	name := "/" + writeTempFile(t, dir, "large.bin", size)

	c := New(dir)
	res, err := c.Get(name, false, 4096)
	require.NoError(t, err)
	c.Release(name, res.Reader)

	res2, err := c.Get(name, false, 4096)
	require.NoError(t, err)

	// SeekTo(0) on a reused reader should start from the beginning.
	got, err := io.ReadAll(res2.Reader)
	require.NoError(t, err)
	assert.Equal(t, byte(0), got[0])
}
