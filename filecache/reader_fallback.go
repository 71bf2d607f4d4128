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

//go:build !unix

package filecache

import "github.com/pkg/errors"

var errMmapUnsupported = errors.New("filecache: mmap tier unsupported on this platform")

// newMmapReader has no portable implementation outside unix; callers
// fall back to the sequential tier on error, so this simply always
// errors rather than duplicating that fallback logic here.
func newMmapReader(path string, size int64) (*mmapReader, error) {
	return nil, errMmapUnsupported
}

type mmapReader struct{}

func (*mmapReader) Read(p []byte) (int, error) { return 0, errMmapUnsupported }
func (*mmapReader) Seek0() error              { return errMmapUnsupported }
func (*mmapReader) SeekTo(offset int64) error { return errMmapUnsupported }
func (*mmapReader) Close() error              { return nil }
