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

//go:build unix && !linux

package iobuf

// mbind is a no-op outside Linux: NUMA-node binding of anonymous
// mappings has no portable unix equivalent, so non-Linux unix targets
// simply ignore numaNode and rely on the OS's default placement.
func mbind(_ []byte, _ int) error {
	return nil
}
