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

//go:build linux

package iobuf

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// mbind pins region to a single NUMA node using MPOL_BIND, mirroring
// the reservation-time NUMA affinity spec.md §3 requires of
// BlockFactory on NUMA systems. Implemented as a raw syscall since
// golang.org/x/sys/unix does not expose a typed Mbind wrapper on every
// architecture.
func mbind(region []byte, node int) error {
	const mplBind = 2 // MPOL_BIND
	mask := uint64(1) << uint(node)

	_, _, errno := unix.Syscall6(
		unix.SYS_MBIND,
		uintptr(unsafe.Pointer(&region[0])),
		uintptr(len(region)),
		uintptr(mplBind),
		uintptr(unsafe.Pointer(&mask)),
		64,
		0,
	)
	if errno != 0 {
		return errno
	}
	return nil
}
