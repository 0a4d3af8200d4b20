// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package ldcache

import "testing"

func TestParseLdconfigOutput(t *testing.T) {
	sample := []byte(`1234 libs found in cache '/etc/ld.so.cache'
	libnvidia-ml.so.1 (libc6,x86-64) => /usr/lib64/nvidia/libnvidia-ml.so.1
	libmpi.so.40 (libc6,x86-64) => /opt/openmpi/lib/libmpi.so.40
	libmpi.so.40 (libc6,x86-64) => /opt/openmpi/lib/old/libmpi.so.40
`)
	cache := parseLdconfigOutput(sample)

	if got := cache["libnvidia-ml.so.1"]; got != "/usr/lib64/nvidia/libnvidia-ml.so.1" {
		t.Errorf("unexpected path for libnvidia-ml.so.1: %s", got)
	}
	if got := cache["libmpi.so.40"]; got != "/opt/openmpi/lib/libmpi.so.40" {
		t.Errorf("expected first match kept, got %s", got)
	}
}
