// setaffinity_linux.go - Linux CPU affinity via sched_setaffinity(2)

//go:build linux

package pinned

import "golang.org/x/sys/unix"

// setAffinity pins the calling OS thread to cpu. Negative cpu leaves the
// scheduler mask untouched. Failures (cgroup limits, offline cores) are
// ignored: pinning is a latency hint, never a correctness requirement.
func setAffinity(cpu int) {
	if cpu < 0 {
		return
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	_ = unix.SchedSetaffinity(0, &set)
}
