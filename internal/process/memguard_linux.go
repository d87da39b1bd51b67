//go:build linux

package process

import (
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// procStatus is the subset of /proc/<pid>/status the memory guard
// cares about. rssBytes stays zero for kernel threads, which have no
// address space to charge.
type procStatus struct {
	parent   int
	rssBytes uint64
}

// treeMemoryUsage sums the anonymous RSS of root and every process
// descended from it. It takes one snapshot of /proc per call: every
// process's status file is read once, then membership in root's tree
// is decided by following parent links through the snapshot. A process
// that vanishes mid-scan is dropped; the tree can change while it is
// being measured.
func treeMemoryUsage(root int) (uint64, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return 0, err
	}

	table := make(map[int]procStatus, len(entries))
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		status, err := readProcStatus(pid)
		if err != nil {
			continue
		}
		table[pid] = status
	}

	rootStatus, ok := table[root]
	if !ok {
		return 0, fs.ErrNotExist
	}

	total := rootStatus.rssBytes
	for pid, status := range table {
		if pid != root && inTree(table, pid, root) {
			total += status.rssBytes
		}
	}
	return total, nil
}

// inTree reports whether root is an ancestor of pid in the snapshot.
// The hop cap guards against a corrupt parent chain; real chains are a
// handful of links deep.
func inTree(table map[int]procStatus, pid, root int) bool {
	for hops := 0; hops < 128; hops++ {
		status, ok := table[pid]
		if !ok || status.parent == 0 {
			return false
		}
		if status.parent == root {
			return true
		}
		pid = status.parent
	}
	return false
}

func readProcStatus(pid int) (procStatus, error) {
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "status"))
	if err != nil {
		return procStatus{}, err
	}

	var status procStatus
	for _, line := range strings.Split(string(data), "\n") {
		if rest, ok := strings.CutPrefix(line, "PPid:"); ok {
			if v, err := strconv.Atoi(strings.TrimSpace(rest)); err == nil {
				status.parent = v
			}
			continue
		}
		if rest, ok := strings.CutPrefix(line, "RssAnon:"); ok {
			fields := strings.Fields(rest)
			if len(fields) > 0 {
				if kb, err := strconv.ParseUint(fields[0], 10, 64); err == nil {
					status.rssBytes = kb * 1024
				}
			}
		}
	}
	return status, nil
}
