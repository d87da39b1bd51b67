//go:build linux

package process

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/containerd/cgroups"
	"github.com/containerd/cgroups/v3/cgroup2"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// cgroupV2Available reports whether the host's unified hierarchy is
// mounted; callers get v2 when it is and v1 otherwise, without having
// to know which cgroup version the host runs.
func cgroupV2Available() bool {
	_, err := os.Stat("/sys/fs/cgroup/cgroup.controllers")
	return err == nil
}

// NewCgroupIsolation returns an IsolationPolicy that places the step's
// process into its own cgroup with the given CPU share and memory
// ceiling (in bytes). name is used as a prefix for the generated
// cgroup name.
func NewCgroupIsolation(cpuShares uint64, memoryLimitBytes int64, name string) IsolationPolicy {
	if cgroupV2Available() {
		return &cgroupV2Isolation{
			cpuWeight: cpuShares,
			memory:    memoryLimitBytes,
			name:      name,
		}
	}
	return &cgroupV1Isolation{
		cpu:    cpuShares,
		memory: memoryLimitBytes,
		name:   name,
	}
}

type cgroupV1Isolation struct {
	cpu     uint64
	memory  int64
	name    string
	control cgroups.Cgroup
}

func (c *cgroupV1Isolation) Setup(ctx context.Context, pid uint64) error {
	name := fmt.Sprintf("/rlci-%s-%d-%d", c.name, time.Now().UnixNano(), rand.Intn(10000))
	control, err := cgroups.New(
		cgroups.V1,
		cgroups.StaticPath(name),
		&specs.LinuxResources{
			CPU:    &specs.LinuxCPU{Shares: &c.cpu},
			Memory: &specs.LinuxMemory{Limit: &c.memory},
		},
	)
	if err != nil {
		return err
	}
	if err := control.Add(cgroups.Process{Pid: int(pid)}); err != nil {
		_ = control.Delete()
		return fmt.Errorf("adding pid %d to cgroup %s: %w", pid, name, err)
	}
	c.control = control
	return nil
}

func (c *cgroupV1Isolation) Teardown(ctx context.Context) error {
	if c.control == nil {
		return nil
	}
	return c.control.Delete()
}

type cgroupV2Isolation struct {
	cpuWeight uint64
	memory    int64
	name      string
	manager   *cgroup2.Manager
}

func (c *cgroupV2Isolation) Setup(ctx context.Context, pid uint64) error {
	path := fmt.Sprintf("/rlci-%s-%d-%d", c.name, time.Now().UnixNano(), rand.Intn(10000))
	weight := c.cpuWeight
	resources := &cgroup2.Resources{
		CPU:    &cgroup2.CPU{Weight: &weight},
		Memory: &cgroup2.Memory{Max: &c.memory},
	}
	manager, err := cgroup2.NewManager("/sys/fs/cgroup", path, resources)
	if err != nil {
		return fmt.Errorf("creating cgroup manager: %w", err)
	}
	if err := manager.AddProc(pid); err != nil {
		_ = manager.Delete()
		return fmt.Errorf("adding pid %d to cgroup %s: %w", pid, path, err)
	}
	c.manager = manager
	return nil
}

func (c *cgroupV2Isolation) Teardown(ctx context.Context) error {
	if c.manager == nil {
		return nil
	}
	return c.manager.Delete()
}
