package jobpool

import "github.com/shirou/gopsutil/v3/mem"

// SystemMemAvailable is the production MemAvailable implementation,
// backed by gopsutil so the memory-admission gate works portably rather
// than by hand-parsing /proc/meminfo.
func SystemMemAvailable() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.Available, nil
}
