package sysinfo

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollect(t *testing.T) {
	fp := Collect()

	assert.Equal(t, runtime.GOOS, fp.OS)
	assert.Equal(t, runtime.GOARCH, fp.Arch)
	assert.Greater(t, fp.CPUCount, 0)
	assert.GreaterOrEqual(t, fp.EUID, 0)
	assert.Equal(t, fp.EUID == 0, fp.IsRoot)
}

func TestMapCarriesAllFields(t *testing.T) {
	m := Collect().Map()

	for _, key := range []string{
		"os", "distro", "distro_id", "kernel", "arch", "desktop",
		"package_managers", "cpu_count", "ram_total_mb", "euid", "is_root",
	} {
		assert.Contains(t, m, key)
	}
}
