// Package sysinfo fingerprints the host so agents and generated
// commands can target the right distro and tooling.
package sysinfo

import (
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
)

// knownPackageManagers is the probe list, most specific first.
var knownPackageManagers = []string{
	"apt", "dnf", "yum", "pacman", "zypper", "apk", "nix-env", "brew", "flatpak", "snap",
}

// Fingerprint describes the host environment. All fields degrade to
// zero values on unreadable systems rather than failing.
type Fingerprint struct {
	OS              string   `json:"os"`
	Distro          string   `json:"distro"`
	DistroID        string   `json:"distro_id"`
	Kernel          string   `json:"kernel"`
	Arch            string   `json:"arch"`
	Desktop         string   `json:"desktop"`
	PackageManagers []string `json:"package_managers"`
	CPUCount        int      `json:"cpu_count"`
	RAMTotalMB      int      `json:"ram_total_mb"`
	EUID            int      `json:"euid"`
	IsRoot          bool     `json:"is_root"`
}

// Collect gathers the host fingerprint.
func Collect() Fingerprint {
	fp := Fingerprint{
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
		CPUCount: runtime.NumCPU(),
		EUID:     os.Geteuid(),
	}
	fp.IsRoot = fp.EUID == 0

	fp.Distro, fp.DistroID = osRelease()
	fp.Kernel = kernelVersion()
	fp.Desktop = desktopEnv()
	fp.PackageManagers = packageManagers()
	fp.RAMTotalMB = ramTotalMB()
	return fp
}

// Map renders the fingerprint as the loose map carried in the runtime
// context and /system-info response.
func (f Fingerprint) Map() map[string]any {
	return map[string]any{
		"os":               f.OS,
		"distro":           f.Distro,
		"distro_id":        f.DistroID,
		"kernel":           f.Kernel,
		"arch":             f.Arch,
		"desktop":          f.Desktop,
		"package_managers": f.PackageManagers,
		"cpu_count":        f.CPUCount,
		"ram_total_mb":     f.RAMTotalMB,
		"euid":             f.EUID,
		"is_root":          f.IsRoot,
	}
}

func osRelease() (name, id string) {
	raw, err := os.ReadFile("/etc/os-release")
	if err != nil {
		return "", ""
	}
	for _, line := range strings.Split(string(raw), "\n") {
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"`)
		switch key {
		case "PRETTY_NAME":
			name = value
		case "ID":
			id = value
		}
	}
	return name, id
}

func kernelVersion() string {
	raw, err := os.ReadFile("/proc/sys/kernel/osrelease")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

func desktopEnv() string {
	for _, key := range []string{"XDG_CURRENT_DESKTOP", "DESKTOP_SESSION"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

func packageManagers() []string {
	var found []string
	for _, pm := range knownPackageManagers {
		if _, err := exec.LookPath(pm); err == nil {
			found = append(found, pm)
		}
	}
	return found
}

// ramTotalMB reads MemTotal from /proc/meminfo (reported in kB).
func ramTotalMB() int {
	raw, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return 0
	}
	for _, line := range strings.Split(string(raw), "\n") {
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0
		}
		kb, err := strconv.Atoi(fields[1])
		if err != nil {
			return 0
		}
		return kb / 1024
	}
	return 0
}
