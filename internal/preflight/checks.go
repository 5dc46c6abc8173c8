package preflight

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"relocate/internal/config"
	"relocate/internal/deps"
	"relocate/internal/fileutil"
	"relocate/internal/svcctl"
)

var (
	geteuid        = unix.Geteuid
	systemdRunning = svcctl.IsSystemdRunning
)

// CheckPrivilege verifies the process runs with an effective uid of 0.
func CheckPrivilege() Result {
	const name = "Privileges"
	if uid := geteuid(); uid != 0 {
		return Result{Name: name, Detail: fmt.Sprintf("running as uid %d (re-run with sudo)", uid)}
	}
	return Result{Name: name, Passed: true, Detail: "root"}
}

// serviceManagerResult reports whether systemd is the running init system.
func serviceManagerResult(running bool) Result {
	const name = "systemd"
	if !running {
		return Result{Name: name, Detail: "systemd is not running"}
	}
	return Result{Name: name, Passed: true, Detail: "running"}
}

// CheckBinaries converts dependency availability into preflight results.
// Optional binaries always pass and carry their status in the detail.
func CheckBinaries(cfg *config.Config) []Result {
	statuses := deps.Probe(deps.Requirements(cfg))
	results := make([]Result, 0, len(statuses))
	for _, status := range statuses {
		r := Result{Name: status.Name, Passed: !status.Blocking(), Detail: status.Detail}
		switch {
		case status.Available():
			r.Detail = status.Path
		case status.Optional:
			r.Detail = status.Detail + " (verification falls back to service state)"
		}
		results = append(results, r)
	}
	return results
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDestinationWritable verifies that the destination, or the nearest
// ancestor that exists when it has not been created yet, is writable.
func CheckDestinationWritable(name, path string) Result {
	existing, err := fileutil.NearestExisting(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	result := CheckDirectoryAccess(name, existing)
	if result.Passed && existing != path {
		result.Detail = fmt.Sprintf("%s (will be created under %s)", path, existing)
	}
	return result
}
