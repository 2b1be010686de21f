package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"storyboard/internal/config"
	"storyboard/internal/deps"
	"storyboard/internal/probecache"
)

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

// CheckProbeCache opens the probe cache and reports its entry count. A schema
// from another release is reported with the command that fixes it.
func CheckProbeCache(ctx context.Context, cfg *config.Config) Result {
	const name = "Probe cache"
	store, err := probecache.Open(cfg)
	if err != nil {
		if errors.Is(err, probecache.ErrSchemaMismatch) {
			return Result{Name: name, Detail: "schema mismatch (run 'storyboard cache clear')"}
		}
		return Result{Name: name, Detail: err.Error()}
	}
	if store == nil {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	defer store.Close()
	stats, err := store.Stats(ctx)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d entries, %d stale)", stats.Path, stats.Entries, stats.Stale)}
}

// CheckSystemDeps evaluates the decoder binaries named by the config.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	return deps.CheckDecoders(ctx, cfg.FFmpegBinary(), cfg.FFprobeBinary())
}
