package deps

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// CheckDecoders reports the ffmpeg and ffprobe binaries frame extraction
// uses. A plain "ffprobe" is resolved next to a custom ffmpeg build first,
// so a bundled pair is reported as the pair that will actually run.
func CheckDecoders(ctx context.Context, ffmpegCommand, ffprobeCommand string) []Status {
	ffprobeCommand = strings.TrimSpace(ffprobeCommand)
	if ffprobeCommand == "" || ffprobeCommand == "ffprobe" {
		if sidecar, ok := ffprobeSidecar(ffmpegCommand); ok {
			ffprobeCommand = sidecar
		}
	}
	return CheckBinaries(ctx, []Requirement{
		{
			Name:        "FFmpeg",
			Command:     ffmpegCommand,
			Description: "Required for movie frame extraction",
			VersionArg:  "-version",
		},
		{
			Name:        "FFprobe",
			Command:     ffprobeCommand,
			Description: "Required for movie frame counts",
			VersionArg:  "-version",
		},
	})
}

// ffprobeSidecar returns the ffprobe that sits next to a path-qualified
// ffmpeg binary, when there is one.
func ffprobeSidecar(ffmpegCommand string) (string, bool) {
	ffmpegCommand = strings.TrimSpace(ffmpegCommand)
	if ffmpegCommand == "" || !strings.ContainsRune(ffmpegCommand, os.PathSeparator) {
		return "", false
	}
	resolved, err := exec.LookPath(ffmpegCommand)
	if err != nil {
		return "", false
	}
	name := "ffprobe"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	candidate := filepath.Join(filepath.Dir(resolved), name)
	info, err := os.Stat(candidate)
	if err != nil || !isExecutable(info) {
		return "", false
	}
	return candidate, true
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
