package preflight

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"recast/internal/logging"
)

// CheckDirectoryAccess verifies that the directory exists and is readable and
// writable, creating it first when missing.
func CheckDirectoryAccess(name, path string) Result {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{
			Name:   name,
			Detail: "not configured",
			Remedy: "set the directory in the [paths] section of the config file",
		}
	}

	info, err := os.Stat(path)
	switch {
	case err != nil && os.IsNotExist(err):
		if mkErr := os.MkdirAll(path, 0o755); mkErr != nil {
			return Result{
				Name:   name,
				Detail: fmt.Sprintf("%s (error: create: %v)", path, mkErr),
				Remedy: fmt.Sprintf("create the directory manually: mkdir -p %s", path),
			}
		}
	case err != nil:
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	case !info.IsDir():
		return Result{
			Name:   name,
			Detail: fmt.Sprintf("%s (error: is not a directory)", path),
			Remedy: "remove the file or point the setting at a directory",
		}
	}

	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{
			Name:   name,
			Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err),
			Remedy: fmt.Sprintf("grant the recast user write access: chmod u+rwx %s", path),
		}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDiskSpace verifies that the filesystem holding path has at least
// minBytes available.
func CheckDiskSpace(name, path string, minBytes uint64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}

	available := stat.Bavail * uint64(stat.Bsize)
	if available < minBytes {
		return Result{
			Name: name,
			Detail: fmt.Sprintf("%s (%s free, %s required)", path,
				logging.FormatBytes(int64(available)), logging.FormatBytes(int64(minBytes))),
			Remedy: "free disk space or point output_dir at a larger volume",
		}
	}
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("%s (%s free)", path, logging.FormatBytes(int64(available))),
	}
}

// CheckNtfy verifies that the configured ntfy endpoint answers HTTP requests.
// The endpoint is fetched with GET, which never publishes a message.
func CheckNtfy(ctx context.Context, endpoint string) Result {
	const name = "Notifications"

	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return Result{
			Name:   name,
			Detail: "missing topic url",
			Remedy: "set ntfy_topic in the [notifications] section",
		}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{
			Name:   name,
			Detail: fmt.Sprintf("invalid topic url (%v)", err),
			Remedy: "use a full URL such as https://ntfy.sh/your-topic",
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{
			Name:   name,
			Detail: fmt.Sprintf("unreachable (%v)", err),
			Remedy: "check the ntfy topic URL and network connectivity",
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Result{
			Name:   name,
			Detail: "auth failed (topic requires credentials)",
			Remedy: "use an open topic; authenticated topics are not supported",
		}
	case resp.StatusCode >= 500:
		return Result{
			Name:   name,
			Detail: fmt.Sprintf("server error (%d)", resp.StatusCode),
			Remedy: "check the ntfy server status",
		}
	default:
		return Result{Name: name, Passed: true, Detail: "Reachable"}
	}
}
