// Package deps verifies the external tools clipforge drives.
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"clipforge/internal/config"
)

// Requirement defines an external dependency clipforge relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// FromConfig builds the requirement set for the configured tool paths.
// The upscaler and its model directory are optional: exports work without
// them, only enhance jobs need them.
func FromConfig(cfg *config.Config) []Requirement {
	return []Requirement{
		{Name: "FFmpeg", Command: cfg.FFmpegBinary(), Description: "trims, concatenates, composites, and encodes video"},
		{Name: "FFprobe", Command: cfg.FFprobeBinary(), Description: "inspects source media streams and durations"},
		{Name: "Upscaler", Command: cfg.UpscalerBinary(), Description: "AI upscaler used by enhance jobs", Optional: true},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// CheckModelsDir reports whether the upscaler model directory exists and
// is non-empty. An unconfigured directory is reported as optional-missing
// rather than an error.
func CheckModelsDir(dir string) Status {
	status := Status{
		Name:        "Upscaler models",
		Command:     strings.TrimSpace(dir),
		Description: "model weights consumed by the upscaler",
		Optional:    true,
	}
	if status.Command == "" {
		status.Detail = "models directory not configured"
		return status
	}
	entries, err := os.ReadDir(status.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("models directory unreadable: %v", err)
		return status
	}
	if len(entries) == 0 {
		status.Detail = "models directory is empty"
		return status
	}
	status.Available = true
	return status
}

// MissingRequired returns the names of required dependencies that are
// unavailable.
func MissingRequired(statuses []Status) []string {
	var missing []string
	for _, status := range statuses {
		if !status.Optional && !status.Available {
			missing = append(missing, status.Name)
		}
	}
	return missing
}
