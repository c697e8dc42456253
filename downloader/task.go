package downloader

import (
	"fmt"
	"sort"
	"strings"

	"github.com/geoharvest/geoharvest/common"
)

// Task is the unit of work of the downloader: one product to fetch to one
// local path
type Task struct {
	Product  common.Product
	Provider string
	// Path of the final archive
	Path     string
	Status   common.Status
	Attempts int
	Err      error
}

// Report aggregates the terminal states of a download run
type Report struct {
	Tasks []*Task
}

// Count returns the number of tasks in the given state
func (r Report) Count(status common.Status) int {
	n := 0
	for _, task := range r.Tasks {
		if task.Status == status {
			n++
		}
	}
	return n
}

// Failed returns true when at least one task failed
func (r Report) Failed() bool {
	return r.Count(common.StatusFAILED) > 0
}

// Summary returns a per-satellite breakdown of the terminal states
func (r Report) Summary() string {
	type key struct {
		satellite string
		status    common.Status
	}
	counts := map[key]int{}
	satellites := map[string]struct{}{}
	for _, task := range r.Tasks {
		counts[key{task.Product.Constellation, task.Status}]++
		satellites[task.Product.Constellation] = struct{}{}
	}

	names := make([]string, 0, len(satellites))
	for satellite := range satellites {
		names = append(names, satellite)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, satellite := range names {
		fmt.Fprintf(&sb, "%s:", satellite)
		for _, status := range []common.Status{common.StatusDONE, common.StatusSKIPPED, common.StatusFAILED, common.StatusCANCELLED} {
			if n := counts[key{satellite, status}]; n > 0 {
				fmt.Fprintf(&sb, " %d %s", n, status)
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
