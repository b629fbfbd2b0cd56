package models

// CompletionMode governs when a spawn operation is considered fulfilled:
// at process creation or at process exit.
type CompletionMode string

const (
	CompletionCreation  CompletionMode = "creation"
	CompletionExecution CompletionMode = "execution"
)

func (m CompletionMode) Valid() bool {
	return m == CompletionCreation || m == CompletionExecution
}

// ProcessView is the wire-visible view of a tracked process. It never
// carries the live process handle.
type ProcessView struct {
	Name           string         `json:"name"`
	Pid            int            `json:"pid"`
	Protected      bool           `json:"protected,omitempty"`
	CoreID         string         `json:"coreId,omitempty"`
	CompletionMode CompletionMode `json:"completionMode,omitempty"`
	ExitCode       *int           `json:"exitCode,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// ResourceUsage is a point-in-time usage sample for one pid.
type ResourceUsage struct {
	CPUPercent float64 `json:"cpuPercent"`
	MemoryRSS  uint64  `json:"memoryRss"`
}

// ProcessStatus is a ProcessView merged with live resource usage, as
// returned by getProcesses.
type ProcessStatus struct {
	ProcessView
	ResourceUsage
}

type SpawnRequest struct {
	Command        string            `json:"command"`
	Args           []string          `json:"args,omitempty"`
	Name           string            `json:"name,omitempty"`
	CoreID         string            `json:"coreId,omitempty"`
	CompletionMode CompletionMode    `json:"completionMode,omitempty"`
	StdoutLabel    string            `json:"stdoutLabel,omitempty"`
	StderrLabel    string            `json:"stderrLabel,omitempty"`
	Dir            string            `json:"dir,omitempty"`
	Env            map[string]string `json:"env,omitempty"`
}

type KillRequest struct {
	Pid    int    `json:"pid"`
	Signal string `json:"signal,omitempty"`
}
