package models

// Methods the agent exposes to the master.
const (
	MethodGetInfo      = "getInfo"
	MethodGetProcesses = "getProcesses"
	MethodSpawn        = "spawn"
	MethodKill         = "kill"
)

// Calls the agent issues to the master. Heartbeat is a round trip; the
// process lifecycle methods are fire-and-forget notifications.
const (
	MethodHeartbeat      = "heartbeat"
	MethodProcessCreated = "onProcessCreated"
	MethodProcessEnd     = "onProcessEnd"
)

// ControlStreamLabel names the multiplexed sub-stream that carries the
// JSON-RPC channel. Every other sub-stream relays child process output.
const ControlStreamLabel = "control"

// Heartbeat is the round-trip payload; the master echoes it unchanged.
type Heartbeat struct {
	Timestamp int64 `json:"timestamp"`
}

type CPUInfo struct {
	Model    string  `json:"model"`
	ClockMhz float64 `json:"clockMhz"`
}

// HostInfo is the getInfo reply: static facts about the host the agent
// runs on.
type HostInfo struct {
	Hostname    string    `json:"hostname"`
	OS          string    `json:"os"`
	Platform    string    `json:"platform"`
	Arch        string    `json:"arch"`
	Release     string    `json:"release"`
	UptimeSec   uint64    `json:"uptimeSec"`
	TotalMemory uint64    `json:"totalMemory"`
	CPUs        []CPUInfo `json:"cpus"`
}
