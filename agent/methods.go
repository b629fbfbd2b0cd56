package agent

import (
	"context"
	"fmt"

	"github.com/creachadair/jrpc2/handler"

	"github.com/rookery-io/rook/models"
)

// methodTable builds the agent's inbound API. It is constructed once at
// agent creation and bound to every session, so a reconnect restores
// reachability without a new agent.
func (a *Agent) methodTable() handler.Map {
	return handler.Map{
		models.MethodGetInfo:      handler.New(a.handleGetInfo),
		models.MethodGetProcesses: handler.New(a.handleGetProcesses),
		models.MethodSpawn:        handler.New(a.handleSpawn),
		models.MethodKill:         handler.New(a.handleKill),
	}
}

func (a *Agent) handleGetInfo(ctx context.Context) (*models.HostInfo, error) {
	return hostInfo(ctx)
}

func (a *Agent) handleGetProcesses(ctx context.Context) ([]models.ProcessStatus, error) {
	return a.Processes(ctx)
}

func (a *Agent) handleSpawn(ctx context.Context, req *models.SpawnRequest) (*models.ProcessView, error) {
	return a.Spawn(ctx, req)
}

func (a *Agent) handleKill(ctx context.Context, req *models.KillRequest) (*models.ProcessView, error) {
	return a.Kill(req)
}

// Processes returns every tracked record merged with a live usage sample. A
// failed lookup fails the whole call; no partial results.
func (a *Agent) Processes(ctx context.Context) ([]models.ProcessStatus, error) {
	procs := a.registry.List()
	out := make([]models.ProcessStatus, 0, len(procs))
	for _, p := range procs {
		usage, err := processUsage(ctx, p.Pid())
		if err != nil {
			return nil, fmt.Errorf("usage lookup for pid %d: %w", p.Pid(), err)
		}
		out = append(out, models.ProcessStatus{
			ProcessView:   p.View(),
			ResourceUsage: *usage,
		})
	}
	return out, nil
}
