package chain

import (
	"errors"
	"fmt"

	"github.com/korjavin/mise/pkg/models"
)

// ErrEdgeDropped is returned when remapping would lose an edge
var ErrEdgeDropped = errors.New("edge dropped during id remap")

// Remap rewrites task ids to c<chain>.s<step>, and x.s<n> for tasks outside
// any chain, applying one old to new map to tasks, edges and chain task lists
func Remap(tasks []models.Task, chains []models.Chain) ([]models.Task, []models.Chain, error) {
	ids := make(map[string]string, len(tasks))
	for ci, c := range chains {
		for si, id := range c.TaskIDs {
			if _, dup := ids[id]; dup {
				return nil, nil, fmt.Errorf("task %s is in more than one chain", id)
			}
			ids[id] = fmt.Sprintf("c%d.s%d", ci+1, si+1)
		}
	}
	n := 0
	for _, t := range tasks {
		if _, ok := ids[t.ID]; !ok {
			n++
			ids[t.ID] = fmt.Sprintf("x.s%d", n)
		}
	}

	before := 0
	outTasks := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		before += len(t.Edges)
		nt := t.Clone()
		nt.ID = ids[t.ID]
		nt.Edges = nt.Edges[:0]
		for _, e := range t.Edges {
			to, ok := ids[e.Predecessor]
			if !ok {
				continue
			}
			e.Predecessor = to
			nt.Edges = append(nt.Edges, e)
		}
		outTasks = append(outTasks, nt)
	}

	after := 0
	for _, t := range outTasks {
		after += len(t.Edges)
	}
	if after != before {
		return nil, nil, fmt.Errorf("%w: %d edges before, %d after", ErrEdgeDropped, before, after)
	}

	chainIDs := make(map[string]string, len(chains))
	for ci, c := range chains {
		chainIDs[c.ID] = fmt.Sprintf("c%d", ci+1)
	}
	outChains := make([]models.Chain, len(chains))
	for ci, c := range chains {
		nc := c.Clone()
		nc.ID = chainIDs[c.ID]
		for si, id := range nc.TaskIDs {
			nc.TaskIDs[si] = ids[id]
		}
		for k := range nc.DependsOn {
			nc.DependsOn[k].Chain = chainIDs[nc.DependsOn[k].Chain]
		}
		for k := range nc.Inputs {
			nc.Inputs[k].FromChain = chainIDs[nc.Inputs[k].FromChain]
		}
		outChains[ci] = nc
	}
	return outTasks, outChains, nil
}
