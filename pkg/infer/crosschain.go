package infer

import (
	"github.com/korjavin/mise/pkg/models"
)

// DetachParallel removes edges that tie a parallel chain to the task flow of
// another chain. Edges carrying a product are kept.
func DetachParallel(tasks []models.Task, chains []models.Chain) []models.Task {
	owner := chainIndex(chains)
	parallel := make(map[string]bool)
	for _, c := range chains {
		if c.Parallel {
			parallel[c.ID] = true
		}
	}

	out := models.CloneTasks(tasks)
	for idx := range out {
		t := &out[idx]
		from, ok := owner[t.ID]
		if !ok || !parallel[from] {
			continue
		}
		kept := t.Edges[:0]
		for _, e := range t.Edges {
			to, chained := owner[e.Predecessor]
			if chained && to != from && e.Reason != models.ReasonProduct {
				continue
			}
			kept = append(kept, e)
		}
		t.Edges = kept
	}
	return out
}

// CrossChain links the first task of every chain to the last task of each
// chain it depends on
func (i *Inferencer) CrossChain(tasks []models.Task, chains []models.Chain) []models.Task {
	out := models.CloneTasks(tasks)
	pos := make(map[string]int, len(out))
	for idx, t := range out {
		pos[t.ID] = idx
	}
	byID := make(map[string]models.Chain, len(chains))
	for _, c := range chains {
		byID[c.ID] = c
	}

	for _, c := range chains {
		if len(c.TaskIDs) == 0 {
			continue
		}
		first, ok := pos[c.TaskIDs[0]]
		if !ok {
			continue
		}
		for _, dep := range c.DependsOn {
			src, ok := byID[dep.Chain]
			if !ok || len(src.TaskIDs) == 0 {
				i.logger.Warn("Chain %s depends on unknown chain %s", c.ID, dep.Chain)
				continue
			}
			last, ok := pos[src.TaskIDs[len(src.TaskIDs)-1]]
			if !ok {
				continue
			}
			var product *models.Product
			if n := len(out[last].Outputs); n > 0 {
				p := out[last].Outputs[n-1]
				product = &p
			}
			addEdge(&out[first], out[last], models.FinishToStart, product, models.ReasonChain)
		}
	}
	return out
}

func chainIndex(chains []models.Chain) map[string]string {
	owner := make(map[string]string)
	for _, c := range chains {
		for _, id := range c.TaskIDs {
			owner[id] = c.ID
		}
	}
	return owner
}
