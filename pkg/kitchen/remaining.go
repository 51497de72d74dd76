package kitchen

import (
	"math"
	"time"

	"github.com/korjavin/mise/pkg/models"
	"github.com/korjavin/mise/pkg/scheduler"
)

// Remaining returns the tasks still to be done at now. Finished tasks and
// edges to them are dropped; a running task keeps only its unelapsed minutes
// and loses its edges since it has already started.
func Remaining(g *models.Graph, records scheduler.Records, now time.Time) []models.Task {
	var out []models.Task
	for _, t := range g.Tasks {
		rec := records[t.ID]
		if rec.Finished {
			continue
		}
		c := t.Clone()
		if rec.Started {
			left := c.Duration
			if !rec.StartedAt.IsZero() {
				left = int(math.Ceil(rec.StartedAt.Add(time.Duration(c.Duration) * time.Minute).Sub(now).Minutes()))
			}
			c.Duration = models.ClampDuration(left)
			c.Edges = nil
			out = append(out, c)
			continue
		}
		edges := c.Edges[:0]
		for _, e := range c.Edges {
			if !records[e.Predecessor].Finished {
				edges = append(edges, e)
			}
		}
		c.Edges = edges
		out = append(out, c)
	}
	return out
}
