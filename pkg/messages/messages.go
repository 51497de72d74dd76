// Package messages renders graphs, plans and runtime state as chat-friendly text.
package messages

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/korjavin/mise/pkg/critpath"
	"github.com/korjavin/mise/pkg/models"
	"github.com/korjavin/mise/pkg/scheduler"
)

// Welcome is sent for /start without arguments and /help
const Welcome = `👋 Hi! I turn recipes into a cooking plan and tell you what to do next.

/recipe - send me a recipe (or put it right after the command)
/plan 19:30 - plan backwards from a serve time (or /plan 45m)
/begin 19:30 - start cooking the last recipe
/status - what is running, ready and waiting
/start <task> - I started a task
/done <task> - I finished a task
/late <task> - start a task anyway after its window was missed
/end - stop cooking`

// clock is the time layout used in messages
const clock = "15:04"

// Graph describes a compiled graph chain by chain
func Graph(g *models.Graph) string {
	var b strings.Builder
	title := g.Title
	if title == "" {
		title = "Recipe"
	}
	fmt.Fprintf(&b, "📋 %s: %d tasks", title, len(g.Tasks))
	if len(g.Chains) > 0 {
		fmt.Fprintf(&b, " in %d chains", len(g.Chains))
	}
	b.WriteString("\n")

	inChain := make(map[string]bool)
	for _, c := range g.Chains {
		fmt.Fprintf(&b, "\n🔗 %s", c.Name)
		if c.Parallel {
			b.WriteString(" (in parallel)")
		}
		b.WriteString("\n")
		for _, id := range c.TaskIDs {
			inChain[id] = true
			if t, ok := g.Task(id); ok {
				b.WriteString(taskLine(t))
			}
		}
		for _, d := range c.DependsOn {
			fmt.Fprintf(&b, "  ↳ after %s: %s\n", chainName(g, d.Chain), d.Reason)
		}
	}

	var rest []models.Task
	for _, t := range g.Tasks {
		if !inChain[t.ID] {
			rest = append(rest, t)
		}
	}
	if len(rest) > 0 {
		if len(g.Chains) > 0 {
			b.WriteString("\n🧩 Other steps\n")
		}
		for _, t := range rest {
			b.WriteString(taskLine(t))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func taskLine(t models.Task) string {
	line := fmt.Sprintf("  %s %s (%d min, %s)", t.ID, t.Text, t.Duration, attention(t.Attention))
	if t.Temperature != nil {
		line += fmt.Sprintf(" 🌡 %d°%s", t.Temperature.Value, t.Temperature.Unit)
	}
	if len(t.Edges) > 0 {
		preds := make([]string, len(t.Edges))
		for i, e := range t.Edges {
			preds[i] = e.Predecessor
		}
		line += " ← " + strings.Join(preds, ", ")
	}
	return line + "\n"
}

func attention(a models.Attention) string {
	switch a {
	case models.AttentionAttended:
		return "hands on"
	case models.AttentionUnattendedAfterStart:
		return "start and leave"
	case models.AttentionUnattended:
		return "hands off"
	}
	return string(a)
}

func chainName(g *models.Graph, id string) string {
	for _, c := range g.Chains {
		if c.ID == id {
			return c.Name
		}
	}
	return id
}

// Plan lists tasks by latest start against the serve time
func Plan(g *models.Graph, res critpath.Result, serve time.Time) string {
	var b strings.Builder
	if res.Feasible {
		fmt.Fprintf(&b, "🍽 Serving at %s is doable. Cooking takes %s.\n", serve.Format(clock), minutes(res.CriticalPathDuration))
	} else {
		fmt.Fprintf(&b, "😬 Serving at %s is %s too tight. Earliest is %s.\n",
			serve.Format(clock), minutes(res.Shortfall), serve.Add(res.Shortfall).Format(clock))
	}
	if !res.Converged {
		b.WriteString("⚠️ The steps depend on each other in a loop, times are approximate.\n")
	}

	ids := make([]string, 0, len(res.Timings))
	for id := range res.Timings {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, c := res.Timings[ids[i]], res.Timings[ids[j]]
		if !a.LatestStart.Equal(c.LatestStart) {
			return a.LatestStart.Before(c.LatestStart)
		}
		return ids[i] < ids[j]
	})

	b.WriteString("\n")
	for _, id := range ids {
		tm := res.Timings[id]
		text := id
		if t, ok := g.Task(id); ok {
			text = t.Text
		}
		marker := "  "
		if tm.Critical {
			marker = "🔴"
		}
		fmt.Fprintf(&b, "%s %s start by %s %s (%s)\n", marker, id, tm.LatestStart.Format(clock), text, urgency(tm.Urgency))
	}
	return strings.TrimRight(b.String(), "\n")
}

func urgency(u critpath.Urgency) string {
	switch u {
	case critpath.MustDoNow:
		return "now"
	case critpath.ShouldStartSoon:
		return "soon"
	case critpath.Flexible:
		return "some slack"
	}
	return "whenever"
}

func minutes(d time.Duration) string {
	return fmt.Sprintf("%d min", int(d.Round(time.Minute).Minutes()))
}

// Snapshot summarizes what the cook can do right now
func Snapshot(g *models.Graph, snap scheduler.Snapshot) string {
	if snap.Done() {
		return "🎉 Everything is done. Enjoy your meal!"
	}

	var b strings.Builder
	section := func(icon, title string, ids []string) {
		if len(ids) == 0 {
			return
		}
		fmt.Fprintf(&b, "%s %s\n", icon, title)
		for _, id := range ids {
			text := id
			if t, ok := g.Task(id); ok {
				text = t.Text
			}
			fmt.Fprintf(&b, "  %s %s\n", id, text)
		}
	}

	section("🔥", "Running", snap.Running)
	section("⏰", "Past planned time", snap.Overdue)
	section("✅", "Ready to start", snap.Ready)
	section("🙌", "Ready once your hands are free", snap.DriverBusy)
	section("⚠️", "Window missed", snap.Violated)
	fmt.Fprintf(&b, "⏳ %d waiting, %d of %d done", len(snap.Blocked), len(snap.Finished), len(snap.Status))
	return b.String()
}

// Event renders a runner event as a notification
func Event(ev scheduler.Event) string {
	switch ev.Kind {
	case scheduler.EventReady:
		return fmt.Sprintf("✅ You can start %s: %s\nSend /start %s", ev.Task.ID, ev.Task.Text, ev.Task.ID)
	case scheduler.EventOverdue:
		return fmt.Sprintf("⏰ %s should be done by now: %s\nSend /done %s when it is", ev.Task.ID, ev.Task.Text, ev.Task.ID)
	case scheduler.EventViolated:
		return fmt.Sprintf("⚠️ %s waited too long after its previous step: %s\nSend /late %s to start it anyway", ev.Task.ID, ev.Task.Text, ev.Task.ID)
	case scheduler.EventFinished:
		return fmt.Sprintf("👍 %s done: %s", ev.Task.ID, ev.Task.Text)
	}
	return fmt.Sprintf("%s %s", ev.Kind, ev.Task.ID)
}

// Simulation describes a simulated run
func Simulation(g *models.Graph, res scheduler.SimResult) string {
	var b strings.Builder
	if res.Completed {
		fmt.Fprintf(&b, "🧪 Simulated run takes %s, finishing at %s.\n", minutes(res.Makespan), res.End.Format(clock))
	} else {
		b.WriteString("🧪 Simulated run got stuck, some tasks can never start.\n")
	}
	fmt.Fprintf(&b, "Most hands-on tasks at once: %d\n", res.MaxAttendedRunning)
	if len(res.Violations) > 0 {
		fmt.Fprintf(&b, "Started late: %s\n", strings.Join(res.Violations, ", "))
	}
	b.WriteString("\n")
	for _, ev := range res.Events {
		text := ev.TaskID
		if t, ok := g.Task(ev.TaskID); ok {
			text = t.Text
		}
		verb := "start "
		if ev.Kind == "finish" {
			verb = "finish"
		}
		late := ""
		if ev.Forced {
			late = " (late)"
		}
		fmt.Fprintf(&b, "%s %s %s %s%s\n", ev.At.Format(clock), verb, ev.TaskID, text, late)
	}
	return strings.TrimRight(b.String(), "\n")
}
