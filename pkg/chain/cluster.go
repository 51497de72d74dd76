package chain

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/korjavin/mise/pkg/models"
)

var stopwords = map[string]bool{
	"with": true, "into": true, "until": true, "then": true, "them": true,
	"that": true, "this": true, "from": true, "over": true, "about": true,
	"minutes": true, "minute": true, "hour": true, "hours": true, "heat": true,
	"large": true, "medium": true, "small": true, "each": true, "your": true,
	"some": true, "well": true, "more": true, "side": true, "half": true,
	"while": true, "together": true, "remaining": true, "little": true,
	"pinch": true, "taste": true, "gently": true, "lightly": true, "finely": true,
	"through": true, "aside": true, "should": true,
}

var keywordRe = regexp.MustCompile(`[a-z]{4,}`)

// Cluster groups tasks by connectivity: every root task (one with no edges)
// seeds a cluster that grows over its dependents. Clusters sharing a dominant
// ingredient keyword are merged.
func (d *Detector) Cluster(tasks []models.Task) []models.Chain {
	if len(tasks) == 0 {
		return nil
	}
	index := make(map[string]int, len(tasks))
	for i, t := range tasks {
		index[t.ID] = i
	}
	dependents := make([][]int, len(tasks))
	for i, t := range tasks {
		for _, e := range t.Edges {
			if p, ok := index[e.Predecessor]; ok {
				dependents[p] = append(dependents[p], i)
			}
		}
	}

	owner := make([]int, len(tasks))
	for i := range owner {
		owner[i] = -1
	}
	var clusters [][]int
	for root, t := range tasks {
		if len(t.Edges) > 0 || owner[root] >= 0 {
			continue
		}
		id := len(clusters)
		members := []int{root}
		owner[root] = id
		queue := []int{root}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, dep := range dependents[cur] {
				if owner[dep] >= 0 {
					continue
				}
				owner[dep] = id
				members = append(members, dep)
				queue = append(queue, dep)
			}
		}
		clusters = append(clusters, members)
	}

	var orphans []int
	for i := range tasks {
		if owner[i] < 0 {
			orphans = append(orphans, i)
		}
	}

	clusters = d.mergeByKeyword(clusters, tasks)

	var chains []models.Chain
	for _, members := range clusters {
		chains = append(chains, d.clusterChain(members, tasks, len(chains)+1, false))
	}
	if len(orphans) > 0 {
		chains = append(chains, d.clusterChain(orphans, tasks, len(chains)+1, true))
	}
	return d.finish(chains, tasks)
}

func (d *Detector) mergeByKeyword(clusters [][]int, tasks []models.Task) [][]int {
	var out [][]int
	byKeyword := make(map[string]int)
	for _, members := range clusters {
		kw := dominantKeyword(members, tasks)
		if j, ok := byKeyword[kw]; ok && kw != "" {
			out[j] = append(out[j], members...)
			continue
		}
		if kw != "" {
			byKeyword[kw] = len(out)
		}
		out = append(out, members)
	}
	return out
}

func (d *Detector) clusterChain(members []int, tasks []models.Task, n int, orphan bool) models.Chain {
	sort.Ints(members)
	c := models.Chain{}
	for _, i := range members {
		c.TaskIDs = append(c.TaskIDs, tasks[i].ID)
		c.Outputs = appendProducts(c.Outputs, tasks[i].Outputs)
	}

	kw := dominantKeyword(members, tasks)
	_, known := d.ont.Ingredient(kw)
	verb := dominantVerb(members, tasks)
	switch {
	case kw != "" && known:
		c.Name = "Prepare " + titleCase(kw)
	case verb != "":
		c.Name = titleCase(verb) + " Phase"
	default:
		c.Name = fmt.Sprintf("Phase %d", n)
	}
	c.Purpose = c.Name

	switch {
	case orphan || len(members) == 1:
		c.Confidence = models.ConfidenceLow
	case known:
		c.Confidence = models.ConfidenceHigh
	default:
		c.Confidence = models.ConfidenceMedium
	}
	return c
}

// dominantKeyword is the most frequent non-stopword of four or more letters
// in the member texts; ties go to the word seen first
func dominantKeyword(members []int, tasks []models.Task) string {
	counts := make(map[string]int)
	var order []string
	for _, i := range members {
		for _, w := range keywordRe.FindAllString(strings.ToLower(tasks[i].Text), -1) {
			if stopwords[w] || isVerb(tasks, w) {
				continue
			}
			if counts[w] == 0 {
				order = append(order, w)
			}
			counts[w]++
		}
	}
	best := ""
	for _, w := range order {
		if counts[w] > counts[best] {
			best = w
		}
	}
	return best
}

func isVerb(tasks []models.Task, w string) bool {
	for _, t := range tasks {
		if t.Verb == w {
			return true
		}
	}
	return false
}

func dominantVerb(members []int, tasks []models.Task) string {
	counts := make(map[string]int)
	best := ""
	for _, i := range members {
		v := tasks[i].Verb
		if v == "" || v == "free_text" {
			continue
		}
		counts[v]++
		if counts[v] > counts[best] {
			best = v
		}
	}
	return best
}
