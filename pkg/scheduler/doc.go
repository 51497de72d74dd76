// Package scheduler runs a compiled graph in the kitchen.
//
// Evaluate is a pure function of the graph, the clock and the recorded
// start/finish timestamps. Session layers a logical clock and validated
// transitions on top of it, Runner re-evaluates a session on a ticker and
// reports changes, and Simulate replays a whole graph with a greedy policy.
//
// There is a single driver, the cook. An attended task holds the driver
// while it runs, so at most one attended task is ever running.
package scheduler
