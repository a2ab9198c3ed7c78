// Package fusion combines the local observations of team agents into one
// shared world estimate.
//
// Fuse is called once per tick. It only reads memory: each agent is locked
// in turn, its ball and obstacles copied, and the lock released. The fused
// ball is the unweighted mean of every agent's ball; the fused obstacle set
// is the plain concatenation. With no agents the ball sits on the center
// spot (6, 4.5) and there are no obstacles.
package fusion
