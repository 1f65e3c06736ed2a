// Package execs runs external commands with a controlled environment.
//
// Commands only see a small set of essential variables from the caller
// (PATH, HOME, USER, TERM, COLORTERM), plus whatever the configuration
// explicitly passes through with `env` or `envFrom`. Scheduler clients rely
// on this to forward variables such as SGE_ROOT or SGE_CELL to `qsub`.
package execs
