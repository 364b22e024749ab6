// Package stopflag defines the project-wide safety switch that blocks
// mutation requests.
package stopflag

import "time"

// StopFlag gates mutation endpoints. While Stopped, the core rejects all
// mutation requests except resume, observer reads, and heartbeats.
type StopFlag struct {
	Stopped bool      `json:"stopped"`
	Reason  string    `json:"reason,omitempty"`
	By      string    `json:"by,omitempty"`
	TS      time.Time `json:"ts,omitempty"`
}
