package safety

import (
	"github.com/ethereum/go-ethereum/metrics"
)

// Metrics mirrors the monotonic-counter-only sink spec.md §6 requires: no
// read path lives in the kernel, only increments at the three call sites
// that can produce a signature.
var (
	metricSignProposal         = metrics.NewRegisteredCounter("consensus/safety/sign_proposal", nil)
	metricRequestedSignTimeout = metrics.NewRegisteredCounter("consensus/safety/requested_sign_timeout", nil)
	metricSignTimeout          = metrics.NewRegisteredCounter("consensus/safety/sign_timeout", nil)
)
