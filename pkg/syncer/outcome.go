package syncer

// Result classifies what happened to one order during reconciliation.
type Result int

const (
	// ResultSettled means a settlement row was written for the order.
	ResultSettled Result = iota
	// ResultSkipped means the order has no on-chain settlement yet.
	ResultSkipped
	// ResultFailed means reconciliation errored; the order is retried on
	// the next run.
	ResultFailed
)

func (r Result) String() string {
	switch r {
	case ResultSettled:
		return "settled"
	case ResultSkipped:
		return "skipped"
	case ResultFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the per-order result of a reconciliation attempt.
type Outcome struct {
	OrderID string
	Result  Result
	Err     error
}

// Tally aggregates outcomes for one chain's sync pass.
type Tally struct {
	Settled int
	Skipped int
	Failed  int
}

func tallyOutcomes(outcomes []Outcome) Tally {
	var t Tally
	for _, o := range outcomes {
		switch o.Result {
		case ResultSettled:
			t.Settled++
		case ResultSkipped:
			t.Skipped++
		case ResultFailed:
			t.Failed++
		}
	}
	return t
}
