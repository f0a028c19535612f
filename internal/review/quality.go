package review

import "fmt"

// Quality is the reader's self-reported recall grade for one review.
type Quality int

const (
	Again   Quality = iota + 1 // No recall.
	Hard                       // Recalled with significant difficulty.
	Good                       // Recalled with some effort.
	Easy                       // Recalled easily.
	Perfect                    // Instant recall.
)

var qualityNames = [...]string{Again: "Again", Hard: "Hard", Good: "Good", Easy: "Easy", Perfect: "Perfect"}

// String returns the grade's name, or "Quality(n)" for invalid values.
func (q Quality) String() string {
	if q.IsValid() {
		return qualityNames[q]
	}
	return fmt.Sprintf("Quality(%d)", int(q))
}

// IsValid reports whether q is within the 1..5 rating scale.
func (q Quality) IsValid() bool {
	return q >= Again && q <= Perfect
}

// Correct reports whether the grade counts as a successful recall.
func (q Quality) Correct() bool {
	return q >= Good
}
