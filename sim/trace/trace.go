package trace

// EpisodeTrace collects step records for one episode. Records are
// append-only and kept in step order.
type EpisodeTrace struct {
	RewardMode string
	Records    []StepRecord
}

// NewEpisodeTrace creates an EpisodeTrace ready for recording.
func NewEpisodeTrace(rewardMode string) *EpisodeTrace {
	return &EpisodeTrace{
		RewardMode: rewardMode,
		Records:    make([]StepRecord, 0),
	}
}

// Record appends a step record.
func (et *EpisodeTrace) Record(record StepRecord) {
	et.Records = append(et.Records, record)
}

// Len is the number of recorded steps.
func (et *EpisodeTrace) Len() int {
	return len(et.Records)
}

// Last returns the most recent record, or false if nothing was recorded.
func (et *EpisodeTrace) Last() (StepRecord, bool) {
	if len(et.Records) == 0 {
		return StepRecord{}, false
	}
	return et.Records[len(et.Records)-1], true
}
