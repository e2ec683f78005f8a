package evaluator

// Progress receives stage and error notifications. Implementations must be
// safe for concurrent use; OnError may be called from worker goroutines.
type Progress interface {
	OnStageStart(stage string, total int)
	OnStageComplete(stage string, durationMs int64, count int)
	OnError(scenarioID string, err error)
}

type NopProgress struct{}

func (NopProgress) OnStageStart(string, int) {}
func (NopProgress) OnStageComplete(string, int64, int) {}
func (NopProgress) OnError(string, error) {}
