package fast

// Observer receives per-call pool events. Implementations must not block.
type Observer interface {
	// OnQueued signals a call placed on a servant queue.
	OnQueued(batchID, name string, servant int)
	// OnServe signals a servant picking a call up.
	OnServe(batchID, name string, servant int)
	// OnResult signals a posted result.
	OnResult(batchID, name string, result Result)
}

type nopObserver struct{}

func (nopObserver) OnQueued(string, string, int) {}
func (nopObserver) OnServe(string, string, int) {}
func (nopObserver) OnResult(string, string, Result) {}
