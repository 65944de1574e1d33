package catalog

// State is the observable state of an asynchronous load.
//
// Loading and Err are never set together. Data survives a failed
// refresh, so a caller may see Err alongside stale Data.
type State[T any] struct {
	Data    T
	HasData bool
	Loading bool
	Err     error
}

// Spinner reports whether a blocking loading indicator should be shown:
// a load is running and there is nothing to display yet.
func (s State[T]) Spinner() bool { return s.Loading && !s.HasData }

// Failed reports whether the last load failed with nothing to fall back on.
func (s State[T]) Failed() bool { return s.Err != nil && !s.HasData }

// Phase identifies where a Trending cache is in its load cycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseHydrating
	PhaseHydratedShowingStale
	PhaseNoLocalData
	PhaseRefreshing
	PhaseFresh
	PhaseFailedKeepStale
	PhaseFailedNoData
)

var phaseNames = [...]string{
	PhaseIdle:                 "idle",
	PhaseHydrating:            "hydrating",
	PhaseHydratedShowingStale: "hydrated_showing_stale",
	PhaseNoLocalData:          "no_local_data",
	PhaseRefreshing:           "refreshing",
	PhaseFresh:                "fresh",
	PhaseFailedKeepStale:      "failed_keep_stale",
	PhaseFailedNoData:         "failed_no_data",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// Terminal reports whether p ends a load cycle.
func (p Phase) Terminal() bool {
	return p == PhaseFresh || p == PhaseFailedKeepStale || p == PhaseFailedNoData
}

// TrendingState is the State of a Trending cache plus its Phase.
type TrendingState struct {
	State[[]TrendingEntry]
	Phase Phase
}
