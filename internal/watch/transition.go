package watch

// Transition is the ordered pair (previous persisted status, current verdict)
// evaluated after every run.
type Transition struct {
	Previous Status
	Current  Status
}

// notifyTable enumerates every transition explicitly rather than hiding the
// rule in conditionals, so all nine combinations stay auditable. Only a rise
// into BUYABLE fires a notification; every other transition updates state
// silently.
var notifyTable = map[Transition]bool{
	{Previous: StatusUnknown, Current: StatusUnknown}:       false,
	{Previous: StatusUnknown, Current: StatusBuyable}:       true,
	{Previous: StatusUnknown, Current: StatusNotBuyable}:    false,
	{Previous: StatusNotBuyable, Current: StatusUnknown}:    false,
	{Previous: StatusNotBuyable, Current: StatusBuyable}:    true,
	{Previous: StatusNotBuyable, Current: StatusNotBuyable}: false,
	{Previous: StatusBuyable, Current: StatusUnknown}:       false,
	{Previous: StatusBuyable, Current: StatusBuyable}:       false,
	{Previous: StatusBuyable, Current: StatusNotBuyable}:    false,
}

// ShouldNotify reports whether the transition from previous to current
// warrants a notification. Pairs outside the table never notify.
func ShouldNotify(previous, current Status) bool {
	return notifyTable[Transition{Previous: previous, Current: current}]
}
