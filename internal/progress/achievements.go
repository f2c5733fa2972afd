package progress

// Facts carries the aggregate-side values achievement conditions can
// look at, passed in by whoever processed the triggering session.
type Facts struct {
	TotalSessions int
	NewRecord     bool
}

// Achievement is an immutable catalog entry: a name and its unlock
// condition. Achievements are unlocked, never revoked.
type Achievement struct {
	Name      string
	Condition func(st *State, f Facts) bool
}

// DefaultCatalog returns the built-in achievement catalog.
func DefaultCatalog() []Achievement {
	return []Achievement{
		{
			Name: "first-session",
			Condition: func(st *State, f Facts) bool {
				return f.TotalSessions >= 1
			},
		},
		{
			Name: "personal-record",
			Condition: func(st *State, f Facts) bool {
				return f.NewRecord
			},
		},
		{
			Name: "hundred-sessions",
			Condition: func(st *State, f Facts) bool {
				return f.TotalSessions >= 100
			},
		},
		{
			Name: "week-warrior",
			Condition: func(st *State, f Facts) bool {
				return st.StreakDays >= 7
			},
		},
		{
			Name: "monthly-master",
			Condition: func(st *State, f Facts) bool {
				return st.StreakDays >= 30
			},
		},
		{
			Name: "level-5",
			Condition: func(st *State, f Facts) bool {
				return st.Level >= 5
			},
		},
		{
			Name: "level-10",
			Condition: func(st *State, f Facts) bool {
				return st.Level >= 10
			},
		},
	}
}
