package schema

// MergeDayLogs combines two versions of the same day into one.
//
// Entries and bad entries are unioned. For an id present on both sides the
// value from a wins when it carries a defined answer, otherwise b's is used.
// XP takes the max, BareMinimumMet is OR'd, SubmittedAt keeps the later ISO
// timestamp and Admin keeps whichever summary has more tasks.
//
// merge(x, x) == x.
func MergeDayLogs(a, b DayLog) DayLog {
	out := DayLog{
		Date:           a.Date,
		Entries:        make(map[string]Entry, len(a.Entries)+len(b.Entries)),
		BadEntries:     make(map[string]BadEntry, len(a.BadEntries)+len(b.BadEntries)),
		XPEarned:       max(a.XPEarned, b.XPEarned),
		BareMinimumMet: a.BareMinimumMet || b.BareMinimumMet,
		SubmittedAt:    a.SubmittedAt,
	}
	if out.Date == "" {
		out.Date = b.Date
	}

	for id, e := range b.Entries {
		out.Entries[id] = e
	}
	for id, e := range a.Entries {
		if prev, ok := out.Entries[id]; ok && !e.Status.Defined() {
			// a has the key but no answer; keep b's unless b is also empty
			if prev.Status.Defined() {
				continue
			}
		}
		out.Entries[id] = e
	}

	for id, e := range b.BadEntries {
		out.BadEntries[id] = e
	}
	for id, e := range a.BadEntries {
		if prev, ok := out.BadEntries[id]; ok && e.Occurred == nil && prev.Occurred != nil {
			continue
		}
		out.BadEntries[id] = e
	}

	if b.SubmittedAt > out.SubmittedAt {
		out.SubmittedAt = b.SubmittedAt
	}

	switch {
	case a.Admin == nil:
		out.Admin = cloneAdmin(b.Admin)
	case b.Admin == nil:
		out.Admin = cloneAdmin(a.Admin)
	case b.Admin.Total > a.Admin.Total:
		out.Admin = cloneAdmin(b.Admin)
	default:
		out.Admin = cloneAdmin(a.Admin)
	}

	return out
}

func cloneAdmin(s *AdminSummary) *AdminSummary {
	if s == nil {
		return nil
	}
	c := *s
	if s.Tasks != nil {
		c.Tasks = append([]string(nil), s.Tasks...)
	}
	return &c
}
