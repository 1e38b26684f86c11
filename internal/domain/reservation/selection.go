package reservation

import "sort"

// Decide picks this round's action from the candidate rows.
// Only rows inside w are considered, in ascending position. The earliest
// bookable row wins; failing that, and only when allowWaitlist is set, the
// earliest row with an open waitlist. Unreadable rows are skipped.
func Decide(rows []CandidateRow, w Window, allowWaitlist bool) Action {
	ranked := make([]CandidateRow, 0, len(rows))
	for _, r := range rows {
		if w.Contains(r.Position) {
			ranked = append(ranked, r)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Position < ranked[j].Position })

	for _, r := range ranked {
		if r.SeatAvailable() {
			return Action{Kind: ActionBook, Position: r.Position}
		}
	}
	if !allowWaitlist {
		return Action{Kind: ActionNone}
	}
	for _, r := range ranked {
		if r.WaitlistOpen() {
			return Action{Kind: ActionWaitlist, Position: r.Position}
		}
	}
	return Action{Kind: ActionNone}
}
