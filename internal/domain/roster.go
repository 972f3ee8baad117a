package domain

// SliceRoster is a Roster over the candidate list of one chatbot request.
// Lookups are exact identifier matches; the first entry wins on duplicates.
type SliceRoster map[string]ActorName

// NewSliceRoster indexes candidates by ActeurID. Blank ids are skipped.
func NewSliceRoster(candidates []Candidate) SliceRoster {
	r := make(SliceRoster, len(candidates))
	for _, c := range candidates {
		if c.ActeurID == "" {
			continue
		}
		if _, dup := r[c.ActeurID]; dup {
			continue
		}
		r[c.ActeurID] = ActorName{Nom: c.Nom, Prenom: c.Prenom}
	}
	return r
}

// FindByID implements Roster.
func (r SliceRoster) FindByID(id string) (ActorName, bool) {
	n, ok := r[id]
	return n, ok
}
