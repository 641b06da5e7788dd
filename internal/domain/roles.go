package domain

// Roles fixes which gender searches actively (seeker) and which one only
// waits in the queue (counterpart).
type Roles struct {
	Seeker      Gender
	Counterpart Gender
}

func DefaultRoles() Roles {
	return Roles{Seeker: GenderFemale, Counterpart: GenderMale}
}

func (r Roles) IsSeeker(g Gender) bool      { return g == r.Seeker }
func (r Roles) IsCounterpart(g Gender) bool { return g == r.Counterpart }

// Target returns the gender of the entries a user of gender g is paired with.
func (r Roles) Target(g Gender) (Gender, bool) {
	switch g {
	case r.Seeker:
		return r.Counterpart, true
	case r.Counterpart:
		return r.Seeker, true
	}
	return "", false
}

// WaitingStatus is the status reported for a user sitting in the waitlist.
func (r Roles) WaitingStatus(g Gender) MatchStatus {
	if r.IsSeeker(g) {
		return StatusFinding
	}
	return StatusWaiting
}
