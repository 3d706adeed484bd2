package orders

type Status string

const (
	StatusPending Status = "pending"
)

// validNext lists the transitions this service may perform. Orders are
// created pending and nothing here moves them further; fulfilment owns the
// rest of the lifecycle.
var validNext = map[Status]map[Status]bool{
	StatusPending: {},
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}
