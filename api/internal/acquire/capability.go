package acquire

// Capabilities is the result of feature detection on the client.
type Capabilities struct {
	Camera bool
	Speech bool
}

// Affordance is a control the client may render.
type Affordance string

const (
	AffordanceBrowse  Affordance = "browse"
	AffordanceDrop    Affordance = "drop"
	AffordanceCamera  Affordance = "camera"
	AffordanceDictate Affordance = "dictate"
)

// Affordances lists the controls to show. Missing capabilities hide their
// control instead of failing.
func Affordances(c Capabilities) []Affordance {
	out := []Affordance{AffordanceBrowse, AffordanceDrop}
	if c.Camera {
		out = append(out, AffordanceCamera)
	}
	if c.Speech {
		out = append(out, AffordanceDictate)
	}
	return out
}

// Has reports whether a is in list.
func Has(list []Affordance, a Affordance) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}
