package session

// FilterSpec is one entry of a filter-queue request (§4.5): either a bare
// application name, or an application name plus a set of Fields that must
// all match the candidate command's Fields.
type FilterSpec struct {
	ApplicationName string
	Fields          map[string]string
}

func (spec FilterSpec) matches(cmd Command) bool {
	if spec.ApplicationName != cmd.ApplicationName {
		return false
	}
	for k, v := range spec.Fields {
		got, ok := cmd.fieldString(k)
		if !ok || got != v {
			return false
		}
	}
	return true
}

// filterCommands implements §4.5: walk specs and the queue head in lockstep,
// dropping a leading run of commands that match. This is a pure function of
// (specs, queue) -> queue so the "filter never reorders or adds elements"
// property (P5) is checkable directly against its return value.
func filterCommands(specs []FilterSpec, queue []Command) []Command {
	s, i := 0, 0
	for s < len(specs) && i < len(queue) {
		if specs[s].matches(queue[i]) {
			// Same application streak: pop the head and retry the same spec.
			i++
			continue
		}
		// Head doesn't match this spec; try the next filter against the same head.
		s++
	}
	return queue[i:]
}
