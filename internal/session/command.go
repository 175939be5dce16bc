package session

// InsertAt is the tagged discriminant of where a Command enters the
// session's processing: at the back of the queue, at the front, bypassing
// the queue entirely, or after a queue flush. It is a typed enum rather
// than a raw string so the dispatch table in ingest.go switches on a
// closed set of values instead of string comparisons.
type InsertAt int

const (
	InsertTail InsertAt = iota
	InsertHead
	InsertNow
	InsertFlush
)

func (i InsertAt) String() string {
	switch i {
	case InsertTail:
		return "tail"
	case InsertHead:
		return "head"
	case InsertNow:
		return "now"
	case InsertFlush:
		return "flush"
	default:
		return "unknown"
	}
}

func ParseInsertAt(s string) InsertAt {
	switch s {
	case "head":
		return InsertHead
	case "now":
		return InsertNow
	case "flush":
		return InsertFlush
	case "tail", "":
		return InsertTail
	default:
		return InsertTail
	}
}

// Command is one dialplan command extracted from a bus message. ApplicationName,
// MsgID, CallID and InsertAt are promoted to fields because the queue, the
// filter algorithm and the correlation engine all match on them directly;
// everything else a command carries rides along opaquely in Fields/Raw for
// the per-application command module to interpret.
type Command struct {
	Insert          InsertAt
	ApplicationName string
	MsgID           string
	CallID          string
	GroupID         string
	Fields          map[string]interface{}
	Raw             map[string]interface{}
}

func (c Command) fieldString(key string) (string, bool) {
	if c.Fields == nil {
		return "", false
	}
	v, ok := c.Fields[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// FilterApplications returns the ordered list of filter specs carried by a
// "now"-inserted noop command's Filter-Applications field (§4.2).
func (c Command) FilterApplications() []FilterSpec {
	if c.Fields == nil {
		return nil
	}
	raw, ok := c.Fields["Filter-Applications"]
	if !ok {
		return nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	specs := make([]FilterSpec, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			specs = append(specs, FilterSpec{ApplicationName: v})
		case map[string]interface{}:
			spec := FilterSpec{Fields: map[string]string{}}
			if name, ok := v["application_name"].(string); ok {
				spec.ApplicationName = name
			} else if name, ok := v["Application-Name"].(string); ok {
				spec.ApplicationName = name
			}
			if fields, ok := v["fields"].(map[string]interface{}); ok {
				for k, fv := range fields {
					if s, ok := fv.(string); ok {
						spec.Fields[k] = s
					}
				}
			}
			specs = append(specs, spec)
		}
	}
	return specs
}

// IsNoop reports whether this command is the synthetic "noop" application
// used both as a correlation probe (§4.4 rule 3) and as the carrier of a
// filter-queue request issued via insert_at=now (§4.2).
func (c Command) IsNoop() bool {
	return c.ApplicationName == "noop"
}

// IsQueueBatch reports whether this command is a "queue" super-command whose
// Commands field must be exploded into individual Command records (§4.2).
func (c Command) IsQueueBatch() bool {
	return c.ApplicationName == "queue"
}

const hangupApplication = "hangup"
