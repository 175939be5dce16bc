package session

import "context"

// handleExecuteComplete implements the §4.4 priority table for matching a
// CHANNEL_EXECUTE_COMPLETE (or equivalent) event against the in-flight
// command. It is the only place current_app/current_cmd_uuid are cleared on
// the success path; every branch either advances or logs-and-ignores.
func (s *Session) handleExecuteComplete(ctx context.Context, rawApplicationName, eventUUID string, body map[string]interface{}) {
	// 1. Malformed.
	if rawApplicationName == "" || eventUUID == "" {
		s.log.WithField("application", rawApplicationName).Debug("ignoring malformed execute-complete")
		return
	}

	// 2. Spurious / pre-session event.
	if s.currentCmdUUID == "" {
		s.metrics.mismatch()
		return
	}

	// 3. Noop correlation probe (also the filter-queue dual-use carrier).
	if rawApplicationName == "noop" && eventUUID == s.currentCmdUUID {
		resp, _ := body["Application-Response"].(string)
		if resp == s.msgID {
			s.retireAndAdvance(ctx)
			return
		}
		s.log.WithField("application_response", resp).Debug("ignoring noop completion from a prior generation")
		return
	}

	// 4. Playback with DTMF interruption.
	if rawApplicationName == "playback" && rawApplicationName == s.currentApp && eventUUID == s.currentCmdUUID {
		if _, hasDigit := body["DTMF-Digit"]; !hasDigit {
			s.retireAndAdvance(ctx)
			return
		}
		groupID, _ := body["Group-ID"].(string)
		s.commandQ.Filter([]FilterSpec{{ApplicationName: "playback", Fields: map[string]string{"Group-ID": groupID}}})
		s.retireAndAdvance(ctx)
		return
	}

	// 5. Exact match on both name and uuid.
	if rawApplicationName == s.currentApp && eventUUID == s.currentCmdUUID {
		s.retireAndAdvance(ctx)
		return
	}

	// 6. UUID matches but the application name doesn't: consult the
	// name-equivalence registry before treating it as an unrelated
	// side-effect event emitted by the in-flight application.
	if eventUUID == s.currentCmdUUID {
		if s.equivalent != nil {
			for _, alias := range s.equivalent(s.currentApp) {
				if alias == rawApplicationName {
					s.retireAndAdvance(ctx)
					return
				}
			}
		}
		s.log.WithFields(map[string]interface{}{
			"raw_application_name": rawApplicationName,
			"current_app":          s.currentApp,
		}).Debug("ignoring intermediate side-effect event")
		return
	}

	// 7. Nothing matched.
	s.metrics.mismatch()
	s.log.WithFields(map[string]interface{}{
		"raw_application_name": rawApplicationName,
		"event_uuid":            eventUUID,
	}).Debug("ignoring unmatched execute-complete")
}

func (s *Session) retireAndAdvance(ctx context.Context) {
	s.currentApp = ""
	s.currentCmd = Command{}
	s.currentCmdUUID = ""
	s.msgID = ""
	s.advance(ctx)
}
