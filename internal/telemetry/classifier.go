package telemetry

// Action names emitted by the upstream analytics export.
const (
	ActionBadgeScan               = "planning_scan_create"
	ActionContactConnection       = "contact_connection_create"
	ActionConnection              = "connection_create"
	ActionConnectionRequest       = "connection_request_create"
	ActionMessage                 = "message_create"
	ActionMeetingCreate           = "meeting_create"
	ActionMeetingUpdate           = "meeting_update"
	ActionMeetingParticipant      = "meeting_participant_update"
	ActionExhibitorView           = "exhibitor_show"
	ActionExhibitorBookmark       = "exhibitor_bookmark_create"
	ActionSessionBookmark         = "planning_bookmark_create"
	scannedSuffix                 = "_scanned"
	meetingStatusConfirmed        = "CONFIRMED"
	participantStatusAccepted     = "ACCEPTED"
)

// Classification is the category assignment for one telemetry record.
// Scanned is set only for the two generic connection actions that carry a
// physical-scan discriminator in their properties.
type Classification struct {
	Action  string
	Scanned bool
}

// Classify maps a record to its action category. Connection actions with
// properties.scanned == true additionally report the scanned sub-category;
// the caller attributes those to both the base counter and badge scans.
func Classify(rec Record) Classification {
	c := Classification{Action: rec.Event}
	if c.Action == "" {
		c.Action = "unknown"
	}

	switch rec.Event {
	case ActionConnection, ActionContactConnection:
		if scanned, ok := rec.Properties["scanned"].(bool); ok && scanned {
			c.Scanned = true
		}
	}

	return c
}

// ScannedAction returns the derived sub-category name for a scanned
// connection action (e.g. "connection_create_scanned").
func ScannedAction(action string) string {
	return action + scannedSuffix
}

// IsConfirmedMeeting reports whether the record marks an actor as having a
// confirmed meeting: a meeting update with status CONFIRMED, or a meeting
// participant update with status ACCEPTED. Any other meeting-related action
// does not count.
func IsConfirmedMeeting(rec Record) bool {
	status, _ := rec.Properties["status"].(string)

	switch rec.Event {
	case ActionMeetingUpdate:
		return status == meetingStatusConfirmed
	case ActionMeetingParticipant:
		return status == participantStatusAccepted
	default:
		return false
	}
}
