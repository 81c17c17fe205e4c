package audit

import (
	"context"

	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/pkg/log"
)

// Audit actions for the relay.
const (
	ActionConnect     = "relay.connect"
	ActionJoinRoom    = "relay.join_room"
	ActionLeaveRoom   = "relay.leave_room"
	ActionSendMessage = "relay.send_message"
	ActionDisconnect  = "relay.disconnect"
	ActionStreamEvent = "relay.stream_event"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action, connID, roomID, msg string) {
	l := log.Ctx(ctx)
	e := l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldConnID, connID)
	if roomID != "" {
		e = e.Str(log.FieldRoomID, roomID)
	}
	e.Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action, connID, roomID, detail, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldConnID, connID).
		Str(log.FieldRoomID, roomID).
		Str(FieldDetail, detail).
		Msg(msg)
}
