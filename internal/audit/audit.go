package audit

import (
	"context"

	"github.com/weiawesome/chat-relay/pkg/log"
)

// Audit actions for the relay.
const (
	ActionJoinRoom    = "relay.join_room"
	ActionLeaveRoom   = "relay.leave_room"
	ActionChangeRoom  = "relay.change_room"
	ActionSendMessage = "relay.send_message"
	ActionDisconnect  = "relay.disconnect"
	ActionReconcile   = "relay.reconcile"
)

const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action, sessionID, room, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldSessionID, sessionID).
		Str(log.FieldRoom, room).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field. Reconciliation
// entries are written at warn level so they stand out.
func LogWithDetail(ctx context.Context, action, sessionID, room, detail, msg string) {
	l := log.Ctx(ctx)
	e := l.Info()
	if action == ActionReconcile {
		e = l.Warn()
	}
	e.Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldSessionID, sessionID).
		Str(log.FieldRoom, room).
		Str(FieldDetail, detail).
		Msg(msg)
}
