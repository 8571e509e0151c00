// Package notify holds NotificationDispatcher adapters. Push delivery
// mechanics (FCM/APNs) sit behind core.NotificationDispatcher; this logging
// adapter records the dispatch decision and is used until a real push
// backend is wired in deployment.
package notify

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/whiskr/backend/internal/domain"
)

type LogDispatcher struct{}

func NewLogDispatcher() *LogDispatcher {
	return &LogDispatcher{}
}

func (LogDispatcher) SendCallPush(_ context.Context, to domain.UserID, callerName, callerAvatar string, callType domain.CallType, callID domain.CallID) error {
	log.Info().Str("module", "notify").
		Str("to", string(to)).Str("caller", callerName).
		Str("call_type", string(callType)).Str("call_id", string(callID)).
		Msg("incoming-call push")
	return nil
}

func (LogDispatcher) SendMissedCallPush(_ context.Context, to domain.UserID, callerName string, callType domain.CallType) error {
	log.Info().Str("module", "notify").
		Str("to", string(to)).Str("caller", callerName).
		Str("call_type", string(callType)).
		Msg("missed-call push")
	return nil
}
