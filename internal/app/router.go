package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/whiskr/backend/internal/core"
	"github.com/whiskr/backend/internal/domain"
)

// CallRouter interprets signaling events and drives registry, relay, push
// and call-log side effects. Call state is never stored explicitly; it is
// inferred from registry membership plus the signal type received.
type CallRouter struct {
	Presence *Presence
	Registry *CallRegistry
	Relay    *Relay

	Directory core.UserDirectory
	Logs      core.CallLogStore
	Notify    core.NotificationDispatcher

	now func() time.Time
}

func NewCallRouter(presence *Presence, registry *CallRegistry, relay *Relay,
	directory core.UserDirectory, logs core.CallLogStore, notify core.NotificationDispatcher) *CallRouter {
	return &CallRouter{
		Presence:  presence,
		Registry:  registry,
		Relay:     relay,
		Directory: directory,
		Logs:      logs,
		Notify:    notify,
		now:       time.Now,
	}
}

// HandleSignal dispatches one inbound frame from an authenticated user.
// The channel is one-way: invalid frames are logged and discarded, never
// answered.
func (rt *CallRouter) HandleSignal(ctx context.Context, from domain.UserID, env domain.Envelope) {
	sigType, err := domain.ParseSignalType(env.Type)
	if err != nil {
		log.Warn().Str("module", "app.router").Str("user_id", string(from)).Str("type", env.Type).Msg("unknown signal type")
		return
	}

	// Any signal is proof of life for the sender.
	rt.Presence.Refresh(ctx, from)

	if sigType == domain.SignalPing {
		rt.Registry.Refresh(ctx, from)
		return
	}

	fromUser, err := rt.Directory.Find(ctx, from)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.router").Str("user_id", string(from)).Msg("sender not found, discarding signal")
		return
	}

	if sigType == domain.SignalTyping {
		rt.Relay.Deliver(env.TargetUserID, domain.Event{
			Type:         domain.SignalTyping,
			FromUserID:   fromUser.ID,
			FromUserName: fromUser.Name,
			Timestamp:    rt.now(),
		})
		return
	}

	target, err := rt.Directory.Find(ctx, env.TargetUserID)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.router").Str("target_id", string(env.TargetUserID)).Msg("target not found, discarding signal")
		return
	}

	switch sigType {
	case domain.SignalInitiate:
		rt.handleInitiate(ctx, fromUser, target, env)
	case domain.SignalAccepted:
		rt.handleAccepted(ctx, fromUser, target, env)
	case domain.SignalDeclined:
		rt.handleDeclined(ctx, fromUser, target, env)
	case domain.SignalOffer, domain.SignalAnswer, domain.SignalICE:
		rt.relayPassthrough(ctx, sigType, fromUser, target, env)
	case domain.SignalEnd:
		rt.handleEnd(ctx, fromUser, target, env)
	}
}

// handleInitiate admits the call for both parties, then rings the target.
// Admission is the only gate in the system; registry failure of any kind is
// treated as busy, never as idle.
func (rt *CallRouter) handleInitiate(ctx context.Context, caller, target *domain.User, env domain.Envelope) {
	callID := env.CallID
	if callID == "" {
		callID = domain.CallID(uuid.NewString())
	}
	callType := callTypeOrVoice(env.CallType)

	if err := rt.Registry.RegisterPair(ctx, caller.ID, target.ID, callID, callType); err != nil {
		log.Info().Err(err).Str("module", "app.router").
			Str("caller", string(caller.ID)).Str("target", string(target.ID)).Msg("call not admitted")
		rt.Relay.Deliver(caller.ID, domain.Event{
			Type:         domain.SignalBusy,
			CallID:       env.CallID,
			CallType:     callType,
			FromUserID:   target.ID,
			FromUserName: target.Name,
			Timestamp:    rt.now(),
		})
		return
	}

	rt.Relay.Deliver(target.ID, domain.Event{
		Type:          domain.SignalInitiate,
		CallID:        callID,
		CallType:      callType,
		FromUserID:    caller.ID,
		FromUserName:  caller.Name,
		FromAvatarURL: caller.AvatarURL,
		Timestamp:     rt.now(),
	})

	if !rt.Presence.IsOnline(ctx, target.ID) {
		if err := rt.Notify.SendCallPush(ctx, target.ID, caller.Name, caller.AvatarURL, callType, callID); err != nil {
			log.Error().Err(err).Str("module", "app.router").Str("target", string(target.ID)).Msg("call push failed")
		}
	}

	log.Info().Str("module", "app.router").
		Str("caller", string(caller.ID)).Str("target", string(target.ID)).
		Str("call_id", string(callID)).Str("call_type", string(callType)).Msg("call initiated")
}

func (rt *CallRouter) handleAccepted(ctx context.Context, receiver, caller *domain.User, env domain.Envelope) {
	// Stamping the accept time doubles as a TTL refresh for both sides.
	rt.Registry.MarkAccepted(ctx, caller.ID)
	rt.Registry.MarkAccepted(ctx, receiver.ID)

	rt.Relay.Deliver(caller.ID, domain.Event{
		Type:          domain.SignalAccepted,
		CallID:        env.CallID,
		CallType:      callTypeOrVoice(env.CallType),
		FromUserID:    receiver.ID,
		FromUserName:  receiver.Name,
		FromAvatarURL: receiver.AvatarURL,
		Timestamp:     rt.now(),
	})
}

func (rt *CallRouter) handleDeclined(ctx context.Context, receiver, caller *domain.User, env domain.Envelope) {
	rt.Registry.EndPair(ctx, caller.ID, receiver.ID)

	callType := callTypeOrVoice(env.CallType)
	rt.appendLog(ctx, &domain.CallLogEntry{
		ID:         uuid.NewString(),
		CallerID:   caller.ID,
		ReceiverID: receiver.ID,
		Type:       callType,
		Status:     domain.CallMissed,
		CreatedAt:  rt.now(),
	})

	rt.Relay.Deliver(caller.ID, domain.Event{
		Type:         domain.SignalDeclined,
		CallID:       env.CallID,
		CallType:     callType,
		FromUserID:   receiver.ID,
		FromUserName: receiver.Name,
		Timestamp:    rt.now(),
	})

	if err := rt.Notify.SendMissedCallPush(ctx, caller.ID, receiver.Name, callType); err != nil {
		log.Error().Err(err).Str("module", "app.router").Str("caller", string(caller.ID)).Msg("missed-call push failed")
	}
}

// relayPassthrough forwards SDP/ICE payloads verbatim; the router never
// inspects their contents.
func (rt *CallRouter) relayPassthrough(ctx context.Context, sigType domain.SignalType, from, target *domain.User, env domain.Envelope) {
	rt.Registry.Refresh(ctx, from.ID)

	rt.Relay.Deliver(target.ID, domain.Event{
		Type:          sigType,
		CallID:        env.CallID,
		CallType:      env.CallType,
		FromUserID:    from.ID,
		SDP:           env.SDP,
		Candidate:     env.Candidate,
		SDPMid:        env.SDPMid,
		SDPMLineIndex: env.SDPMLineIndex,
		Timestamp:     rt.now(),
	})
}

func (rt *CallRouter) handleEnd(ctx context.Context, from, target *domain.User, env domain.Envelope) {
	ended := rt.now()
	started := ended
	duration := 0
	callType := callTypeOrVoice(env.CallType)

	// The sender's registry entry carries the real start/accept times and
	// who originated the call; read it before clearing.
	callerID, receiverID := from.ID, target.ID
	if entry, ok, err := rt.Registry.Get(ctx, from.ID); err != nil {
		log.Error().Err(err).Str("module", "app.router").Str("user_id", string(from.ID)).Msg("end: registry read failed")
	} else if ok {
		if !entry.Caller {
			callerID, receiverID = target.ID, from.ID
		}
		if entry.CallType != "" {
			callType = entry.CallType
		}
		started = entry.StartedAt
		// A call that was never accepted has no talk time; only the accept
		// stamp starts the clock.
		if entry.AcceptedAt != nil {
			started = *entry.AcceptedAt
			if d := int(ended.Sub(started).Seconds()); d > 0 {
				duration = d
			}
		}
	}

	rt.Registry.EndPair(ctx, from.ID, target.ID)

	rt.appendLog(ctx, &domain.CallLogEntry{
		ID:         uuid.NewString(),
		CallerID:   callerID,
		ReceiverID: receiverID,
		Type:       callType,
		Status:     domain.CallEnded,
		StartedAt:  &started,
		EndedAt:    &ended,
		Duration:   duration,
		CreatedAt:  ended,
	})

	rt.Relay.Deliver(target.ID, domain.Event{
		Type:       domain.SignalEnd,
		CallID:     env.CallID,
		CallType:   callType,
		FromUserID: from.ID,
		Timestamp:  ended,
	})
}

// appendLog is fire-and-forget: a lost log entry never unwinds the state
// transition that produced it.
func (rt *CallRouter) appendLog(ctx context.Context, entry *domain.CallLogEntry) {
	if err := rt.Logs.Append(ctx, entry); err != nil {
		log.Error().Err(err).Str("module", "app.router").
			Str("caller", string(entry.CallerID)).Str("status", string(entry.Status)).Msg("call log append failed")
	}
}

func callTypeOrVoice(ct domain.CallType) domain.CallType {
	if ct == "" {
		return domain.CallVoice
	}
	return ct
}
