package calls

import (
	"context"
	"time"

	"github.com/deskhive/api/data/events"
	"github.com/deskhive/api/data/model"
	"github.com/deskhive/api/internal/errors"
	"github.com/deskhive/api/internal/instance"
	"github.com/deskhive/api/internal/svc/guard"
	jsoniter "github.com/json-iterator/go"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxIceCandidateLen = 1024

// Signaler drives the call state machine. There are no locks anywhere in it:
// every transition is a single conditional update on the session document, so
// concurrent or repeated signals resolve to exactly one winner and the rest
// observe a state conflict.
type Signaler interface {
	Offer(ctx context.Context, caller model.Party, p events.CallOfferPayload) (model.CallSession, errors.APIError)
	Answer(ctx context.Context, answerer model.Party, p events.CallAnswerPayload) errors.APIError
	Ice(ctx context.Context, sender model.Party, p events.CallIcePayload)
	End(ctx context.Context, actor model.Party, p events.CallEndPayload) errors.APIError
	Timeout(ctx context.Context, owner model.Party, callID primitive.ObjectID)
	MuteStatus(ctx context.Context, sender model.Party, p events.CallMutePayload)
	EndForParticipant(ctx context.Context, p model.Party)
}

// callStore is the slice of the mutation layer the signaler needs.
// *mutate.Mutate satisfies it.
type callStore interface {
	CreateCallSession(ctx context.Context, conversationID primitive.ObjectID, caller, callee model.Party) (model.CallSession, error)
	TransitionCallSession(ctx context.Context, callID primitive.ObjectID, actor model.Party, expect []model.CallStatus, to model.CallStatus) (model.CallSession, error)
	EndOpenCallSessions(ctx context.Context, p model.Party) ([]model.CallSession, error)
}

// conversationDirectory resolves the conversation behind a call attempt and
// the session behind a signal. *query.Query satisfies it.
type conversationDirectory interface {
	ConversationBetween(ctx context.Context, a, b model.Party) (model.Conversation, error)
	CallSession(ctx context.Context, id primitive.ObjectID) (model.CallSession, error)
	DisplayName(ctx context.Context, p model.Party) string
}

type Options struct {
	Store    callStore
	Dir      conversationDirectory
	Redis    instance.Redis
	Events   events.Instance
	Notifier instance.Notifier
	Guard    guard.Guard

	SignalPayloadMaxBytes int
	SDPTTL                time.Duration
	ICETTL                time.Duration
}

func New(opt Options) Signaler {
	return &signalerInst{opt: opt}
}

type signalerInst struct {
	opt Options
}

func (s *signalerInst) sdpKey(callID primitive.ObjectID) instance.RedisKey {
	return s.opt.Redis.ComposeKey("call", "sdp", callID.Hex())
}

func (s *signalerInst) iceKey(callID primitive.ObjectID) instance.RedisKey {
	return s.opt.Redis.ComposeKey("call", "ice", callID.Hex())
}

// Offer opens a RINGING session and relays the SDP offer to the callee. The
// returned session lets the caller's connection arm its answer timeout.
func (s *signalerInst) Offer(ctx context.Context, caller model.Party, p events.CallOfferPayload) (model.CallSession, errors.APIError) {
	if !s.opt.Guard.TestCallRate(caller) {
		return model.CallSession{}, errors.ErrRateLimited()
	}

	if err := s.opt.Guard.ValidatePayload(p, s.opt.SignalPayloadMaxBytes); err != nil {
		return model.CallSession{}, err
	}

	callee := model.Party{UserID: p.RecipientID, UserKind: p.RecipientKind}
	if callee.Zero() || p.SDP == "" || p.ConversationID == "" {
		return model.CallSession{}, errors.ErrMissingFields().SetDetail("recipient, conversation and sdp are required")
	}

	if callee == caller {
		return model.CallSession{}, errors.ErrInvalidPayload().SetDetail("cannot call yourself")
	}

	conv, err := s.opt.Dir.ConversationBetween(ctx, caller, callee)
	if err != nil {
		return model.CallSession{}, errors.From(err)
	}

	if conv.ID.Hex() != p.ConversationID {
		return model.CallSession{}, errors.ErrUnknownConversation().SetDetail("conversation does not match participants")
	}

	session, err := s.opt.Store.CreateCallSession(ctx, conv.ID, caller, callee)
	if err != nil {
		return model.CallSession{}, errors.From(err)
	}

	if rerr := s.opt.Redis.HSetEX(ctx, s.sdpKey(session.ID), "offer", p.SDP, s.opt.SDPTTL); rerr != nil {
		zap.S().Warnw("failed to stash sdp offer",
			"error", rerr,
			"call_id", session.ID.Hex(),
		)
	}

	callerName := s.opt.Dir.DisplayName(ctx, caller)

	if derr := s.opt.Events.Dispatch(ctx, callee.Group(), events.NewMessage(events.EventTypeCallOffer, events.CallOfferDispatchPayload{
		CallID:            session.ID.Hex(),
		ConversationID:    conv.ID.Hex(),
		Caller:            caller,
		CallerDisplayName: callerName,
		SDP:               p.SDP,
	}).ToRaw()); derr != nil {
		zap.S().Warnw("failed to dispatch call offer",
			"error", derr,
			"call_id", session.ID.Hex(),
		)
	}

	if derr := s.opt.Events.Dispatch(ctx, caller.Group(), events.NewMessage(events.EventTypeCallOfferAck, events.CallOfferAckPayload{
		CallID:         session.ID.Hex(),
		ConversationID: conv.ID.Hex(),
	}).ToRaw()); derr != nil {
		zap.S().Warnw("failed to dispatch offer ack",
			"error", derr,
			"call_id", session.ID.Hex(),
		)
	}

	title := "Incoming call"
	if callerName != "" {
		title = "Incoming call from " + callerName
	}

	s.opt.Notifier.SendInAppNotification(ctx, model.Notification{
		ID:             primitive.NewObjectID(),
		Target:         callee,
		Kind:           model.NotificationKindInApp,
		Title:          title,
		Body:           "Tap to answer.",
		CreatedAt:      session.StartedAt,
		ConversationID: &conv.ID,
		CallID:         &session.ID,
	})

	return session, nil
}

// Answer accepts a ringing call. Only a RINGING session matches the
// transition filter, so a second answer, an answer after timeout, or an
// answer to an ended call all surface the same state conflict.
func (s *signalerInst) Answer(ctx context.Context, answerer model.Party, p events.CallAnswerPayload) errors.APIError {
	if err := s.opt.Guard.ValidatePayload(p, s.opt.SignalPayloadMaxBytes); err != nil {
		return err
	}

	recipient := model.Party{UserID: p.RecipientID, UserKind: p.RecipientKind}
	if recipient.Zero() || p.SDP == "" {
		return errors.ErrMissingFields().SetDetail("recipient and sdp are required")
	}

	callID, err := primitive.ObjectIDFromHex(p.CallID)
	if err != nil {
		return errors.ErrInvalidPayload().SetDetail("bad call id")
	}

	// The named recipient must be the session's other participant before any
	// transition is attempted.
	session, serr := s.opt.Dir.CallSession(ctx, callID)
	if serr != nil {
		return errors.From(serr)
	}

	if !session.HasParticipant(answerer) {
		return errors.ErrStateConflict().SetDetail("answerer is not a call participant")
	}

	counterpart, _ := session.Counterpart(answerer)
	if counterpart != recipient {
		return errors.ErrStateConflict().SetDetail("recipient does not match the call participants")
	}

	session, terr := s.opt.Store.TransitionCallSession(ctx, callID, answerer,
		[]model.CallStatus{model.CallStatusRinging},
		model.CallStatusAccepted,
	)
	if terr != nil {
		return errors.From(terr)
	}

	if rerr := s.opt.Redis.HSetEX(ctx, s.sdpKey(session.ID), "answer", p.SDP, s.opt.SDPTTL); rerr != nil {
		zap.S().Warnw("failed to stash sdp answer",
			"error", rerr,
			"call_id", session.ID.Hex(),
		)
	}

	if derr := s.opt.Events.Dispatch(ctx, counterpart.Group(), events.NewMessage(events.EventTypeCallAnswer, events.CallAnswerDispatchPayload{
		CallID:   session.ID.Hex(),
		Answerer: answerer,
		SDP:      p.SDP,
	}).ToRaw()); derr != nil {
		zap.S().Warnw("failed to dispatch call answer",
			"error", derr,
			"call_id", session.ID.Hex(),
		)
	}

	return nil
}

// Ice forwards a connectivity candidate. Candidates are fire-and-forget:
// anything malformed or oversized is dropped without a reply, since a peer
// always has more candidates coming.
func (s *signalerInst) Ice(ctx context.Context, sender model.Party, p events.CallIcePayload) {
	if p.Candidate.Candidate == "" || len(p.Candidate.Candidate) > maxIceCandidateLen {
		zap.S().Debugw("dropping malformed ice candidate",
			"sender", sender.Tag(),
			"size", len(p.Candidate.Candidate),
		)

		return
	}

	recipient := model.Party{UserID: p.RecipientID, UserKind: p.RecipientKind}
	if recipient.Zero() {
		return
	}

	callID, err := primitive.ObjectIDFromHex(p.CallID)
	if err != nil {
		return
	}

	if raw, merr := json.MarshalToString(p.Candidate); merr == nil {
		if rerr := s.opt.Redis.RPushEX(ctx, s.iceKey(callID), raw, s.opt.ICETTL); rerr != nil {
			zap.S().Warnw("failed to stash ice candidate",
				"error", rerr,
				"call_id", p.CallID,
			)
		}
	}

	if derr := s.opt.Events.Dispatch(ctx, recipient.Group(), events.NewMessage(events.EventTypeCallIce, events.CallIceDispatchPayload{
		CallID:    p.CallID,
		Sender:    sender,
		Candidate: p.Candidate,
	}).ToRaw()); derr != nil {
		zap.S().Warnw("failed to dispatch ice candidate",
			"error", derr,
			"call_id", p.CallID,
		)
	}
}

// End closes a live session. Ending an already-terminal session is a no-op
// rather than an error so both sides can hang up simultaneously.
func (s *signalerInst) End(ctx context.Context, actor model.Party, p events.CallEndPayload) errors.APIError {
	callID, err := primitive.ObjectIDFromHex(p.CallID)
	if err != nil {
		return errors.ErrInvalidPayload().SetDetail("bad call id")
	}

	session, terr := s.opt.Store.TransitionCallSession(ctx, callID, actor,
		[]model.CallStatus{model.CallStatusRinging, model.CallStatusAccepted},
		model.CallStatusEnded,
	)
	if terr != nil {
		apiErr := errors.From(terr)
		if apiErr.Code() == errors.ErrStateConflict().Code() {
			return nil
		}

		return apiErr
	}

	s.dropSignalState(ctx, session.ID)
	s.relayEnd(ctx, session, actor)

	return nil
}

// Timeout force-ends a session that was never answered. The timer that calls
// this is local to the offering connection; a late fire after an answer does
// nothing because only RINGING matches.
func (s *signalerInst) Timeout(ctx context.Context, owner model.Party, callID primitive.ObjectID) {
	session, err := s.opt.Store.TransitionCallSession(ctx, callID, owner,
		[]model.CallStatus{model.CallStatusRinging},
		model.CallStatusEnded,
	)
	if err != nil {
		return
	}

	s.dropSignalState(ctx, session.ID)

	msg := events.NewMessage(events.EventTypeCallTimeout, events.CallTimeoutPayload{
		CallID: session.ID.Hex(),
	}).ToRaw()

	for _, part := range session.Participants {
		if derr := s.opt.Events.Dispatch(ctx, part.Group(), msg); derr != nil {
			zap.S().Warnw("failed to dispatch call timeout",
				"error", derr,
				"call_id", session.ID.Hex(),
			)
		}
	}
}

// MuteStatus is a stateless relay; mute state never persists anywhere.
func (s *signalerInst) MuteStatus(ctx context.Context, sender model.Party, p events.CallMutePayload) {
	recipient := model.Party{UserID: p.RecipientID, UserKind: p.RecipientKind}
	if recipient.Zero() {
		return
	}

	if derr := s.opt.Events.Dispatch(ctx, recipient.Group(), events.NewMessage(events.EventTypeCallMuteStatus, events.CallMuteDispatchPayload{
		CallID: p.CallID,
		Sender: sender,
		Muted:  p.Muted,
	}).ToRaw()); derr != nil {
		zap.S().Warnw("failed to dispatch mute status",
			"error", derr,
		)
	}
}

// EndForParticipant sweeps every open session of a disconnecting party so
// their peers do not ring or talk into a dead socket.
func (s *signalerInst) EndForParticipant(ctx context.Context, p model.Party) {
	ended, err := s.opt.Store.EndOpenCallSessions(ctx, p)
	if err != nil {
		zap.S().Warnw("failed to sweep open call sessions",
			"error", err,
			"party", p.Tag(),
		)

		return
	}

	for _, session := range ended {
		s.dropSignalState(ctx, session.ID)
		s.relayEnd(ctx, session, p)
	}
}

func (s *signalerInst) dropSignalState(ctx context.Context, callID primitive.ObjectID) {
	for _, key := range []instance.RedisKey{s.sdpKey(callID), s.iceKey(callID)} {
		if err := s.opt.Redis.Del(ctx, key); err != nil {
			zap.S().Warnw("failed to drop signaling state",
				"error", err,
				"key", key,
			)
		}
	}
}

func (s *signalerInst) relayEnd(ctx context.Context, session model.CallSession, endedBy model.Party) {
	counterpart, ok := session.Counterpart(endedBy)
	if !ok {
		return
	}

	if derr := s.opt.Events.Dispatch(ctx, counterpart.Group(), events.NewMessage(events.EventTypeCallEnd, events.CallEndDispatchPayload{
		CallID:  session.ID.Hex(),
		EndedBy: endedBy,
	}).ToRaw()); derr != nil {
		zap.S().Warnw("failed to dispatch call end",
			"error", derr,
			"call_id", session.ID.Hex(),
		)
	}
}
