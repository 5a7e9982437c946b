package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"anon-relay-bot/internal/common/logger"
	emojimodels "anon-relay-bot/internal/features/emoji/models"
	msgmodels "anon-relay-bot/internal/features/message/models"
	"anon-relay-bot/internal/features/ratelimit"
	usermodels "anon-relay-bot/internal/features/user/models"
)

// MaxCaptionRunes is the Telegram limit for media captions.
const MaxCaptionRunes = 1024

type Users interface {
	Upsert(ctx context.Context, id int64, username, displayName string) (*usermodels.User, error)
	Get(ctx context.Context, id int64) (*usermodels.User, error)
	IsBanned(ctx context.Context, id int64) (bool, error)
	IsPremiumActive(ctx context.Context, id int64) (bool, error)
	IncrementCounter(ctx context.Context, id int64, counter usermodels.Counter) error
	SetEmoji(ctx context.Context, id int64, emoji string) error
	GrantPremium(ctx context.Context, id int64, days int) (*usermodels.User, error)
}

type Registry interface {
	Reserve(ctx context.Context, userID int64, emoji string, now time.Time) (emojimodels.ReserveResult, error)
}

type Ledger interface {
	Record(ctx context.Context, p msgmodels.RecordParams, now time.Time) (*msgmodels.Message, error)
	Check(ctx context.Context, req msgmodels.Requester, id int64) (msgmodels.Outcome, *msgmodels.Message, error)
	Edit(ctx context.Context, req msgmodels.Requester, id int64, newText string, now time.Time) (msgmodels.Outcome, error)
	Delete(ctx context.Context, req msgmodels.Requester, id int64, now time.Time) (msgmodels.Outcome, error)
}

type Limiter interface {
	AdmitN(userID int64, now time.Time, cost int) ratelimit.Decision
}

type Config struct {
	Destination     string
	DefaultEmoji    string
	DefaultCooldown time.Duration
	PremiumCooldown time.Duration
	SessionTTL      time.Duration
	GatewayTimeout  time.Duration
	MaxTextLength   int
	RiskCost        int
	AdminIDs        []int64
}

// Content is what a user submitted. Text holds the caption for media.
type Content struct {
	Kind   msgmodels.Kind
	Text   string
	FileID string
}

// InboundMessage is a private message received from a user. ForwardedFrom is
// the channel message id when the user forwarded a post from the destination.
type InboundMessage struct {
	UserID        int64
	Username      string
	DisplayName   string
	Content       Content
	ForwardedFrom int64
}

// Coordinator runs admission, ownership checks and gateway calls for every
// user-visible mutation. Stores are only changed after the gateway succeeded.
type Coordinator struct {
	cfg        Config
	users      Users
	registry   Registry
	ledger     Ledger
	limiter    Limiter
	classifier Classifier
	gateway    Gateway

	admins    map[int64]struct{}
	sessions  *sessions
	cooldowns *cooldowns
	msgLocks  *keyedMutex
	now       func() time.Time
}

type Option func(*Coordinator)

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func WithClassifier(cl Classifier) Option {
	return func(c *Coordinator) { c.classifier = cl }
}

func NewCoordinator(cfg Config, users Users, registry Registry, ledger Ledger, limiter Limiter, gateway Gateway, opts ...Option) *Coordinator {
	if cfg.MaxTextLength <= 0 || cfg.MaxTextLength > msgmodels.MaxTextRunes {
		cfg.MaxTextLength = msgmodels.MaxTextRunes
	}
	if cfg.RiskCost < 1 {
		cfg.RiskCost = 1
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 10 * time.Second
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 10 * time.Minute
	}

	c := &Coordinator{
		cfg:        cfg,
		users:      users,
		registry:   registry,
		ledger:     ledger,
		limiter:    limiter,
		classifier: NoopClassifier{},
		gateway:    gateway,
		admins:     make(map[int64]struct{}, len(cfg.AdminIDs)),
		sessions:   newSessions(cfg.SessionTTL),
		cooldowns:  newCooldowns(),
		msgLocks:   newKeyedMutex(),
		now:        time.Now,
	}
	for _, id := range cfg.AdminIDs {
		c.admins[id] = struct{}{}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) IsAdmin(userID int64) bool {
	_, ok := c.admins[userID]
	return ok
}

// HandleMessage routes an inbound message: a forwarded channel post starts a
// reply session and replaces any pending one, other content goes to the
// pending session or becomes a new post.
func (c *Coordinator) HandleMessage(ctx context.Context, in InboundMessage) Result {
	if _, err := c.users.Upsert(ctx, in.UserID, in.Username, in.DisplayName); err != nil {
		return c.internal(OpPost, in.UserID, "upsert user", err)
	}

	if in.ForwardedFrom != 0 {
		return c.BeginReply(ctx, in.UserID, in.ForwardedFrom)
	}

	if sess, ok := c.sessions.get(in.UserID, c.now()); ok {
		var res Result
		switch sess.Kind {
		case SessionEdit:
			res = c.Edit(ctx, in.UserID, sess.MessageID, in.Content.Text)
		case SessionReply:
			res = c.post(ctx, in.UserID, in.Content, sess.MessageID)
		}
		if !res.retryable() {
			c.sessions.clear(in.UserID, sess)
		}
		return res
	}
	return c.Post(ctx, in.UserID, in.Content)
}

// Post relays new content to the destination channel.
func (c *Coordinator) Post(ctx context.Context, userID int64, content Content) Result {
	return c.post(ctx, userID, content, 0)
}

func (c *Coordinator) post(ctx context.Context, userID int64, content Content, replyTo int64) Result {
	op := OpPost
	if replyTo != 0 {
		op = OpReply
	}
	if content.Kind == "" {
		content.Kind = msgmodels.KindText
	}

	if reason, ok := c.validateContent(content); !ok {
		return failed(op, reason)
	}

	banned, err := c.users.IsBanned(ctx, userID)
	if err != nil {
		return c.internal(op, userID, "ban check", err)
	}
	if banned {
		return failed(op, ReasonBanned)
	}

	premium, err := c.users.IsPremiumActive(ctx, userID)
	if err != nil {
		return c.internal(op, userID, "premium check", err)
	}

	// the premium check above may have reset an expired signature
	emoji := c.emojiFor(ctx, userID)
	public := Format(emoji, content)
	if c.tooLong(content.Kind, public) {
		return failed(op, ReasonTooLong)
	}

	now := c.now()
	release := func() {}
	if !c.IsAdmin(userID) {
		gap := c.cfg.DefaultCooldown
		if premium {
			gap = c.cfg.PremiumCooldown
		}
		wait, undo := c.cooldowns.acquire(userID, now, gap)
		if wait > 0 {
			res := failed(op, ReasonCooldown)
			res.RetryAfter = wait
			return res
		}
		release = undo
	}

	cost := 1
	if tags := c.classifier.Scan(content.Text); len(tags) > 0 {
		cost = c.cfg.RiskCost
		logger.Debug().Int64("user_id", userID).Interface("tags", tags).Int("cost", cost).Msg("Elevated risk content")
	}
	decision := c.limiter.AdmitN(userID, now, cost)
	if !decision.Admitted {
		release()
		res := failed(op, ReasonRateLimited)
		res.RetryAfter = decision.RetryAfter
		return res
	}

	if replyTo != 0 {
		outcome, _, err := c.ledger.Check(ctx, msgmodels.Requester{UserID: userID, Elevated: true}, replyTo)
		if err != nil {
			return c.internal(op, userID, "reply target lookup", err)
		}
		if outcome != msgmodels.OutcomeOK {
			return failed(op, reasonFor(outcome))
		}
	}

	out := Outbound{
		Kind:    content.Kind,
		Text:    public,
		FileID:  content.FileID,
		ReplyTo: replyTo,
	}

	gctx, cancel := context.WithTimeout(ctx, c.cfg.GatewayTimeout)
	id, err := c.gateway.Send(gctx, c.cfg.Destination, out)
	cancel()
	if err != nil {
		return c.gatewayFailure(op, userID, 0, err)
	}

	// the post is public now; failures below cannot roll it back
	msg, err := c.ledger.Record(ctx, msgmodels.RecordParams{
		ID:      id,
		OwnerID: userID,
		Kind:    content.Kind,
		Text:    content.Text,
		Emoji:   emoji,
		ReplyTo: replyTo,
	}, c.now())
	if err != nil {
		ev := logger.Error().Err(err).Int64("user_id", userID).Int64("message_id", id)
		if errors.Is(err, msgmodels.ErrDuplicateMessageID) {
			ev = ev.Bool("integrity_violation", true)
		}
		ev.Msg("Message sent but not recorded")
		res := failed(op, ReasonInternal)
		res.MessageID = id
		res.Err = err
		return res
	}

	if err := c.users.IncrementCounter(ctx, userID, usermodels.CounterMessage); err != nil {
		logger.Warn().Err(err).Int64("user_id", userID).Msg("Failed to increment message counter")
	}

	logger.Info().Int64("user_id", userID).Int64("message_id", id).Str("kind", string(content.Kind)).Msg("Message relayed")
	res := committed(op)
	res.MessageID = id
	res.Emoji = emoji
	res.Message = msg
	return res
}

// BeginReply opens a reply session for a channel post.
func (c *Coordinator) BeginReply(ctx context.Context, userID, targetID int64) Result {
	banned, err := c.users.IsBanned(ctx, userID)
	if err != nil {
		return c.internal(OpBeginReply, userID, "ban check", err)
	}
	if banned {
		return failed(OpBeginReply, ReasonBanned)
	}

	outcome, msg, err := c.ledger.Check(ctx, msgmodels.Requester{UserID: userID, Elevated: true}, targetID)
	if err != nil {
		return c.internal(OpBeginReply, userID, "reply target lookup", err)
	}
	if outcome != msgmodels.OutcomeOK {
		return failed(OpBeginReply, reasonFor(outcome))
	}

	c.sessions.begin(userID, SessionReply, targetID, c.now())
	res := committed(OpBeginReply)
	res.MessageID = targetID
	res.Message = msg
	return res
}

// BeginEdit validates that userID may edit id and opens an edit session.
func (c *Coordinator) BeginEdit(ctx context.Context, userID, id int64) Result {
	msg, res, ok := c.precheck(ctx, OpBeginEdit, userID, id)
	if !ok {
		return res
	}
	if !msg.Kind.Editable() {
		return failed(OpBeginEdit, ReasonNotEditable)
	}

	c.sessions.begin(userID, SessionEdit, id, c.now())
	res = committed(OpBeginEdit)
	res.MessageID = id
	res.Message = msg
	return res
}

// BeginDelete validates that userID may delete id without changing anything.
func (c *Coordinator) BeginDelete(ctx context.Context, userID, id int64) Result {
	msg, res, ok := c.precheck(ctx, OpBeginDelete, userID, id)
	if !ok {
		return res
	}
	res = committed(OpBeginDelete)
	res.MessageID = id
	res.Message = msg
	return res
}

// CancelSession drops the user's pending session and reports whether one existed.
func (c *Coordinator) CancelSession(userID int64) bool {
	return c.sessions.cancel(userID)
}

// Edit changes the text of a relayed message in the channel and the ledger.
func (c *Coordinator) Edit(ctx context.Context, userID, id int64, text string) Result {
	if strings.TrimSpace(text) == "" {
		return failed(OpEdit, ReasonEmptyContent)
	}

	unlock := c.msgLocks.lock(id)
	defer unlock()

	msg, res, ok := c.precheck(ctx, OpEdit, userID, id)
	if !ok {
		return res
	}
	if !msg.Kind.Editable() {
		return failed(OpEdit, ReasonNotEditable)
	}
	if msg.Text == text {
		res := failed(OpEdit, ReasonNoChange)
		res.MessageID = id
		return res
	}
	public := Format(msg.EmojiUsed, Content{Kind: msgmodels.KindText, Text: text})
	if c.tooLong(msg.Kind, public) {
		return failed(OpEdit, ReasonTooLong)
	}

	gctx, cancel := context.WithTimeout(ctx, c.cfg.GatewayTimeout)
	err := c.gateway.Edit(gctx, c.cfg.Destination, id, public)
	cancel()
	if err != nil && !errors.Is(err, ErrNotModified) {
		return c.gatewayFailure(OpEdit, userID, id, err)
	}

	req := c.requester(userID)
	outcome, err := c.ledger.Edit(ctx, req, id, text, c.now())
	if err != nil {
		return c.internal(OpEdit, userID, "ledger edit", err)
	}
	if outcome != msgmodels.OutcomeOK {
		// the precheck ran under the same lock, so the ledger should agree
		logger.Error().Bool("integrity_violation", true).Int64("user_id", userID).Int64("message_id", id).
			Stringer("outcome", outcome).Msg("Ledger rejected an edit the channel already shows")
		return failed(OpEdit, reasonFor(outcome))
	}

	if err := c.users.IncrementCounter(ctx, userID, usermodels.CounterEdit); err != nil {
		logger.Warn().Err(err).Int64("user_id", userID).Msg("Failed to increment edit counter")
	}

	logger.Info().Int64("user_id", userID).Int64("message_id", id).Bool("elevated", req.Elevated).Msg("Message edited")
	res = committed(OpEdit)
	res.MessageID = id
	return res
}

// Delete removes a relayed message from the channel and marks it deleted.
func (c *Coordinator) Delete(ctx context.Context, userID, id int64) Result {
	unlock := c.msgLocks.lock(id)
	defer unlock()

	_, res, ok := c.precheck(ctx, OpDelete, userID, id)
	if !ok {
		return res
	}

	gctx, cancel := context.WithTimeout(ctx, c.cfg.GatewayTimeout)
	err := c.gateway.Delete(gctx, c.cfg.Destination, id)
	cancel()
	if err != nil {
		if !errors.Is(err, ErrMessageGone) {
			return c.gatewayFailure(OpDelete, userID, id, err)
		}
		logger.Warn().Int64("message_id", id).Msg("Message already gone from channel, marking deleted")
	}

	req := c.requester(userID)
	outcome, err := c.ledger.Delete(ctx, req, id, c.now())
	if err != nil {
		return c.internal(OpDelete, userID, "ledger delete", err)
	}
	if outcome != msgmodels.OutcomeOK {
		logger.Error().Bool("integrity_violation", true).Int64("user_id", userID).Int64("message_id", id).
			Stringer("outcome", outcome).Msg("Ledger rejected a delete the channel already applied")
		return failed(OpDelete, reasonFor(outcome))
	}

	if err := c.users.IncrementCounter(ctx, userID, usermodels.CounterDelete); err != nil {
		logger.Warn().Err(err).Int64("user_id", userID).Msg("Failed to increment delete counter")
	}

	logger.Info().Int64("user_id", userID).Int64("message_id", id).Bool("elevated", req.Elevated).Msg("Message deleted")
	res = committed(OpDelete)
	res.MessageID = id
	return res
}

// SetEmoji changes the user's signature. Premium users get an exclusive
// reservation; for others the glyph is cosmetic and not exclusive.
func (c *Coordinator) SetEmoji(ctx context.Context, userID int64, emoji string) Result {
	emoji = strings.TrimSpace(emoji)
	if err := emojimodels.Validate(emoji); err != nil {
		return failed(OpSetEmoji, ReasonInvalidEmoji)
	}

	premium, err := c.users.IsPremiumActive(ctx, userID)
	if err != nil {
		return c.internal(OpSetEmoji, userID, "premium check", err)
	}

	if premium {
		reserved, err := c.registry.Reserve(ctx, userID, emoji, c.now())
		if err != nil {
			return c.internal(OpSetEmoji, userID, "reserve emoji", err)
		}
		if reserved.Status == emojimodels.Conflict {
			res := failed(OpSetEmoji, ReasonEmojiConflict)
			res.OwnerID = reserved.OwnerID
			res.Emoji = emoji
			return res
		}
	}

	if err := c.users.SetEmoji(ctx, userID, emoji); err != nil {
		return c.internal(OpSetEmoji, userID, "set emoji", err)
	}

	res := committed(OpSetEmoji)
	res.Emoji = emoji
	return res
}

// GrantPremium extends the premium window of userID. days <= 0 revokes it.
func (c *Coordinator) GrantPremium(ctx context.Context, userID int64, days int) Result {
	if _, err := c.users.GrantPremium(ctx, userID, days); err != nil {
		return c.internal(OpGrantPremium, userID, "grant premium", err)
	}
	return committed(OpGrantPremium)
}

// PruneSessions drops expired sessions and stale cooldown entries. It
// returns the number of sessions removed.
func (c *Coordinator) PruneSessions() int {
	now := c.now()
	c.cooldowns.prune(now, max(c.cfg.DefaultCooldown, c.cfg.PremiumCooldown))
	return c.sessions.prune(now)
}

// precheck applies the premium gate and the ownership check for edit and
// delete without touching the gateway.
func (c *Coordinator) precheck(ctx context.Context, op Operation, userID, id int64) (*msgmodels.Message, Result, bool) {
	banned, err := c.users.IsBanned(ctx, userID)
	if err != nil {
		return nil, c.internal(op, userID, "ban check", err), false
	}
	if banned {
		return nil, failed(op, ReasonBanned), false
	}

	req := c.requester(userID)
	if !req.Elevated {
		premium, err := c.users.IsPremiumActive(ctx, userID)
		if err != nil {
			return nil, c.internal(op, userID, "premium check", err), false
		}
		if !premium {
			return nil, failed(op, ReasonPremiumRequired), false
		}
	}

	outcome, msg, err := c.ledger.Check(ctx, req, id)
	if err != nil {
		return nil, c.internal(op, userID, "ownership check", err), false
	}
	if outcome != msgmodels.OutcomeOK {
		res := failed(op, reasonFor(outcome))
		res.MessageID = id
		return nil, res, false
	}
	return msg, Result{}, true
}

func (c *Coordinator) requester(userID int64) msgmodels.Requester {
	return msgmodels.Requester{UserID: userID, Elevated: c.IsAdmin(userID)}
}

func (c *Coordinator) validateContent(content Content) (Reason, bool) {
	switch content.Kind {
	case msgmodels.KindText:
		if strings.TrimSpace(content.Text) == "" {
			return ReasonEmptyContent, false
		}
	case msgmodels.KindPhoto, msgmodels.KindVideo, msgmodels.KindVoice, msgmodels.KindDocument:
		if content.FileID == "" {
			return ReasonEmptyContent, false
		}
	default:
		return ReasonEmptyContent, false
	}
	return "", true
}

// tooLong reports whether the rendered channel text exceeds the Telegram
// limit for its kind.
func (c *Coordinator) tooLong(kind msgmodels.Kind, public string) bool {
	limit := c.cfg.MaxTextLength
	if kind != msgmodels.KindText {
		limit = MaxCaptionRunes
	}
	return utf8.RuneCountInString(public) > limit
}

func (c *Coordinator) emojiFor(ctx context.Context, userID int64) string {
	u, err := c.users.Get(ctx, userID)
	if err != nil || u.CurrentEmoji == "" {
		return c.cfg.DefaultEmoji
	}
	return u.CurrentEmoji
}

func (c *Coordinator) gatewayFailure(op Operation, userID, id int64, err error) Result {
	reason := ReasonGatewayError
	if errors.Is(err, context.DeadlineExceeded) {
		reason = ReasonGatewayTimeout
	}

	var wait time.Duration
	var th Throttled
	if errors.As(err, &th) && th.TooManyRequests() {
		reason = ReasonGatewayThrottled
		wait = th.Backoff()
	}
	logger.Error().Err(err).Int64("user_id", userID).Int64("message_id", id).Str("reason", string(reason)).
		Dur("retry_after", wait).Msg("Gateway call failed")

	res := failed(op, reason)
	res.MessageID = id
	res.RetryAfter = wait
	res.Err = err
	return res
}

func (c *Coordinator) internal(op Operation, userID int64, step string, err error) Result {
	logger.Error().Err(err).Int64("user_id", userID).Str("step", step).Msg("Relay request failed")
	res := failed(op, ReasonInternal)
	res.Err = fmt.Errorf("%s: %w", step, err)
	return res
}

func reasonFor(o msgmodels.Outcome) Reason {
	switch o {
	case msgmodels.OutcomeNotFound:
		return ReasonNotFound
	case msgmodels.OutcomeNotOwner:
		return ReasonNotOwner
	case msgmodels.OutcomeAlreadyDeleted:
		return ReasonAlreadyDeleted
	case msgmodels.OutcomeNoOp:
		return ReasonNoChange
	default:
		return ReasonInternal
	}
}

var placeholders = map[msgmodels.Kind]string{
	msgmodels.KindPhoto:    "Anonymous photo",
	msgmodels.KindVideo:    "Anonymous video",
	msgmodels.KindVoice:    "Anonymous voice message",
	msgmodels.KindDocument: "Anonymous document",
}

// Format renders the public text of a post: "<emoji>: <text>". Media without
// a caption gets a placeholder.
func Format(emoji string, content Content) string {
	text := content.Text
	if strings.TrimSpace(text) == "" {
		text = placeholders[content.Kind]
	}
	return emoji + ": " + text
}
