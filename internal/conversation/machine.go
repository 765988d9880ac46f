package conversation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/literature-assistant/internal/domain"
	"github.com/helixir/literature-assistant/internal/observability"
	"github.com/helixir/literature-assistant/internal/query"
	"github.com/helixir/literature-assistant/internal/search"
)

// QueryNormalizer validates and enhances raw user queries.
type QueryNormalizer interface {
	Normalize(ctx context.Context, rawQuery string) (*query.Result, error)
}

// Searcher runs one search for an enhanced query.
type Searcher interface {
	Run(ctx context.Context, enhancedQuery string) *search.Outcome
}

// ReportSynthesizer builds a report from retrieved articles.
type ReportSynthesizer interface {
	Synthesize(q string, articles []*domain.Article) (*domain.Report, error)
}

// ReportDeliverer validates recipients and sends rendered reports.
type ReportDeliverer interface {
	ValidateRecipient(address string) error
	Deliver(ctx context.Context, sessionID, recipient string, report *domain.Report, articles []*domain.Article) (*domain.DeliveryRecord, error)
}

// DeliveryAuditor persists delivery records for audit. Audit writes are best
// effort: failures are logged by the machine and never surface to the user.
type DeliveryAuditor interface {
	Record(ctx context.Context, record *domain.DeliveryRecord) error
}

// Reply is the machine's answer to one user turn.
type Reply struct {
	SessionID uuid.UUID
	Message   string
	State     domain.SessionState
}

// Config holds conversation policy.
type Config struct {
	// DefaultRecipient, when set, is used for sessions that never supplied
	// an address, skipping the recipient prompt.
	DefaultRecipient string
}

// Machine drives sessions through the conversation workflow. HandleTurn is
// the sole entry point for user text; turns within one session are serialized
// by the store's per-session lock, so in-flight search or delivery results
// can never be applied to a session that was abandoned by a concurrent call.
type Machine struct {
	store       *Store
	normalizer  QueryNormalizer
	searcher    Searcher
	synthesizer ReportSynthesizer
	deliverer   ReportDeliverer
	auditor     DeliveryAuditor
	config      Config
	logger      zerolog.Logger
	metrics     *observability.Metrics
}

// NewMachine creates a Machine. auditor and metrics may be nil.
func NewMachine(
	store *Store,
	normalizer QueryNormalizer,
	searcher Searcher,
	synthesizer ReportSynthesizer,
	deliverer ReportDeliverer,
	auditor DeliveryAuditor,
	cfg Config,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Machine {
	return &Machine{
		store:       store,
		normalizer:  normalizer,
		searcher:    searcher,
		synthesizer: synthesizer,
		deliverer:   deliverer,
		auditor:     auditor,
		config:      cfg,
		logger:      logger.With().Str("component", "conversation_machine").Logger(),
		metrics:     metrics,
	}
}

// StartSession creates a new session.
func (m *Machine) StartSession() *domain.Session {
	session := m.store.Create()
	if m.metrics != nil {
		m.metrics.SessionsStarted.Inc()
	}
	m.logger.Info().Str("session_id", session.ID.String()).Msg("session started")
	return session
}

// GetSession returns a point-in-time snapshot of the session with the given
// ID, safe to read while turns run concurrently.
func (m *Machine) GetSession(id uuid.UUID) (*domain.Session, error) {
	return m.store.Get(id)
}

// Abandon marks the session abandoned. Abandoning a terminal session is a no-op.
func (m *Machine) Abandon(id uuid.UUID) error {
	session, release, err := m.store.Acquire(id)
	if err != nil {
		return err
	}
	defer release()

	if session.State.IsTerminal() {
		return nil
	}
	session.Abandon()
	if m.metrics != nil {
		m.metrics.SessionsAbandoned.Inc()
	}
	m.logger.Info().Str("session_id", id.String()).Msg("session abandoned")
	return nil
}

// exitWords terminate the session from any non-terminal state.
var exitWords = map[string]bool{
	"quit":   true,
	"exit":   true,
	"cancel": true,
	"stop":   true,
}

// emailPattern detects an address supplied inline with the query.
var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// HandleTurn processes one user turn against the session and returns the
// reply to present. A turn on a completed session re-confirms completion
// without side effects; a turn on an abandoned session returns
// domain.ErrSessionTerminal.
func (m *Machine) HandleTurn(ctx context.Context, sessionID uuid.UUID, userText string) (*Reply, error) {
	session, release, err := m.store.Acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	arrivalState := session.State
	start := time.Now()
	defer func() {
		if m.metrics != nil {
			m.metrics.TurnsHandled.WithLabelValues(string(arrivalState)).Inc()
			m.metrics.TurnDuration.Observe(time.Since(start).Seconds())
		}
	}()

	logger := observability.WithSessionContext(m.logger, session.ID.String(), string(arrivalState))

	text := strings.TrimSpace(userText)

	switch session.State {
	case domain.StateCompleted:
		return m.reply(session, fmt.Sprintf(
			"Your report was already sent to %s. Start a new session to ask another question.",
			session.Recipient)), nil
	case domain.StateAbandoned:
		return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrSessionTerminal)
	}

	session.Turns++
	ctx = observability.WithSessionID(ctx, session.ID.String())
	ctx = observability.WithTurn(ctx, session.Turns)

	if exitWords[strings.ToLower(strings.TrimRight(text, ".!"))] {
		session.Abandon()
		if m.metrics != nil {
			m.metrics.SessionsAbandoned.Inc()
		}
		logger.Info().Msg("session abandoned on user exit")
		return m.reply(session, "Okay, I've cancelled this session. Come back any time with a new question."), nil
	}

	switch session.State {
	case domain.StateAwaitingQuery:
		return m.handleQuery(ctx, logger, session, text)
	case domain.StateAwaitingClarification:
		// Merge the clarification into the pending query and re-normalize.
		merged := strings.TrimSpace(session.RawQuery + " " + text)
		return m.handleQuery(ctx, logger, session, merged)
	case domain.StateResultsEmpty:
		return m.handleResultsEmpty(ctx, logger, session, text)
	case domain.StateAwaitingRecipient:
		return m.handleRecipient(ctx, logger, session, text)
	default:
		// Transient states never persist between turns.
		logger.Error().Msg("turn arrived in transient state")
		return nil, domain.NewInvalidTransitionError(session.State, session.State)
	}
}

// retryWords are replies that mean "run my saved question again" after a
// provider failure left the session in AwaitingQuery with its query intact.
var retryWords = map[string]bool{
	"yes": true, "y": true, "ok": true, "okay": true, "sure": true,
	"retry": true, "again": true,
}

// handleQuery normalizes raw query text and, on success, runs the search.
func (m *Machine) handleQuery(ctx context.Context, logger zerolog.Logger, session *domain.Session, text string) (*Reply, error) {
	// A saved enhanced query survives a provider failure; an affirmation
	// re-runs it directly instead of being normalized as a new question.
	if session.EnhancedQuery != "" && retryWords[strings.ToLower(strings.TrimRight(text, ".!"))] {
		if err := session.Transition(domain.StateSearching); err != nil {
			return nil, err
		}
		return m.runSearch(ctx, logger, session)
	}

	// An address supplied alongside the question skips the recipient prompt.
	if session.Recipient == "" {
		if address := emailPattern.FindString(text); address != "" && m.deliverer.ValidateRecipient(address) == nil {
			session.Recipient = address
			text = strings.TrimSpace(strings.Replace(text, address, "", 1))
		}
	}

	result, err := m.normalizer.Normalize(ctx, text)
	if err != nil {
		return m.handleQueryError(logger, session, err)
	}

	if result.NeedsClarification {
		m.countNormalization("clarification")
		session.RawQuery = result.RawQuery
		if err := session.Transition(domain.StateAwaitingClarification); err != nil {
			return nil, err
		}
		return m.reply(session, result.ClarifyingQuestion), nil
	}

	m.countNormalization("accepted")
	session.RawQuery = result.RawQuery
	session.EnhancedQuery = result.EnhancedQuery
	session.ExpansionTerms = result.ExpansionTerms

	if err := session.Transition(domain.StateSearching); err != nil {
		return nil, err
	}
	return m.runSearch(ctx, logger, session)
}

// handleQueryError maps a normalization failure to a user-facing re-prompt.
// The session stays where it can legally stay: clarification loops remain in
// AwaitingClarification, everything else returns to AwaitingQuery.
func (m *Machine) handleQueryError(logger zerolog.Logger, session *domain.Session, err error) (*Reply, error) {
	stay := domain.StateAwaitingQuery
	if session.State == domain.StateAwaitingClarification {
		stay = domain.StateAwaitingClarification
	}

	var invalidErr *domain.InvalidQueryError
	if errors.As(err, &invalidErr) {
		var msg string
		switch invalidErr.Reason {
		case domain.ReasonEmpty:
			m.countNormalization("empty")
			msg = "Please enter a medical question, for example: \"latest treatments for type 2 diabetes\"."
		default:
			m.countNormalization("off_topic")
			msg = "I can only help with medical and health research questions. Could you rephrase your question as a medical topic?"
		}
		if terr := session.Transition(stay); terr != nil {
			return nil, terr
		}
		return m.reply(session, msg), nil
	}

	if errors.Is(err, domain.ErrProviderUnavailable) {
		logger.Error().Err(err).Msg("query normalization provider failure")
		if terr := session.Transition(stay); terr != nil {
			return nil, terr
		}
		return m.reply(session, "I'm having trouble understanding questions right now. Please try again in a moment."), nil
	}

	logger.Error().Err(err).Msg("query normalization failed")
	return m.abandonWithApology(session), nil
}

// runSearch executes the search and advances the session by outcome.
func (m *Machine) runSearch(ctx context.Context, logger zerolog.Logger, session *domain.Session) (*Reply, error) {
	outcome := m.searcher.Run(ctx, session.EnhancedQuery)

	switch outcome.Kind {
	case search.OutcomeResults:
		session.Articles = outcome.Articles
		if err := session.Transition(domain.StateResultsReady); err != nil {
			return nil, err
		}
		return m.synthesize(ctx, logger, session)

	case search.OutcomeEmpty:
		if err := session.Transition(domain.StateResultsEmpty); err != nil {
			return nil, err
		}
		return m.reply(session, fmt.Sprintf(
			"I couldn't find any articles for %q. Would you like to broaden the search? "+
				"Reply \"yes\" to rephrase, or send a different question.",
			session.RawQuery)), nil

	default:
		logger.Warn().Err(outcome.Err).Msg("search provider unavailable")
		// Context is preserved so the user need not retype the question.
		if err := session.Transition(domain.StateAwaitingQuery); err != nil {
			return nil, err
		}
		return m.reply(session,
			"Sorry, the literature database is unreachable right now. "+
				"Your question is saved; reply \"retry\" in a moment to run it again, or send a new question."), nil
	}
}

// synthesize builds the report and moves on to delivery or the recipient
// prompt. A synthesis failure here is an internal error: the articles were
// already verified non-empty, so the session is abandoned with an apology.
func (m *Machine) synthesize(ctx context.Context, logger zerolog.Logger, session *domain.Session) (*Reply, error) {
	if err := session.Transition(domain.StateSynthesizing); err != nil {
		return nil, err
	}

	report, err := m.synthesizer.Synthesize(session.RawQuery, session.Articles)
	if err != nil {
		logger.Error().Err(err).Int("articles", len(session.Articles)).Msg("synthesis failed")
		return m.abandonWithApology(session), nil
	}
	session.Report = report

	if session.Recipient == "" && m.config.DefaultRecipient != "" {
		session.Recipient = m.config.DefaultRecipient
	}

	if session.Recipient != "" {
		return m.deliver(ctx, logger, session)
	}

	if err := session.Transition(domain.StateAwaitingRecipient); err != nil {
		return nil, err
	}
	return m.reply(session, fmt.Sprintf(
		"I found %d relevant article%s and prepared an evidence summary. "+
			"Which email address should I send the report to?",
		len(session.Articles), plural(len(session.Articles)))), nil
}

// handleRecipient validates the supplied address and delivers on success.
func (m *Machine) handleRecipient(ctx context.Context, logger zerolog.Logger, session *domain.Session, text string) (*Reply, error) {
	address := text
	if found := emailPattern.FindString(text); found != "" {
		address = found
	}

	if err := m.deliverer.ValidateRecipient(address); err != nil {
		if terr := session.Transition(domain.StateAwaitingRecipient); terr != nil {
			return nil, terr
		}
		return m.reply(session, fmt.Sprintf(
			"%q doesn't look like a valid email address. Please send a corrected address.", address)), nil
	}

	session.Recipient = address
	return m.deliver(ctx, logger, session)
}

// deliver sends the report and completes the session, or returns to the
// recipient prompt on failure so the user can correct the address or retry.
func (m *Machine) deliver(ctx context.Context, logger zerolog.Logger, session *domain.Session) (*Reply, error) {
	if err := session.Transition(domain.StateDelivering); err != nil {
		return nil, err
	}

	// The recipient address is logged redacted only.
	logger = observability.WithDeliveryContext(m.logger, session.ID.String(), session.Recipient)

	record, err := m.deliverer.Deliver(ctx, session.ID.String(), session.Recipient, session.Report, session.Articles)
	if record != nil {
		session.Delivery = record
		m.audit(ctx, logger, record)
	}

	if err != nil {
		logger.Warn().Err(err).Msg("report delivery failed")
		if terr := session.Transition(domain.StateAwaitingRecipient); terr != nil {
			return nil, terr
		}
		return m.reply(session, fmt.Sprintf(
			"I couldn't deliver the report to %s. Please send a corrected address, or resend the same one to retry.",
			session.Recipient)), nil
	}

	if terr := session.Transition(domain.StateCompleted); terr != nil {
		return nil, terr
	}
	if m.metrics != nil {
		m.metrics.SessionsCompleted.Inc()
	}
	logger.Info().Int("articles", len(session.Articles)).Msg("session completed")
	return m.reply(session, fmt.Sprintf(
		"Done. I've emailed a summary of %d article%s to %s.",
		len(session.Articles), plural(len(session.Articles)), session.Recipient)), nil
}

// handleResultsEmpty interprets the user's answer to the broaden offer. An
// affirmative reply returns to AwaitingQuery with the question retained; any
// other text is treated as a new or refined question.
func (m *Machine) handleResultsEmpty(ctx context.Context, logger zerolog.Logger, session *domain.Session, text string) (*Reply, error) {
	switch strings.ToLower(strings.TrimRight(text, ".!")) {
	case "yes", "y", "ok", "sure", "broaden":
		if err := session.Transition(domain.StateAwaitingQuery); err != nil {
			return nil, err
		}
		return m.reply(session, fmt.Sprintf(
			"Your previous question was %q. Try rephrasing it with broader terms, for example by dropping qualifiers.",
			session.RawQuery)), nil
	default:
		session.ResetQuery()
		return m.handleQuery(ctx, logger, session, text)
	}
}

// audit records the delivery attempt, best effort.
func (m *Machine) audit(ctx context.Context, logger zerolog.Logger, record *domain.DeliveryRecord) {
	if m.auditor == nil {
		return
	}
	if err := m.auditor.Record(ctx, record); err != nil {
		logger.Warn().Err(err).Msg("delivery audit write failed")
	}
}

// abandonWithApology abandons the session and returns a generic apology,
// never internal detail.
func (m *Machine) abandonWithApology(session *domain.Session) *Reply {
	session.Abandon()
	if m.metrics != nil {
		m.metrics.SessionsAbandoned.Inc()
	}
	return m.reply(session, "Something went wrong on our side and I had to end this session. Please start a new one.")
}

func (m *Machine) reply(session *domain.Session, message string) *Reply {
	return &Reply{
		SessionID: session.ID,
		Message:   message,
		State:     session.State,
	}
}

func (m *Machine) countNormalization(outcome string) {
	if m.metrics != nil {
		m.metrics.Normalizations.WithLabelValues(outcome).Inc()
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
