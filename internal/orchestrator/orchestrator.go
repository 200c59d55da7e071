// Package orchestrator runs the end-to-end pipeline for one user turn:
// tenant resolution, prompt assembly, memory, limits, credits, cache, the
// provider call and the completion side effects.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"lexgate/internal/cache"
	"lexgate/internal/credits"
	"lexgate/internal/domain"
	"lexgate/internal/domain/models"
	"lexgate/internal/domain/repositories"
	"lexgate/internal/llm"
	"lexgate/internal/memory"
	"lexgate/internal/normative"
	"lexgate/internal/prompt"
	"lexgate/internal/webtool"
)

const attachmentPreviewChars = 500

// TenantLoader resolves instance ids to loaded tenants.
type TenantLoader interface {
	Load(id string) (*models.Tenant, error)
}

// CitationResolver expands normative citations in finished answers. The view
// configuration comes from the tenant serving the turn.
type CitationResolver interface {
	Process(ctx context.Context, text string, view normative.ViewConfig) (*models.AnnexResult, error)
}

// AttachmentSink receives text-like attachments for asynchronous indexing
// into the tenant's retrieval store.
type AttachmentSink interface {
	Forward(userID, vectorStoreID string, attachment models.Attachment)
}

// TurnRequest identifies one user turn.
type TurnRequest struct {
	Question    string
	UserID      string
	ChatID      string
	InstanceID  string
	Attachments []models.Attachment
}

// Callbacks deliver the turn's output. OnComplete and OnError are mutually
// exclusive and fire exactly once, after the last delta.
type Callbacks struct {
	OnDelta    func(delta string)
	OnStatus   func(message string)
	OnComplete func(result *models.TurnResult)
	OnError    func(err error)
}

// Orchestrator wires the pipeline. All dependencies are process-wide.
type Orchestrator struct {
	tenants   TenantLoader
	memory    *memory.Store
	cache     cache.Cache
	credits   *credits.Manager
	users     repositories.UserRepository
	provider  llm.Provider
	resolver  CitationResolver
	navigator *webtool.Navigator
	sink      AttachmentSink

	defaultInstance string
	logger          *slog.Logger
}

type Config struct {
	Tenants         TenantLoader
	Memory          *memory.Store
	Cache           cache.Cache
	Credits         *credits.Manager
	Users           repositories.UserRepository
	Provider        llm.Provider
	Resolver        CitationResolver
	Navigator       *webtool.Navigator
	Sink            AttachmentSink
	DefaultInstance string
	Logger          *slog.Logger
}

func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		tenants:         cfg.Tenants,
		memory:          cfg.Memory,
		cache:           cfg.Cache,
		credits:         cfg.Credits,
		users:           cfg.Users,
		provider:        cfg.Provider,
		resolver:        cfg.Resolver,
		navigator:       cfg.Navigator,
		sink:            cfg.Sink,
		defaultInstance: cfg.DefaultInstance,
		logger:          cfg.Logger,
	}
}

// Run executes one turn. It blocks until the terminal callback has fired.
func (o *Orchestrator) Run(ctx context.Context, req TurnRequest, cb Callbacks) {
	if err := o.run(ctx, req, cb); err != nil {
		cb.OnError(err)
	}
}

func (o *Orchestrator) run(ctx context.Context, req TurnRequest, cb Callbacks) error {
	// 1. Resolve tenant.
	instanceID := req.InstanceID
	if instanceID == "" {
		instanceID = o.defaultInstance
	}
	tenant, err := o.tenants.Load(instanceID)
	if err != nil {
		return err
	}
	cfg := tenant.Config

	// 2. Serialize turns per (user, chat). Held through persistence and
	// debit; released on every path.
	unlock := o.memory.Lock(req.UserID, req.ChatID)
	defer unlock()

	// 3. Buffered mode is the degenerate case: deltas are held back and the
	// full text is delivered as one delta before the terminal event.
	streaming := cfg.APIMode == "streaming"

	// 4. System prompt plus injected context.
	user, err := o.users.GetByID(ctx, req.UserID)
	if err != nil {
		return err
	}
	contextPrefix := prompt.Build(prompt.Inputs{
		Config:         cfg,
		UserID:         user.ID,
		DisplayName:    user.DisplayName,
		GeneralContext: user.GeneralContext,
		KnowledgeFiles: tenant.KnowledgeFiles,
	})
	instructions := tenant.SystemPrompt
	if contextPrefix != "" {
		instructions += "\n\n" + contextPrefix
	}

	// 5. Conversation history, already window-bounded on disk.
	history, err := o.memory.LoadContext(req.UserID, req.ChatID)
	if err != nil {
		return domain.ErrPersistenceFailed(err)
	}
	if len(history) == 0 && tenant.InitializationMessage != "" {
		if err := o.memory.SaveInit(req.UserID, req.ChatID, tenant.InitializationMessage); err != nil {
			o.logger.Warn("init entry write failed", "chat_id", req.ChatID, "error", err)
		}
	}

	// 6. Interaction limit: refuse politely, persist nothing, debit nothing.
	status, err := o.memory.InteractionStatus(req.UserID, req.ChatID, cfg.MaxChatInteractions, cfg.WarningThreshold)
	if err != nil {
		return domain.ErrPersistenceFailed(err)
	}
	if status.LimitReached {
		limitErr := domain.ErrInteractionLimit()
		cb.OnDelta(limitErr.Message)
		cb.OnComplete(&models.TurnResult{
			Text:              limitErr.Message,
			InteractionStatus: status,
		})
		return nil
	}

	// 7. Credit floor pre-check before any provider spend.
	if err := o.credits.Precheck(ctx, req.UserID, cfg.CreditsEnabled); err != nil {
		return err
	}

	// 8. Attachments never block assembly: text-like ones are forwarded
	// asynchronously when retrieval is on, and previewed inline.
	attachmentBlock := o.handleAttachments(req, cfg)

	// 9. Cache lookup.
	key := cache.Key(cacheParams(cfg, req.UserID), req.Question)
	if cached, ok := o.cache.Get(ctx, key); ok {
		o.logger.Debug("cache hit", "key", key)
		cb.OnDelta(cached.Text)
		cached.FromCache = true
		cached.Debit = &models.CreditDebit{Credits: 0, FromCache: true}
		cached.InteractionStatus = status
		cb.OnComplete(cached)
		return nil
	}

	// 10-12. Assemble input and stream.
	input := buildInput(cfg, history, req.Question, attachmentBlock)

	streamReq := llm.StreamRequest{
		Model:                   cfg.Model,
		Instructions:            instructions,
		Input:                   input,
		Temperature:             cfg.Temperature,
		MaxTokens:               cfg.MaxTokens,
		Tools:                   llm.BuildTools(cfg),
		IncludeRetrievalResults: cfg.RetrievalEnabled && cfg.URLValidationEnabled,
		ValidateURLs:            cfg.URLValidationEnabled,
	}
	if cfg.FunctionsEnabled && cfg.WebNavigation.Enabled {
		streamReq.Executor = webtool.NewExecutor(o.navigator, cfg.WebNavigation, o.logger)
	}

	var buffered strings.Builder
	streamCB := llm.Callbacks{OnStatus: cb.OnStatus}
	if streaming {
		streamCB.OnDelta = cb.OnDelta
	} else {
		streamCB.OnDelta = func(delta string) { buffered.WriteString(delta) }
	}

	result, err := o.provider.Stream(ctx, streamReq, streamCB)
	if err != nil {
		return err
	}
	if !streaming {
		cb.OnDelta(result.Text)
	}

	// 13. Completion pipeline.
	return o.complete(ctx, req, tenant, key, status, result, cb)
}

func (o *Orchestrator) complete(ctx context.Context, req TurnRequest, tenant *models.Tenant, cacheKey string, status *models.InteractionStatus, result *llm.StreamResult, cb Callbacks) error {
	cfg := tenant.Config

	// a. Normative citation annexes.
	var annex *models.AnnexResult
	if cfg.CitationsEnabled && o.resolver != nil {
		view := normative.ViewConfig{
			VerificationDirective: cfg.VerificationDirective,
			ModelViewFields:       cfg.ModelViewFields,
			UserViewFields:        cfg.UserViewFields,
		}
		var err error
		annex, err = o.resolver.Process(ctx, result.Text, view)
		if err != nil {
			// Annex failures never cost the user their answer.
			o.logger.Warn("citation resolution failed", "chat_id", req.ChatID, "error", err)
			annex = nil
		}
	}
	var annexEntries []models.AnnexEntry
	var annexText string
	if annex != nil && annex.HasResults {
		annexEntries = annex.UserView
		annexText = annex.ModelView
	}

	// b. Persist the turn and advance the counter; failure here aborts the
	// debit and discards the answer. The model view is stored as the annex
	// entry's content so follow-up turns carry the verbose article text.
	if err := o.memory.SaveTurn(req.UserID, req.ChatID, req.Question, result.Text, result.Usage, annexText, annexEntries, cfg.MaxHistory); err != nil {
		return domain.ErrPersistenceFailed(err)
	}
	if err := o.memory.SaveTurnCount(req.UserID, req.ChatID, status.Current+1); err != nil {
		return domain.ErrPersistenceFailed(err)
	}
	newStatus, err := o.memory.InteractionStatus(req.UserID, req.ChatID, cfg.MaxChatInteractions, cfg.WarningThreshold)
	if err != nil {
		return domain.ErrPersistenceFailed(err)
	}

	// c. Debit.
	debit, err := o.credits.Debit(ctx, req.UserID, cfg.Model, result.Usage, cfg.CreditsEnabled)
	if err != nil {
		return err
	}

	turn := &models.TurnResult{
		Text:              result.Text,
		Usage:             result.Usage,
		InteractionStatus: newStatus,
		Debit:             debit,
		Annex:             annexEntries,
		URLValidation:     result.URLValidation,
	}

	// d. Cache for identical questions; failures degrade silently.
	if err := o.cache.Set(ctx, cacheKey, turn); err != nil {
		o.logger.Warn("cache store failed", "key", cacheKey, "error", err)
	}

	// e. Terminal event.
	cb.OnComplete(turn)
	return nil
}

// handleAttachments returns the inline block appended to the user message.
func (o *Orchestrator) handleAttachments(req TurnRequest, cfg *models.TenantConfig) string {
	if len(req.Attachments) == 0 {
		return ""
	}

	var b strings.Builder
	for _, att := range req.Attachments {
		if cfg.RetrievalEnabled && att.TextLike() {
			if o.sink != nil && len(cfg.VectorStoreIDs) > 0 {
				go o.sink.Forward(req.UserID, cfg.VectorStoreIDs[0], att)
			}
			preview := att.Content
			if runes := []rune(preview); len(runes) > attachmentPreviewChars {
				preview = string(runes[:attachmentPreviewChars]) + "…"
			}
			fmt.Fprintf(&b, "\n\n[Adjunto: %s]\n%s", att.Name, preview)
		} else {
			fmt.Fprintf(&b, "\n\n[Adjunto no procesable: %s (%s)]", att.Name, att.MIMEType)
		}
	}
	return b.String()
}

// buildInput serializes the role-marked conversation for the provider. The
// policy prefix, when applicable, leads the blob.
func buildInput(cfg *models.TenantConfig, history []models.Message, question, attachmentBlock string) string {
	var b strings.Builder

	if policy := llm.PolicyPrefix(cfg); policy != "" {
		b.WriteString(policy)
		b.WriteString("\n\n")
	}

	for _, msg := range history {
		switch msg.Role {
		case models.RoleUser:
			fmt.Fprintf(&b, "[Usuario]: %s\n", msg.Content)
		case models.RoleAssistant:
			fmt.Fprintf(&b, "[Asistente]: %s\n", msg.Content)
		case models.RoleSystemAnnex, models.RoleSystemInit:
			fmt.Fprintf(&b, "[Sistema]: %s\n", msg.Content)
		}
	}

	fmt.Fprintf(&b, "[Usuario]: %s%s", question, attachmentBlock)
	return b.String()
}

func cacheParams(cfg *models.TenantConfig, userID string) cache.KeyParams {
	return cache.KeyParams{
		Model:            cfg.Model,
		APIMode:          cfg.APIMode,
		RetrievalEnabled: cfg.RetrievalEnabled,
		WebSearchEnabled: cfg.WebSearchEnabled,
		UserID:           userID,
	}
}
