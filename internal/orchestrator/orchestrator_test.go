package orchestrator

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"lexgate/internal/config"
	"lexgate/internal/credits"
	"lexgate/internal/domain"
	"lexgate/internal/domain/models"
	"lexgate/internal/llm"
	"lexgate/internal/memory"
	"lexgate/internal/normative"
)

// fakeTenants serves a single in-memory tenant.
type fakeTenants struct {
	tenant *models.Tenant
}

func (f *fakeTenants) Load(id string) (*models.Tenant, error) {
	if id != f.tenant.ID {
		return nil, domain.ErrTenantNotFound(id)
	}
	return f.tenant, nil
}

// fakeUsers mirrors the Postgres repository's debit semantics in memory.
type fakeUsers struct {
	mu       sync.Mutex
	balances map[string]int
	users    map[string]*models.User
}

func (f *fakeUsers) GetByID(_ context.Context, userID string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok {
		u.CreditBalance = f.balances[userID]
		return u, nil
	}
	return nil, &domain.NotFoundError{Message: "user not found: " + userID}
}

func (f *fakeUsers) Debit(_ context.Context, userID string, credits int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balances[userID] < credits {
		return 0, domain.ErrInsufficientBalance
	}
	f.balances[userID] -= credits
	return f.balances[userID], nil
}

func (f *fakeUsers) Credit(_ context.Context, userID string, credits int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[userID] += credits
	return nil
}

// fakeProvider emits scripted deltas and a fixed usage record.
type fakeProvider struct {
	deltas []string
	usage  models.TurnUsage
	err    error
	calls  int
}

func (f *fakeProvider) Stream(_ context.Context, req llm.StreamRequest, cb llm.Callbacks) (*llm.StreamResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var text strings.Builder
	for _, d := range f.deltas {
		text.WriteString(d)
		if cb.OnDelta != nil {
			cb.OnDelta(d)
		}
	}
	usage := f.usage
	return &llm.StreamResult{Text: text.String(), Usage: &usage}, nil
}

// fakeResolver records the text and view config of every Process call.
type fakeResolver struct {
	mu     sync.Mutex
	views  []normative.ViewConfig
	result *models.AnnexResult
}

func (f *fakeResolver) Process(_ context.Context, _ string, view normative.ViewConfig) (*models.AnnexResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views = append(f.views, view)
	return f.result, nil
}

// fakeSink captures forwarded attachments on a channel; Forward runs in a
// goroutine of its own.
type sinkCall struct {
	userID        string
	vectorStoreID string
	att           models.Attachment
}

type fakeSink struct {
	calls chan sinkCall
}

func (f *fakeSink) Forward(userID, vectorStoreID string, att models.Attachment) {
	f.calls <- sinkCall{userID: userID, vectorStoreID: vectorStoreID, att: att}
}

// memCache is an in-process Cache for hit/miss assertions.
type memCache struct {
	mu      sync.Mutex
	entries map[string]*models.TurnResult
}

func newMemCache() *memCache { return &memCache{entries: map[string]*models.TurnResult{}} }

func (c *memCache) Get(_ context.Context, key string) (*models.TurnResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.entries[key]; ok {
		copied := *r
		return &copied, true
	}
	return nil, false
}

func (c *memCache) Set(_ context.Context, key string, result *models.TurnResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := *result
	c.entries[key] = &copied
	return nil
}

func (c *memCache) Close() error { return nil }

// collector records the callback sequence of one turn.
type collector struct {
	deltas   []string
	result   *models.TurnResult
	err      error
	afterEnd bool
}

func (c *collector) callbacks() Callbacks {
	return Callbacks{
		OnDelta: func(d string) {
			if c.result != nil || c.err != nil {
				c.afterEnd = true
			}
			c.deltas = append(c.deltas, d)
		},
		OnStatus:   func(string) {},
		OnComplete: func(r *models.TurnResult) { c.result = r },
		OnError:    func(err error) { c.err = err },
	}
}

type fixture struct {
	orch     *Orchestrator
	users    *fakeUsers
	provider *fakeProvider
	cache    *memCache
	memory   *memory.Store
}

func newFixture(t *testing.T, balance int, mutate func(*models.TenantConfig)) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg := (&models.TenantConfig{Model: "gpt-4o", CreditsEnabled: true}).Normalized()
	if mutate != nil {
		mutate(cfg)
	}
	tenant := &models.Tenant{
		ID:           "general",
		Name:         "General",
		SystemPrompt: "Eres un asistente.",
		Config:       cfg,
	}

	users := &fakeUsers{
		balances: map[string]int{"u1": balance},
		users:    map[string]*models.User{"u1": {ID: "u1", DisplayName: "Ana"}},
	}
	pricing, err := config.NewPricingRegistry("")
	if err != nil {
		t.Fatalf("load pricing: %v", err)
	}
	provider := &fakeProvider{
		deltas: []string{"Hola, ", "¿en qué puedo ayudarte?"},
		usage:  models.TurnUsage{InputTokens: 20, OutputTokens: 10, TotalTokens: 30},
	}
	store := memory.NewStore(t.TempDir(), logger)
	mc := newMemCache()

	orch := New(Config{
		Tenants:         &fakeTenants{tenant: tenant},
		Memory:          store,
		Cache:           mc,
		Credits:         credits.NewManager(users, pricing, logger),
		Users:           users,
		Provider:        provider,
		DefaultInstance: "general",
		Logger:          logger,
	})
	return &fixture{orch: orch, users: users, provider: provider, cache: mc, memory: store}
}

func TestHappyPathNoTools(t *testing.T) {
	f := newFixture(t, 100, nil)
	col := &collector{}

	f.orch.Run(context.Background(), TurnRequest{
		Question: "Hola, ¿cómo estás?", UserID: "u1", ChatID: "c1",
	}, col.callbacks())

	if col.err != nil {
		t.Fatalf("turn failed: %v", col.err)
	}
	if len(col.deltas) < 1 {
		t.Fatal("no deltas emitted")
	}
	if col.result == nil {
		t.Fatal("no terminal event")
	}
	if col.afterEnd {
		t.Error("delta emitted after the terminal event")
	}
	if col.result.Usage == nil || col.result.Usage.InputTokens < 1 || col.result.Usage.OutputTokens < 1 {
		t.Errorf("usage = %+v", col.result.Usage)
	}

	messages, _ := f.memory.LoadContext("u1", "c1")
	if len(messages) != 2 {
		t.Errorf("memory entries = %d, want 2", len(messages))
	}
	n, _ := f.memory.LoadTurnCount("u1", "c1")
	if n != 1 {
		t.Errorf("counter = %d, want 1", n)
	}
	if f.users.balances["u1"] >= 100 {
		t.Errorf("balance = %d, want < 100", f.users.balances["u1"])
	}
	if col.result.Debit == nil || f.users.balances["u1"] != 100-col.result.Debit.Credits {
		t.Errorf("balance %d does not match debit %+v", f.users.balances["u1"], col.result.Debit)
	}
}

func TestInteractionLimitRefusal(t *testing.T) {
	f := newFixture(t, 100, nil)
	max := (&models.TenantConfig{}).Normalized().MaxChatInteractions
	if err := f.memory.SaveTurnCount("u1", "c1", max); err != nil {
		t.Fatal(err)
	}
	col := &collector{}

	f.orch.Run(context.Background(), TurnRequest{Question: "hola", UserID: "u1", ChatID: "c1"}, col.callbacks())

	if col.err != nil {
		t.Fatalf("expected refusal via done, got error %v", col.err)
	}
	if len(col.deltas) != 1 || !strings.Contains(col.deltas[0], "límite máximo de interacciones") {
		t.Errorf("deltas = %v", col.deltas)
	}
	if col.result == nil || !col.result.InteractionStatus.LimitReached {
		t.Errorf("result = %+v", col.result)
	}
	if f.provider.calls != 0 {
		t.Error("provider must not be called at the limit")
	}
	messages, _ := f.memory.LoadContext("u1", "c1")
	if len(messages) != 0 {
		t.Errorf("memory entries = %d, want 0", len(messages))
	}
	if f.users.balances["u1"] != 100 {
		t.Errorf("balance = %d, want 100", f.users.balances["u1"])
	}
}

func TestCacheHitSecondCall(t *testing.T) {
	f := newFixture(t, 100, nil)

	first := &collector{}
	f.orch.Run(context.Background(), TurnRequest{Question: "¿Qué es la Ley 20.190?", UserID: "u1", ChatID: "c1"}, first.callbacks())
	if first.err != nil {
		t.Fatalf("first turn failed: %v", first.err)
	}
	balanceAfterFirst := f.users.balances["u1"]
	messagesAfterFirst, _ := f.memory.LoadContext("u1", "c1")

	second := &collector{}
	f.orch.Run(context.Background(), TurnRequest{Question: "  ¿qué es la ley 20.190? ", UserID: "u1", ChatID: "c2"}, second.callbacks())
	if second.err != nil {
		t.Fatalf("second turn failed: %v", second.err)
	}

	if strings.Join(second.deltas, "") != first.result.Text {
		t.Errorf("cached deltas = %q, want %q", strings.Join(second.deltas, ""), first.result.Text)
	}
	if !second.result.FromCache {
		t.Error("fromCache not set")
	}
	if second.result.Debit == nil || second.result.Debit.Credits != 0 {
		t.Errorf("cached debit = %+v, want 0 credits", second.result.Debit)
	}
	if f.users.balances["u1"] != balanceAfterFirst {
		t.Error("cache hit changed the balance")
	}
	if f.provider.calls != 1 {
		t.Errorf("provider calls = %d, want 1", f.provider.calls)
	}
	messagesNow, _ := f.memory.LoadContext("u1", "c1")
	if len(messagesNow) != len(messagesAfterFirst) {
		t.Error("cache hit appended memory entries")
	}
}

func TestInsufficientCreditsBeforeStream(t *testing.T) {
	f := newFixture(t, 0, nil)
	col := &collector{}

	f.orch.Run(context.Background(), TurnRequest{Question: "hola", UserID: "u1", ChatID: "c1"}, col.callbacks())

	if domain.CodeOf(col.err) != domain.CodeInsufficientCredit {
		t.Fatalf("error code = %s, want %s", domain.CodeOf(col.err), domain.CodeInsufficientCredit)
	}
	if col.result != nil || len(col.deltas) != 0 {
		t.Error("refusal must precede any stream output")
	}
	if f.provider.calls != 0 {
		t.Error("provider must not be called")
	}
	messages, _ := f.memory.LoadContext("u1", "c1")
	if len(messages) != 0 {
		t.Error("memory must stay empty")
	}
}

func TestProviderErrorPersistsNothing(t *testing.T) {
	f := newFixture(t, 100, nil)
	f.provider.err = domain.ErrUpstreamUnavailable(nil)
	col := &collector{}

	f.orch.Run(context.Background(), TurnRequest{Question: "hola", UserID: "u1", ChatID: "c1"}, col.callbacks())

	if domain.CodeOf(col.err) != domain.CodeUpstreamUnavail {
		t.Fatalf("error code = %s", domain.CodeOf(col.err))
	}
	messages, _ := f.memory.LoadContext("u1", "c1")
	if len(messages) != 0 {
		t.Error("failed turn appended memory")
	}
	if f.users.balances["u1"] != 100 {
		t.Error("failed turn changed the balance")
	}
}

func TestBufferedModeSingleDelta(t *testing.T) {
	f := newFixture(t, 100, func(cfg *models.TenantConfig) { cfg.APIMode = "buffered" })
	col := &collector{}

	f.orch.Run(context.Background(), TurnRequest{Question: "hola", UserID: "u1", ChatID: "c1"}, col.callbacks())

	if col.err != nil {
		t.Fatalf("turn failed: %v", col.err)
	}
	if len(col.deltas) != 1 {
		t.Fatalf("deltas = %d, want 1 buffered delivery", len(col.deltas))
	}
	if col.deltas[0] != col.result.Text {
		t.Error("buffered delta must carry the full text")
	}
}

func TestCitationAnnexUsesTenantViewConfig(t *testing.T) {
	f := newFixture(t, 100, func(cfg *models.TenantConfig) {
		cfg.CitationsEnabled = true
		cfg.VerificationDirective = "Verifica cada cita contra el texto literal."
		cfg.ModelViewFields = []string{"clave", "texto"}
		cfg.UserViewFields = []string{"norm", "url"}
	})
	entries := []models.AnnexEntry{{Key: "CCCH.Art1545", Norm: "Código Civil", URL: "https://u"}}
	modelView := "[CCCH.Art1545]\nnorma: Código Civil\ntexto: El contrato es ley para las partes."
	resolver := &fakeResolver{result: &models.AnnexResult{
		HasResults: true,
		ModelView:  modelView,
		UserView:   entries,
	}}
	f.orch.resolver = resolver
	col := &collector{}

	f.orch.Run(context.Background(), TurnRequest{Question: "Ver CCCH.Art1545", UserID: "u1", ChatID: "c1"}, col.callbacks())

	if col.err != nil {
		t.Fatalf("turn failed: %v", col.err)
	}
	if len(resolver.views) != 1 {
		t.Fatalf("resolver calls = %d, want 1", len(resolver.views))
	}
	view := resolver.views[0]
	if view.VerificationDirective != "Verifica cada cita contra el texto literal." {
		t.Errorf("directive = %q", view.VerificationDirective)
	}
	if len(view.ModelViewFields) != 2 || len(view.UserViewFields) != 2 {
		t.Errorf("field whitelists not forwarded: %+v", view)
	}
	if len(col.result.Annex) != 1 || col.result.Annex[0].Key != "CCCH.Art1545" {
		t.Errorf("annex = %+v", col.result.Annex)
	}

	// The model view ends up as the stored annex content so the next turn
	// replays the article text.
	messages, _ := f.memory.LoadContext("u1", "c1")
	last := messages[len(messages)-1]
	if last.Role != models.RoleSystemAnnex {
		t.Fatalf("last role = %s", last.Role)
	}
	if last.Content != modelView {
		t.Errorf("annex content = %q, want the model view", last.Content)
	}
}

func TestTextAttachmentForwardedToSink(t *testing.T) {
	f := newFixture(t, 100, func(cfg *models.TenantConfig) {
		cfg.RetrievalEnabled = true
		cfg.VectorStoreIDs = []string{"vs_demo"}
	})
	sink := &fakeSink{calls: make(chan sinkCall, 1)}
	f.orch.sink = sink
	col := &collector{}

	f.orch.Run(context.Background(), TurnRequest{
		Question: "hola", UserID: "u1", ChatID: "c1",
		Attachments: []models.Attachment{{Name: "nota.md", MIMEType: "text/markdown", Content: "contenido"}},
	}, col.callbacks())

	if col.err != nil {
		t.Fatalf("turn failed: %v", col.err)
	}
	select {
	case call := <-sink.calls:
		if call.userID != "u1" || call.vectorStoreID != "vs_demo" || call.att.Name != "nota.md" {
			t.Errorf("forwarded call = %+v", call)
		}
	case <-time.After(time.Second):
		t.Fatal("attachment never reached the sink")
	}
}

func TestCreditsDisabledSkipsDebit(t *testing.T) {
	f := newFixture(t, 0, func(cfg *models.TenantConfig) { cfg.CreditsEnabled = false })
	col := &collector{}

	f.orch.Run(context.Background(), TurnRequest{Question: "hola", UserID: "u1", ChatID: "c1"}, col.callbacks())

	if col.err != nil {
		t.Fatalf("turn failed: %v", col.err)
	}
	if col.result.Debit == nil || col.result.Debit.Credits != 0 {
		t.Errorf("debit = %+v", col.result.Debit)
	}
}
