package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"

	"lexgate/internal/domain"
	"lexgate/internal/domain/models"
	"lexgate/internal/markdown"
	"lexgate/internal/urlvalidator"
)

// maxToolRounds bounds function-call recursion within one turn.
const maxToolRounds = 4

// OpenAIProvider implements Provider over the Responses API.
type OpenAIProvider struct {
	client    openai.Client
	validator *urlvalidator.Validator
	logger    *slog.Logger
}

func NewOpenAIProvider(apiKey string, validator *urlvalidator.Validator, logger *slog.Logger) *OpenAIProvider {
	return &OpenAIProvider{
		client:    openai.NewClient(option.WithAPIKey(apiKey)),
		validator: validator,
		logger:    logger,
	}
}

// Stream runs one turn against the provider, forwarding deltas as they
// arrive, executing navigate_web calls locally and looping until the model
// produces no further tool calls. Transient upstream failures are retried
// only while nothing has been forwarded yet.
func (p *OpenAIProvider) Stream(ctx context.Context, req StreamRequest, cb Callbacks) (*StreamResult, error) {
	state := &turnState{}

	for attempt := 0; ; attempt++ {
		err := p.run(ctx, req, cb, state)
		if err == nil {
			break
		}
		if state.emitted || attempt >= maxRetries || !transient(err) {
			return nil, p.mapError(ctx, err)
		}
		p.logger.Warn("upstream attempt failed, retrying", "attempt", attempt+1, "error", err)
		if serr := sleepBackoff(ctx, attempt); serr != nil {
			return nil, p.mapError(ctx, serr)
		}
		*state = turnState{}
	}

	text := state.text.String()
	result := &StreamResult{Usage: state.usage, Evidence: state.evidence}

	if req.ValidateURLs && len(state.evidence) > 0 {
		validation := p.validator.Validate(text, state.evidence)
		text = validation.Text
		result.URLValidation = validation
	}
	result.Text = markdown.Normalize(text)
	return result, nil
}

// Generate is the buffered convenience wrapper: same call, deltas discarded
// in favor of the final text.
func (p *OpenAIProvider) Generate(ctx context.Context, req StreamRequest) (*StreamResult, error) {
	return p.Stream(ctx, req, Callbacks{})
}

// turnState accumulates output across the tool-call rounds of one turn.
type turnState struct {
	text     strings.Builder
	usage    *models.TurnUsage
	evidence []models.EvidenceChunk
	emitted  bool
}

// addUsage folds one round's token counts into the turn total. Tool call
// round-trips produce one completed response each; the turn is billed for
// all of them.
func (s *turnState) addUsage(input, output, total int) {
	if s.usage == nil {
		s.usage = &models.TurnUsage{}
	}
	s.usage.InputTokens += input
	s.usage.OutputTokens += output
	s.usage.TotalTokens += total
}

func (p *OpenAIProvider) run(ctx context.Context, req StreamRequest, cb Callbacks, state *turnState) error {
	params := p.buildParams(req)

	for round := 0; ; round++ {
		calls, responseID, err := p.consume(ctx, params, cb, state)
		if err != nil {
			return err
		}
		if len(calls) == 0 {
			return nil
		}
		if round >= maxToolRounds {
			p.logger.Warn("tool round limit reached, stopping recursion", "rounds", round)
			return nil
		}

		var items responses.ResponseInputParam
		for _, call := range calls {
			output := p.executeCall(ctx, req.Executor, call)
			items = append(items, responses.ResponseInputItemParamOfFunctionCallOutput(call.CallID, output))
		}
		params = p.buildParams(req)
		params.PreviousResponseID = openai.String(responseID)
		params.Input = responses.ResponseNewParamsInputUnion{OfInputItemList: items}
	}
}

func (p *OpenAIProvider) buildParams(req StreamRequest) responses.ResponseNewParams {
	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(req.Model),
		Input: responses.ResponseNewParamsInputUnion{OfString: openai.String(req.Input)},
	}
	if req.Instructions != "" {
		params.Instructions = openai.String(req.Instructions)
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(req.MaxTokens))
	}
	for _, t := range req.Tools {
		switch t.Kind {
		case ToolKindFileSearch:
			params.Tools = append(params.Tools, responses.ToolUnionParam{
				OfFileSearch: &responses.FileSearchToolParam{VectorStoreIDs: t.VectorStoreIDs},
			})
		case ToolKindWebSearch:
			params.Tools = append(params.Tools, responses.ToolUnionParam{
				OfWebSearchPreview: &responses.WebSearchToolParam{
					Type: responses.WebSearchToolTypeWebSearchPreview,
				},
			})
		case ToolKindFunction:
			params.Tools = append(params.Tools, responses.ToolUnionParam{
				OfFunction: &responses.FunctionToolParam{
					Name:        t.Name,
					Description: openai.String(t.Description),
					Parameters:  t.Parameters,
					Strict:      openai.Bool(false),
				},
			})
		}
	}
	if req.IncludeRetrievalResults {
		params.Include = []responses.ResponseIncludable{
			responses.ResponseIncludableFileSearchCallResults,
		}
	}
	return params
}

// consume drains one streaming call, returning any function calls the model
// requires before it can continue.
func (p *OpenAIProvider) consume(ctx context.Context, params responses.ResponseNewParams, cb Callbacks, state *turnState) ([]functionCall, string, error) {
	stream := p.client.Responses.NewStreaming(ctx, params)
	defer stream.Close()

	var calls []functionCall
	var responseID string

	for stream.Next() {
		event := stream.Current()
		switch ev := event.AsAny().(type) {
		case responses.ResponseTextDeltaEvent:
			state.text.WriteString(ev.Delta)
			state.emitted = true
			if cb.OnDelta != nil {
				cb.OnDelta(ev.Delta)
			}

		case responses.ResponseCompletedEvent:
			responseID = ev.Response.ID
			state.addUsage(
				int(ev.Response.Usage.InputTokens),
				int(ev.Response.Usage.OutputTokens),
				int(ev.Response.Usage.TotalTokens),
			)

		case responses.ResponseOutputItemDoneEvent:
			switch item := ev.Item.AsAny().(type) {
			case responses.ResponseFunctionToolCall:
				calls = append(calls, functionCall{
					CallID:    item.CallID,
					Name:      item.Name,
					Arguments: item.Arguments,
				})
			case responses.ResponseFileSearchToolCall:
				for i, res := range item.Results {
					id := res.Filename
					if id == "" {
						id = fmt.Sprintf("chunk-%d", len(state.evidence)+i)
					}
					state.evidence = append(state.evidence, models.EvidenceChunk{ID: id, Text: res.Text})
				}
			}

		case responses.ResponseFileSearchCallSearchingEvent:
			if cb.OnStatus != nil {
				cb.OnStatus("🔎 Consultando la base de conocimiento...")
			}

		case responses.ResponseWebSearchCallSearchingEvent:
			if cb.OnStatus != nil {
				cb.OnStatus("🌐 Buscando en la web...")
			}

		case responses.ResponseErrorEvent:
			return nil, "", fmt.Errorf("provider stream error: %s", ev.Message)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, "", err
	}
	return calls, responseID, nil
}

// executeCall runs one synchronous tool call. Failures flow back to the
// model as an error object; the turn continues.
func (p *OpenAIProvider) executeCall(ctx context.Context, executor ToolExecutor, call functionCall) string {
	p.logger.Debug("executing tool call", "tool", call.Name)
	if executor == nil {
		return `{"error":"no tool executor configured"}`
	}
	return executor.Execute(ctx, call.Name, json.RawMessage(call.Arguments))
}

func (p *OpenAIProvider) mapError(ctx context.Context, err error) error {
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		return domain.ErrDeadlineExceeded()
	case ctx.Err() == context.Canceled:
		return domain.ErrCancelled()
	case badRequest(err):
		return domain.ErrBadRequestUpstream(err)
	default:
		return domain.ErrUpstreamUnavailable(err)
	}
}
