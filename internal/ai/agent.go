package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"factory-erp/internal/core"
	"factory-erp/internal/logger"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
)

// PlannerService turns production needs into suggestions.
type PlannerService interface {
	Prioritise(ctx context.Context, in PlanInput) ([]core.ProductionSuggestion, error)
}

// PlanInput is what the planner sees: outstanding needs and what is already being made.
type PlanInput struct {
	Today  time.Time             `json:"today"`
	Needs  []core.ProductionNeed `json:"needs"`
	Active []core.ProductionLoad `json:"active"`
}

// suggestionPlan is the structured output requested from the model.
type suggestionPlan struct {
	Suggestions []plannedSuggestion `json:"suggestions"`
}

type plannedSuggestion struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Priority  string `json:"priority" jsonschema:"enum=Imediato,enum=Para Hoje,enum=Para Amanhã,enum=Estoque"`
	Reason    string `json:"reason"`
}

// responder is the slice of the OpenAI client the agent calls.
type responder interface {
	New(ctx context.Context, body responses.ResponseNewParams, opts ...option.RequestOption) (*responses.Response, error)
}

type Agent struct {
	responses responder
	enabled   bool
	log       logger.Logger
}

// NewAgent returns a planner backed by OpenAI. Without an API key it only
// produces the deterministic suggestions.
func NewAgent(apiKey string, log logger.Logger) *Agent {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Agent{responses: &client.Responses, enabled: apiKey != "", log: log}
}

// Prioritise asks the model to rank the needs. Any failure falls back to
// core.SuggestionsFromNeeds so a suggestion run never fails because of the model.
func (a *Agent) Prioritise(ctx context.Context, in PlanInput) ([]core.ProductionSuggestion, error) {
	fallback := core.SuggestionsFromNeeds(in.Needs)
	if !a.enabled || len(in.Needs) == 0 {
		return fallback, nil
	}

	plan, err := a.requestPlan(ctx, in)
	if err != nil {
		a.log.Warn("ai prioritisation failed, using default suggestions", logger.Error(err))
		return fallback, nil
	}
	return mergePlan(in.Needs, plan, fallback), nil
}

func (a *Agent) requestPlan(ctx context.Context, in PlanInput) (*suggestionPlan, error) {
	payload, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal plan input: %w", err)
	}

	prompt := fmt.Sprintf(`You are the production planner of a small factory.
Decide what to produce next from the list of production needs.
Rules:
1. Only use productId values that appear in needs.
2. Quantity must be between 1 and the need's totalQuantity.
3. Needs with reason "orders" block customer orders; prefer "Imediato" or "Para Hoje" for them.
4. Needs with reason "minimum" only replenish stock; prefer "Para Amanhã" or "Estoque".
5. Take the active production into account; do not duplicate work already in progress.
6. Give a one-sentence reason in Portuguese for each suggestion.

Data:
%s`, payload)

	schemaMap, err := planSchema()
	if err != nil {
		return nil, err
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(shared.ChatModelGPT4o),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(prompt),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "production_plan",
					Strict:      param.NewOpt(true),
					Schema:      schemaMap,
					Description: param.NewOpt("Prioritised production suggestions"),
				},
			},
		},
	}

	resp, err := a.responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai responses error: %w", err)
	}

	content := resp.OutputText()
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("empty response content")
	}

	var plan suggestionPlan
	if err := json.Unmarshal([]byte(content), &plan); err != nil {
		return nil, fmt.Errorf("failed to parse completion: %w", err)
	}
	return &plan, nil
}

func planSchema() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schemaJSON, err := json.Marshal(reflector.Reflect(&suggestionPlan{}))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}
	delete(schemaMap, "$schema")
	return schemaMap, nil
}

// mergePlan keeps the model's order and priorities for valid entries and
// appends the default suggestion for every need the model skipped.
func mergePlan(needs []core.ProductionNeed, plan *suggestionPlan, fallback []core.ProductionSuggestion) []core.ProductionSuggestion {
	byProduct := make(map[string]core.ProductionNeed, len(needs))
	for _, n := range needs {
		byProduct[n.ProductID] = n
	}

	out := make([]core.ProductionSuggestion, 0, len(needs))
	covered := map[string]bool{}
	for _, p := range plan.Suggestions {
		need, ok := byProduct[p.ProductID]
		if !ok || covered[p.ProductID] {
			continue
		}
		prio := core.ProductionPriority(p.Priority)
		if !prio.Valid() {
			continue
		}
		qty := p.Quantity
		if qty <= 0 || qty > need.TotalQuantity {
			qty = need.TotalQuantity
		}
		covered[p.ProductID] = true
		out = append(out, core.ProductionSuggestion{
			ProductID:         p.ProductID,
			SuggestedQuantity: qty,
			Priority:          prio,
			Reason:            strings.TrimSpace(p.Reason),
		})
	}
	for _, f := range fallback {
		if !covered[f.ProductID] {
			out = append(out, f)
		}
	}
	return out
}
