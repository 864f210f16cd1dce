package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"carbontracker/internal/core"
)

const estimateInstruction = `You extract purchase details from a short free-text description.
Return the product name, a realistic shipping weight in kilograms, a realistic shipping distance in kilometres and the best matching category.
If the description does not mention a value, estimate a typical one.`

const tipsInstruction = `You are an expert on sustainability and carbon footprints.
Analyze my user's carbon footprint summary (in kg CO₂) and provide 3-5 personalized, actionable, and encouraging tips for them to reduce their impact.
Format the response as a simple numbered list. Be friendly and non-judgmental. Do not use markdown. Start directly with the tips.`

// Generator sends one generateContent request and returns the answer text.
type Generator interface {
	Call(ctx context.Context, req GenerateRequest) (string, error)
}

// Estimate is the structured answer used to pre-fill the purchase form.
type Estimate struct {
	ProductName      string        `json:"productName"`
	Weight           float64       `json:"weight"`
	ShippingDistance float64       `json:"shippingDistance"`
	Category         core.Category `json:"category"`
}

// Input converts the estimate into a purchase input with the default mode.
func (e Estimate) Input() core.PurchaseInput {
	return core.PurchaseInput{
		ProductName:      e.ProductName,
		Weight:           e.Weight,
		ShippingDistance: e.ShippingDistance,
		DeliveryMode:     core.Ground,
		Category:         e.Category,
	}.Normalized()
}

type Assistant struct {
	gen Generator
}

func NewAssistant(gen Generator) *Assistant {
	return &Assistant{gen: gen}
}

// EstimateFromDescription asks for product name, weight, distance and
// category for a free-text description.
func (a *Assistant) EstimateFromDescription(ctx context.Context, description string) (Estimate, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return Estimate{}, ErrEmptyDescription
	}

	req := userPrompt(estimateInstruction, "Purchase description: "+description)
	req.GenerationConfig = &GenerationConfig{
		ResponseMimeType: "application/json",
		ResponseSchema:   estimateSchema(),
	}

	text, err := a.gen.Call(ctx, req)
	if err != nil {
		return Estimate{}, err
	}

	schema, err := compiledEstimateSchema()
	if err != nil {
		return Estimate{}, fmt.Errorf("compile estimate schema: %w", err)
	}
	if err := validateAgainst(schema, text); err != nil {
		return Estimate{}, err
	}

	var est Estimate
	if err := json.Unmarshal([]byte(text), &est); err != nil {
		return Estimate{}, malformed("decode estimate: %v", err)
	}
	if est.Weight <= 0 || est.ShippingDistance <= 0 {
		return Estimate{}, malformed("non-positive weight or distance")
	}
	return est, nil
}

// SummarizeTips asks for reduction tips based on per-category totals.
func (a *Assistant) SummarizeTips(ctx context.Context, records []core.Purchase) (string, error) {
	summary := SummaryPrompt(records)
	if summary == "" {
		return "", ErrNothingToSummarize
	}
	user := "Here is my carbon footprint summary:\n" + summary + "\n\nPlease give me my personalized tips."
	return a.gen.Call(ctx, userPrompt(tipsInstruction, user))
}

// SummaryPrompt renders one "Category: 12.34 kg CO₂" line per category in
// the order categories first appear. Zero totals are kept.
func SummaryPrompt(records []core.Purchase) string {
	var order []core.Category
	totals := make(map[core.Category]float64)
	for _, p := range records {
		label := p.Category.Label()
		if _, seen := totals[label]; !seen {
			order = append(order, label)
		}
		totals[label] += p.Emission()
	}

	lines := make([]string, 0, len(order))
	for _, label := range order {
		lines = append(lines, fmt.Sprintf("%s: %.2f kg CO₂", label, totals[label]))
	}
	return strings.Join(lines, "\n")
}
