package service

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/clipforge/clipforge/internal/domain"
	"github.com/clipforge/clipforge/internal/domain/feedback"
	"github.com/clipforge/clipforge/internal/port/llm"
	"github.com/clipforge/clipforge/internal/port/projectstore"
)

//go:embed templates/analyze_feedback.tmpl
var analyzeFeedbackTmpl string

var analyzeTmpl = template.Must(template.New("analyze_feedback").Parse(analyzeFeedbackTmpl))

type analyzePromptData struct {
	SceneList string
	Feedback  string
}

// analysisResult is the shape the model is asked to return.
type analysisResult struct {
	Intent           string   `json:"intent"`
	SubIntents       []string `json:"sub_intents"`
	AffectedSceneIDs []string `json:"affected_scene_ids"`
	Scope            string   `json:"scope"`
	Interpretation   string   `json:"interpretation"`
}

// Parser classifies free-text feedback into an intent and target scenes.
type Parser struct {
	provider llm.Provider
	projects projectstore.Store
	logger   *slog.Logger
}

// NewParser creates the analysis stage.
func NewParser(provider llm.Provider, projects projectstore.Store, logger *slog.Logger) *Parser {
	return &Parser{provider: provider, projects: projects, logger: logger}
}

// Parse classifies the item's feedback text, writing intent, target and
// interpretation onto it. Failures are folded into the item's status; Parse
// itself only returns an error for programming mistakes (nil item).
func (p *Parser) Parse(ctx context.Context, item *feedback.Item) error {
	if item == nil {
		return fmt.Errorf("%w: nil feedback item", domain.ErrValidation)
	}
	item.Status = feedback.StatusAnalyzing

	var buf bytes.Buffer
	if err := analyzeTmpl.Execute(&buf, analyzePromptData{
		SceneList: p.sceneList(ctx),
		Feedback:  sanitizePromptInput(item.FeedbackText),
	}); err != nil {
		item.Fail(fmt.Sprintf("render analysis prompt: %v", err))
		return nil
	}

	raw, err := p.provider.GenerateJSON(ctx, buf.String(), "")
	if err != nil {
		item.Fail(fmt.Sprintf("feedback analysis failed: %v", err))
		return nil
	}
	if raw == nil {
		item.Fail("feedback analysis returned no result")
		return nil
	}

	var res analysisResult
	if err := json.Unmarshal(raw, &res); err != nil {
		item.Fail(fmt.Sprintf("unparseable analysis result: %v", err))
		return nil
	}

	item.Intent = feedback.ParseIntent(res.Intent)
	item.SubIntents = nil
	if item.Intent == feedback.IntentMixed {
		for _, s := range res.SubIntents {
			if feedback.ValidIntent(s) && feedback.Intent(s) != feedback.IntentMixed {
				item.SubIntents = append(item.SubIntents, feedback.Intent(s))
			}
		}
		// A mixed classification with no usable sub-intents degrades to the
		// safe default rather than violating the mixed invariant.
		if len(item.SubIntents) == 0 {
			item.Intent = feedback.IntentVisualImplementation
		}
	}
	item.Target = &feedback.Target{
		SceneIDs: res.AffectedSceneIDs,
		Scope:    feedback.ParseScope(res.Scope),
	}
	item.Interpretation = res.Interpretation

	p.logger.Info("feedback analyzed",
		"item_id", item.ID,
		"intent", item.Intent,
		"scope", item.Target.Scope,
		"scenes", len(item.Target.SceneIDs))
	return nil
}

// sceneList renders the numbered scene inventory embedded in the analysis
// prompt. A missing script document yields a placeholder; analysis still
// proceeds since feedback may be project-wide.
func (p *Parser) sceneList(ctx context.Context) string {
	doc, err := p.projects.LoadScript(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			p.logger.Warn("script unavailable for analysis", "error", err)
		}
		return "(no script document available yet)"
	}

	var b strings.Builder
	for i, sc := range doc.Scenes {
		fmt.Fprintf(&b, "%d. [%s] %q (%s, %.1fs)\n",
			i+1, sc.SceneID, sc.Title, sc.SceneType, sc.DurationSeconds)
	}
	if b.Len() == 0 {
		return "(script has no scenes yet)"
	}
	return b.String()
}
