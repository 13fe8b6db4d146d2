// Package insight produces natural-language intervention recommendations
// for the filtered region, via an LLM with a rule-based fallback.
package insight

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/stuntlytics/stuntlytics/internal/config"
	"github.com/stuntlytics/stuntlytics/internal/logger"
)

// Metrics is the aggregate snapshot the generator reasons over, as
// percentages of the filtered population.
type Metrics struct {
	PctHighRisk          float64 `json:"pct_high_risk"`
	ImmunizationCoverage float64 `json:"immunization_coverage"`
	WaterAccess          float64 `json:"water_access"`
}

// Result is the generated advisory. Source is "llm" or "fallback".
type Result struct {
	Recommendations []string `json:"recommendations"`
	Source          string   `json:"source"`
}

const systemPrompt = "Anda adalah analis kebijakan gizi untuk pemerintah daerah di Indonesia. " +
	"Berdasarkan konteks wilayah dan metrik agregat yang diberikan, susun rekomendasi " +
	"program intervensi stunting yang prioritas, spesifik dan dapat dieksekusi oleh dinas " +
	"kesehatan kabupaten/kota. Jawab sebagai daftar butir singkat dalam bahasa Indonesia, " +
	"satu rekomendasi per baris, tanpa nomor."

// completer abstracts the message-completion call for testing.
type completer interface {
	complete(ctx context.Context, system, user string) (string, error)
}

// Generator calls the LLM and degrades to rule-based recommendations on any
// failure. External failures never propagate to the caller.
type Generator struct {
	llm     completer
	timeout time.Duration
	logger  logger.Logger
}

// NewGenerator creates an insight generator. Without an API key the
// generator runs fallback-only.
func NewGenerator(cfg *config.InsightConfig, log logger.Logger) *Generator {
	g := &Generator{timeout: cfg.Timeout, logger: log}
	if cfg.APIKey != "" {
		g.llm = newAnthropicCompleter(cfg)
	}
	return g
}

// Generate produces recommendations for the given regional context and
// metrics. Any LLM failure (auth, timeout, empty response) degrades to the
// static rules; the result always carries at least one recommendation.
func (g *Generator) Generate(ctx context.Context, regionContext string, m Metrics) *Result {
	if g.llm != nil {
		callCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}

		text, err := g.llm.complete(callCtx, systemPrompt, userPrompt(regionContext, m))
		if err == nil {
			if recs := splitRecommendations(text); len(recs) > 0 {
				return &Result{Recommendations: recs, Source: "llm"}
			}
			err = fmt.Errorf("empty completion")
		}
		g.logger.Warn("insight generation degraded to rule-based fallback", logger.Error(err))
	}

	return &Result{Recommendations: FallbackRecommendations(m), Source: "fallback"}
}

// FallbackRecommendations applies the static advisory rules. Never empty.
func FallbackRecommendations(m Metrics) []string {
	var recs []string
	if m.WaterAccess < 70 {
		recs = append(recs, "Prioritaskan program PAMSIMAS/air bersih.")
	}
	if m.ImmunizationCoverage < 80 {
		recs = append(recs, "Lakukan sweeping imunisasi & kampanye posyandu.")
	}
	if m.PctHighRisk > 15 {
		recs = append(recs, "Perluas PMT dan kunjungan rumah keluarga berisiko.")
	}
	if len(recs) == 0 {
		recs = append(recs, "Pertahankan program berjalan, lakukan monitoring triwulanan.")
	}
	return recs
}

func userPrompt(regionContext string, m Metrics) string {
	return fmt.Sprintf(
		"Konteks wilayah: %s\n\nMetrik agregat:\n- Proporsi risiko tinggi: %.1f%%\n- Cakupan imunisasi: %.1f%%\n- Akses air layak: %.1f%%",
		regionContext, m.PctHighRisk, m.ImmunizationCoverage, m.WaterAccess,
	)
}

// splitRecommendations turns completion text into one recommendation per
// non-empty line, stripping common bullet markers.
func splitRecommendations(text string) []string {
	var recs []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-•* ")
		if line != "" {
			recs = append(recs, line)
		}
	}
	return recs
}

// anthropicCompleter is the production completer over the Anthropic API.
type anthropicCompleter struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

func newAnthropicCompleter(cfg *config.InsightConfig) *anthropicCompleter {
	return &anthropicCompleter{
		client:    anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
	}
}

func (a *anthropicCompleter) complete(ctx context.Context, system, user string) (string, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic completion: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
