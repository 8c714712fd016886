package generate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/fission/pkg/models"
)

const generatorSystemPrompt = `You implement one atomic unit of work. The unit is
self-contained: every type, constant, and convention you need is in the
context below. Produce only the implementation for the given fragment, in
the target language named in the environment section. Do not restate the
context or add commentary.`

// AnthropicGenerator produces content for atoms through the Anthropic API.
// It satisfies executor.Generator and is safe for concurrent calls; the
// attempt's Exploration knob maps to sampling temperature and Guidance is
// folded into the prompt as corrective notes.
type AnthropicGenerator struct {
	client    *Client
	maxTokens int64
}

// NewAnthropicGenerator creates a generator backed by the given client.
func NewAnthropicGenerator(client *Client) *AnthropicGenerator {
	return &AnthropicGenerator{client: client, maxTokens: 8192}
}

// Generate runs one completion for the atom and returns the produced
// content. The context deadline set by the executor bounds the call.
func (g *AnthropicGenerator) Generate(ctx context.Context, atom *models.AtomicUnit, params models.AttemptParameters) (models.GeneratedContent, error) {
	resp, err := g.client.sdk().Messages.New(ctx, anthropic.MessageNewParams{
		Model:       g.client.Model(),
		MaxTokens:   g.maxTokens,
		Temperature: anthropic.Float(params.Exploration),
		System: []anthropic.TextBlockParam{
			{Text: generatorSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(BuildPrompt(atom, params))),
		},
	})
	if err != nil {
		return models.GeneratedContent{}, fmt.Errorf("API call failed: %w", err)
	}

	g.client.Tracker().Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	var result strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			result.WriteString(variant.Text)
		}
	}
	if result.Len() == 0 {
		return models.GeneratedContent{}, fmt.Errorf("empty response for atom %s", atom.ID)
	}

	return models.GeneratedContent{
		AtomID:  atom.ID,
		Content: result.String(),
		Model:   string(g.client.Model()),
	}, nil
}

// BuildPrompt renders an atom and its attempt parameters into the user
// prompt. Sections are emitted in a fixed order with sorted keys so the
// same atom always yields the same prompt.
func BuildPrompt(atom *models.AtomicUnit, params models.AttemptParameters) string {
	var b strings.Builder

	b.WriteString("FRAGMENT:\n")
	b.WriteString(atom.SourceFragment)
	b.WriteString("\n")

	writeDecls(&b, "INPUTS", atom.DeclaredInputs)
	writeDecls(&b, "OUTPUTS", atom.DeclaredOutputs)
	writeSection(&b, "DATA", atom.Context.Data)
	writeSection(&b, "BEHAVIOR", atom.Context.Behavior)
	writeSection(&b, "ENVIRONMENT", atom.Context.Environment)
	writeSection(&b, "TESTING", atom.Context.Testing)
	writeSection(&b, "DOCUMENTATION", atom.Context.Documentation)

	if len(params.Guidance) > 0 {
		b.WriteString("\nCORRECTIONS FROM THE PREVIOUS ATTEMPT:\n")
		for _, note := range params.Guidance {
			b.WriteString("- ")
			b.WriteString(note)
			b.WriteString("\n")
		}
	}

	return b.String()
}

func writeDecls(b *strings.Builder, heading string, decls map[string]string) {
	if len(decls) == 0 {
		return
	}
	b.WriteString("\n")
	b.WriteString(heading)
	b.WriteString(":\n")
	for _, name := range sortedKeys(decls) {
		fmt.Fprintf(b, "- %s: %s\n", name, decls[name])
	}
}

func writeSection(b *strings.Builder, heading string, section map[string]string) {
	if len(section) == 0 {
		return
	}
	b.WriteString("\n")
	b.WriteString(heading)
	b.WriteString(":\n")
	for _, key := range sortedKeys(section) {
		fmt.Fprintf(b, "- %s: %s\n", key, section[key])
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
