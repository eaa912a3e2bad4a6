package runtime

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/nextlevelbuilder/goclaw-lite/internal/bus"
	"github.com/nextlevelbuilder/goclaw-lite/internal/providers"
)

// DocumentContext implements the OpenAI-only document
// side-channel. It attempts an upload-then-respond flow (multipart upload
// to /files, then a /responses call referencing the uploaded file ids); on
// any failure in either step it falls back silently to a plain chat call
// using only the prompt text, so a transient upload failure never blocks
// the rest of AgentRunner.Run.
func (r *Runtime) DocumentContext(ctx context.Context, systemPrompt, prompt string, documents []bus.ContentBlock, model string, maxTokens int, temperature float64) (string, providers.Usage, error) {
	client := r.openAIClient()
	if model == "" {
		model = r.cfg.Model
	}

	fileIDs := make([]string, 0, len(documents))
	uploadFailed := false
	for i, doc := range documents {
		if doc.Data == "" {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(doc.Data)
		if err != nil {
			uploadFailed = true
			break
		}
		id, err := client.UploadFile(ctx, fmt.Sprintf("document-%d", i), doc.MediaType, raw)
		if err != nil {
			uploadFailed = true
			break
		}
		fileIDs = append(fileIDs, id)
	}

	if !uploadFailed && len(fileIDs) > 0 {
		text, err := client.RespondWithFiles(ctx, model, systemPrompt, prompt, fileIDs, maxTokens, temperature)
		if err == nil {
			return text, providers.Usage{}, nil
		}
	}

	// Fallback: plain chat with just the prompt text, no document content.
	resp, err := client.Chat(ctx, model, []providers.OpenAIMessage{
		{Role: "system", Text: systemPrompt},
		{Role: "user", Text: prompt},
	}, nil, maxTokens, temperature)
	if err != nil {
		return "", providers.Usage{}, err
	}
	return resp.Content, resp.Usage, nil
}
