// Package spoiler derives an optional "safe to watch from" timestamp for a
// video by reading on-screen text in its opening seconds. Purely additive
// metadata: every failure in here degrades to "no timestamp".
package spoiler

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

const prompt = "The following text was read from the opening seconds of a video. " +
	"If it announces a spoiler-free watch point, reply with that timestamp as MM:SS or HH:MM:SS. " +
	"If it does not, reply with the single word NONE."

var timestampPattern = regexp.MustCompile(`\b(?:\d{1,2}:)?\d{1,2}:\d{2}\b`)

// Completer is the text-understanding call, extracted so tests can stub
// the OpenAI client.
type Completer interface {
	Complete(ctx context.Context, instruction, text string) (string, error)
}

type openAICompleter struct {
	client *openai.Client
}

func (c *openAICompleter) Complete(ctx context.Context, instruction, text string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openai.GPT4oMini,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instruction},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}

type Locator struct {
	ScanSeconds int
	completer   Completer
}

// NewLocator returns nil when no API key is configured; the pipeline
// treats a nil locator as "stage disabled".
func NewLocator(apiKey string, scanSeconds int) *Locator {
	if strings.TrimSpace(apiKey) == "" {
		return nil
	}
	return &Locator{
		ScanSeconds: scanSeconds,
		completer:   &openAICompleter{client: openai.NewClient(apiKey)},
	}
}

// NewLocatorWithCompleter is the test seam.
func NewLocatorWithCompleter(c Completer, scanSeconds int) *Locator {
	return &Locator{ScanSeconds: scanSeconds, completer: c}
}

// Locate extracts one frame per second from the leading window of the
// original media, OCRs each frame, and asks the completer for a
// spoiler-free timestamp. Returns "" when nothing was found or anything
// failed; it never reports an error.
func (l *Locator) Locate(ctx context.Context, mediaPath, workDir, videoID string) string {
	frames, err := l.extractFrames(ctx, mediaPath, workDir, videoID)
	defer removeAll(frames)
	if err != nil {
		log.Warn().Err(err).Str("video_id", videoID).Msg("spoiler frame extraction failed")
		return ""
	}

	var texts []string
	for _, frame := range frames {
		text, err := recognizeText(ctx, frame)
		if err != nil {
			log.Debug().Err(err).Str("frame", frame).Msg("ocr failed")
			continue
		}
		if t := strings.TrimSpace(text); t != "" {
			texts = append(texts, t)
		}
	}
	combined := strings.Join(texts, "\n")
	if combined == "" {
		return ""
	}

	answer, err := l.completer.Complete(ctx, prompt, combined)
	if err != nil {
		log.Warn().Err(err).Str("video_id", videoID).Msg("spoiler completion failed")
		return ""
	}
	return ExtractTimestamp(answer)
}

// ExtractTimestamp picks the first MM:SS or HH:MM:SS substring out of a
// model response. Exported for testing.
func ExtractTimestamp(answer string) string {
	return timestampPattern.FindString(answer)
}

func (l *Locator) extractFrames(ctx context.Context, mediaPath, workDir, videoID string) ([]string, error) {
	template := filepath.Join(workDir, videoID+"_frame_%03d.png")
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", mediaPath,
		"-t", strconv.Itoa(l.ScanSeconds),
		"-vf", "fps=1",
		template,
	)
	if err := cmd.Run(); err != nil {
		return listFrames(workDir, videoID), fmt.Errorf("ffmpeg frame extraction: %w", err)
	}
	return listFrames(workDir, videoID), nil
}

func listFrames(workDir, videoID string) []string {
	entries, err := os.ReadDir(workDir)
	if err != nil {
		return nil
	}
	var frames []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), videoID+"_frame_") {
			frames = append(frames, filepath.Join(workDir, e.Name()))
		}
	}
	sort.Strings(frames)
	return frames
}

func recognizeText(ctx context.Context, framePath string) (string, error) {
	// "stdout" makes tesseract print recognized text instead of writing a file.
	cmd := exec.CommandContext(ctx, "tesseract", framePath, "stdout")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("tesseract %q: %w", framePath, err)
	}
	return string(out), nil
}

func removeAll(paths []string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}
