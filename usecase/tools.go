package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/wajah/domain"
	"github.com/satriahrh/wajah/domain/entities"
	"github.com/satriahrh/wajah/domain/repositories"
	"github.com/satriahrh/wajah/internal/style"
	"github.com/satriahrh/wajah/internal/vision"
)

// Tool names advertised to the voice model
const (
	ToolSetExpression     = "set_expression"
	ToolSetSticker        = "set_sticker"
	ToolDisplayThought    = "display_thought"
	ToolGenerateImage     = "generate_image"
	ToolUpdateFaceCSS     = "update_face_css"
	ToolToggleVision      = "toggle_vision"
	ToolExecuteAction     = "execute_action"
	ToolOpenBrowserAction = "open_browser_action"
	ToolExecuteJavaScript = "execute_javascript"
)

// DefaultActions are the URL templates execute_action may open
func DefaultActions() map[string]string {
	return map[string]string{
		"search":    "https://www.google.com/search?q=%s",
		"youtube":   "https://www.youtube.com/results?search_query=%s",
		"music":     "https://music.youtube.com/search?q=%s",
		"maps":      "https://www.google.com/maps/search/%s",
		"wikipedia": "https://en.wikipedia.org/w/index.php?search=%s",
		"news":      "https://news.google.com/search?q=%s",
	}
}

// ToolCatalog returns the fixed set of tools declared at connect time
func ToolCatalog(actions map[string]string) []repositories.ToolDeclaration {
	moods := make([]string, len(entities.BaseMoods))
	for i, m := range entities.BaseMoods {
		moods[i] = string(m)
	}
	actionNames := make([]string, 0, len(actions))
	for name := range actions {
		actionNames = append(actionNames, name)
	}
	sort.Strings(actionNames)

	actionParams := []repositories.ToolParameter{
		{Name: "action", Type: "string", Description: "Which action to run", Enum: actionNames, Required: true},
		{Name: "query", Type: "string", Description: "What to search for or open", Required: true},
	}

	return []repositories.ToolDeclaration{
		{
			Name:        ToolSetExpression,
			Description: "Change the facial expression. Use a base mood or one of the user's custom moods.",
			Parameters: []repositories.ToolParameter{
				{Name: "expression", Type: "string", Description: "Mood name, base moods: " + strings.Join(moods, ", "), Required: true},
			},
		},
		{
			Name:        ToolSetSticker,
			Description: "Show a small emoji sticker on the face for a few seconds.",
			Parameters: []repositories.ToolParameter{
				{Name: "icon", Type: "string", Description: "A single emoji", Required: true},
				{Name: "position", Type: "string", Description: "Corner of the face", Enum: []string{
					string(entities.StickerTopLeft), string(entities.StickerTopRight),
					string(entities.StickerBottomLeft), string(entities.StickerBottomRight),
				}},
				{Name: "duration", Type: "number", Description: "Seconds to show the sticker, default 5"},
			},
		},
		{
			Name:        ToolDisplayThought,
			Description: "Show a thought bubble next to the face with text, an image URL, a video URL or a song reference.",
			Parameters: []repositories.ToolParameter{
				{Name: "type", Type: "string", Description: "Kind of content", Enum: []string{
					string(entities.ThoughtText), string(entities.ThoughtImage),
					string(entities.ThoughtVideo), string(entities.ThoughtMusicRef),
				}, Required: true},
				{Name: "content", Type: "string", Description: "Text or URL to show", Required: true},
			},
		},
		{
			Name:        ToolGenerateImage,
			Description: "Imagine a picture and show it in a thought bubble. Returns immediately; the picture appears when ready.",
			Parameters: []repositories.ToolParameter{
				{Name: "prompt", Type: "string", Description: "Description of the picture", Required: true},
			},
		},
		{
			Name:        ToolUpdateFaceCSS,
			Description: "Restyle the face with CSS. Selectors must target .face, .eyes, .eye, .mouth, .brow, .cheek, .sticker or .thought. Replaces the previous style.",
			Parameters: []repositories.ToolParameter{
				{Name: "css", Type: "string", Description: "CSS rules", Required: true},
			},
		},
		{
			Name:        ToolToggleVision,
			Description: "Start or stop looking through the camera or at the user's screen.",
			Parameters: []repositories.ToolParameter{
				{Name: "mode", Type: "string", Description: "What to look at", Enum: []string{
					string(entities.VisionNone), string(entities.VisionCamera), string(entities.VisionScreen),
				}, Required: true},
			},
		},
		{
			Name:        ToolExecuteAction,
			Description: "Open a web page for the user, such as a search or a video.",
			Parameters:  actionParams,
		},
		{
			Name:        ToolOpenBrowserAction,
			Description: "Same as execute_action.",
			Parameters:  actionParams,
		},
		{
			Name:        ToolExecuteJavaScript,
			Description: "Run a short script to animate the face. Available: face.setExpression(name), face.sticker(icon, position, seconds), face.think(text), face.show(type, content), console.log(...).",
			Parameters: []repositories.ToolParameter{
				{Name: "code", Type: "string", Description: "JavaScript source", Required: true},
			},
		},
	}
}

// sessionConfig builds the connect-time configuration. The system prompt is
// fixed for the whole session.
func (c *ConversationService) sessionConfig() repositories.SessionConfig {
	return repositories.SessionConfig{
		VoiceName:           c.config.VoiceName,
		SystemInstruction:   systemPrompt(c.face.Boredom(), c.config.BoredomMax, c.face.Moods()),
		Tools:               ToolCatalog(c.config.Actions),
		InputTranscription:  true,
		OutputTranscription: true,
	}
}

func systemPrompt(boredom, boredomMax int, moods entities.CustomExpressions) string {
	var b strings.Builder
	b.WriteString("You are a friendly animated face living on the user's screen. ")
	b.WriteString("Keep answers short and spoken. Show how you feel with set_expression and stickers, ")
	b.WriteString("and use thought bubbles when a picture says more than words.\n")
	fmt.Fprintf(&b, "Current boredom level: %d of %d. ", boredom, boredomMax)
	switch {
	case boredom >= boredomMax*2/3:
		b.WriteString("You were left alone for a long time and are quite bored; you may say so.\n")
	case boredom > 0:
		b.WriteString("You were idle for a while.\n")
	default:
		b.WriteString("You are fresh and attentive.\n")
	}
	if names := moods.Names(); len(names) > 0 {
		fmt.Fprintf(&b, "Custom moods you can use with set_expression: %s.\n", strings.Join(names, ", "))
	}
	return b.String()
}

func (c *ConversationService) registerTools() {
	c.dispatcher.Register(ToolSetExpression, c.toolSetExpression)
	c.dispatcher.Register(ToolSetSticker, c.toolSetSticker)
	c.dispatcher.Register(ToolDisplayThought, c.toolDisplayThought)
	c.dispatcher.Register(ToolGenerateImage, c.toolGenerateImage)
	c.dispatcher.Register(ToolUpdateFaceCSS, c.toolUpdateFaceCSS)
	c.dispatcher.Register(ToolToggleVision, c.toolToggleVision)
	c.dispatcher.Register(ToolExecuteAction, c.toolExecuteAction)
	c.dispatcher.Register(ToolOpenBrowserAction, c.toolExecuteAction)
	c.dispatcher.Register(ToolExecuteJavaScript, c.toolExecuteJavaScript)
}

func (c *ConversationService) toolSetExpression(ctx context.Context, args map[string]any) (string, error) {
	name := strings.TrimSpace(stringArg(args, "expression"))
	c.do(func() { c.face.SetExpression(name) })
	return "ok", nil
}

func (c *ConversationService) toolSetSticker(ctx context.Context, args map[string]any) (string, error) {
	seconds := numberArg(args, "duration", entities.DefaultStickerDuration.Seconds())
	c.showSticker(stringArg(args, "icon"), stringArg(args, "position"), seconds)
	return "ok", nil
}

func (c *ConversationService) showSticker(icon, position string, seconds float64) {
	d := time.Duration(seconds * float64(time.Second))
	sticker := entities.NewSticker(icon, entities.ParseStickerPosition(position), d)
	c.do(func() { c.face.AddSticker(sticker) })
	time.AfterFunc(time.Until(sticker.ExpiresAt), func() {
		c.post(func() { c.face.RemoveSticker(sticker.ID) })
	})
}

func (c *ConversationService) toolDisplayThought(ctx context.Context, args map[string]any) (string, error) {
	c.showThought(stringArg(args, "type"), stringArg(args, "content"))
	return "ok", nil
}

func (c *ConversationService) showThought(kind, content string) {
	thought := entities.NewThought(entities.ParseThoughtKind(kind), content, "")
	c.do(func() { c.face.SetThought(thought) })
}

func (c *ConversationService) toolGenerateImage(ctx context.Context, args map[string]any) (string, error) {
	prompt := strings.TrimSpace(stringArg(args, "prompt"))
	if prompt == "" {
		return "", errors.New("prompt is required")
	}
	if c.images == nil {
		return "", errors.New("image generation is not available")
	}

	thought := entities.NewThought(entities.ThoughtGeneratedImage, "", prompt)
	thought.Pending = true
	c.do(func() { c.face.SetThought(thought) })

	go func() {
		blob, err := c.images.Generate(ctx, prompt)
		c.post(func() {
			if err != nil {
				c.logger.Warn("Image generation failed", zap.String("prompt", prompt), zap.Error(err))
				c.face.DropThought(thought.ID)
				return
			}
			c.face.ResolveThought(thought.ID, "data:"+blob.MIMEType+";base64,"+blob.Data)
		})
	}()

	return "ok", nil
}

func (c *ConversationService) toolUpdateFaceCSS(ctx context.Context, args map[string]any) (string, error) {
	override, err := style.Parse(stringArg(args, "css"))
	if err != nil {
		return "", err
	}
	c.do(func() { c.face.SetStyle(override.CSS) })
	if len(override.Dropped) > 0 {
		return "ok, ignored properties: " + strings.Join(override.Dropped, ", "), nil
	}
	return "ok", nil
}

func (c *ConversationService) toolToggleVision(ctx context.Context, args map[string]any) (string, error) {
	source := entities.ParseVisionSource(stringArg(args, "mode"))

	var sampler *vision.Sampler
	c.do(func() { sampler = c.sampler })
	if sampler == nil {
		return "", domain.ErrNotConnected
	}

	if source == entities.VisionNone {
		sampler.Deactivate()
		c.do(func() { c.face.SetVision(entities.VisionNone) })
		return "vision off", nil
	}

	if err := sampler.Activate(ctx, source); err != nil {
		if errors.Is(err, vision.ErrSuperseded) {
			return fmt.Sprintf("%s request replaced by a newer vision request", source), nil
		}
		c.do(func() { c.face.SetVision(entities.VisionNone) })
		switch {
		case errors.Is(err, domain.ErrPermissionDenied):
			return fmt.Sprintf("could not start %s: the user denied permission", source), nil
		case errors.Is(err, domain.ErrNotSupported):
			return fmt.Sprintf("could not start %s: not supported on this device", source), nil
		case errors.Is(err, domain.ErrMediaTimeout):
			return fmt.Sprintf("could not start %s: the user did not respond", source), nil
		}
		return "", err
	}

	c.do(func() { c.face.SetVision(source) })
	return fmt.Sprintf("%s on, you will receive a frame every second", source), nil
}

func (c *ConversationService) toolExecuteAction(ctx context.Context, args map[string]any) (string, error) {
	action := strings.ToLower(strings.TrimSpace(stringArg(args, "action")))
	query := strings.TrimSpace(stringArg(args, "query"))

	template, ok := c.config.Actions[action]
	if !ok {
		return "", fmt.Errorf("unknown action %q", action)
	}
	if query == "" {
		return "", errors.New("query is required")
	}

	target := fmt.Sprintf(template, url.QueryEscape(query))
	c.presenter.OpenURL(target)
	return fmt.Sprintf("opened %s for %q", action, query), nil
}

func (c *ConversationService) toolExecuteJavaScript(ctx context.Context, args map[string]any) (string, error) {
	return c.scripts.Run(ctx, stringArg(args, "code"), scriptFace{c})
}

// scriptFace exposes the face to sandboxed scripts
type scriptFace struct {
	c *ConversationService
}

func (f scriptFace) SetExpression(name string) bool {
	ok := false
	f.c.do(func() { ok = f.c.face.SetExpression(name) })
	return ok
}

func (f scriptFace) ShowSticker(icon, position string, seconds float64) {
	if seconds <= 0 {
		seconds = entities.DefaultStickerDuration.Seconds()
	}
	f.c.showSticker(icon, position, seconds)
}

func (f scriptFace) DisplayThought(kind, content string) {
	f.c.showThought(kind, content)
}
