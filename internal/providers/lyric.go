package providers

import (
	"context"
	"sync"

	"github.com/GriffinCanCode/scriptbridge/internal/types"
)

// EventNowPlaying is published whenever the desktop lyric surface changes
const EventNowPlaying = "lyric-now-playing"

// Publisher receives host events. *events.Emitter satisfies it.
type Publisher interface {
	Emit(name string, body interface{}) error
}

// LyricState is the desktop lyric surface state
type LyricState struct {
	Lyric           string  `json:"lyric"`
	Translation     string  `json:"translation"`
	Roma            string  `json:"roma"`
	ShowLyric       bool    `json:"showLyric"`
	ShowTranslation bool    `json:"showTranslation"`
	ShowRoma        bool    `json:"showRoma"`
	PlaybackRate    float64 `json:"playbackRate"`
	Playing         bool    `json:"playing"`
	CurrentTime     float64 `json:"currentTime"`

	Color       string  `json:"color"`
	Alpha       float64 `json:"alpha"`
	TextSize    float64 `json:"textSize"`
	Width       float64 `json:"width"`
	MaxLines    int     `json:"maxLines"`
	SingleLine  bool    `json:"singleLine"`
	ToggleAnima bool    `json:"toggleAnima"`
	SendText    bool    `json:"sendText"`
	Locked      bool    `json:"locked"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
}

// Lyric holds lyric playback state for the desktop lyric surface
type Lyric struct {
	mu        sync.RWMutex
	state     LyricState
	publisher Publisher
}

// NewLyric creates a lyric provider publishing surface updates to publisher
func NewLyric(publisher Publisher) *Lyric {
	return &Lyric{
		state: LyricState{
			PlaybackRate: 1,
			Color:        "#07c556",
			Alpha:        1,
			TextSize:     18,
			Width:        100,
			MaxLines:     1,
		},
		publisher: publisher,
	}
}

// Definition returns service metadata
func (l *Lyric) Definition() types.Service {
	text := func(name, desc string) types.Parameter {
		return types.Parameter{Name: name, Type: "string", Description: desc, Required: false}
	}
	number := func(name, desc string) types.Parameter {
		return types.Parameter{Name: name, Type: "number", Description: desc, Required: true}
	}
	flag := func(name, desc string) types.Parameter {
		return types.Parameter{Name: name, Type: "boolean", Description: desc, Required: true}
	}
	tool := func(id, name, desc string, params ...types.Parameter) types.Tool {
		if params == nil {
			params = []types.Parameter{}
		}
		return types.Tool{ID: "lyric." + id, Name: name, Description: desc, Parameters: params, Returns: "object"}
	}

	return types.Service{
		ID:           "lyric",
		Name:         "Lyric Service",
		Description:  "Desktop lyric state holder",
		Category:     types.CategoryLyric,
		Capabilities: []string{"state", "playback", "appearance"},
		Tools: []types.Tool{
			tool("getState", "Get State", "Current lyric surface state"),
			tool("showDesktopLyric", "Show Desktop Lyric", "Show the lyric surface"),
			tool("hideDesktopLyric", "Hide Desktop Lyric", "Hide the lyric surface"),
			tool("setLyric", "Set Lyric", "Replace lyric text",
				text("lyric", "Lyric text"), text("translation", "Translated lyric"), text("roma", "Romanized lyric")),
			tool("play", "Play", "Start playback at a position", number("time", "Position in milliseconds")),
			tool("pause", "Pause", "Pause playback"),
			tool("setPlaybackRate", "Set Playback Rate", "Set the playback rate", number("rate", "Rate multiplier")),
			tool("toggleTranslation", "Toggle Translation", "Show or hide translation", flag("show", "Show translation")),
			tool("toggleRoma", "Toggle Roma", "Show or hide romanization", flag("show", "Show romanization")),
			tool("toggleLock", "Toggle Lock", "Lock the surface position", flag("locked", "Lock surface")),
			tool("setColor", "Set Color", "Lyric text color", text("color", "CSS color")),
			tool("setAlpha", "Set Alpha", "Surface opacity", number("alpha", "Opacity 0..1")),
			tool("setTextSize", "Set Text Size", "Lyric text size", number("size", "Text size")),
			tool("setWidth", "Set Width", "Surface width percentage", number("width", "Width")),
			tool("setMaxLineNum", "Set Max Lines", "Maximum visible lines", number("lines", "Line count")),
			tool("setSingleLine", "Set Single Line", "Single line layout", flag("singleLine", "Single line")),
			tool("setShowToggleAnima", "Set Toggle Animation", "Animate line changes", flag("show", "Animate")),
			tool("setPosition", "Set Position", "Surface position", number("x", "X"), number("y", "Y")),
			tool("setSendLyricTextEvent", "Send Lyric Text Events", "Publish lyric text while the surface is hidden", flag("send", "Send events")),
			tool("checkOverlayPermission", "Check Overlay Permission", "Whether the surface may draw over other apps"),
			tool("openOverlayPermissionActivity", "Open Overlay Permission", "Request overlay permission"),
		},
	}
}

// Execute runs a lyric operation
func (l *Lyric) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	switch toolID {
	case "lyric.getState":
		return l.result()
	case "lyric.showDesktopLyric":
		return l.update(true, func(s *LyricState) { s.ShowLyric = true })
	case "lyric.hideDesktopLyric":
		l.mu.Lock()
		l.state.ShowLyric = false
		snapshot := l.state
		l.mu.Unlock()
		l.publish(snapshot)
		return success(stateMap(snapshot))
	case "lyric.setLyric":
		lyric, _ := types.GetString(params, "lyric", false)
		translation, _ := types.GetString(params, "translation", false)
		roma, _ := types.GetString(params, "roma", false)
		return l.update(true, func(s *LyricState) {
			s.Lyric, s.Translation, s.Roma = lyric, translation, roma
		})
	case "lyric.play":
		t, err := types.GetNumber(params, "time", false)
		if err != nil {
			return failure(err.Error())
		}
		return l.update(true, func(s *LyricState) { s.Playing, s.CurrentTime = true, t })
	case "lyric.pause":
		return l.update(true, func(s *LyricState) { s.Playing = false })
	case "lyric.setPlaybackRate":
		rate, err := types.GetNumber(params, "rate", true)
		if err != nil {
			return failure(err.Error())
		}
		if rate <= 0 {
			return failure("rate must be positive")
		}
		return l.update(true, func(s *LyricState) { s.PlaybackRate = rate })
	case "lyric.toggleTranslation":
		show := types.GetBool(params, "show", false)
		return l.update(true, func(s *LyricState) { s.ShowTranslation = show })
	case "lyric.toggleRoma":
		show := types.GetBool(params, "show", false)
		return l.update(true, func(s *LyricState) { s.ShowRoma = show })
	case "lyric.toggleLock":
		locked := types.GetBool(params, "locked", false)
		return l.update(false, func(s *LyricState) { s.Locked = locked })
	case "lyric.setColor":
		color, err := types.GetString(params, "color", true)
		if err != nil {
			return failure(err.Error())
		}
		return l.update(false, func(s *LyricState) { s.Color = color })
	case "lyric.setAlpha":
		return l.setNumber(params, "alpha", func(s *LyricState, v float64) { s.Alpha = v })
	case "lyric.setTextSize":
		return l.setNumber(params, "size", func(s *LyricState, v float64) { s.TextSize = v })
	case "lyric.setWidth":
		return l.setNumber(params, "width", func(s *LyricState, v float64) { s.Width = v })
	case "lyric.setMaxLineNum":
		return l.setNumber(params, "lines", func(s *LyricState, v float64) { s.MaxLines = int(v) })
	case "lyric.setSingleLine":
		single := types.GetBool(params, "singleLine", false)
		return l.update(false, func(s *LyricState) { s.SingleLine = single })
	case "lyric.setShowToggleAnima":
		show := types.GetBool(params, "show", false)
		return l.update(false, func(s *LyricState) { s.ToggleAnima = show })
	case "lyric.setPosition":
		x, err := types.GetNumber(params, "x", true)
		if err != nil {
			return failure(err.Error())
		}
		y, err := types.GetNumber(params, "y", true)
		if err != nil {
			return failure(err.Error())
		}
		return l.update(false, func(s *LyricState) { s.X, s.Y = x, y })
	case "lyric.setSendLyricTextEvent":
		send := types.GetBool(params, "send", false)
		return l.update(false, func(s *LyricState) { s.SendText = send })
	case "lyric.checkOverlayPermission", "lyric.openOverlayPermissionActivity":
		// no overlay permission model on this host
		return success(map[string]interface{}{"granted": true})
	default:
		return unknownTool(toolID)
	}
}

// State returns a copy of the current state
func (l *Lyric) State() LyricState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

func (l *Lyric) update(notify bool, mutate func(*LyricState)) (*types.Result, error) {
	l.mu.Lock()
	mutate(&l.state)
	snapshot := l.state
	l.mu.Unlock()

	if notify && (snapshot.ShowLyric || snapshot.SendText) {
		l.publish(snapshot)
	}
	return success(stateMap(snapshot))
}

func (l *Lyric) setNumber(params map[string]interface{}, key string, set func(*LyricState, float64)) (*types.Result, error) {
	v, err := types.GetNumber(params, key, true)
	if err != nil {
		return failure(err.Error())
	}
	return l.update(false, func(s *LyricState) { set(s, v) })
}

func (l *Lyric) publish(state LyricState) {
	if l.publisher == nil {
		return
	}
	_ = l.publisher.Emit(EventNowPlaying, map[string]interface{}{
		"visible":     state.ShowLyric,
		"lyric":       state.Lyric,
		"translation": state.Translation,
		"playing":     state.Playing,
		"currentTime": state.CurrentTime,
		"rate":        state.PlaybackRate,
	})
}

func (l *Lyric) result() (*types.Result, error) {
	return success(stateMap(l.State()))
}

func stateMap(s LyricState) map[string]interface{} {
	return map[string]interface{}{
		"lyric":           s.Lyric,
		"translation":     s.Translation,
		"roma":            s.Roma,
		"showLyric":       s.ShowLyric,
		"showTranslation": s.ShowTranslation,
		"showRoma":        s.ShowRoma,
		"playbackRate":    s.PlaybackRate,
		"playing":         s.Playing,
		"currentTime":     s.CurrentTime,
		"color":           s.Color,
		"alpha":           s.Alpha,
		"textSize":        s.TextSize,
		"width":           s.Width,
		"maxLines":        s.MaxLines,
		"singleLine":      s.SingleLine,
		"toggleAnima":     s.ToggleAnima,
		"sendText":        s.SendText,
		"locked":          s.Locked,
		"x":               s.X,
		"y":               s.Y,
	}
}
