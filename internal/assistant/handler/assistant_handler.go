package handler

import (
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"

	"github.com/cheamigo/cheamigo/internal/assistant"
	"github.com/cheamigo/cheamigo/internal/history"
	"github.com/cheamigo/cheamigo/internal/speech/engine"
	"github.com/cheamigo/cheamigo/internal/speech/player"
	"github.com/cheamigo/cheamigo/internal/vision/describe"
	"github.com/cheamigo/cheamigo/pkg/events"
	assistantv1 "github.com/cheamigo/cheamigo/pkg/assistantv1"
	"github.com/cheamigo/cheamigo/pkg/assistantv1/assistantv1connect"
)

// Ensure we implement the interface.
var _ assistantv1connect.AssistantServiceHandler = (*AssistantHandler)(nil)

// AssistantHandler serves the assistant running on this host's own speech
// platform.
type AssistantHandler struct {
	assistant *assistant.Assistant
	player    *player.Player
	describer describe.Describer
	store     history.Store
	publisher *events.Publisher
	language  string
}

// Deps are the collaborators of AssistantHandler. Store and Publisher are
// optional.
type Deps struct {
	Assistant *assistant.Assistant
	Player    *player.Player
	Describer describe.Describer
	Store     history.Store
	Publisher *events.Publisher
	Language  string
}

// NewAssistantHandler creates a new assistant service handler.
func NewAssistantHandler(deps Deps) *AssistantHandler {
	if deps.Language == "" {
		deps.Language = player.DefaultLanguage
	}
	return &AssistantHandler{
		assistant: deps.Assistant,
		player:    deps.Player,
		describer: deps.Describer,
		store:     deps.Store,
		publisher: deps.Publisher,
		language:  deps.Language,
	}
}

func (h *AssistantHandler) Describe(ctx context.Context, req *connect.Request[assistantv1.DescribeRequest]) (*connect.Response[assistantv1.DescribeResponse], error) {
	uri := req.Msg.PhotoDataURI
	if _, err := describe.ParseDataURI(uri); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	if req.Msg.DescribeOnly {
		desc, err := h.describer.Describe(ctx, uri)
		if err != nil {
			return nil, toConnectError(err)
		}
		return connect.NewResponse(&assistantv1.DescribeResponse{ObjectDescription: desc.ObjectDescription}), nil
	}

	res, err := h.assistant.Detect(ctx, uri)
	if err != nil {
		return nil, toConnectError(err)
	}
	resp := &assistantv1.DescribeResponse{
		ObjectDescription: res.Description,
		Suppressed:        res.Suppressed,
	}
	if res.SpeechErr != nil {
		resp.SpeechError = res.SpeechErr.Error()
	}
	return connect.NewResponse(resp), nil
}

func (h *AssistantHandler) Speak(ctx context.Context, req *connect.Request[assistantv1.SpeakRequest]) (*connect.Response[assistantv1.SpeakResponse], error) {
	if req.Msg.Text == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("text is required"))
	}
	if err := h.assistant.Say(ctx, req.Msg.Text, req.Msg.Greeting); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&assistantv1.SpeakResponse{}), nil
}

func (h *AssistantHandler) ListVoices(ctx context.Context, req *connect.Request[assistantv1.ListVoicesRequest]) (*connect.Response[assistantv1.ListVoicesResponse], error) {
	resp := &assistantv1.ListVoicesResponse{Available: h.player.Available()}

	catalog, err := h.player.Voices(ctx)
	if err != nil {
		return nil, connect.NewError(connect.CodeDeadlineExceeded, err)
	}
	resp.Voices = make([]assistantv1.Voice, 0, len(catalog))
	for _, v := range catalog {
		resp.Voices = append(resp.Voices, voiceToProto(v))
	}

	lang := req.Msg.Language
	if lang == "" {
		lang = h.language
	}
	selected, match, err := h.player.SelectedVoice(ctx, lang)
	if err != nil {
		return nil, connect.NewError(connect.CodeDeadlineExceeded, err)
	}
	if match != "" {
		v := voiceToProto(selected)
		resp.Selected = &v
		resp.Match = string(match)
	}
	return connect.NewResponse(resp), nil
}

func (h *AssistantHandler) GetStatus(_ context.Context, _ *connect.Request[assistantv1.GetStatusRequest]) (*connect.Response[assistantv1.GetStatusResponse], error) {
	return connect.NewResponse(&assistantv1.GetStatusResponse{Status: statusToProto(h.assistant.Status())}), nil
}

func (h *AssistantHandler) UpdateSettings(_ context.Context, req *connect.Request[assistantv1.UpdateSettingsRequest]) (*connect.Response[assistantv1.UpdateSettingsResponse], error) {
	cur := h.assistant.Status().Settings
	if v := req.Msg.Settings.Volume; v != nil {
		cur.Volume = *v
	}
	if r := req.Msg.Settings.Rate; r != nil {
		cur.Rate = *r
	}
	s := h.assistant.UpdateSettings(cur)
	return connect.NewResponse(&assistantv1.UpdateSettingsResponse{
		Settings: assistantv1.Settings{Volume: s.Volume, Rate: s.Rate},
	}), nil
}

func (h *AssistantHandler) ListDetections(ctx context.Context, req *connect.Request[assistantv1.ListDetectionsRequest]) (*connect.Response[assistantv1.ListDetectionsResponse], error) {
	if h.store == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, fmt.Errorf("detection history is disabled"))
	}
	if req.Msg.Limit < 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("limit must not be negative"))
	}

	records, err := h.store.List(ctx, req.Msg.SessionID, req.Msg.Limit)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("list detections: %w", err))
	}

	resp := &assistantv1.ListDetectionsResponse{Detections: make([]assistantv1.Detection, 0, len(records))}
	for _, r := range records {
		resp.Detections = append(resp.Detections, assistantv1.Detection{
			ID:          r.ID,
			SessionID:   r.SessionID,
			Description: r.Description,
			Spoken:      r.Spoken,
			Suppressed:  r.Suppressed,
			Error:       r.Error,
			LatencyMs:   r.LatencyMs,
			DetectedAt:  r.DetectedAt,
		})
	}
	return connect.NewResponse(resp), nil
}

func (h *AssistantHandler) WatchEvents(ctx context.Context, req *connect.Request[assistantv1.WatchEventsRequest], stream *connect.ServerStream[assistantv1.Event]) error {
	if h.publisher == nil {
		return connect.NewError(connect.CodeUnimplemented, fmt.Errorf("event streaming is disabled"))
	}

	ch, cancel := h.publisher.Subscribe(req.Msg.SessionID, 0)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-ch:
			if !ok {
				return nil
			}
			err := stream.Send(&assistantv1.Event{
				ID:        env.ID,
				Type:      string(env.Type),
				Source:    env.Source,
				SessionID: env.SessionID,
				Timestamp: env.Timestamp,
				Data:      env.Data,
			})
			if err != nil {
				return err
			}
		}
	}
}

func toConnectError(err error) error {
	var synthErr *engine.SynthesisError
	switch {
	case errors.Is(err, assistant.ErrBusy):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, describe.ErrInvalidDataURI):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, assistant.ErrEmptyDescription):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.As(err, &synthErr) && synthErr.Code == engine.CodeCanceled:
		return connect.NewError(connect.CodeAborted, err)
	case errors.As(err, &synthErr) && synthErr.Code == engine.CodeInvalidArgument:
		return connect.NewError(connect.CodeInvalidArgument, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

func voiceToProto(v engine.Voice) assistantv1.Voice {
	return assistantv1.Voice{ID: v.ID, Name: v.Name, Language: v.Language, Default: v.Default}
}

func statusToProto(s assistant.Status) assistantv1.Status {
	return assistantv1.Status{
		Detecting:       s.Detecting,
		Speaking:        s.Speaking,
		LastDescription: s.LastDescription,
		LastError:       s.LastError,
		Settings:        assistantv1.Settings{Volume: s.Settings.Volume, Rate: s.Settings.Rate},
	}
}
