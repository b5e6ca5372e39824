// Package assistantv1connect wires the AssistantService to Connect
// handlers and clients.
package assistantv1connect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/cheamigo/cheamigo/internal/connectutil"
	assistantv1 "github.com/cheamigo/cheamigo/pkg/assistantv1"
)

// AssistantServiceName is the fully-qualified name of the service.
const AssistantServiceName = "cheamigo.assistant.v1.AssistantService"

// Procedure paths.
const (
	AssistantServiceDescribeProcedure       = "/cheamigo.assistant.v1.AssistantService/Describe"
	AssistantServiceSpeakProcedure          = "/cheamigo.assistant.v1.AssistantService/Speak"
	AssistantServiceListVoicesProcedure     = "/cheamigo.assistant.v1.AssistantService/ListVoices"
	AssistantServiceGetStatusProcedure      = "/cheamigo.assistant.v1.AssistantService/GetStatus"
	AssistantServiceUpdateSettingsProcedure = "/cheamigo.assistant.v1.AssistantService/UpdateSettings"
	AssistantServiceListDetectionsProcedure = "/cheamigo.assistant.v1.AssistantService/ListDetections"
	AssistantServiceWatchEventsProcedure    = "/cheamigo.assistant.v1.AssistantService/WatchEvents"
)

// AssistantServiceHandler is implemented by the server.
type AssistantServiceHandler interface {
	Describe(context.Context, *connect.Request[assistantv1.DescribeRequest]) (*connect.Response[assistantv1.DescribeResponse], error)
	Speak(context.Context, *connect.Request[assistantv1.SpeakRequest]) (*connect.Response[assistantv1.SpeakResponse], error)
	ListVoices(context.Context, *connect.Request[assistantv1.ListVoicesRequest]) (*connect.Response[assistantv1.ListVoicesResponse], error)
	GetStatus(context.Context, *connect.Request[assistantv1.GetStatusRequest]) (*connect.Response[assistantv1.GetStatusResponse], error)
	UpdateSettings(context.Context, *connect.Request[assistantv1.UpdateSettingsRequest]) (*connect.Response[assistantv1.UpdateSettingsResponse], error)
	ListDetections(context.Context, *connect.Request[assistantv1.ListDetectionsRequest]) (*connect.Response[assistantv1.ListDetectionsResponse], error)
	WatchEvents(context.Context, *connect.Request[assistantv1.WatchEventsRequest], *connect.ServerStream[assistantv1.Event]) error
}

// NewAssistantServiceHandler builds an HTTP handler for svc. The returned
// path is the mount point for the mux. The JSON codec is always
// registered; callers add interceptors through opts.
func NewAssistantServiceHandler(svc AssistantServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(connectutil.JSONCodec{})}, opts...)

	describe := connect.NewUnaryHandler(AssistantServiceDescribeProcedure, svc.Describe, opts...)
	speak := connect.NewUnaryHandler(AssistantServiceSpeakProcedure, svc.Speak, opts...)
	listVoices := connect.NewUnaryHandler(AssistantServiceListVoicesProcedure, svc.ListVoices, opts...)
	getStatus := connect.NewUnaryHandler(AssistantServiceGetStatusProcedure, svc.GetStatus, opts...)
	updateSettings := connect.NewUnaryHandler(AssistantServiceUpdateSettingsProcedure, svc.UpdateSettings, opts...)
	listDetections := connect.NewUnaryHandler(AssistantServiceListDetectionsProcedure, svc.ListDetections, opts...)
	watchEvents := connect.NewServerStreamHandler(AssistantServiceWatchEventsProcedure, svc.WatchEvents, opts...)

	return "/" + AssistantServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case AssistantServiceDescribeProcedure:
			describe.ServeHTTP(w, r)
		case AssistantServiceSpeakProcedure:
			speak.ServeHTTP(w, r)
		case AssistantServiceListVoicesProcedure:
			listVoices.ServeHTTP(w, r)
		case AssistantServiceGetStatusProcedure:
			getStatus.ServeHTTP(w, r)
		case AssistantServiceUpdateSettingsProcedure:
			updateSettings.ServeHTTP(w, r)
		case AssistantServiceListDetectionsProcedure:
			listDetections.ServeHTTP(w, r)
		case AssistantServiceWatchEventsProcedure:
			watchEvents.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// AssistantServiceClient calls the service.
type AssistantServiceClient interface {
	Describe(context.Context, *connect.Request[assistantv1.DescribeRequest]) (*connect.Response[assistantv1.DescribeResponse], error)
	Speak(context.Context, *connect.Request[assistantv1.SpeakRequest]) (*connect.Response[assistantv1.SpeakResponse], error)
	ListVoices(context.Context, *connect.Request[assistantv1.ListVoicesRequest]) (*connect.Response[assistantv1.ListVoicesResponse], error)
	GetStatus(context.Context, *connect.Request[assistantv1.GetStatusRequest]) (*connect.Response[assistantv1.GetStatusResponse], error)
	UpdateSettings(context.Context, *connect.Request[assistantv1.UpdateSettingsRequest]) (*connect.Response[assistantv1.UpdateSettingsResponse], error)
	ListDetections(context.Context, *connect.Request[assistantv1.ListDetectionsRequest]) (*connect.Response[assistantv1.ListDetectionsResponse], error)
	WatchEvents(context.Context, *connect.Request[assistantv1.WatchEventsRequest]) (*connect.ServerStreamForClient[assistantv1.Event], error)
}

// NewAssistantServiceClient creates a client for the service at baseURL.
func NewAssistantServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) AssistantServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(connectutil.JSONCodec{})}, opts...)
	return &assistantServiceClient{
		describe:       connect.NewClient[assistantv1.DescribeRequest, assistantv1.DescribeResponse](httpClient, baseURL+AssistantServiceDescribeProcedure, opts...),
		speak:          connect.NewClient[assistantv1.SpeakRequest, assistantv1.SpeakResponse](httpClient, baseURL+AssistantServiceSpeakProcedure, opts...),
		listVoices:     connect.NewClient[assistantv1.ListVoicesRequest, assistantv1.ListVoicesResponse](httpClient, baseURL+AssistantServiceListVoicesProcedure, opts...),
		getStatus:      connect.NewClient[assistantv1.GetStatusRequest, assistantv1.GetStatusResponse](httpClient, baseURL+AssistantServiceGetStatusProcedure, opts...),
		updateSettings: connect.NewClient[assistantv1.UpdateSettingsRequest, assistantv1.UpdateSettingsResponse](httpClient, baseURL+AssistantServiceUpdateSettingsProcedure, opts...),
		listDetections: connect.NewClient[assistantv1.ListDetectionsRequest, assistantv1.ListDetectionsResponse](httpClient, baseURL+AssistantServiceListDetectionsProcedure, opts...),
		watchEvents:    connect.NewClient[assistantv1.WatchEventsRequest, assistantv1.Event](httpClient, baseURL+AssistantServiceWatchEventsProcedure, opts...),
	}
}

type assistantServiceClient struct {
	describe       *connect.Client[assistantv1.DescribeRequest, assistantv1.DescribeResponse]
	speak          *connect.Client[assistantv1.SpeakRequest, assistantv1.SpeakResponse]
	listVoices     *connect.Client[assistantv1.ListVoicesRequest, assistantv1.ListVoicesResponse]
	getStatus      *connect.Client[assistantv1.GetStatusRequest, assistantv1.GetStatusResponse]
	updateSettings *connect.Client[assistantv1.UpdateSettingsRequest, assistantv1.UpdateSettingsResponse]
	listDetections *connect.Client[assistantv1.ListDetectionsRequest, assistantv1.ListDetectionsResponse]
	watchEvents    *connect.Client[assistantv1.WatchEventsRequest, assistantv1.Event]
}

func (c *assistantServiceClient) Describe(ctx context.Context, req *connect.Request[assistantv1.DescribeRequest]) (*connect.Response[assistantv1.DescribeResponse], error) {
	return c.describe.CallUnary(ctx, req)
}

func (c *assistantServiceClient) Speak(ctx context.Context, req *connect.Request[assistantv1.SpeakRequest]) (*connect.Response[assistantv1.SpeakResponse], error) {
	return c.speak.CallUnary(ctx, req)
}

func (c *assistantServiceClient) ListVoices(ctx context.Context, req *connect.Request[assistantv1.ListVoicesRequest]) (*connect.Response[assistantv1.ListVoicesResponse], error) {
	return c.listVoices.CallUnary(ctx, req)
}

func (c *assistantServiceClient) GetStatus(ctx context.Context, req *connect.Request[assistantv1.GetStatusRequest]) (*connect.Response[assistantv1.GetStatusResponse], error) {
	return c.getStatus.CallUnary(ctx, req)
}

func (c *assistantServiceClient) UpdateSettings(ctx context.Context, req *connect.Request[assistantv1.UpdateSettingsRequest]) (*connect.Response[assistantv1.UpdateSettingsResponse], error) {
	return c.updateSettings.CallUnary(ctx, req)
}

func (c *assistantServiceClient) ListDetections(ctx context.Context, req *connect.Request[assistantv1.ListDetectionsRequest]) (*connect.Response[assistantv1.ListDetectionsResponse], error) {
	return c.listDetections.CallUnary(ctx, req)
}

func (c *assistantServiceClient) WatchEvents(ctx context.Context, req *connect.Request[assistantv1.WatchEventsRequest]) (*connect.ServerStreamForClient[assistantv1.Event], error) {
	return c.watchEvents.CallServerStream(ctx, req)
}
