package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/RideReport/RideRecorderApp-sub003/aggregator"
	"github.com/RideReport/RideRecorderApp-sub003/params"
	"github.com/RideReport/RideRecorderApp-sub003/types/route"
	"github.com/tidwall/gjson"
)

const (
	tripsPath         = "trips/"
	accelerometerPath = "ios_accelerometer_data"
)

// HTTPGateway talks to the trip API.
type HTTPGateway struct {
	config      *params.UploadConfig
	routeConfig *params.RouteConfig
	client      *http.Client
	logger      *slog.Logger
}

func NewHTTPGateway(config *params.UploadConfig, routeConfig *params.RouteConfig) *HTTPGateway {
	if config == nil {
		config = params.DefaultUploadConfig
	}
	if routeConfig == nil {
		routeConfig = params.DefaultRouteConfig
	}
	return &HTTPGateway{
		config:      config,
		routeConfig: routeConfig,
		client:      &http.Client{Timeout: config.Timeout},
		logger:      slog.With("d", "upload"),
	}
}

func (g *HTTPGateway) endpoint(path string) (string, error) {
	base := g.config.ServerAddress
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	u, err := url.JoinPath(base, path)
	if err != nil {
		return "", fmt.Errorf("endpoint %q: %w", path, err)
	}
	return u, nil
}

// UploadRoute PUTs the route to trips/<uuid>.
// A 409 response is returned as ErrConflict.
func (g *HTTPGateway) UploadRoute(ctx context.Context, r *route.Route, full bool) error {
	if err := CheckUploadable(r); err != nil {
		return err
	}
	payload, err := NewRoutePayload(r, full, g.routeConfig, g.config.CoordinatePrecision)
	if err != nil {
		return err
	}
	target, err := g.endpoint(tripsPath + r.UUID)
	if err != nil {
		return err
	}
	body, err := g.do(ctx, http.MethodPut, target, payload)
	if err != nil {
		return fmt.Errorf("route %s: %w", r.UUID, err)
	}
	if echoed := gjson.GetBytes(body, "uuid"); echoed.Exists() && echoed.String() != r.UUID {
		g.logger.Warn("Server echoed a different route uuid", "have", echoed.String(), "want", r.UUID)
	}
	g.logger.Info("Uploaded route", "uuid", r.UUID, "full", full)
	return nil
}

// UploadPredictionAggregators POSTs each aggregator, stopping at the first failure.
func (g *HTTPGateway) UploadPredictionAggregators(ctx context.Context, aggs []*aggregator.Aggregator) (int, error) {
	target, err := g.endpoint(accelerometerPath)
	if err != nil {
		return 0, err
	}
	for i, a := range aggs {
		if _, err := g.do(ctx, http.MethodPost, target, map[string]any{"data": a}); err != nil {
			return i, fmt.Errorf("aggregator %s: %w", a.ID, err)
		}
	}
	return len(aggs), nil
}

func (g *HTTPGateway) do(ctx context.Context, method, target string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if g.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.config.Token)
	}
	res, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	switch {
	case res.StatusCode == http.StatusConflict:
		return body, ErrConflict
	case res.StatusCode < 200 || res.StatusCode > 299:
		return body, &StatusError{Code: res.StatusCode, Message: errorMessage(body)}
	}
	return body, nil
}

func errorMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return strings.TrimSpace(string(body))
	}
	for _, key := range []string{"error", "detail", "message"} {
		if v := gjson.GetBytes(body, key); v.Exists() {
			return v.String()
		}
	}
	return ""
}
