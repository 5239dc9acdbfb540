package router

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"route-refresh/internal/logger"
	"route-refresh/internal/route"
)

// Client talks to a directions-refresh endpoint:
//
//	GET {base}/directions-refresh/v1/mapbox/{profile}/{uuid}/{routeIndex}/{legIndex}
type Client struct {
	BaseURL     string
	AccessToken string
	HTTP        *http.Client

	limiter *rate.Limiter
	log     logger.Logger
}

// NewClient creates a client allowing at most perMinute requests per minute.
// perMinute <= 0 disables rate limiting.
func NewClient(baseURL, accessToken string, perMinute int, log logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	limit := rate.Inf
	burst := 1
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
		burst = max(perMinute/10, 1)
	}
	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		AccessToken: accessToken,
		HTTP:        &http.Client{Timeout: 30 * time.Second},
		limiter:     rate.NewLimiter(limit, burst),
		log:         log,
	}
}

// RequestRefresh fetches fresh traffic data for r from the vehicle position
// in data and merges it into a new route.
func (c *Client) RequestRefresh(ctx context.Context, r *route.Route, data route.RefreshRequestData) (*route.Route, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		// the limiter refuses up front when the token would arrive after the deadline
		if _, ok := ctx.Deadline(); ok && ctx.Err() == nil {
			err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return nil, &RefreshError{Message: "rate limiter", Cause: err}
	}

	endpoint := c.refreshURL(r, data)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &RefreshError{Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &RefreshError{Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &RefreshError{
			Message: fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
			Cause:   ErrRefreshUnavailable,
		}
	}

	var body refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &RefreshError{Message: "failed to decode response", Cause: err}
	}
	if body.Code != "" && body.Code != "Ok" {
		return nil, &RefreshError{Message: fmt.Sprintf("code %s: %s", body.Code, body.Message), Cause: ErrRefreshUnavailable}
	}

	annotations, incidents, closures := body.perLeg(len(r.Legs), data.LegIndex, data.LegGeometryIndex)
	c.log.Debug("refresh response decoded", "route_id", r.ID(), "legs", len(body.Route.Legs))
	return route.Refresh(r, data.LegIndex, data.LegGeometryIndex, annotations, incidents, closures), nil
}

func (c *Client) refreshURL(r *route.Route, data route.RefreshRequestData) string {
	path := fmt.Sprintf("%s/directions-refresh/v1/mapbox/%s/%s/%d/%d",
		c.BaseURL,
		url.PathEscape(r.Options.Profile),
		url.PathEscape(r.ResponseUUID),
		r.Index,
		data.LegIndex,
	)
	q := url.Values{}
	if c.AccessToken != "" {
		q.Set("access_token", c.AccessToken)
	}
	q.Set("current_route_geometry_index", strconv.Itoa(data.RouteGeometryIndex))
	for k, v := range data.EVData {
		q.Set(k, v)
	}
	return path + "?" + q.Encode()
}
