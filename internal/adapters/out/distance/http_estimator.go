package distance

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

	"fulfillment/internal/core/domain/model/delivery"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/pkg/errs"
)

// HTTPEstimator asks an external distance-matrix service for the route between two
// points:
//
//	GET {base}/estimate?from=lat,lng&to=lat,lng
//	200 {"distance_km": 3.2, "eta_minutes": 11}
type HTTPEstimator struct {
	baseURL string
	client  *http.Client
}

func NewHTTPEstimator(baseURL string, timeout time.Duration) (*HTTPEstimator, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errs.NewValueIsRequiredError("distance service url")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, errs.NewValueIsInvalidErrorWithCause("distance service url", err)
	}
	return &HTTPEstimator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type estimateResponse struct {
	DistanceKm float64 `json:"distance_km"`
	EtaMinutes float64 `json:"eta_minutes"`
}

func (e *HTTPEstimator) Estimate(ctx context.Context, from, to kernel.GeoPoint) (delivery.Estimate, error) {
	q := url.Values{}
	q.Set("from", point(from))
	q.Set("to", point(to))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/estimate?"+q.Encode(), nil)
	if err != nil {
		return delivery.Estimate{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return delivery.Estimate{}, fmt.Errorf("distance service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return delivery.Estimate{}, fmt.Errorf("distance service: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload estimateResponse
	if err = json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return delivery.Estimate{}, fmt.Errorf("distance service: decode response: %w", err)
	}
	estimate := delivery.Estimate{DistanceKm: payload.DistanceKm, EtaMinutes: payload.EtaMinutes}
	if err = estimate.Validate(); err != nil {
		return delivery.Estimate{}, err
	}
	return estimate, nil
}

func point(p kernel.GeoPoint) string {
	return strconv.FormatFloat(p.Lat(), 'f', 6, 64) + "," + strconv.FormatFloat(p.Lng(), 'f', 6, 64)
}
