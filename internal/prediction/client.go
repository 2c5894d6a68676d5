// 包 prediction：犯罪扇区预测服务的 HTTP 客户端
package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"sentinel-api/internal/logger"
	"sentinel-api/internal/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrNotConfigured = errors.New("prediction endpoint not configured")
	ErrBadStatus     = errors.New("prediction service bad status")
)

// Request：预测请求体，字段名与预测服务约定一致
type Request struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	CrimeType string  `json:"crimeType"`
}

// PredictedSector：单个预测扇区，Angle 为模型输出的方位角（度）
type PredictedSector struct {
	Angle       float64 `json:"angle"`
	Probability float64 `json:"probability"`
}

// 文档注释：预测响应
// 约束：PredictedSectors 按位置对应扇区下标；ApprehensionTime 原样透传给前端。
type Result struct {
	PredictedSectors []PredictedSector `json:"predicted_sectors"`
	ApprehensionTime float64           `json:"predicted_apprehension_time"`
}

// Probabilities：按扇区下标展开概率
func (r *Result) Probabilities() []float64 {
	if r == nil {
		return nil
	}
	out := make([]float64, len(r.PredictedSectors))
	for i, s := range r.PredictedSectors {
		out[i] = s.Probability
	}
	return out
}

type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient：endpoint 为完整的 /predict 地址；timeout<=0 时取 5s
func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{endpoint: endpoint, http: &http.Client{Timeout: timeout}}
}

func (c *Client) Enabled() bool { return c != nil && c.endpoint != "" }

// 文档注释：调用预测服务
// 返回：解析后的预测结果；非 200、响应体无法解析或网络失败时返回错误，由调用方降级为占位概率。
func (c *Client) Predict(ctx context.Context, req Request) (*Result, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}
	ctx, span := otel.Tracer("sentinel-api/prediction").Start(ctx, "prediction.Predict")
	defer span.End()
	span.SetAttributes(
		attribute.Float64("lat", req.Latitude),
		attribute.Float64("lng", req.Longitude),
		attribute.String("crime_type", req.CrimeType),
	)

	res, err := c.do(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.PredictFailTotal.Inc()
		return nil, err
	}
	return res, nil
}

func (c *Client) do(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("content-type", "application/json")

	t0 := time.Now()
	metrics.PredictRequestsTotal.Inc()
	logger.L().Debug("predict_req", "lat", req.Latitude, "lng", req.Longitude, "crime_type", req.CrimeType)
	resp, err := c.http.Do(hreq)
	if err != nil {
		logger.L().Error("predict_http_error", "err", err)
		return nil, err
	}
	defer resp.Body.Close()
	dur := time.Since(t0).Milliseconds()
	metrics.PredictDurationMs.Observe(float64(dur))
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logger.L().Warn("predict_bad_status", "status", resp.StatusCode, "body", string(msg))
		return nil, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}
	var r Result
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		logger.L().Error("predict_decode_error", "err", err)
		return nil, fmt.Errorf("decode prediction: %w", err)
	}
	logger.L().Debug("predict_resp", "sectors", len(r.PredictedSectors), "apprehension", r.ApprehensionTime, "duration_ms", dur)
	return &r, nil
}
