// Package soap talks to a SOAP 1.1 calculator service exposing Add, Subtract,
// Multiply and Divide over integers (the dneonline.com contract).
package soap

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/signalnine/calcbench/internal/calc"
	"github.com/signalnine/calcbench/internal/logging"
)

const (
	DefaultEndpoint = "http://www.dneonline.com/calculator.asmx"
	DefaultTimeout  = 10 * time.Second

	namespace       = "http://tempuri.org/"
	maxResponseBody = 1 << 20
)

type Options struct {
	Endpoint string
	Timeout  time.Duration
	// RateLimit caps requests per second. Zero means unlimited.
	RateLimit  float64
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client implements calc.Service against a SOAP endpoint. It is safe to reuse
// across calls; the benchmark keeps one per run.
type Client struct {
	endpoint string
	http     *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
}

var _ calc.Service = (*Client)(nil)

func New(opts Options) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Client{endpoint: opts.Endpoint, http: httpClient, logger: logger}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return c
}

func (c *Client) Add(ctx context.Context, a, b int64) (int64, error) {
	return c.call(ctx, "Add", a, b)
}

func (c *Client) Subtract(ctx context.Context, a, b int64) (int64, error) {
	return c.call(ctx, "Subtract", a, b)
}

func (c *Client) Multiply(ctx context.Context, a, b int64) (int64, error) {
	return c.call(ctx, "Multiply", a, b)
}

func (c *Client) Divide(ctx context.Context, a, b int64) (int64, error) {
	return c.call(ctx, "Divide", a, b)
}

const requestTemplate = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:xsd="http://www.w3.org/2001/XMLSchema" xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <%[1]s xmlns="%[2]s">
      <intA>%[3]d</intA>
      <intB>%[4]d</intB>
    </%[1]s>
  </soap:Body>
</soap:Envelope>`

// EncodeRequest returns the SOAP envelope for one operation.
func EncodeRequest(op string, a, b int64) []byte {
	return []byte(fmt.Sprintf(requestTemplate, op, namespace, a, b))
}

func (c *Client) call(ctx context.Context, op string, a, b int64) (int64, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, &calc.Fault{Op: op, Kind: calc.Transient, Message: "rate limiter", Cause: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(EncodeRequest(op, a, b)))
	if err != nil {
		return 0, &calc.Fault{Op: op, Kind: calc.Deterministic, Message: "building request", Cause: err}
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", `"`+namespace+op+`"`)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &calc.Fault{Op: op, Kind: calc.Transient, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return 0, &calc.Fault{Op: op, Kind: calc.Transient, Message: "reading response", Cause: err}
	}
	c.logger.Debug("soap call", "op", op, "a", a, "b", b, "status", resp.StatusCode, "bytes", len(body))

	return DecodeResponse(op, resp.StatusCode, body)
}

type envelopeXML struct {
	Body bodyXML `xml:"Body"`
}

type bodyXML struct {
	Fault    *faultXML    `xml:"Fault"`
	Response *responseXML `xml:",any"`
}

type faultXML struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

type responseXML struct {
	XMLName xml.Name
	Result  valueXML `xml:",any"`
}

type valueXML struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// DecodeResponse turns an HTTP status and body into a value or a *calc.Fault.
// It is the only place that knows the response shape.
func DecodeResponse(op string, status int, body []byte) (int64, error) {
	var env envelopeXML
	decodeErr := xml.Unmarshal(body, &env)

	if decodeErr == nil && env.Body.Fault != nil {
		f := env.Body.Fault
		return 0, &calc.Fault{
			Op:      op,
			Kind:    classifyFault(f.Code, f.String),
			Message: strings.TrimSpace(f.Code + ": " + f.String),
		}
	}
	if status != http.StatusOK {
		return 0, &calc.Fault{Op: op, Kind: classifyStatus(status), Message: fmt.Sprintf("HTTP %d", status)}
	}
	if decodeErr != nil {
		return 0, &calc.Fault{Op: op, Kind: calc.Transient, Message: "malformed envelope", Cause: decodeErr}
	}

	r := env.Body.Response
	if r == nil || r.XMLName.Local != op+"Response" || r.Result.XMLName.Local != op+"Result" {
		return 0, &calc.Fault{Op: op, Kind: calc.Transient, Message: "missing " + op + "Result"}
	}
	v, err := strconv.ParseInt(strings.TrimSpace(r.Result.Value), 10, 64)
	if err != nil {
		return 0, &calc.Fault{Op: op, Kind: calc.Transient, Message: "non-integer result", Cause: err}
	}
	return v, nil
}

func classifyFault(code, msg string) calc.FaultKind {
	lower := strings.ToLower(msg)
	switch {
	case strings.HasSuffix(code, "Client"):
		return calc.Deterministic
	case strings.Contains(lower, "divide by zero"), strings.Contains(lower, "overflow"):
		return calc.Deterministic
	default:
		return calc.Transient
	}
}

func classifyStatus(status int) calc.FaultKind {
	switch {
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout:
		return calc.Transient
	case status >= 400 && status < 500:
		return calc.Deterministic
	default:
		return calc.Transient
	}
}
