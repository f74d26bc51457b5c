package client

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gwctl/gwctl/pkg/gwctl/logging"
	"github.com/gwctl/gwctl/pkg/version"
)

const (
	// CorrelationHeader tags each request so server logs can be matched with -v output.
	CorrelationHeader = "X-Correlation-ID"
	DefaultTimeout    = 30 * time.Second
)

type HTTPOptions struct {
	Timeout         time.Duration
	CAFile          string
	InsecureSkipTLS bool
	Logger          *zap.SugaredLogger
}

// NewHTTP builds the resty client shared by every issuer call. It never
// retries: failures surface to the caller immediately.
func NewHTTP(opts HTTPOptions) (*resty.Client, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log := logging.OrNop(opts.Logger)

	rc := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", version.UserAgent())

	if opts.CAFile != "" || opts.InsecureSkipTLS {
		tlsConfig, err := loadTLSConfig(opts.CAFile, opts.InsecureSkipTLS)
		if err != nil {
			return nil, err
		}
		if opts.InsecureSkipTLS {
			log.Warn("TLS certificate verification is disabled for issuer requests")
		}
		rc.SetTLSClientConfig(tlsConfig)
	}

	rc.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		if r.Header.Get(CorrelationHeader) == "" {
			r.SetHeader(CorrelationHeader, uuid.NewString())
		}
		return nil
	})
	rc.OnAfterResponse(func(_ *resty.Client, r *resty.Response) error {
		log.Debugw("issuer response",
			"method", r.Request.Method,
			"url", r.Request.URL,
			"status", r.StatusCode(),
			"correlation_id", r.Request.Header.Get(CorrelationHeader),
			"duration", r.Time())
		return nil
	})
	return rc, nil
}

func loadTLSConfig(caFile string, insecure bool) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: insecure} //nolint:gosec // opt-in flag
	if caFile == "" {
		return tlsConfig, nil
	}
	data, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if ok := pool.AppendCertsFromPEM(data); !ok {
		return nil, errors.New("failed to parse CA file")
	}
	tlsConfig.RootCAs = pool
	return tlsConfig, nil
}
