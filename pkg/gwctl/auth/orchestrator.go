package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/gwctl/gwctl/pkg/gwctl/client"
	"github.com/gwctl/gwctl/pkg/gwctl/errdefs"
	"github.com/gwctl/gwctl/pkg/gwctl/logging"
	"github.com/gwctl/gwctl/pkg/gwctl/token"
)

// LoginAPI is the issuer's device login surface. *client.Client implements it.
type LoginAPI interface {
	StartLogin(ctx context.Context) (*client.StartLoginResponse, error)
	CheckLogin(ctx context.Context, deviceToken string) (*client.CheckLoginResponse, error)
}

// TokenValidator checks a freshly issued token. *token.Validator implements it.
type TokenValidator interface {
	Validate(ctx context.Context, raw, expectedIssuer string) (*token.Claims, error)
}

// Dependencies wires an Orchestrator. API and Store are required. A nil
// Browser only prints the verification URL.
type Dependencies struct {
	API       LoginAPI
	Validator TokenValidator
	Store     CredentialStore
	Browser   BrowserOpener
	Out       io.Writer
	Logger    *zap.SugaredLogger
	Now       func() time.Time
	Sleep     func(ctx context.Context, d time.Duration) error
	Interval  time.Duration
}

// Outcome describes how a login attempt ended. It is returned together with
// the error for every non-authenticated terminal state.
type Outcome struct {
	State                State
	Credential           *StoredCredential
	Claims               *token.Claims
	AlreadyAuthenticated bool
	Attempts             int
	MaxAttempts          int
	VerificationURL      string
}

type Orchestrator struct {
	deps     Dependencies
	issuer   string
	log      *zap.SugaredLogger
	interval time.Duration
}

func NewOrchestrator(deps Dependencies, issuer string) (*Orchestrator, error) {
	if deps.API == nil {
		return nil, errors.New("login API is required")
	}
	if deps.Store == nil {
		return nil, errors.New("credential store is required")
	}
	if deps.Out == nil {
		deps.Out = io.Discard
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Sleep == nil {
		deps.Sleep = SleepContext
	}
	interval := deps.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Orchestrator{
		deps:     deps,
		issuer:   issuer,
		log:      logging.OrNop(deps.Logger),
		interval: interval,
	}, nil
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Login runs the device login flow until it reaches a terminal state. Nothing
// is written to the store unless the flow ends authenticated.
func (o *Orchestrator) Login(ctx context.Context) (*Outcome, error) {
	out := &Outcome{State: StateNotStarted}

	existing, err := o.deps.Store.Load()
	if err != nil {
		return o.fail(out, fmt.Errorf("failed to read stored credential: %w", err))
	}
	if existing != nil {
		o.log.Debugw("Credential already stored, skipping login")
		out.State = StateAuthenticated
		out.AlreadyAuthenticated = true
		out.Credential = existing
		return out, nil
	}

	o.log.Infow("Starting device login", "issuer", o.issuer)
	start, err := o.deps.API.StartLogin(ctx)
	if err != nil {
		return o.fail(out, fmt.Errorf("failed to start login: %w", err))
	}
	o.log.Debugw("Received device token", "expires_in_seconds", start.ExpiresInSeconds)
	if !(start.ExpiresInSeconds > 0) {
		return o.fail(out, errdefs.Newf(errdefs.KindLoginFailed, "login session already expired (expires_in_seconds=%v)", start.ExpiresInSeconds))
	}

	out.State = StateAwaitingBrowser
	out.VerificationURL = start.VerificationURL
	o.present(start.VerificationURL, start.ExpiresInSeconds)

	out.State = StatePolling
	out.MaxAttempts = MaxAttempts(start.ExpiresIn(), o.interval)
	progress := false
	defer func() {
		if progress {
			_, _ = fmt.Fprintln(o.deps.Out)
		}
	}()

	for attempt := 1; attempt <= out.MaxAttempts; attempt++ {
		if err := o.deps.Sleep(ctx, o.interval); err != nil {
			return o.fail(out, err)
		}
		out.Attempts = attempt
		o.log.Debugw("Polling login status", "attempt", attempt, "max_attempts", out.MaxAttempts)

		resp, err := o.deps.API.CheckLogin(ctx, start.DeviceToken)
		if err != nil {
			return o.fail(out, fmt.Errorf("login check failed: %w", err))
		}

		switch resp.Status {
		case client.StatusPending:
			progress = true
			_, _ = fmt.Fprint(o.deps.Out, ".")
		case client.StatusAuthenticated:
			return o.complete(ctx, out, resp)
		case client.StatusExpired:
			out.State = StateExpired
			return out, errdefs.New(errdefs.KindSessionExpired, nil)
		case client.StatusInvalid:
			out.State = StateInvalid
			return out, errdefs.New(errdefs.KindSessionInvalid, nil)
		default:
			msg := resp.Message
			if msg == "" {
				msg = resp.Status
			}
			return o.fail(out, errdefs.WithMessage(errdefs.KindLoginFailed, "Authentication error: "+msg))
		}
	}

	out.State = StateTimedOut
	return out, errdefs.New(errdefs.KindPollTimeout, fmt.Errorf("no approval after %d attempts", out.MaxAttempts))
}

func (o *Orchestrator) complete(ctx context.Context, out *Outcome, resp *client.CheckLoginResponse) (*Outcome, error) {
	if resp.Token == "" {
		return o.fail(out, errdefs.New(errdefs.KindMissingToken, nil))
	}
	cred := &StoredCredential{Token: resp.Token, User: resp.User}
	if resp.ExpiresIn != nil {
		expiresAt := o.deps.Now().Unix() + *resp.ExpiresIn
		cred.ExpiresAt = &expiresAt
	}

	if o.deps.Validator != nil {
		claims, err := o.deps.Validator.Validate(ctx, resp.Token, o.issuer)
		if err != nil {
			o.log.Warnw("Could not verify the issued token, storing it anyway", "error", err)
		} else {
			out.Claims = claims
			if cred.User == nil {
				cred.User = claims.User
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return o.fail(out, err)
	}
	if err := o.deps.Store.Save(cred); err != nil {
		if !errdefs.Is(err, errdefs.KindStorage) {
			err = errdefs.New(errdefs.KindStorage, err)
		}
		return o.fail(out, err)
	}
	out.State = StateAuthenticated
	out.Credential = cred
	o.log.Infow("Login complete", "attempts", out.Attempts)
	return out, nil
}

func (o *Orchestrator) present(url string, expiresInSeconds float64) {
	w := o.deps.Out
	if o.deps.Browser == nil {
		_, _ = fmt.Fprintf(w, "Open this URL in your browser to authenticate:\n  %s\n", url)
	} else if err := o.deps.Browser(url); err != nil {
		o.log.Warnw("Could not open browser", "error", err)
		_, _ = fmt.Fprintf(w, "Could not open a browser. Open this URL manually:\n  %s\n", url)
	} else {
		_, _ = fmt.Fprintf(w, "Opened your browser for authentication.\nIf it did not open, visit: %s\n", url)
	}
	_, _ = fmt.Fprintf(w, "Waiting for authentication (times out in %.0f seconds)\n", math.Round(expiresInSeconds))
}

func (o *Orchestrator) fail(out *Outcome, err error) (*Outcome, error) {
	out.State = StateFailed
	return out, err
}
