// Package oauthflow drives the platform connection handshake:
// init → redirected → callback_pending → connected | failed.
// It is written once against platforms.Provider.
package oauthflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/ArtJustine/scheduler-sub001/models"
	"github.com/ArtJustine/scheduler-sub001/platforms"
	"github.com/ArtJustine/scheduler-sub001/utils"
)

// Stage is a step of the connection state machine.
type Stage string

const (
	StageInit            Stage = "init"
	StageRedirected      Stage = "redirected"
	StageCallbackPending Stage = "callback_pending"
	StageConnected       Stage = "connected"
	StageFailed          Stage = "failed"
)

// Failure reasons carried back to the dashboard in the redirect.
const (
	ReasonInvalidState   = "invalid_state"
	ReasonNotConfigured  = "not_configured"
	ReasonMissingCode    = "missing_code"
	ReasonExchangeFailed = "exchange_failed"
	ReasonProfileFailed  = "profile_failed"
	ReasonSaveFailed     = "save_failed"
)

// StateTTL bounds how long a user may take on the platform's consent screen.
const StateTTL = 10 * time.Minute

// ProviderSource looks up the OAuth provider of a platform.
type ProviderSource interface {
	Provider(p platforms.Platform) (platforms.Provider, error)
}

// CredentialWriter persists the credential of a completed connection.
type CredentialWriter interface {
	Upsert(ctx context.Context, c *models.Credential) error
}

// Pending is what a state value is bound to between Begin and Complete.
type Pending struct {
	UserID      string    `json:"user_id"`
	WorkspaceID string    `json:"workspace_id"`
	Platform    string    `json:"platform"`
	Verifier    string    `json:"verifier,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Start is the result of Begin.
type Start struct {
	AuthURL string `json:"authorization_url"`
	State   string `json:"state"`
}

// Failure ends a flow in the failed stage.
type Failure struct {
	Platform platforms.Platform
	Reason   string
	Err      error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s connection failed: %s", f.Platform, f.Reason)
	}
	return fmt.Sprintf("%s connection failed: %s: %v", f.Platform, f.Reason, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Flow runs connection handshakes. It is safe for concurrent use.
type Flow struct {
	providers    ProviderSource
	creds        CredentialWriter
	states       *utils.TTLStore
	redirectBase string
	now          func() time.Time
}

// New returns a Flow whose callbacks land on redirectBase.
func New(providers ProviderSource, creds CredentialWriter, states *utils.TTLStore, redirectBase string) *Flow {
	return &Flow{
		providers:    providers,
		creds:        creds,
		states:       states,
		redirectBase: strings.TrimRight(redirectBase, "/"),
		now:          time.Now,
	}
}

// RedirectURI is the callback registered with the platform's OAuth app.
func (f *Flow) RedirectURI(p platforms.Platform) string {
	return fmt.Sprintf("%s/api/v1/oauth/%s/callback", f.redirectBase, p)
}

// Begin binds a fresh state value to the user and workspace and returns the
// platform's consent URL.
func (f *Flow) Begin(ctx context.Context, p platforms.Platform, userID, workspaceID string) (*Start, error) {
	prov, err := f.providers.Provider(p)
	if err != nil {
		return nil, err
	}

	// 32 random bytes, base64url
	state := oauth2.GenerateVerifier()
	pending := Pending{
		UserID:      userID,
		WorkspaceID: workspaceID,
		Platform:    string(p),
		CreatedAt:   f.now().UTC(),
	}
	var opts []oauth2.AuthCodeOption
	if prov.UsesPKCE() {
		pending.Verifier = oauth2.GenerateVerifier()
		opts = append(opts, oauth2.S256ChallengeOption(pending.Verifier))
	}

	raw, err := json.Marshal(pending)
	if err != nil {
		return nil, err
	}
	if err := f.states.Save(ctx, state, raw, StateTTL); err != nil {
		return nil, fmt.Errorf("saving oauth state: %w", err)
	}

	utils.Logger.Info("oauth flow",
		zap.String("platform", string(p)),
		zap.String("workspace_id", workspaceID),
		zap.String("stage", string(StageRedirected)))
	return &Start{AuthURL: prov.AuthURL(state, f.RedirectURI(p), opts...), State: state}, nil
}

// Callback is what the platform sends back.
type Callback struct {
	Code  string
	State string
	// Error is the platform's error parameter, e.g. access_denied.
	Error string
}

// Complete validates the state, exchanges the code and stores the credential.
// A missing, expired, reused or foreign state never reaches the token
// endpoint and never writes a credential.
func (f *Flow) Complete(ctx context.Context, p platforms.Platform, cb Callback) (*models.Credential, error) {
	log := utils.Logger.With(zap.String("platform", string(p)))
	log.Info("oauth flow", zap.String("stage", string(StageCallbackPending)))

	cred, err := f.complete(ctx, p, cb)
	if err != nil {
		var fail *Failure
		if errors.As(err, &fail) {
			log.Warn("oauth flow", zap.String("stage", string(StageFailed)), zap.String("reason", fail.Reason), zap.Error(fail.Err))
			callbacksTotal.WithLabelValues(string(p), fail.Reason).Inc()
		}
		return nil, err
	}
	log.Info("oauth flow",
		zap.String("stage", string(StageConnected)),
		zap.String("workspace_id", cred.WorkspaceID),
		zap.String("account_id", cred.AccountID))
	callbacksTotal.WithLabelValues(string(p), string(StageConnected)).Inc()
	return cred, nil
}

func (f *Flow) complete(ctx context.Context, p platforms.Platform, cb Callback) (*models.Credential, error) {
	pending, err := f.consume(ctx, p, cb.State)
	if err != nil {
		return nil, &Failure{Platform: p, Reason: ReasonInvalidState, Err: err}
	}
	if cb.Error != "" {
		return nil, &Failure{Platform: p, Reason: providerReason(cb.Error)}
	}
	if cb.Code == "" {
		return nil, &Failure{Platform: p, Reason: ReasonMissingCode}
	}

	prov, err := f.providers.Provider(p)
	if err != nil {
		return nil, &Failure{Platform: p, Reason: ReasonNotConfigured, Err: err}
	}

	var opts []oauth2.AuthCodeOption
	if pending.Verifier != "" {
		opts = append(opts, oauth2.VerifierOption(pending.Verifier))
	}
	tok, err := prov.Exchange(ctx, cb.Code, f.RedirectURI(p), opts...)
	if err != nil {
		return nil, &Failure{Platform: p, Reason: ReasonExchangeFailed, Err: err}
	}
	profile, err := prov.Profile(ctx, tok)
	if err != nil {
		return nil, &Failure{Platform: p, Reason: ReasonProfileFailed, Err: err}
	}

	cred := &models.Credential{
		WorkspaceID:  pending.WorkspaceID,
		Platform:     string(p),
		AccountID:    profile.AccountID,
		AccountName:  profile.AccountName,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Connected:    true,
		ConnectedBy:  pending.UserID,
	}
	if profile.AccessToken != "" {
		cred.AccessToken = profile.AccessToken
	}
	if !tok.Expiry.IsZero() && profile.AccessToken == "" {
		exp := tok.Expiry.UTC()
		cred.ExpiresAt = &exp
	}
	if err := f.creds.Upsert(ctx, cred); err != nil {
		return nil, &Failure{Platform: p, Reason: ReasonSaveFailed, Err: err}
	}
	return cred, nil
}

func (f *Flow) consume(ctx context.Context, p platforms.Platform, state string) (*Pending, error) {
	if state == "" {
		return nil, &platforms.Error{Kind: platforms.ErrAuthenticationMismatch, Platform: p, Message: "state missing"}
	}
	raw, ok, err := f.states.Consume(ctx, state)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &platforms.Error{Kind: platforms.ErrAuthenticationMismatch, Platform: p, Message: "state unknown or expired"}
	}
	var pending Pending
	if err := json.Unmarshal(raw, &pending); err != nil {
		return nil, err
	}
	if pending.Platform != string(p) {
		return nil, &platforms.Error{Kind: platforms.ErrAuthenticationMismatch, Platform: p, Message: "state issued for " + pending.Platform}
	}
	return &pending, nil
}

var reasonSafe = regexp.MustCompile(`[^a-z0-9_]+`)

// providerReason keeps the platform's error code usable as a query value.
func providerReason(s string) string {
	r := reasonSafe.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "_")
	if r == "" || len(r) > 64 {
		return "access_denied"
	}
	return r
}
