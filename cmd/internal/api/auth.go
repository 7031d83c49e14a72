package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"debtease/cmd/internal/auth/session"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Login exchanges credentials for a token pair and makes it the current session.
func (c *Client) Login(ctx context.Context, username, password string) (session.Claims, error) {
	// A new identity never rides on the previous one's credential.
	c.session.Clear()

	var pair tokenPair
	err := c.Do(ctx, Request{
		Method:   http.MethodPost,
		Endpoint: LoginEndpoint,
		Body:     credentials{Username: username, Password: password},
	}, &pair)
	if err != nil {
		return session.Claims{}, err
	}

	claims, err := c.session.DecodeToken(pair.AccessToken)
	if err != nil {
		return session.Claims{}, unauthorized("login returned an undecodable access token")
	}
	c.session.SetRefreshToken(pair.RefreshToken)
	c.save(ctx)

	c.log.Info("session.login", "username", claims.Subject, "role", claims.Role.String())
	return claims, nil
}

// refreshTimeout bounds a shared refresh, which outlives the caller that
// started it.
const refreshTimeout = 30 * time.Second

// Refresh mints a new access token from the refresh token unless the current
// one is still valid. Concurrent callers share one in-flight request and
// observe its result. On failure the session is cleared.
//
// The shared request runs detached from ctx; a caller whose ctx ends stops
// waiting without failing the others.
func (c *Client) Refresh(ctx context.Context) error {
	done := c.refreshes.DoChan("refresh", func() (any, error) {
		// A caller that lost the race may arrive after the refresh finished.
		if c.session.HasToken() && !c.session.IsExpired() {
			return nil, nil
		}
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return nil, c.refresh(rctx)
	})

	select {
	case <-ctx.Done():
		return transportFailure(ctx.Err())
	case res := <-done:
		if res.Shared {
			c.log.Debug("session.refresh.shared")
		}
		return res.Err
	}
}

func (c *Client) refresh(ctx context.Context) error {
	rt := c.session.RefreshToken()
	if rt == "" {
		c.metrics.RefreshOutcome(false)
		c.dropSession(ctx, "missing refresh token")
		return unauthorized("missing refresh token")
	}

	var pair tokenPair
	err := c.Do(ctx, Request{
		Method:   http.MethodPost,
		Endpoint: RefreshEndpoint,
		Body:     refreshRequest{RefreshToken: rt},
	}, &pair)
	if err != nil {
		c.metrics.RefreshOutcome(false)
		// A refresh that ran out of time says nothing about the credential.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			c.log.Warn("session.refresh.abort", "err", err)
			return err
		}
		c.dropSession(ctx, err.Error())
		return err
	}

	claims, err := c.session.DecodeToken(pair.AccessToken)
	if err != nil {
		c.metrics.RefreshOutcome(false)
		c.dropSession(ctx, "undecodable access token")
		return unauthorized("refreshed access token could not be decoded")
	}
	if pair.RefreshToken != "" {
		c.session.SetRefreshToken(pair.RefreshToken)
	}
	c.save(ctx)

	c.metrics.RefreshOutcome(true)
	c.log.Info("session.refresh", "username", claims.Subject, "expires_at", claims.ExpiresAt)
	return nil
}

// Logout asks the server to revoke the session and then clears it locally.
// The local clear happens even when the server call fails; that error is
// returned for reporting.
func (c *Client) Logout(ctx context.Context) error {
	var serverErr error
	if c.session.HasToken() {
		_, err := c.Send(ctx, Request{Method: http.MethodPost, Endpoint: LogoutEndpoint})
		if err != nil && !IsNoContent(err) {
			serverErr = err
			c.log.Warn("session.logout.fail", "err", err)
		}
	}

	c.session.Clear()
	if err := c.persist.Clear(ctx); err != nil {
		return err
	}
	return serverErr
}

// RestoreSession loads a persisted session, if any, into the store.
func (c *Client) RestoreSession(ctx context.Context) error {
	tokens, err := c.persist.Load(ctx)
	if errors.Is(err, session.ErrNoSavedSession) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := c.session.Restore(tokens); err != nil {
		c.log.Warn("session.restore.fail", "err", err)
		return c.persist.Clear(ctx)
	}
	return nil
}

// DropSession clears the session after an unrecoverable 401.
func (c *Client) DropSession(ctx context.Context) {
	c.dropSession(ctx, "unauthorized")
}

func (c *Client) dropSession(ctx context.Context, reason string) {
	c.log.Warn("session.clear", "reason", reason, "username", c.session.Username())
	c.session.Clear()
	if err := c.persist.Clear(ctx); err != nil {
		c.log.Warn("session.persist.clear.fail", "err", err)
	}
}

func (c *Client) save(ctx context.Context) {
	if err := c.persist.Save(ctx, c.session.Snapshot()); err != nil {
		c.log.Warn("session.persist.save.fail", "err", err)
	}
}
