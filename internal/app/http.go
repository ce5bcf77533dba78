package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"gatekit/pkg/engine"
	"gatekit/pkg/policy"
	"gatekit/pkg/ratelimit"
	"gatekit/pkg/trust"
	"gatekit/pkg/web"
)

// installMiddlewares assembles the chain in order: identity resolution
// first, transport policy next, then traffic shaping, then request
// policy. Construction errors from policy validation abort startup.
func (a *App) installMiddlewares() error {
	sec := &a.cfg.Security

	resolver := trust.NewResolver(trust.Config{
		TrustedProxies:  sec.Proxy.TrustedProxies,
		TrustedHopCount: sec.Proxy.TrustedHopCount,
	})
	a.web.Use(trust.Middleware(resolver))

	if sec.HTTPSRedirect.Enabled {
		a.web.Use(policy.HTTPSRedirect(policy.HTTPSRedirectConfig{
			RedirectStatusCode: sec.HTTPSRedirect.StatusCode,
			AllowedHosts:       sec.HTTPSRedirect.AllowedHosts,
		}))
	}

	if len(sec.TrustedHosts) > 0 {
		a.web.Use(policy.TrustedHost(sec.TrustedHosts))
	}

	if sec.Headers.Enabled {
		h := sec.Headers
		mw, err := policy.SecurityHeaders(policy.SecurityHeadersConfig{
			HSTSSeconds:           h.HSTSSeconds,
			HSTSIncludeSubdomains: h.HSTSIncludeSubdomains,
			HSTSPreload:           h.HSTSPreload,
			ContentSecurityPolicy: h.ContentSecurityPolicy,
			PermissionsPolicy:     h.PermissionsPolicy,
			FrameOptions:          h.FrameOptions,
			ReferrerPolicy:        h.ReferrerPolicy,
		})
		if err != nil {
			return err
		}
		a.web.Use(mw)
	}

	if sec.RateLimit.GlobalRPS > 0 {
		a.web.Use(ratelimit.NewThrottle(sec.RateLimit.GlobalRPS, sec.RateLimit.GlobalBurst).Middleware())
	}

	if sec.RateLimit.Enabled {
		a.limiter = ratelimit.NewLimiter(
			sec.RateLimit.Requests,
			sec.RateLimit.Window.Duration(),
			sec.RateLimit.MaxEntries,
		)
		a.web.Use(ratelimit.Middleware(a.limiter, ratelimit.DefaultKeyFunc))
	}

	if sec.CORS.Enabled {
		a.web.Use(policy.CORS(policy.CORSConfig{
			AllowedOrigins:   sec.CORS.AllowedOrigins,
			AllowedMethods:   sec.CORS.AllowedMethods,
			AllowedHeaders:   sec.CORS.AllowedHeaders,
			AllowCredentials: sec.CORS.AllowCredentials,
			MaxAgeSeconds:    sec.CORS.MaxAgeSeconds,
		}))
	}

	if sec.CSRF.Enabled {
		c := sec.CSRF
		mw, err := policy.CSRF(policy.CSRFConfig{
			Secret:        c.Secret,
			CookieName:    c.CookieName,
			HeaderName:    c.HeaderName,
			ExemptMethods: c.ExemptMethods,
			Secure:        c.Secure,
			SameSite:      c.SameSite,
		})
		if err != nil {
			return err
		}
		a.web.Use(mw)
	}

	return nil
}

func (a *App) installRoutes() {
	a.web.Get("/healthz", func(req *web.Request, res *web.Response) {
		res.JSON(map[string]string{"status": "ok", "version": a.version})
	})

	a.web.Get("/", func(req *web.Request, res *web.Response) {
		res.JSON(map[string]string{
			"service": "gatekit",
			"client":  req.RemoteAddr(),
			"scheme":  req.Scheme(),
		})
	})

	a.web.Post("/echo", func(req *web.Request, res *web.Response) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		body, err := req.Text(ctx)
		switch {
		case errors.Is(err, web.ErrBodyTooLarge):
			res.JSONError(http.StatusRequestEntityTooLarge, "Payload Too Large", "Request body exceeds the configured limit")
		case err != nil:
			res.JSONError(http.StatusBadRequest, "Bad Request", "Request body could not be read")
		default:
			res.Text(body)
		}
	})

	// prometheus ships a net/http handler; mount it per engine.
	switch e := a.eng.(type) {
	case *engine.NetHTTP:
		e.Router().Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
		if a.cfg.Server.Compress {
			e.WrapHandler(handlers.CompressHandler)
		}
	case *engine.FastHTTP:
		e.RawHandle("/metrics", fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()))
		if a.cfg.Server.Compress {
			e.WrapHandler(fasthttp.CompressHandler)
		}
	}
}
