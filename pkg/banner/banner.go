package banner

import (
	"fmt"

	"gatekit/pkg/config"
)

const banner = `
 ██████╗  █████╗ ████████╗███████╗██╗  ██╗██╗████████╗
██╔════╝ ██╔══██╗╚══██╔══╝██╔════╝██║ ██╔╝██║╚══██╔══╝
██║  ███╗███████║   ██║   █████╗  █████╔╝ ██║   ██║
██║   ██║██╔══██║   ██║   ██╔══╝  ██╔═██╗ ██║   ██║
╚██████╔╝██║  ██║   ██║   ███████╗██║  ██╗██║   ██║
 ╚═════╝ ╚═╝  ╚═╝   ╚═╝   ╚══════╝╚═╝  ╚═╝╚═╝   ╚═╝
`

// Print writes the startup banner with a summary of the effective
// security posture.
func Print(cfg *config.Config, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", cfg.Addr())
	fmt.Printf("Engine:   %s\n", cfg.Server.Engine)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}

	fmt.Println("\n== Security ===================================================")
	if n := len(cfg.Security.Proxy.TrustedProxies); n > 0 {
		fmt.Printf("- Proxy trust: %d entries (hop count %d)\n", n, cfg.Security.Proxy.TrustedHopCount)
	} else {
		fmt.Println("- Proxy trust: disabled (peer address used as-is)")
	}
	if cfg.Security.RateLimit.Enabled {
		fmt.Printf("- Rate limit: %d requests / %s\n", cfg.Security.RateLimit.Requests, cfg.Security.RateLimit.Window.Duration())
	} else {
		fmt.Println("- Rate limit: disabled")
	}
	if cfg.Security.CSRF.Enabled {
		fmt.Println("- CSRF: enabled")
	} else {
		fmt.Println("- CSRF: disabled")
	}
	if cfg.Security.CORS.Enabled {
		fmt.Printf("- CORS: enabled (%d origins)\n", len(cfg.Security.CORS.AllowedOrigins))
	} else {
		fmt.Println("- CORS: disabled")
	}
	if cfg.Security.Headers.Enabled {
		fmt.Println("- Security headers: enabled")
	} else {
		fmt.Println("- Security headers: disabled")
	}
	if n := len(cfg.Security.TrustedHosts); n > 0 {
		fmt.Printf("- Trusted hosts: %d patterns\n", n)
	} else {
		fmt.Println("- Trusted hosts: any")
	}
	if cfg.Security.HTTPSRedirect.Enabled {
		fmt.Println("- HTTPS redirect: enabled")
	}

	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("GET  /healthz  - liveness probe")
	fmt.Println("GET  /metrics  - prometheus metrics")

	fmt.Println("\n== Logs: =================================================")
}
