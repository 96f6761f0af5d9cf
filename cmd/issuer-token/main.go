// Command issuer-token mints a bearer token that authorizes certificate
// issuance against a server sharing the same signing key.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	jwttoken "certvault/internal/jwt_token"
	"certvault/internal/platform/config"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "issuer-token: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fs := flag.NewFlagSet("issuer-token", flag.ContinueOnError)
	subject := fs.String("subject", "", "issuer identity recorded on audit events (required)")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.TokenIssuer, cfg.TokenAudience)
	token, err := svc.GenerateIssuerToken(*subject, *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
