// Command tokengen mints bearer tokens for API clients such as chat bot
// frontends and operators.
package main

import (
	"fmt"
	"os"
	"time"

	"coin-tip-ledger/config"
	"coin-tip-ledger/internal/service"
	"coin-tip-ledger/pkg/logger"

	"github.com/jessevdk/go-flags"
)

var opts struct {
	ConfigFile string        `short:"C" long:"config" description:"Path to config file"`
	ClientID   string        `short:"c" long:"client" description:"Client id embedded as the token subject" required:"true"`
	Expiry     time.Duration `short:"e" long:"expiry" description:"Token lifetime (default: jwt.expiry from config)"`
}

func main() {
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(2)
	}

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	// stdout carries only the token
	log := logger.NewWithWriter(cfg.Log.Level, os.Stderr)

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("jwt.secret is required (CTL_JWT_SECRET)")
	}

	ttl := cfg.JWT.Expiry
	if opts.Expiry > 0 {
		ttl = opts.Expiry
	}

	token, expiresAt, err := service.NewJWTTokenService(cfg.JWT.Secret, ttl, cfg.JWT.Issuer).Generate(opts.ClientID)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to generate token")
	}

	log.Info().
		Str("client_id", opts.ClientID).
		Str("expires_at", expiresAt.UTC().Format(time.RFC3339)).
		Msg("token generated")
	fmt.Println(token)
}
