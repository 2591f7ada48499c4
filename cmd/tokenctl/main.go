// Command tokenctl stores provider tokens in the database so the runner can
// pick them up without a redeploy.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"contentpipe/internal/infra"
	"contentpipe/internal/infra/credentials"
)

func main() {
	var (
		tokenFlag    string
		providerFlag string
	)
	flag.StringVar(&tokenFlag, "token", "", "token for the selected provider (falls back to environment)")
	flag.StringVar(&providerFlag, "provider", credentials.ProviderOpenAI, "provider to configure (openai or telegram)")
	flag.Parse()

	provider := strings.TrimSpace(strings.ToLower(providerFlag))
	switch provider {
	case credentials.ProviderOpenAI, credentials.ProviderTelegram:
	case "":
		provider = credentials.ProviderOpenAI
	default:
		fmt.Fprintf(os.Stderr, "unsupported provider %q\n", providerFlag)
		os.Exit(1)
	}

	token := strings.TrimSpace(tokenFlag)
	if token == "" {
		switch provider {
		case credentials.ProviderTelegram:
			token = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
		default:
			token = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
		}
	}
	if token == "" {
		fmt.Fprintf(os.Stderr, "%s token is required via -token or environment\n", provider)
		os.Exit(1)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "tokenctl").Str("provider", provider).Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	if err := store.SetToken(ctx, provider, token); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist %s token: %v\n", provider, err)
		os.Exit(1)
	}
	fmt.Printf("%s token stored successfully\n", provider)
}
