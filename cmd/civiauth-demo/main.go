// Command civiauth-demo walks one resident account through the full
// lifecycle against an embedded redis: signup, email verification, profile
// onboarding, administrator approval, and a capability check. It prints the
// account state after each step.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/citizenhub/civiauth"
	"github.com/citizenhub/civiauth/backend"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "civiauth-demo:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	redisAddr := flag.String("redis", "", "redis address; empty starts an embedded instance")
	email := flag.String("email", "ada@example.gov", "demo account email")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	logger := zap.NewNop()
	if *verbose {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer logger.Sync()
	}

	addr := *redisAddr
	if addr == "" {
		if env := os.Getenv("CIVIAUTH_REDIS_ADDR"); env != "" {
			addr = env
		} else {
			mini, err := miniredis.Run()
			if err != nil {
				return err
			}
			defer mini.Close()
			addr = mini.Addr()
		}
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	cfg := backend.DefaultConfig()
	cfg.TokenSecret = []byte("demo-secret-demo-secret-demo-secret!")
	mailer := backend.NewChannelMailer(4)
	svc, err := backend.New(client, cfg, mailer, logger)
	if err != nil {
		return err
	}

	store, err := civiauth.New().
		WithBackend(svc).
		WithLogger(logger).
		Build()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := store.Initialize(ctx); err != nil {
		return err
	}
	printState(store, "initialized")

	if res := store.SignUp(ctx, *email, "correct horse battery"); !res.Success {
		return res.Err
	}
	printState(store, "signed up")

	delivery := <-mailer.Deliveries()
	if res := store.VerifyEmail(ctx, delivery.Token); !res.Success {
		return res.Err
	}
	printState(store, "email verified")

	if res := store.CreateProfile(ctx, civiauth.ProfileInput{
		FullName:    "Ada Resident",
		AddressLine: "1 Civic Square",
		City:        "Springfield",
	}); !res.Success {
		return res.Err
	}
	printState(store, "profile created")

	userID := store.Snapshot().Session.UserID
	if err := svc.ApproveAccount(ctx, userID); err != nil {
		return err
	}
	if res := store.RefreshSession(ctx); !res.Success {
		return res.Err
	}
	printState(store, "approved")

	fmt.Printf("can create_requests: %v\n", store.CanAccess("create_requests"))
	fmt.Printf("can manage_users:    %v\n", store.CanAccess("manage_users"))

	if res := store.Logout(ctx); !res.Success {
		return res.Err
	}
	printState(store, "logged out")
	return nil
}

func printState(store *civiauth.Store, step string) {
	snap := store.Snapshot()
	fmt.Printf("%-16s state=%s loading=%v\n", step, snap.AccountState, snap.IsLoading)
}
