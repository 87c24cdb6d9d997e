package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paularlott/cli"

	"github.com/dukerupert/splitweek/internal/auth"
	"github.com/dukerupert/splitweek/internal/config"
	"github.com/dukerupert/splitweek/internal/database"
	"github.com/dukerupert/splitweek/internal/model"
	"github.com/dukerupert/splitweek/internal/push"
	"github.com/dukerupert/splitweek/internal/server"
	"github.com/dukerupert/splitweek/internal/store"
)

func dbFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "db",
		Usage: "SQLite database path (overrides SPLITWEEK_DB_PATH)",
	}
}

// loadConfig reads the environment and applies the db flag.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if p := cmd.GetString("db"); p != "" {
		cfg.DBPath = p
	}
	return cfg, nil
}

func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.DBPath, err)
	}
	return db, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:        "serve",
		Usage:       "Start the HTTP API",
		Description: "Serve the JSON API and websocket endpoint and run periodic maintenance",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on (overrides SPLITWEEK_PORT)",
			},
			dbFlag(),
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if p := cmd.GetInt("port"); p != 0 {
				cfg.Port = p
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			logger := slog.Default()
			srv := server.New(db, cfg, logger)

			janitor := srv.Janitor()
			if err := janitor.Start(); err != nil {
				return err
			}
			defer janitor.Stop()

			// No read/write timeouts: websocket connections outlive them.
			httpServer := &http.Server{
				Addr:              cfg.Addr(),
				Handler:           srv.Router(),
				ReadHeaderTimeout: 5 * time.Second,
				IdleTimeout:       120 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("splitweek listening", "addr", cfg.Addr(), "db", cfg.DBPath)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			select {
			case <-quit:
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server error: %w", err)
				}
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			srv.Notifier().Wait()
			return nil
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:        "migrate",
		Usage:       "Apply database migrations",
		Description: "Apply pending migrations and print the schema version",
		Flags:       []cli.Flag{dbFlag()},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			v, err := database.Version(db)
			if err != nil {
				return err
			}
			fmt.Printf("schema version %d\n", v)
			return nil
		},
	}
}

const seedPassword = "Password123"

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:        "seed",
		Usage:       "Insert demo parents and a child",
		Description: "Create mario@splitweek.com and alex@splitweek.com linked to one child. Safe to run twice.",
		Flags:       []cli.Flag{dbFlag()},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			return seed(db)
		},
	}
}

func seed(db *sql.DB) error {
	existing, err := store.NewUserStore(db).GetByEmail("mario@splitweek.com")
	if err != nil {
		return err
	}
	if existing != nil {
		slog.Info("seed data already present", "user_id", existing.ID)
		return nil
	}

	hash, err := auth.HashPassword(seedPassword)
	if err != nil {
		return err
	}

	return database.WithTx(db, func(tx *sql.Tx) error {
		s := store.New(tx)
		mario, err := s.Users.Create("mario@splitweek.com", hash, "Mario", "Rossi", nil)
		if err != nil {
			return err
		}
		alex, err := s.Users.Create("alex@splitweek.com", hash, "Alex", "Rossi", nil)
		if err != nil {
			return err
		}
		dob := "2019-05-14"
		child, err := s.Children.Create(store.ChildFields{FirstName: "Sophie", LastName: "Rossi", DateOfBirth: &dob})
		if err != nil {
			return err
		}
		if _, err := s.Children.LinkParent(mario.ID, child.ID, model.RoleParentA, model.ColorParentA); err != nil {
			return err
		}
		if _, err := s.Children.LinkParent(alex.ID, child.ID, model.RoleParentB, model.ColorParentB); err != nil {
			return err
		}
		slog.Info("seeded demo data", "mario_id", mario.ID, "alex_id", alex.ID, "child_id", child.ID)
		return nil
	})
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:        "token",
		Usage:       "Issue a bearer token",
		Description: "Sign an access token for an existing user, for local testing",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "user-id",
				Usage: "User to issue the token for",
			},
			&cli.StringFlag{
				Name:         "ttl",
				Usage:        "Token lifetime",
				DefaultValue: "24h",
			},
			dbFlag(),
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ttl, err := time.ParseDuration(cmd.GetString("ttl"))
			if err != nil {
				return fmt.Errorf("parse ttl: %w", err)
			}

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			userID := int64(cmd.GetInt("user-id"))
			if userID <= 0 {
				return errors.New("--user-id is required")
			}
			user, err := store.NewUserStore(db).GetByID(userID)
			if err != nil {
				return err
			}
			if user == nil {
				return fmt.Errorf("user %d not found", userID)
			}

			token, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer).Issue(user.ID, user.Email, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
}

func vapidKeysCommand() *cli.Command {
	return &cli.Command{
		Name:        "vapid-keys",
		Usage:       "Generate a VAPID key pair",
		Description: "Print a new VAPID key pair for SPLITWEEK_VAPID_PUBLIC_KEY and SPLITWEEK_VAPID_PRIVATE_KEY",
		Run: func(ctx context.Context, cmd *cli.Command) error {
			pub, priv, err := push.GenerateVAPIDKeys()
			if err != nil {
				return err
			}
			fmt.Printf("SPLITWEEK_VAPID_PUBLIC_KEY=%s\nSPLITWEEK_VAPID_PRIVATE_KEY=%s\n", pub, priv)
			return nil
		},
	}
}
