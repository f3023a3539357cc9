package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"skyduel/internal/game"
)

func mustStartPostgresContainer() (func(context.Context, ...testcontainers.TerminateOption) error, error) {
	var (
		dbName = "skyduel_test"
		dbPwd  = "password"
		dbUser = "skyduel"
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dbContainer, err := postgres.Run(
		ctx,
		"postgres:latest",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	database = dbName
	password = dbPwd
	username = dbUser
	schema = "public"

	dbHost, err := dbContainer.Host(context.Background())
	if err != nil {
		return dbContainer.Terminate, err
	}

	dbPort, err := dbContainer.MappedPort(context.Background(), "5432/tcp")
	if err != nil {
		return dbContainer.Terminate, err
	}

	host = dbHost
	port = dbPort.Port()

	return dbContainer.Terminate, err
}

func TestMain(m *testing.M) {
	if os.Getenv("SKIP_INTEGRATION") != "" {
		os.Exit(0)
	}

	if os.Getenv("CI") == "" && !isDockerAvailable() {
		os.Exit(0)
	}

	teardown, err := mustStartPostgresContainer()
	if err != nil {
		// No container, no integration run.
		os.Exit(0)
	}

	code := m.Run()

	if teardown != nil {
		teardown(context.Background())
	}

	os.Exit(code)
}

func isDockerAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return false
	}
	defer provider.Close()

	_, err = provider.DaemonHost(ctx)
	return err == nil
}

func TestNew(t *testing.T) {
	srv := New()
	if srv == nil {
		t.Fatal("New() returned nil")
	}
}

func TestHealth(t *testing.T) {
	srv := New()

	stats := srv.Health()

	if stats["status"] != "up" {
		t.Fatalf("expected status to be up, got %s", stats["status"])
	}

	if _, ok := stats["error"]; ok {
		t.Fatalf("expected error not to be present")
	}

	if stats["message"] != "It's healthy" {
		t.Fatalf("expected message to be 'It's healthy', got %s", stats["message"])
	}
}

func TestRoundStore(t *testing.T) {
	srv := New()
	ctx := context.Background()

	if err := RunMigrations(srv.DB(), "../../migrations"); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}

	store := NewRoundStore(srv.DB())

	t.Run("missing round", func(t *testing.T) {
		if _, _, err := store.LoadRound(ctx, game.GameTypeAviator); err != game.ErrNotFound {
			t.Fatalf("LoadRound() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("round trips hidden outcome fields", func(t *testing.T) {
		deadline := time.Now().Add(5 * time.Second).UTC().Truncate(time.Millisecond)
		round := &game.Round{
			GameType:      game.GameTypeAviator,
			RoundNumber:   7,
			Phase:         game.PhaseRunning,
			PhaseDeadline: deadline,
			Multiplier:    1.42,
			CrashTarget:   2.50,
		}
		bets := []game.Bet{{
			BetID:       "b1",
			RoundNumber: 7,
			UserID:      "u1",
			Stake:       100,
			State:       game.BetOpen,
		}}

		if err := store.SaveRound(ctx, round, bets); err != nil {
			t.Fatalf("SaveRound() error = %v", err)
		}

		got, gotBets, err := store.LoadRound(ctx, game.GameTypeAviator)
		if err != nil {
			t.Fatalf("LoadRound() error = %v", err)
		}
		if got.RoundNumber != 7 || got.Phase != game.PhaseRunning {
			t.Errorf("round = %+v, want round 7 running", got)
		}
		if got.CrashTarget != 2.50 {
			t.Errorf("crash target = %v, the forced outcome must survive a restart", got.CrashTarget)
		}
		if got.Multiplier != 1.42 {
			t.Errorf("multiplier = %v, want 1.42", got.Multiplier)
		}
		if len(gotBets) != 1 || gotBets[0].BetID != "b1" || gotBets[0].Stake != 100 {
			t.Errorf("bets = %+v, want the open bet back", gotBets)
		}
	})

	t.Run("save overwrites the existing row", func(t *testing.T) {
		round := &game.Round{
			GameType:    game.GameTypeAviator,
			RoundNumber: 8,
			Phase:       game.PhaseBetting,
		}
		if err := store.SaveRound(ctx, round, nil); err != nil {
			t.Fatalf("SaveRound() error = %v", err)
		}

		got, gotBets, err := store.LoadRound(ctx, game.GameTypeAviator)
		if err != nil {
			t.Fatalf("LoadRound() error = %v", err)
		}
		if got.RoundNumber != 8 {
			t.Errorf("round number = %d, want 8", got.RoundNumber)
		}
		if len(gotBets) != 0 {
			t.Errorf("bets = %+v, want none", gotBets)
		}
	})

	t.Run("game types do not collide", func(t *testing.T) {
		round := &game.Round{
			GameType:    game.GameTypeDragonTiger,
			RoundNumber: 3,
			Phase:       game.PhaseBetting,
		}
		if err := store.SaveRound(ctx, round, nil); err != nil {
			t.Fatalf("SaveRound() error = %v", err)
		}

		aviator, _, err := store.LoadRound(ctx, game.GameTypeAviator)
		if err != nil {
			t.Fatalf("LoadRound(aviator) error = %v", err)
		}
		if aviator.RoundNumber != 8 {
			t.Errorf("aviator round = %d, the dragontiger row must not touch it", aviator.RoundNumber)
		}
	})
}

func TestMigrationVersion(t *testing.T) {
	srv := New()

	if err := RunMigrations(srv.DB(), "../../migrations"); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}

	version, dirty, err := GetMigrationVersion(srv.DB(), "../../migrations")
	if err != nil {
		t.Fatalf("GetMigrationVersion() error = %v", err)
	}
	if dirty {
		t.Error("schema reported dirty after a clean migration run")
	}
	if version == 0 {
		t.Error("version = 0, want at least the first migration applied")
	}
}

func TestClose(t *testing.T) {
	srv := New()

	if srv.Close() != nil {
		t.Fatalf("expected Close() to return nil")
	}
}
