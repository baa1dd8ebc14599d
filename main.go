package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"lootledger/cmd"
	"lootledger/database"

	log "github.com/sirupsen/logrus"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	var err error
	command := ""
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "migrate":
		err = handleMigrationCommand()
	case "history":
		err = handleHistoryCommand(ctx)
	case "verify":
		err = handleVerifyCommand(ctx)
	case "simulate":
		err = handleSimulateCommand(ctx)
	case "watch":
		consumer := "lootledger-watch"
		if len(os.Args) > 2 {
			consumer = os.Args[2]
		}
		err = cmd.Watch(ctx, consumer)
	case "", "run":
		err = cmd.Run(ctx)
	default:
		err = fmt.Errorf("unknown command %q, expected run, migrate, history, verify, simulate or watch", command)
	}

	if err != nil {
		log.WithError(err).Fatal("lootledger failed")
	}
}

func handleMigrationCommand() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: lootledger migrate [up|down|status] [args...]")
	}

	command := os.Args[2]
	switch command {
	case "up":
		return database.MigrateUp()
	case "down":
		steps := 1
		if len(os.Args) > 3 {
			n, err := strconv.Atoi(os.Args[3])
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid steps value: %s", os.Args[3])
			}
			steps = n
		}
		return database.MigrateDown(steps)
	case "status":
		return database.MigrateStatus()
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}
}

func handleHistoryCommand(ctx context.Context) error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: lootledger history <user-id> [limit]")
	}
	userID, err := strconv.ParseInt(os.Args[2], 10, 64)
	if err != nil || userID <= 0 {
		return fmt.Errorf("invalid user id: %s", os.Args[2])
	}
	limit := 20
	if len(os.Args) > 3 {
		limit, err = strconv.Atoi(os.Args[3])
		if err != nil || limit <= 0 {
			return fmt.Errorf("invalid limit: %s", os.Args[3])
		}
	}
	return cmd.History(ctx, userID, limit, os.Stdout)
}

func handleVerifyCommand(ctx context.Context) error {
	if len(os.Args) < 5 {
		return fmt.Errorf("usage: lootledger verify <client-seed> <secret> <nonce>")
	}
	nonce, err := strconv.ParseInt(os.Args[4], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid nonce: %s", os.Args[4])
	}
	return cmd.Verify(ctx, os.Args[2], os.Args[3], nonce, os.Stdout)
}

func handleSimulateCommand(ctx context.Context) error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: lootledger simulate <box-id> [spins]")
	}
	boxID, err := strconv.ParseInt(os.Args[2], 10, 64)
	if err != nil || boxID <= 0 {
		return fmt.Errorf("invalid box id: %s", os.Args[2])
	}
	spins := 100000
	if len(os.Args) > 3 {
		spins, err = strconv.Atoi(os.Args[3])
		if err != nil || spins <= 0 {
			return fmt.Errorf("invalid spin count: %s", os.Args[3])
		}
	}
	return cmd.Simulate(ctx, boxID, spins, os.Stdout)
}
