// Package main provides a command line wallet for the Mezo testnet. It
// drives the same engine the mobile app embeds: balances, transfers, cash
// links, permit donations and transfer history.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mezo-lite/internal/config"
	"github.com/mezo-lite/internal/logging"
	"github.com/mezo-lite/internal/wallet"
)

const usage = `Usage: wallet <command> [flags]

Commands:
  balance                     Show the token balance
  send      -to -amount       Transfer tokens
  cashlink  create -amount    Create a shareable cash link
  cashlink  claim -code       Claim a cash link
  cashlink  list              List this wallet's cash links
  donate    -beneficiary -amount
                              Donate via EIP-2612 permit
  history                     Show transfer history
  qr        -code [-out]      Render a cash link QR code PNG
  connect   -identifier -username
                              Register with the backend
  resolve   -payload          Look up a user by name, phone or email
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)

	engine, err := wallet.NewEngine(cfg)
	if err != nil {
		fatalf("Failed to initialize wallet: %v", err)
	}
	defer engine.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "balance":
		err = runBalance(ctx, engine)
	case "send":
		err = runSend(ctx, engine, args)
	case "cashlink":
		err = runCashlink(ctx, engine, args)
	case "donate":
		err = runDonate(ctx, engine, args)
	case "history":
		err = runHistory(ctx, engine)
	case "qr":
		err = runQR(args)
	case "connect":
		err = runConnect(ctx, engine, args)
	case "resolve":
		err = runResolve(ctx, engine, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		fatalf("%v", err)
	}
}

func runBalance(ctx context.Context, engine *wallet.Engine) error {
	engine.Balance.Refresh()

	// One blocking fetch; the poller loop only runs in the app
	done := make(chan struct{})
	go func() {
		defer close(done)
		engine.Balance.Run(ctx)
	}()

	deadline := time.After(30 * time.Second)
	for {
		balance, err := engine.Balance.Current()
		if balance != nil {
			fmt.Printf("Address: %s\n", engine.Address().Hex())
			fmt.Printf("Balance: %s %s\n", balance.Formatted, balance.Symbol)
			return nil
		}
		if err != nil {
			return err
		}

		select {
		case <-deadline:
			return fmt.Errorf("timed out fetching balance")
		case <-time.After(200 * time.Millisecond):
		}
	}
}

func runSend(ctx context.Context, engine *wallet.Engine, args []string) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	to := fs.String("to", "", "Recipient address")
	amount := fs.String("amount", "", "Amount to send")
	parseFlags(fs, args)

	txHash, err := engine.Transfer(ctx, *to, *amount)
	if err != nil {
		return err
	}

	fmt.Printf("Sent %s to %s\n", *amount, *to)
	fmt.Printf("Transaction: %s\n", txHash)
	return nil
}

func runCashlink(ctx context.Context, engine *wallet.Engine, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("cashlink requires a subcommand: create, claim, list")
	}

	switch args[0] {
	case "create":
		fs := flag.NewFlagSet("cashlink create", flag.ExitOnError)
		amount := fs.String("amount", "", "Amount to lock")
		parseFlags(fs, args[1:])

		result, err := engine.Cashlinks.Create(ctx, *amount)
		if err != nil {
			return err
		}

		fmt.Printf("Cash link created\n")
		fmt.Printf("  Link:        %s\n", wallet.ClaimLink(result.Code))
		fmt.Printf("  Transaction: %s\n", result.TransactionHash)
		if result.PersistErr != nil {
			fmt.Printf("  WARNING: the backend did not record this link (%v).\n", result.PersistErr)
			fmt.Printf("  Keep the link; it is the only copy of the claim code.\n")
		}
		return nil

	case "claim":
		fs := flag.NewFlagSet("cashlink claim", flag.ExitOnError)
		code := fs.String("code", "", "Claim code or full claim link")
		parseFlags(fs, args[1:])

		claimCode := *code
		if parsed, err := wallet.ParseClaimLink(claimCode); err == nil {
			claimCode = parsed
		}

		txHash, err := engine.Cashlinks.Claim(ctx, claimCode)
		if err != nil {
			return err
		}
		fmt.Printf("Claimed. Transaction: %s\n", txHash)
		return nil

	case "list":
		if err := engine.Cashlinks.Refresh(ctx); err != nil {
			return err
		}

		links := engine.Cashlinks.Links()
		if len(links) == 0 {
			fmt.Println("No cash links")
			return nil
		}
		for txHash, entry := range links {
			marker := ""
			if entry.Provisional {
				marker = " (not yet recorded)"
			}
			fmt.Printf("%s  %s%s\n", txHash, wallet.ClaimLink(entry.Code), marker)
		}
		return nil

	default:
		return fmt.Errorf("unknown cashlink subcommand: %s", args[0])
	}
}

func runDonate(ctx context.Context, engine *wallet.Engine, args []string) error {
	fs := flag.NewFlagSet("donate", flag.ExitOnError)
	beneficiary := fs.Int64("beneficiary", 0, "Beneficiary ID")
	amount := fs.String("amount", "", "Amount to donate")
	parseFlags(fs, args)

	txHash, err := engine.Donations.Donate(ctx, *beneficiary, *amount)
	if err != nil {
		return err
	}

	fmt.Printf("Donated %s to beneficiary %d\n", *amount, *beneficiary)
	fmt.Printf("Transaction: %s\n", txHash)
	return nil
}

func runHistory(ctx context.Context, engine *wallet.Engine) error {
	txs, err := engine.History.Recent(ctx)
	if err != nil {
		return err
	}

	if len(txs) == 0 {
		fmt.Println("No transfers")
		return nil
	}

	for _, tx := range txs {
		direction := "sent to  "
		counterparty := tx.To
		if tx.IsReceiving {
			direction = "received from"
			counterparty = tx.From
		}
		when := time.Unix(tx.Timestamp, 0).Format("2006-01-02 15:04")
		fmt.Printf("%s  %s %s %s  %s\n",
			when, wallet.DisplayAmount(tx), tx.Symbol, direction, counterparty)
	}
	return nil
}

func runQR(args []string) error {
	fs := flag.NewFlagSet("qr", flag.ExitOnError)
	code := fs.String("code", "", "Claim code")
	out := fs.String("out", "cashlink.png", "Output PNG path")
	size := fs.Int("size", 256, "Image size in pixels")
	parseFlags(fs, args)

	png, err := wallet.ClaimLinkQR(*code, *size)
	if err != nil {
		return err
	}

	if err := os.WriteFile(*out, png, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", *out, err)
	}
	fmt.Printf("QR code written to %s\n", *out)
	return nil
}

func runConnect(ctx context.Context, engine *wallet.Engine, args []string) error {
	fs := flag.NewFlagSet("connect", flag.ExitOnError)
	identifier := fs.String("identifier", "", "Verified phone number or email")
	username := fs.String("username", "", "Display username")
	parseFlags(fs, args)

	result, err := engine.Connect(ctx, *identifier, *username)
	if err != nil {
		return err
	}

	fmt.Printf("Connected as %s (%s)\n", result.User.Username, result.User.Identifier)
	fmt.Printf("Session token: %s\n", result.SessionToken)

	// Deep links opened before connect are claimable now
	for code, claimErr := range engine.ClaimPending(ctx) {
		if claimErr != nil {
			fmt.Printf("Failed to claim %s: %v\n", code, claimErr)
		} else {
			fmt.Printf("Claimed pending link %s\n", code)
		}
	}
	return nil
}

func runResolve(ctx context.Context, engine *wallet.Engine, args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	payload := fs.String("payload", "", "Username, phone number or email")
	parseFlags(fs, args)

	user, err := engine.Backend.ResolveUser(ctx, *payload)
	if err != nil {
		return err
	}

	fmt.Printf("Username:   %s\n", user.Username)
	fmt.Printf("Identifier: %s\n", user.Identifier)
	fmt.Printf("Wallet:     %s\n", user.WalletAddress)
	return nil
}

func parseFlags(fs *flag.FlagSet, args []string) {
	// ExitOnError flag sets never return an error from Parse
	_ = fs.Parse(args)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
