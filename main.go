////////////////////////////////////////////////////////////////////////////////
// Commons Treasury: donations, project funding, ballots and a multisig gate
// on top of a SQL-backed host
////////////////////////////////////////////////////////////////////////////////

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"commons_treasury/config"
	"commons_treasury/contract"
	"commons_treasury/contract/dao"
	"commons_treasury/sdk"
	"commons_treasury/store"

	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	sender     string
	timestamp  int64
	txID       string
	allow      string
	deposits   []string
}

func run(argv []string) (err error) {
	var opts options
	flagSet := pflag.NewFlagSet("treasury", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "path to the YAML config file")
	flagSet.StringVarP(&opts.sender, "sender", "s", "", "account submitting the call")
	flagSet.Int64Var(&opts.timestamp, "timestamp", 0, "block timestamp in unix seconds")
	flagSet.StringVar(&opts.txID, "tx", "", "transaction id (generated when empty)")
	flagSet.StringVar(&opts.allow, "allow", "", "transfer.allow limit for the call, e.g. 5eth")
	flagSet.StringArrayVar(&opts.deposits, "deposit", nil, "credit an account before the call, addr=amount (repeatable)")
	flagSet.BoolP("help", "h", false, "show help")
	if err := flagSet.Parse(argv); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	args := flagSet.Args()
	if len(args) == 0 {
		printHelp(flagSet)
		return errors.New("missing action")
	}
	action := args[0]
	payload := strings.Join(args[1:], " ")
	if action == "actions" {
		for _, name := range contract.Actions() {
			fmt.Println(name)
		}
		return nil
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	logger, closeLog, err := initLogging(cfg.Log)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
		err = multierr.Append(err, closeLog())
	}()

	db, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, store.Close(db)) }()

	ctx := context.Background()
	host := store.NewSQLHost(db, sdk.Address(cfg.Contract.ID))
	for _, d := range opts.deposits {
		if err := deposit(ctx, host, d); err != nil {
			return err
		}
	}

	switch action {
	case "deposit":
		return nil
	case "verify":
		if err := host.VerifyAudit(ctx); err != nil {
			return err
		}
		fmt.Println("audit chain ok")
		return nil
	}

	call, err := buildCall(opts)
	if err != nil {
		return err
	}
	fn := contract.Action(action, payload)
	if action == "init" && payload == "" {
		// the YAML contract section carries what the pipe payload cannot, like per-category limits
		if err := cfg.Contract.Validate(); err != nil {
			return err
		}
		settings := cfg.Contract.ToSettings()
		fn = func(h sdk.Host) (string, error) {
			if err := contract.Init(contract.Open(h).State, settings); err != nil {
				return "", err
			}
			return "initialized", nil
		}
	}

	res := host.Apply(ctx, call, fn)
	for _, line := range res.Logs {
		logger.Debug(line, zap.String("tx", res.TxID))
	}
	if !res.Success {
		logger.Warn("call failed",
			zap.String("action", action),
			zap.String("tx", res.TxID),
			zap.String("kind", contract.KindOf(res.Err).String()),
			zap.Error(res.Err))
		return res.Err
	}
	logger.Info("call applied",
		zap.String("action", action),
		zap.String("tx", res.TxID),
		zap.Int("events", len(res.Events)))
	fmt.Println(res.Ret)
	return nil
}

func buildCall(opts options) (sdk.Call, error) {
	sender := sdk.Address(opts.sender)
	if !sender.IsValid() {
		return sdk.Call{}, fmt.Errorf("--sender: invalid address %q", opts.sender)
	}
	call := sdk.Call{Sender: sender, Timestamp: opts.timestamp, TxID: opts.txID}
	if call.Timestamp == 0 {
		call.Timestamp = time.Now().Unix()
	}
	if opts.allow != "" {
		limit, err := dao.ParseAmount(opts.allow)
		if err != nil {
			return sdk.Call{}, fmt.Errorf("--allow: %w", err)
		}
		call.Intents = []sdk.Intent{sdk.AllowIntent(limit.Uint256())}
	}
	return call, nil
}

func deposit(ctx context.Context, host *store.SQLHost, arg string) error {
	addr, amt, ok := strings.Cut(arg, "=")
	if !ok {
		return fmt.Errorf("--deposit %q: want addr=amount", arg)
	}
	amount, err := dao.ParseAmount(amt)
	if err != nil {
		return fmt.Errorf("--deposit %q: %w", arg, err)
	}
	if err := host.Deposit(ctx, sdk.Address(strings.TrimSpace(addr)), amount.Uint256()); err != nil {
		return fmt.Errorf("--deposit %q: %w", arg, err)
	}
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Usage: treasury [flags] <action> [payload]

Runs one treasury action against the configured store and prints its reply.
Payload fields are pipe separated, e.g. "allocate 1|5eth".

Special actions:
  actions   list every contract action
  deposit   only apply --deposit credits
  verify    recompute the stored audit chain
  init      with no payload, initialize from the config file

Flags:
%s`, flagSet.FlagUsages())
}
